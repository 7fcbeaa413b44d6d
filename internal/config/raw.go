package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawSettings struct {
	Backend *string `yaml:"backend"`
	Path    *string `yaml:"path"`
}

type RawHotkeys struct {
	MoveToNextMonitor     *string `yaml:"move_to_next_monitor"`
	MoveToPreviousMonitor *string `yaml:"move_to_previous_monitor"`
}

// RawConfig mirrors one YAML file. Nil fields were not set by that file.
// Durations stay strings until BuildEffectiveConfig so parse errors carry
// the key path.
type RawConfig struct {
	Include IncludeList `yaml:"include"`

	LogLevel               *string      `yaml:"log_level"`
	Settings               *RawSettings `yaml:"settings"`
	SettleDelay            *string      `yaml:"settle_delay"`
	GenericTimeout         *string      `yaml:"generic_timeout"`
	DriftTolerance         *int         `yaml:"drift_tolerance"`
	MaxDriftAttempts       *int         `yaml:"max_drift_attempts"`
	MinSpecificTitleLength *int         `yaml:"min_specific_title_length"`
	GenericTitles          []string     `yaml:"generic_titles"`
	SaveInterval           *string      `yaml:"save_interval"`
	SweepInterval          *string      `yaml:"sweep_interval"`
	Hotkeys                *RawHotkeys  `yaml:"hotkeys"`
}

// merge overlays o onto r. Scalars and lists are replaced, nested sections
// merged field by field.
func (r RawConfig) merge(o RawConfig) RawConfig {
	out := r
	out.Include = nil

	if o.LogLevel != nil {
		out.LogLevel = o.LogLevel
	}
	if o.Settings != nil {
		base := RawSettings{}
		if out.Settings != nil {
			base = *out.Settings
		}
		merged := mergeRawSettings(base, *o.Settings)
		out.Settings = &merged
	}
	if o.SettleDelay != nil {
		out.SettleDelay = o.SettleDelay
	}
	if o.GenericTimeout != nil {
		out.GenericTimeout = o.GenericTimeout
	}
	if o.DriftTolerance != nil {
		out.DriftTolerance = o.DriftTolerance
	}
	if o.MaxDriftAttempts != nil {
		out.MaxDriftAttempts = o.MaxDriftAttempts
	}
	if o.MinSpecificTitleLength != nil {
		out.MinSpecificTitleLength = o.MinSpecificTitleLength
	}
	if o.GenericTitles != nil {
		out.GenericTitles = o.GenericTitles
	}
	if o.SaveInterval != nil {
		out.SaveInterval = o.SaveInterval
	}
	if o.SweepInterval != nil {
		out.SweepInterval = o.SweepInterval
	}
	if o.Hotkeys != nil {
		base := RawHotkeys{}
		if out.Hotkeys != nil {
			base = *out.Hotkeys
		}
		merged := mergeRawHotkeys(base, *o.Hotkeys)
		out.Hotkeys = &merged
	}
	return out
}

func mergeRawSettings(base RawSettings, overlay RawSettings) RawSettings {
	out := base
	if overlay.Backend != nil {
		out.Backend = overlay.Backend
	}
	if overlay.Path != nil {
		out.Path = overlay.Path
	}
	return out
}

func mergeRawHotkeys(base RawHotkeys, overlay RawHotkeys) RawHotkeys {
	out := base
	if overlay.MoveToNextMonitor != nil {
		out.MoveToNextMonitor = overlay.MoveToNextMonitor
	}
	if overlay.MoveToPreviousMonitor != nil {
		out.MoveToPreviousMonitor = overlay.MoveToPreviousMonitor
	}
	return out
}
