package config

import (
	"fmt"
	"strings"
	"time"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig applies raw onto DefaultConfig. It does not validate.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.Settings != nil {
		if raw.Settings.Backend != nil {
			cfg.Settings.Backend = strings.ToLower(strings.TrimSpace(*raw.Settings.Backend))
		}
		if raw.Settings.Path != nil {
			cfg.Settings.Path = *raw.Settings.Path
		}
	}

	durations := []struct {
		path string
		raw  *string
		dst  *time.Duration
	}{
		{"settle_delay", raw.SettleDelay, &cfg.SettleDelay},
		{"generic_timeout", raw.GenericTimeout, &cfg.GenericTimeout},
		{"save_interval", raw.SaveInterval, &cfg.SaveInterval},
		{"sweep_interval", raw.SweepInterval, &cfg.SweepInterval},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.raw))
		if err != nil {
			return nil, &ValidationError{Path: d.path, Err: fmt.Errorf("invalid duration %q", *d.raw)}
		}
		*d.dst = v
	}

	if raw.DriftTolerance != nil {
		cfg.DriftTolerance = *raw.DriftTolerance
	}
	if raw.MaxDriftAttempts != nil {
		cfg.MaxDriftAttempts = *raw.MaxDriftAttempts
	}
	if raw.MinSpecificTitleLength != nil {
		cfg.MinSpecificTitleLength = *raw.MinSpecificTitleLength
	}
	if raw.GenericTitles != nil {
		cfg.GenericTitles = append([]string(nil), raw.GenericTitles...)
	}
	if raw.Hotkeys != nil {
		if raw.Hotkeys.MoveToNextMonitor != nil {
			cfg.Hotkeys.MoveToNextMonitor = strings.TrimSpace(*raw.Hotkeys.MoveToNextMonitor)
		}
		if raw.Hotkeys.MoveToPreviousMonitor != nil {
			cfg.Hotkeys.MoveToPreviousMonitor = strings.TrimSpace(*raw.Hotkeys.MoveToPreviousMonitor)
		}
	}
	return cfg, nil
}
