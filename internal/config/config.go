package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appDirName = "winkeep"

// SettingsConfig selects where saved windows and overrides live.
type SettingsConfig struct {
	Backend string `yaml:"backend"`
	// Path is a directory for the file backend and a database file for
	// sqlite. Empty means a location under the user config directory.
	Path string `yaml:"path,omitempty"`
}

// HotkeysConfig holds xgbutil keybind strings. An empty string disables
// the binding.
type HotkeysConfig struct {
	MoveToNextMonitor     string `yaml:"move_to_next_monitor"`
	MoveToPreviousMonitor string `yaml:"move_to_previous_monitor"`
}

// Config holds the daemon configuration.
type Config struct {
	LogLevel               string         `yaml:"log_level"`
	Settings               SettingsConfig `yaml:"settings"`
	SettleDelay            time.Duration  `yaml:"settle_delay"`
	GenericTimeout         time.Duration  `yaml:"generic_timeout"`
	DriftTolerance         int            `yaml:"drift_tolerance"`
	MaxDriftAttempts       int            `yaml:"max_drift_attempts"`
	MinSpecificTitleLength int            `yaml:"min_specific_title_length"`
	GenericTitles          []string       `yaml:"generic_titles"`
	SaveInterval           time.Duration  `yaml:"save_interval"`
	SweepInterval          time.Duration  `yaml:"sweep_interval"`
	Hotkeys                HotkeysConfig  `yaml:"hotkeys"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Settings: SettingsConfig{
			Backend: "file",
		},
		SettleDelay:            500 * time.Millisecond,
		GenericTimeout:         1500 * time.Millisecond,
		DriftTolerance:         2,
		MaxDriftAttempts:       3,
		MinSpecificTitleLength: 15,
		GenericTitles:          []string{},
		SaveInterval:           2 * time.Second,
		SweepInterval:          30 * time.Second,
		Hotkeys: HotkeysConfig{
			MoveToNextMonitor:     "Mod4-Shift-Right",
			MoveToPreviousMonitor: "Mod4-Shift-Left",
		},
	}
}

// SettingsPath returns the configured settings location, or the default for
// the selected backend.
func (c *Config) SettingsPath() (string, error) {
	if p := strings.TrimSpace(c.Settings.Path); p != "" {
		return expandHome(p)
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	if c.Settings.Backend == "sqlite" {
		return filepath.Join(dir, "settings.db"), nil
	}
	return filepath.Join(dir, "settings"), nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	switch c.Settings.Backend {
	case "file", "sqlite":
	default:
		return &ValidationError{Path: "settings.backend", Err: fmt.Errorf("backend must be one of: file, sqlite")}
	}
	if c.SettleDelay <= 0 {
		return &ValidationError{Path: "settle_delay", Err: fmt.Errorf("settle_delay must be > 0")}
	}
	if c.GenericTimeout <= 0 {
		return &ValidationError{Path: "generic_timeout", Err: fmt.Errorf("generic_timeout must be > 0")}
	}
	if c.DriftTolerance < 0 {
		return &ValidationError{Path: "drift_tolerance", Err: fmt.Errorf("drift_tolerance must be >= 0")}
	}
	if c.MaxDriftAttempts < 1 {
		return &ValidationError{Path: "max_drift_attempts", Err: fmt.Errorf("max_drift_attempts must be >= 1")}
	}
	if c.MinSpecificTitleLength < 1 {
		return &ValidationError{Path: "min_specific_title_length", Err: fmt.Errorf("min_specific_title_length must be >= 1")}
	}
	for i, t := range c.GenericTitles {
		if strings.TrimSpace(t) == "" {
			return &ValidationError{Path: "generic_titles", Err: fmt.Errorf("entry %d is empty", i)}
		}
	}
	if c.SaveInterval <= 0 {
		return &ValidationError{Path: "save_interval", Err: fmt.Errorf("save_interval must be > 0")}
	}
	if c.SweepInterval < time.Second {
		return &ValidationError{Path: "sweep_interval", Err: fmt.Errorf("sweep_interval must be at least 1s")}
	}
	if c.Hotkeys.MoveToNextMonitor != "" && c.Hotkeys.MoveToNextMonitor == c.Hotkeys.MoveToPreviousMonitor {
		return &ValidationError{Path: "hotkeys.move_to_previous_monitor", Err: fmt.Errorf("same key as move_to_next_monitor")}
	}
	return nil
}

// Save writes the configuration to path, or to the default location when
// path is empty.
//
// Note: this marshals the effective config and will not preserve comments or
// includes from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func configDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appDirName), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}
