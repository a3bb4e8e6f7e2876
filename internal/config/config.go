package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	minRetentionDays        = 1
	maxRetentionDays        = 3650
	minCleanupIntervalHours = 1
	maxCleanupIntervalHours = 720
)

// Log topics understood by the daemon.
var knownLogTopics = map[string]bool{
	"all":     true,
	"uevent":  true,
	"wake":    true,
	"dbus":    true,
	"cleanup": true,
	"config":  true,
}

type Config struct {
	Devices DevicesConfig `toml:"devices"`
	History HistoryConfig `toml:"history"`
	Daemon  DaemonConfig  `toml:"daemon"`
}

type DevicesConfig struct {
	Root string `toml:"root"`
	All  bool   `toml:"all"`
}

type HistoryConfig struct {
	DBPath               string `toml:"db_path"`
	RetentionDays        int    `toml:"retention_days"`
	CleanupIntervalHours int    `toml:"cleanup_interval_hours"`
}

type DaemonConfig struct {
	Bus           string   `toml:"bus"`
	RestoreOnWake bool     `toml:"restore_on_wake"`
	LogTopics     []string `toml:"log_topics"`
}

func DefaultConfig() *Config {
	return &Config{
		Devices: DevicesConfig{
			Root: "/sys/class/backlight",
			All:  false,
		},
		History: HistoryConfig{
			DBPath:               "/var/lib/adjbacklight/history.db",
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
		Daemon: DaemonConfig{
			Bus:           "system",
			RestoreOnWake: true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/adjbacklight/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "adjbacklight", "config.toml"), nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	var err error
	sanitized.Devices.Root, err = sanitizePath("devices.root", sanitized.Devices.Root)
	if err != nil {
		return nil, err
	}
	sanitized.History.DBPath, err = sanitizePath("history.db_path", sanitized.History.DBPath)
	if err != nil {
		return nil, err
	}

	if err := validateRange("history.retention_days", sanitized.History.RetentionDays, minRetentionDays, maxRetentionDays); err != nil {
		return nil, err
	}
	if err := validateRange("history.cleanup_interval_hours", sanitized.History.CleanupIntervalHours, minCleanupIntervalHours, maxCleanupIntervalHours); err != nil {
		return nil, err
	}

	sanitized.Daemon.Bus = strings.ToLower(strings.TrimSpace(sanitized.Daemon.Bus))
	switch sanitized.Daemon.Bus {
	case "session", "system":
	default:
		return nil, fmt.Errorf("daemon.bus must be \"session\" or \"system\", got %q", cfg.Daemon.Bus)
	}

	topics := make([]string, 0, len(sanitized.Daemon.LogTopics))
	for _, t := range sanitized.Daemon.LogTopics {
		t = strings.ToLower(strings.TrimSpace(t))
		if !knownLogTopics[t] {
			return nil, fmt.Errorf("daemon.log_topics: unknown topic %q", t)
		}
		topics = append(topics, t)
	}
	sanitized.Daemon.LogTopics = topics

	return &sanitized, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
