package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the hosted TaskFlow backend.
const DefaultBaseURL = "https://backendrepo-9czv.onrender.com"

// BackendConfig holds settings for the REST backend.
type BackendConfig struct {
	// BaseURL is the backend origin, without a trailing slash.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// EventsConfig holds settings for the live notification stream.
type EventsConfig struct {
	// Path is the Socket.IO endpoint path on the backend origin.
	Path string `mapstructure:"path" yaml:"path"`

	// Reconnect enables automatic redial after the transport drops.
	Reconnect bool `mapstructure:"reconnect" yaml:"reconnect"`

	InitialBackoffMS int `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffSec    int `mapstructure:"max_backoff_sec" yaml:"max_backoff_sec"`

	// MaxAttempts caps consecutive redials before giving up.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// NotificationsConfig controls the in-memory notification inbox.
type NotificationsConfig struct {
	Capacity int  `mapstructure:"capacity" yaml:"capacity"`
	Sound    bool `mapstructure:"sound" yaml:"sound"`
}

// SyncConfig controls the background refresh coordinator.
type SyncConfig struct {
	// PollIntervalSec is the fallback refresh interval; 0 disables polling.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme    string `mapstructure:"theme" yaml:"theme"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`
}

// StorageConfig locates local state on disk.
type StorageConfig struct {
	DBPath         string `mapstructure:"db_path" yaml:"db_path"`
	CredentialsDir string `mapstructure:"credentials_dir" yaml:"credentials_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend       BackendConfig       `mapstructure:"backend" yaml:"backend"`
	Events        EventsConfig        `mapstructure:"events" yaml:"events"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Sync          SyncConfig          `mapstructure:"sync" yaml:"sync"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
}

// RequestTimeout returns the per-request HTTP timeout.
func (c BackendConfig) RequestTimeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// InitialBackoff returns the first reconnect delay.
func (c EventsConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the reconnect delay ceiling.
func (c EventsConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSec) * time.Second
}

// PollInterval returns the fallback refresh interval (0 when disabled).
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// ConfigDir returns ~/.config/taskflow, or the working directory when the
// home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskflow")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskflow/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:    DefaultBaseURL,
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Events: EventsConfig{
			Path:             "/socket.io/",
			Reconnect:        true,
			InitialBackoffMS: 500,
			MaxBackoffSec:    30,
			MaxAttempts:      10,
		},
		Notifications: NotificationsConfig{
			Capacity: 50,
			Sound:    true,
		},
		Sync: SyncConfig{
			PollIntervalSec: 120,
		},
		Display: DisplayConfig{
			Theme:    "default",
			PageSize: 4,
		},
		Storage: StorageConfig{
			DBPath:         filepath.Join(dir, "taskflow.db"),
			CredentialsDir: filepath.Join(dir, "credentials"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so that missing keys and
// environment overrides resolve correctly.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout_sec", d.Backend.TimeoutSec)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("events.path", d.Events.Path)
	v.SetDefault("events.reconnect", d.Events.Reconnect)
	v.SetDefault("events.initial_backoff_ms", d.Events.InitialBackoffMS)
	v.SetDefault("events.max_backoff_sec", d.Events.MaxBackoffSec)
	v.SetDefault("events.max_attempts", d.Events.MaxAttempts)
	v.SetDefault("notifications.capacity", d.Notifications.Capacity)
	v.SetDefault("notifications.sound", d.Notifications.Sound)
	v.SetDefault("sync.poll_interval_sec", d.Sync.PollIntervalSec)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.page_size", d.Display.PageSize)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("storage.credentials_dir", d.Storage.CredentialsDir)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKFLOW_ override file values
// (e.g. TASKFLOW_BACKEND_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath)
	cfg.Storage.CredentialsDir = expandHome(cfg.Storage.CredentialsDir)
	if cfg.Notifications.Capacity <= 0 {
		cfg.Notifications.Capacity = 50
	}
	if cfg.Display.PageSize <= 0 {
		cfg.Display.PageSize = 4
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("events", cfg.Events)
	v.Set("notifications", cfg.Notifications)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)
	v.Set("storage", cfg.Storage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
