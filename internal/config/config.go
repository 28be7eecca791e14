// Package config loads holovis configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. HOLOVIS_ADDR.
const Prefix = "HOLOVIS"

// Config holds all application configuration. Nested sections are read with
// their section name in the key, e.g. HOLOVIS_GESTURE_COALESCE_WINDOW or
// HOLOVIS_CAMERA_ENABLED. envconfig also accepts the bare tag name
// (COALESCE_WINDOW) when the prefixed key is unset.
type Config struct {
	Addr    string `envconfig:"ADDR" default:":8080"`
	DataDir string `envconfig:"DATA_DIR"`
	WebDir  string `envconfig:"WEB_DIR"`

	Gesture   GestureConfig
	Placement PlacementConfig
	Plugins   PluginConfig
	Camera    CameraConfig
	Logging   LogConfig

	TrayEnabled bool `envconfig:"TRAY_ENABLED" default:"false"`
}

// GestureConfig holds interaction pipeline timing.
type GestureConfig struct {
	CoalesceWindow time.Duration `envconfig:"COALESCE_WINDOW" default:"250ms"`
	UpdateInterval time.Duration `envconfig:"UPDATE_INTERVAL" default:"50ms"`
	Smoothing      float64       `envconfig:"SMOOTHING" default:"0.1"`
}

// PlacementConfig controls the surface placement phase.
type PlacementConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`
}

// PluginConfig holds plugin task settings.
type PluginConfig struct {
	Dir     string        `envconfig:"DIR"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

// CameraConfig holds the camera hand-input transport settings.
type CameraConfig struct {
	Enabled        bool    `envconfig:"ENABLED" default:"false"`
	DeviceID       int     `envconfig:"ID" default:"0"`
	FPS            int     `envconfig:"FPS" default:"15"`
	PinchThreshold float64 `envconfig:"PINCH_THRESHOLD" default:"0.35"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// Load reads configuration from the environment, fills derived defaults and
// validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{
		Addr: ":8080",
		Gesture: GestureConfig{
			CoalesceWindow: 250 * time.Millisecond,
			UpdateInterval: 50 * time.Millisecond,
			Smoothing:      0.1,
		},
		Placement: PlacementConfig{Enabled: true},
		Plugins:   PluginConfig{Timeout: 5 * time.Second},
		Camera: CameraConfig{
			FPS:            15,
			PinchThreshold: 0.35,
		},
		Logging: LogConfig{Level: "info"},
	}
	cfg.fillPaths()
	return cfg
}

func (c *Config) fillPaths() {
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".holovis")
		} else {
			c.DataDir = ".holovis"
		}
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = filepath.Join(c.DataDir, "plugins")
	}
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "holovis.db")
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Gesture.CoalesceWindow <= 0 {
		errs = append(errs, fmt.Errorf("COALESCE_WINDOW must be positive, got %s", c.Gesture.CoalesceWindow))
	}
	if c.Gesture.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("UPDATE_INTERVAL must be positive, got %s", c.Gesture.UpdateInterval))
	}
	if c.Gesture.Smoothing <= 0 || c.Gesture.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("SMOOTHING must be in (0, 1], got %g", c.Gesture.Smoothing))
	}
	if c.Plugins.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("PLUGINS_TIMEOUT must be positive, got %s", c.Plugins.Timeout))
	}
	if c.Camera.Enabled && c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("CAMERA_FPS must be positive, got %d", c.Camera.FPS))
	}
	if c.Camera.PinchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("CAMERA_PINCH_THRESHOLD must be positive, got %g", c.Camera.PinchThreshold))
	}
	return errors.Join(errs...)
}
