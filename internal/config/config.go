// Package config holds engram configuration: types, defaults, and
// deployment profiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all engram configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Engine  EngineConfig  `toml:"engine"`
	History HistoryConfig `toml:"history"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

// EngineConfig tunes the memory engine. The zero value is not usable;
// start from Default or a profile.
type EngineConfig struct {
	// Profile selects the consolidation policy: "default" prunes
	// long-term records by importance alone, "episodic" additionally
	// prunes by decayed strength.
	Profile string `toml:"profile"`

	WorkingCapacity       int           `toml:"working_capacity"`
	ShortTermWindow       time.Duration `toml:"short_term_window"`
	ConsolidationInterval time.Duration `toml:"consolidation_interval"`
	RetentionThreshold    float64       `toml:"retention_threshold"`
	StrengthThreshold     float64       `toml:"strength_threshold"`
	DecayRate             float64       `toml:"decay_rate"`

	SnapshotPath string `toml:"snapshot_path"`
}

type HistoryConfig struct {
	Path string `toml:"path"` // empty disables the interaction journal
}

// Default returns a Config with sensible defaults for the default
// profile.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37779,
		},
		Engine: EngineConfig{
			Profile:               "default",
			WorkingCapacity:       7,
			ShortTermWindow:       90 * time.Second,
			ConsolidationInterval: 15 * time.Minute,
			RetentionThreshold:    0.6,
			StrengthThreshold:     0, // disabled outside the episodic profile
			DecayRate:             0.1,
			SnapshotPath:          "", // resolved at runtime via DefaultSnapshotPath
		},
	}
}

// Episodic returns the episodic deployment profile: short consolidation
// cadence and strength-based pruning for interaction-stream workloads.
func Episodic() Config {
	cfg := Default()
	cfg.Engine.Profile = "episodic"
	cfg.Engine.ConsolidationInterval = 5 * time.Minute
	cfg.Engine.RetentionThreshold = 0.2
	cfg.Engine.StrengthThreshold = 0.2
	return cfg
}

// ForProfile returns the named profile's configuration.
func ForProfile(name string) (Config, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "episodic":
		return Episodic(), nil
	default:
		return Config{}, fmt.Errorf("unknown profile %q", name)
	}
}

// DefaultSnapshotPath returns ~/.engram/snapshot.json.
func DefaultSnapshotPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".engram", "snapshot.json"), nil
}

// DefaultHistoryPath returns ~/.engram/history.db.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".engram", "history.db"), nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
