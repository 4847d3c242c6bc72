// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Play  PlayConfig  `toml:"play"`
	Stats StatsConfig `toml:"stats"`
	Sim   SimConfig   `toml:"sim"`
}

// PlayConfig maps play-related settings.
type PlayConfig struct {
	Module            *string `toml:"module"`
	Difficulty        *int    `toml:"difficulty"`
	Duration          *int    `toml:"duration"`
	Seed              *int64  `toml:"seed"`
	User              *string `toml:"user"`
	CountIgnoredBalls *bool   `toml:"count-ignored-balls"`
}

// StatsConfig maps stats-related settings.
type StatsConfig struct {
	CurveWindow *int `toml:"curve-window"`
	Last        *int `toml:"last"`
}

// SimConfig maps the scripted player used by the sim command.
type SimConfig struct {
	Runs         *int     `toml:"runs"`
	ReactionMean *int     `toml:"reaction-mean"`
	Jitter       *int     `toml:"jitter"`
	ErrorRate    *float64 `toml:"error-rate"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Defaults are the built-in values shown in the config template.
type Defaults struct {
	Module       string
	Difficulty   int
	CurveWindow  int
	SimRuns      int
	ReactionMean int
	Jitter       int
	ErrorRate    float64
}

// Template renders a commented config file.
func Template(d Defaults) string {
	return fmt.Sprintf(`# visiontrainer configuration
# Uncomment a value to enable it. CLI flags override config values.

[play]
# module = %q     # pitcher-reaction or ball-number-hunt
# difficulty = %d               # 1 (Rookie) to 5 (Elite)
# duration = 45                 # Session length in seconds (default: per difficulty)
# seed = 0                      # Fixed random seed (0 = random)
# user = "local"                # User id recorded with each session
# count-ignored-balls = false   # Count an untapped ball as a correct attempt

[stats]
# curve-window = %d             # Moving average window
# last = 0                      # Limit to last N sessions

[sim]
# runs = %d                     # Sessions per sim run
# reaction-mean = %d           # Scripted reaction time in ms
# jitter = %d                   # Reaction jitter in ms
# error-rate = %.2f             # Probability of a wrong input
`,
		d.Module,
		d.Difficulty,
		d.CurveWindow,
		d.SimRuns,
		d.ReactionMean,
		d.Jitter,
		d.ErrorRate,
	)
}
