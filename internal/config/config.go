// Package config loads the optional tern.toml manifest the CLI reads for
// its self-check and diagnostics defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the manifest name looked up in the working directory.
const DefaultFile = "tern.toml"

// Exercise configures the self-check run.
type Exercise struct {
	Iterations int `toml:"iterations"`
	Workers    int `toml:"workers"`
}

// Diagnostics configures the live-slice tracker and snapshot output.
type Diagnostics struct {
	Track  bool   `toml:"track"`
	Report string `toml:"report"`
}

// Config is the parsed manifest with defaults applied.
type Config struct {
	Exercise    Exercise    `toml:"exercise"`
	Diagnostics Diagnostics `toml:"diagnostics"`
}

// Default returns the configuration used when no manifest exists.
func Default() Config {
	return Config{
		Exercise: Exercise{
			Iterations: 1,
			Workers:    4,
		},
		Diagnostics: Diagnostics{
			Track: true,
		},
	}
}

// Load parses the manifest at path on top of the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("exercise", "iterations") {
		cfg.Exercise.Iterations = raw.Exercise.Iterations
	}
	if meta.IsDefined("exercise", "workers") {
		cfg.Exercise.Workers = raw.Exercise.Workers
	}
	if meta.IsDefined("diagnostics", "track") {
		cfg.Diagnostics.Track = raw.Diagnostics.Track
	}
	if meta.IsDefined("diagnostics", "report") {
		cfg.Diagnostics.Report = raw.Diagnostics.Report
	}
	if cfg.Exercise.Iterations < 1 {
		return Config{}, fmt.Errorf("%s: exercise.iterations must be at least 1", path)
	}
	if cfg.Exercise.Workers < 1 {
		return Config{}, fmt.Errorf("%s: exercise.workers must be at least 1", path)
	}
	return cfg, nil
}
