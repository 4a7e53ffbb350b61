package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"diagram_engine/src/model"
)

// Default returns the configuration used when no file or env var says otherwise
func Default() model.Config {
	return model.Config{
		Log: model.LogConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Assembly: model.AssemblyConfig{
			MaxRounds:  10,
			ResumeTail: 300,
			TTL:        30 * time.Minute,
		},
		Region: model.RegionConfig{
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Documents: model.DocumentsConfig{
			TTL:          60 * time.Minute,
			MaxRevisions: 20,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path or a missing
// file yields the defaults.
func LoadConfig(filepath string) (model.Config, error) {
	config := Default()
	if filepath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("error parsing YAML: %w", err)
	}
	return config, Validate(config)
}

// Validate rejects settings the engine cannot run with
func Validate(config model.Config) error {
	var errs []error
	if config.Assembly.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("assembly.max_rounds must be at least 1, got %d", config.Assembly.MaxRounds))
	}
	if config.Assembly.ResumeTail < 1 {
		errs = append(errs, fmt.Errorf("assembly.resume_tail must be positive, got %d", config.Assembly.ResumeTail))
	}
	if config.Region.TTL <= 0 {
		errs = append(errs, fmt.Errorf("region.ttl must be positive, got %s", config.Region.TTL))
	}
	if config.Region.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("region.sweep_interval must be positive, got %s", config.Region.SweepInterval))
	}
	return errors.Join(errs...)
}
