package src

import (
	"diagram_engine/internal/config"
	"diagram_engine/src/model"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment override, e.g. DIAGRAM_ASSEMBLY_MAX_ROUNDS
const EnvPrefix = "DIAGRAM"

// LoadConfig reads the YAML file at path, then applies environment overrides
func LoadConfig(path string) (*model.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
