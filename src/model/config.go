package model

import "time"

// ----------------------------------------------------
// ================ Config ================

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`             // trace, debug, info, warn, error
	Format     string `yaml:"format" envconfig:"FORMAT"`           // console or json
	Output     string `yaml:"output" envconfig:"OUTPUT"`           // stdout, stderr or file
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH"`     // used when Output is file
	TimeFormat string `yaml:"time_format" envconfig:"TIME_FORMAT"` // rfc3339, unix, iso8601
}

// AssemblyConfig bounds the continuation protocol
type AssemblyConfig struct {
	MaxRounds  int           `yaml:"max_rounds" envconfig:"MAX_ROUNDS"`
	ResumeTail int           `yaml:"resume_tail" envconfig:"RESUME_TAIL"`
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// RegionConfig configures the cached payload store
type RegionConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL"`
}

// DocumentsConfig configures where accepted documents are kept per session
type DocumentsConfig struct {
	TTL          time.Duration `yaml:"ttl" envconfig:"TTL"`
	Dir          string        `yaml:"dir" envconfig:"DIR"`
	MaxRevisions int           `yaml:"max_revisions" envconfig:"MAX_REVISIONS"`
}

type RedisConfig struct {
	URL string `yaml:"url" envconfig:"URL"`
}

// Config is the full runtime configuration
type Config struct {
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
	Assembly  AssemblyConfig  `yaml:"assembly" envconfig:"ASSEMBLY"`
	Region    RegionConfig    `yaml:"region" envconfig:"REGION"`
	Documents DocumentsConfig `yaml:"documents" envconfig:"DOCUMENTS"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
}
