package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is the YAML file read when CONFIG_PATH is not set.
const DefaultPath = "./fishsync.yaml"

// Load reads configuration.
// Priority: ENV > YAML > defaults (via env-default tags). A .env file in the
// working directory, if present, is loaded into the environment first and
// never overrides variables that are already set.
// The YAML file path is determined by CONFIG_PATH env (fallback DefaultPath).
// If the file does not exist and CONFIG_PATH was not set explicitly,
// configuration is loaded from ENV + defaults only.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = DefaultPath
	}
	return LoadFile(path, explicitPath)
}

// LoadFile reads configuration from path and the environment. When required
// is false a missing file falls back to ENV + defaults.
func LoadFile(path string, required bool) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if required {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
