package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The YAML file path is taken from ISSUETRACK_CONFIG (fallback
// ~/.issuetrack/config.yaml). If the file does not exist and
// ISSUETRACK_CONFIG was not set explicitly, configuration is loaded from
// ENV + defaults only.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("ISSUETRACK_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.fillPaths(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Usage describes every environment variable Load understands.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
