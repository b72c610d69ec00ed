package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
	Request RequestConfig `yaml:"request"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig points at the hosted auth and data service.
type BackendConfig struct {
	URL     string `yaml:"url"      env:"ISSUETRACK_BACKEND_URL" env-required:"true"`
	AnonKey string `yaml:"anon_key" env:"ISSUETRACK_ANON_KEY"    env-required:"true"`
	SiteURL string `yaml:"site_url" env:"ISSUETRACK_SITE_URL"`
}

// SessionConfig holds session persistence and refresh settings.
type SessionConfig struct {
	Path          string        `yaml:"path"           env:"ISSUETRACK_SESSION_PATH"`
	RefreshMargin time.Duration `yaml:"refresh_margin" env:"ISSUETRACK_REFRESH_MARGIN" env-default:"60s"`
}

// RequestConfig bounds calls to the backend.
type RequestConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"ISSUETRACK_REQUEST_TIMEOUT" env-default:"15s"`
}

// LogConfig holds logging settings. The terminal belongs to the UI, so
// logs go to a file.
type LogConfig struct {
	Level  string `yaml:"level"  env:"ISSUETRACK_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"ISSUETRACK_LOG_FORMAT" env-default:"text"`
	Path   string `yaml:"path"   env:"ISSUETRACK_LOG_PATH"`
}

// Dir returns ~/.issuetrack, where the config, session and log live.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".issuetrack"), nil
}

// fillPaths defaults empty file locations to Dir.
func (c *Config) fillPaths() error {
	if c.Session.Path != "" && c.Log.Path != "" {
		return nil
	}
	dir, err := Dir()
	if err != nil {
		return err
	}
	if c.Session.Path == "" {
		c.Session.Path = filepath.Join(dir, "session.json")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(dir, "issuetrack.log")
	}
	return nil
}
