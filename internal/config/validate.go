package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate performs rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute http(s) URL (got %q)", c.Backend.URL)
	}
	if strings.TrimSpace(c.Backend.AnonKey) == "" {
		return fmt.Errorf("backend.anon_key is required")
	}
	if c.Backend.SiteURL != "" {
		if s, err := url.Parse(c.Backend.SiteURL); err != nil || (s.Scheme != "http" && s.Scheme != "https") {
			return fmt.Errorf("backend.site_url must be an http(s) URL (got %q)", c.Backend.SiteURL)
		}
	}

	if c.Session.RefreshMargin < 0 {
		return fmt.Errorf("session.refresh_margin must be >= 0 (got %v)", c.Session.RefreshMargin)
	}
	if c.Request.Timeout <= 0 {
		return fmt.Errorf("request.timeout must be > 0 (got %v)", c.Request.Timeout)
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level must be one of %s (got %q)", strings.Join(validLevels, ", "), c.Log.Level)
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("log.format must be one of %s (got %q)", strings.Join(validFormats, ", "), c.Log.Format)
	}
	return nil
}
