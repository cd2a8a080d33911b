package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the subset of settings that can live in the optional YAML
// config file. Environment variables win; the file only fills blanks, except
// trusted_origins which the file owns so it can be hot-reloaded.
type fileConfig struct {
	SiteURL        string   `yaml:"site_url"`
	TrustedOrigins []string `yaml:"trusted_origins"`

	Server struct {
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		HealthPort string `yaml:"health_port"`
	} `yaml:"server"`

	Email struct {
		FromAddress string `yaml:"from_address"`
		FromName    string `yaml:"from_name"`
	} `yaml:"email"`

	PDF struct {
		RenderURL string `yaml:"render_url"`
	} `yaml:"pdf"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fc.SiteURL != "" && os.Getenv("SITE_URL") == "" {
		c.SiteURL = fc.SiteURL
	}
	if len(fc.TrustedOrigins) > 0 {
		c.SetTrustedOrigins(fc.TrustedOrigins)
	}
	if fc.Server.Host != "" && os.Getenv("PORTAL_HOST") == "" {
		c.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != "" && os.Getenv("PORTAL_PORT") == "" {
		c.Server.Port = fc.Server.Port
	}
	if fc.Server.HealthPort != "" && os.Getenv("PORTAL_HEALTH_PORT") == "" {
		c.Server.HealthPort = fc.Server.HealthPort
	}
	if fc.Email.FromAddress != "" && os.Getenv("PORTAL_EMAIL_FROM") == "" {
		c.Email.FromAddress = fc.Email.FromAddress
	}
	if fc.Email.FromName != "" && os.Getenv("PORTAL_EMAIL_FROM_NAME") == "" {
		c.Email.FromName = fc.Email.FromName
	}
	if fc.PDF.RenderURL != "" && os.Getenv("PORTAL_PDF_RENDER_URL") == "" {
		c.PDF.RenderURL = fc.PDF.RenderURL
	}

	return nil
}

// reloadOrigins re-reads only trusted_origins from the config file. Used by
// the watcher so a bad edit cannot break anything beyond the CORS list.
func (c *Config) reloadOrigins(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if len(fc.TrustedOrigins) > 0 {
		c.SetTrustedOrigins(fc.TrustedOrigins)
	}
	return nil
}
