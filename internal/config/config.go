// Package config holds environment-driven defaults shared by all commands.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/sqlops-dev/sqlops/pkg/models"
)

// Config carries connection defaults. Flags override these per invocation.
type Config struct {
	SQLUser     string `env:"SQLOPS_SQL_USER"`
	SQLPassword string `env:"SQLOPS_SQL_PASSWORD"`

	// Credential for Windows remote-administration queries (boot time).
	WMIUser     string `env:"SQLOPS_WMI_USER"`
	WMIPassword string `env:"SQLOPS_WMI_PASSWORD"`

	ConnectTimeout         int  `env:"SQLOPS_CONNECT_TIMEOUT" envDefault:"30"`
	Encrypt                bool `env:"SQLOPS_ENCRYPT"`
	TrustServerCertificate bool `env:"SQLOPS_TRUST_SERVER_CERT" envDefault:"true"`

	// Path of the registered-instance inventory. Empty means the default
	// location under the user config dir.
	Inventory string `env:"SQLOPS_INVENTORY"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs runtime validations on the loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout must be non-negative (got %d)", cfg.ConnectTimeout)
	}
	if cfg.SQLPassword != "" && cfg.SQLUser == "" {
		return fmt.Errorf("SQLOPS_SQL_PASSWORD is set but SQLOPS_SQL_USER is empty")
	}
	return nil
}

// SQLCredential returns the default SQL credential from the environment.
func (c *Config) SQLCredential() models.Credential {
	return models.Credential{User: c.SQLUser, Password: c.SQLPassword}
}

// WMICredential returns the default Windows remote-administration credential.
func (c *Config) WMICredential() models.Credential {
	return models.Credential{User: c.WMIUser, Password: c.WMIPassword}
}
