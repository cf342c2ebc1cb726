package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file. An empty path or a missing
// file yields a default configuration; the deployment then relies entirely
// on environment variables, which is how the original serverless setup ran.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv(EnvVerifyBaseURL); v != "" {
		cfg.Server.VerifyBaseURL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvTable); v != "" {
		cfg.Database.Table = v
	}
	if v := os.Getenv(EnvAdminToken); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv(EnvAdminTOTPSecret); v != "" {
		cfg.Admin.TOTPSecret = v
	}
	if v := os.Getenv(EnvIssuerName); v != "" {
		cfg.Certificate.IssuerName = v
	}
	if v := os.Getenv(EnvCodePrefix); v != "" {
		cfg.Certificate.CodePrefix = v
	}
	if v := os.Getenv(EnvCodeScope); v != "" {
		cfg.Certificate.CodeScope = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
}
