// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables environment variable substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if errs := Validate(cfg); len(errs) > 0 {
			return nil, fmt.Errorf("configuration validation failed: %s", errs[0])
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file.
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables,
// which take the highest priority.
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Storage != nil {
		if dir := os.Getenv("E2EE_STORAGE_DIR"); dir != "" {
			cfg.Storage.Directory = dir
		}
		if typ := os.Getenv("E2EE_STORAGE_TYPE"); typ != "" {
			cfg.Storage.Type = typ
		}
		if dsn := os.Getenv("E2EE_STORAGE_DSN"); dsn != "" {
			cfg.Storage.DSN = dsn
		}
	}

	if cfg.Backup != nil {
		if os.Getenv("E2EE_BACKUP_AUTO") == "true" {
			cfg.Backup.AutoBackup = true
		}
		if os.Getenv("E2EE_BACKUP_AUTO") == "false" {
			cfg.Backup.AutoBackup = false
		}
	}

	if cfg.SecretStorage != nil {
		if keyID := os.Getenv("E2EE_SECRET_STORAGE_KEY_ID"); keyID != "" {
			cfg.SecretStorage.DefaultKeyID = keyID
		}
	}

	if cfg.Logging != nil {
		if logLevel := os.Getenv("E2EE_LOG_LEVEL"); logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat := os.Getenv("E2EE_LOG_FORMAT"); logFormat != "" {
			cfg.Logging.Format = logFormat
		}
	}

	if cfg.Metrics != nil {
		if os.Getenv("E2EE_METRICS_ENABLED") == "true" {
			cfg.Metrics.Enabled = true
		}
		if os.Getenv("E2EE_METRICS_ENABLED") == "false" {
			cfg.Metrics.Enabled = false
		}
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
