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

// Package config loads this module's runtime configuration: where
// pickled sessions live on disk, session-backup and secret-storage
// defaults, and the ambient logging/metrics/health surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Environment   string               `yaml:"environment" json:"environment"`
	Storage       *StorageConfig       `yaml:"storage" json:"storage"`
	Backup        *BackupConfig        `yaml:"backup" json:"backup"`
	SecretStorage *SecretStorageConfig `yaml:"secret_storage" json:"secret_storage"`
	Logging       *LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       *MetricsConfig       `yaml:"metrics" json:"metrics"`
	Health        *HealthConfig        `yaml:"health" json:"health"`
}

// StorageConfig controls where pickled Account/Session/GroupSession
// blobs are persisted.
type StorageConfig struct {
	Type          string `yaml:"type" json:"type"` // file, memory, postgres
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
	DSN           string `yaml:"dsn,omitempty" json:"dsn,omitempty"` // postgres only
}

// BackupConfig controls session-backup defaults (spec §4.6).
type BackupConfig struct {
	Algorithm  string `yaml:"algorithm" json:"algorithm"`
	AutoBackup bool   `yaml:"auto_backup" json:"auto_backup"`
}

// SecretStorageConfig controls SSSS defaults (spec §4.5).
type SecretStorageConfig struct {
	DefaultKeyID      string `yaml:"default_key_id" json:"default_key_id"`
	PBKDF2Iterations  int    `yaml:"pbkdf2_iterations" json:"pbkdf2_iterations"`
}

// LoggingConfig controls the internal/logger default logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"` // json, pretty
	Output   string `yaml:"output" json:"output"` // stdout, stderr, file path
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the internal/metrics Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls a health-check endpoint a host application can
// expose alongside metrics.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format by
// file extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults fills in zero-valued fields with this module's defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Storage != nil {
		if cfg.Storage.Type == "" {
			cfg.Storage.Type = "file"
		}
		if cfg.Storage.Directory == "" {
			cfg.Storage.Directory = ".e2ee/store"
		}
	}

	if cfg.Backup != nil {
		if cfg.Backup.Algorithm == "" {
			cfg.Backup.Algorithm = "m.megolm_backup.v1.curve25519-aes-sha2"
		}
	}

	if cfg.SecretStorage != nil {
		if cfg.SecretStorage.DefaultKeyID == "" {
			cfg.SecretStorage.DefaultKeyID = "m.default"
		}
		if cfg.SecretStorage.PBKDF2Iterations == 0 {
			cfg.SecretStorage.PBKDF2Iterations = 500000
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Health != nil && cfg.Health.Port == 0 {
		cfg.Health.Port = 8080
	}
}
