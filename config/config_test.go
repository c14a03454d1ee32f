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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
environment: staging
storage:
  type: file
  directory: /var/lib/e2ee
secret_storage:
  default_key_id: m.backup
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "/var/lib/e2ee", cfg.Storage.Directory)
	assert.Equal(t, "m.backup", cfg.SecretStorage.DefaultKeyID)
}

func TestLoadFromFileJSONFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := []byte(`{"environment": "production", "metrics": {"enabled": true, "port": 9999}}`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9999, cfg.Metrics.Port)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &Config{
		Environment: "test",
		Storage:     &StorageConfig{Type: "memory"},
	}
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test", loaded.Environment)
	assert.Equal(t, "memory", loaded.Storage.Type)
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{
		Storage:       &StorageConfig{},
		Backup:        &BackupConfig{},
		SecretStorage: &SecretStorageConfig{},
		Logging:       &LoggingConfig{},
		Metrics:       &MetricsConfig{},
		Health:        &HealthConfig{},
	}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, ".e2ee/store", cfg.Storage.Directory)
	assert.Equal(t, "m.megolm_backup.v1.curve25519-aes-sha2", cfg.Backup.Algorithm)
	assert.Equal(t, "m.default", cfg.SecretStorage.DefaultKeyID)
	assert.Equal(t, 500000, cfg.SecretStorage.PBKDF2Iterations)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 8080, cfg.Health.Port)
}

func TestSetDefaultsDoesNotOverrideSetFields(t *testing.T) {
	cfg := &Config{
		Storage: &StorageConfig{Type: "postgres", Directory: "/custom"},
	}
	setDefaults(cfg)

	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "/custom", cfg.Storage.Directory)
}
