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

func TestLoadFallsBackToDefaultsWithNoConfigDir(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Environment)
}

func TestLoadPicksUpConfigDotYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("environment: from-config-yaml\n"), 0o600))

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "from-config-yaml", cfg.Environment)
}

func TestLoadPrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("environment: default\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("environment: staging\n"), 0o600))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  type: file\n  directory: /default\n"), 0o600))

	t.Setenv("E2EE_STORAGE_DIR", "/overridden")

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/overridden", cfg.Storage.Directory)
}

func TestLoadForEnvironment(t *testing.T) {
	cfg, err := LoadForEnvironment("test")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
}

func TestMustLoadPanicsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  type: postgres\n"), 0o600))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir})
	})
}
