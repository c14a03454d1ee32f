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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("E2EE_TEST_VAR", "resolved")

	assert.Equal(t, "resolved", SubstituteEnvVars("${E2EE_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${E2EE_TEST_VAR_UNSET:fallback}"))
	assert.Equal(t, "", SubstituteEnvVars("${E2EE_TEST_VAR_UNSET}"))
	assert.Equal(t, "plain text", SubstituteEnvVars("plain text"))
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	t.Setenv("E2EE_DIR", "/data/e2ee")

	cfg := &Config{
		Storage: &StorageConfig{Directory: "${E2EE_DIR}"},
	}
	SubstituteEnvVarsInConfig(cfg)

	assert.Equal(t, "/data/e2ee", cfg.Storage.Directory)
}

func TestSubstituteEnvVarsInConfigNilSections(t *testing.T) {
	cfg := &Config{}
	assert.NotPanics(t, func() { SubstituteEnvVarsInConfig(cfg) })
	assert.NotPanics(t, func() { SubstituteEnvVarsInConfig(nil) })
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("E2EE_ENV", "staging")
	assert.Equal(t, "staging", GetEnvironment())
}

func TestGetEnvironmentFallsBackToEnvironmentVar(t *testing.T) {
	t.Setenv("E2EE_ENV", "")
	t.Setenv("ENVIRONMENT", "production")
	assert.Equal(t, "production", GetEnvironment())
}

func TestGetEnvironmentDefault(t *testing.T) {
	t.Setenv("E2EE_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	t.Setenv("E2EE_ENV", "production")
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())

	t.Setenv("E2EE_ENV", "development")
	assert.False(t, IsProduction())
	assert.True(t, IsDevelopment())
}
