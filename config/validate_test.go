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

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Storage = &StorageConfig{Type: "file", Directory: ".e2ee/store"}
	assert.Empty(t, Validate(cfg))
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	cfg := &Config{Storage: &StorageConfig{Type: "postgres"}}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidateAcceptsPostgresWithDSN(t *testing.T) {
	cfg := &Config{Storage: &StorageConfig{Type: "postgres", DSN: "postgres://localhost/e2ee"}}
	assert.Empty(t, Validate(cfg))
}

func TestValidateRejectsUnknownStorageType(t *testing.T) {
	cfg := &Config{Storage: &StorageConfig{Type: "s3"}}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{Logging: &LoggingConfig{Level: "verbose"}}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidateRejectsMetricsEnabledWithoutPort(t *testing.T) {
	cfg := &Config{Metrics: &MetricsConfig{Enabled: true}}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}
