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

import "fmt"

// Validate checks cfg for invalid field combinations and returns one
// error message per problem found. An empty result means cfg is usable.
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Storage != nil {
		switch cfg.Storage.Type {
		case "file", "memory":
		case "postgres":
			if cfg.Storage.DSN == "" {
				errs = append(errs, "storage.dsn is required when storage.type is postgres")
			}
		case "":
			errs = append(errs, "storage.type must not be empty")
		default:
			errs = append(errs, fmt.Sprintf("storage.type %q is not recognized", cfg.Storage.Type))
		}
	}

	if cfg.SecretStorage != nil && cfg.SecretStorage.PBKDF2Iterations > 0 && cfg.SecretStorage.PBKDF2Iterations < 100000 {
		errs = append(errs, "secret_storage.pbkdf2_iterations below 100000 is not recommended")
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug", "info", "warn", "error", "":
		default:
			errs = append(errs, fmt.Sprintf("logging.level %q is not recognized", cfg.Logging.Level))
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		errs = append(errs, "metrics.port must be set when metrics.enabled is true")
	}

	return errs
}
