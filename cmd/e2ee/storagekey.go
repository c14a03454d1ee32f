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

package main

import (
	"fmt"
	"os"

	"github.com/matrix-org/go-e2ee-core/ssss"
)

// pickleKeyFromEnv derives the 32-byte pickle key every subcommand uses
// to seal/open Account and session blobs, from a passphrase held in the
// named environment variable. A fixed, non-secret salt is fine here: the
// CLI's threat model is a local single-operator store, not a multi-user
// secret-storage descriptor (that is what the ssss package is for).
func pickleKeyFromEnv(envVar string) ([]byte, error) {
	passphrase := os.Getenv(envVar)
	if passphrase == "" {
		return nil, fmt.Errorf("%s is not set; the pickle key is derived from a passphrase held there", envVar)
	}
	salt := []byte("e2ee-cli-local-store-salt-v1")
	return ssss.DeriveKeyFromPassphrase(passphrase, salt, 200000), nil
}
