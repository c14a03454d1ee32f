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
	"encoding/base64"
	"fmt"

	"github.com/matrix-org/go-e2ee-core/backup"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Session backup (key backup) tooling",
}

var backupGenerateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a fresh session-backup key pair",
	Long: `generate-key creates a Curve25519 key pair for a new backup
version. The private key half should be kept only in secret storage; the
public half goes in the backup version's auth_data.public_key.`,
	RunE: runBackupGenerateKey,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupGenerateKeyCmd)
}

func runBackupGenerateKey(cmd *cobra.Command, args []string) error {
	priv, err := backup.GenerateKeyPair(nil)
	if err != nil {
		return fmt.Errorf("failed to generate backup key pair: %w", err)
	}

	version := backup.Version{
		Version:   "1",
		Algorithm: backup.Algorithm,
		AuthData: backup.AuthData{
			PublicKey: base64.StdEncoding.EncodeToString(priv.PublicKey().Bytes()),
		},
	}

	fmt.Printf("private key (keep in secret storage, never print in production use):\n  %s\n\n",
		base64.StdEncoding.EncodeToString(priv.Bytes()))
	return printJSON(version)
}
