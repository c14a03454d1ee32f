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

	"github.com/matrix-org/go-e2ee-core/ssss"
	"github.com/spf13/cobra"
)

var ssssKeyName string

var ssssCmd = &cobra.Command{
	Use:   "ssss",
	Short: "Secret Storage and Secret Sharing (SSSS) tooling",
}

var ssssGenerateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a fresh secret-storage key and its recovery key",
	Long: `generate-key creates a random 32-byte storage key, encodes it as a
recovery key the user can write down, and prints a KeyDescriptor suitable
for publishing as m.secret_storage.key.<key id> account data.`,
	RunE: runSSSSGenerateKey,
}

var ssssDecodeRecoveryKeyCmd = &cobra.Command{
	Use:   "decode-recovery-key [recovery-key]",
	Short: "Decode a recovery key back to its raw storage key",
	Args:  cobra.ExactArgs(1),
	RunE:  runSSSSDecodeRecoveryKey,
}

func init() {
	rootCmd.AddCommand(ssssCmd)
	ssssCmd.AddCommand(ssssGenerateKeyCmd, ssssDecodeRecoveryKeyCmd)

	ssssGenerateKeyCmd.Flags().StringVar(&ssssKeyName, "name", "m.default", "key descriptor name")
}

func runSSSSGenerateKey(cmd *cobra.Command, args []string) error {
	storageKey, recoveryKey, err := ssss.GenerateRecoveryKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate recovery key: %w", err)
	}

	descriptor, err := ssss.BuildDescriptor(ssssKeyName, storageKey)
	if err != nil {
		return fmt.Errorf("failed to build key descriptor: %w", err)
	}

	fmt.Printf("recovery key (write this down, it will not be shown again):\n  %s\n\n", recoveryKey)
	return printJSON(descriptor)
}

func runSSSSDecodeRecoveryKey(cmd *cobra.Command, args []string) error {
	storageKey, err := ssss.DecodeRecoveryKey(args[0])
	if err != nil {
		return fmt.Errorf("invalid recovery key: %w", err)
	}
	fmt.Printf("storage key (hex): %x\n", storageKey)
	return nil
}
