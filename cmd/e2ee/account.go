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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matrix-org/go-e2ee-core/olm"
	"github.com/matrix-org/go-e2ee-core/store"
	"github.com/spf13/cobra"
)

var (
	accountStorageDir string
	accountID         string
	accountOTKCount   int
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage a device's long-lived olm Account",
}

var accountGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new device Account and store it",
	Example: `  E2EE_PICKLE_PASSPHRASE=secret e2ee account generate \
    --storage-dir ./store --account-id mydevice`,
	RunE: runAccountGenerate,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print an Account's public identity keys",
	RunE:  runAccountShow,
}

var accountGenerateOTKCmd = &cobra.Command{
	Use:   "generate-otk",
	Short: "Generate one-time keys and re-save the Account",
	RunE:  runAccountGenerateOTK,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountGenerateCmd, accountShowCmd, accountGenerateOTKCmd)

	for _, cmd := range []*cobra.Command{accountGenerateCmd, accountShowCmd, accountGenerateOTKCmd} {
		cmd.Flags().StringVarP(&accountStorageDir, "storage-dir", "s", ".e2ee/store", "store directory")
		cmd.Flags().StringVarP(&accountID, "account-id", "a", "default", "account identifier within the store")
	}
	accountGenerateOTKCmd.Flags().IntVarP(&accountOTKCount, "count", "n", 10, "number of one-time keys to generate")
}

func openAccountStore(dir string) (*store.FileStore, error) {
	return store.NewFileStore(dir)
}

func runAccountGenerate(cmd *cobra.Command, args []string) error {
	key, err := pickleKeyFromEnv("E2EE_PICKLE_PASSPHRASE")
	if err != nil {
		return err
	}

	account, err := olm.CreateNew(nil)
	if err != nil {
		return fmt.Errorf("failed to generate account: %w", err)
	}

	blob, err := account.Save(key)
	if err != nil {
		return fmt.Errorf("failed to seal account: %w", err)
	}

	s, err := openAccountStore(accountStorageDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := s.Put(context.Background(), store.KindAccount, accountID, blob); err != nil {
		return fmt.Errorf("failed to persist account: %w", err)
	}

	return printJSON(account.IdentityKeys())
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	account, err := loadAccount(accountStorageDir, accountID)
	if err != nil {
		return err
	}
	return printJSON(account.IdentityKeys())
}

func runAccountGenerateOTK(cmd *cobra.Command, args []string) error {
	key, err := pickleKeyFromEnv("E2EE_PICKLE_PASSPHRASE")
	if err != nil {
		return err
	}

	account, err := loadAccount(accountStorageDir, accountID)
	if err != nil {
		return err
	}

	generated, err := account.GenerateOneTimeKeys(accountOTKCount)
	if err != nil {
		return fmt.Errorf("failed to generate one-time keys: %w", err)
	}

	blob, err := account.Save(key)
	if err != nil {
		return fmt.Errorf("failed to seal account: %w", err)
	}
	s, err := openAccountStore(accountStorageDir)
	if err != nil {
		return err
	}
	if err := s.Put(context.Background(), store.KindAccount, accountID, blob); err != nil {
		return fmt.Errorf("failed to persist account: %w", err)
	}

	fmt.Printf("generated %d one-time keys (%d not yet published)\n", generated, len(account.OneTimeKeys()))
	return nil
}

// loadAccount opens the store at dir, reads accountID's pickled blob, and
// restores it under the passphrase in E2EE_PICKLE_PASSPHRASE.
func loadAccount(dir, accountID string) (*olm.Account, error) {
	key, err := pickleKeyFromEnv("E2EE_PICKLE_PASSPHRASE")
	if err != nil {
		return nil, err
	}
	s, err := openAccountStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	blob, ok, err := s.Get(context.Background(), store.KindAccount, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no account %q in %s", accountID, dir)
	}
	account, err := olm.Restore(blob, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to restore account: %w", err)
	}
	return account, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
