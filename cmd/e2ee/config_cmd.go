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

	"github.com/matrix-org/go-e2ee-core/config"
	"github.com/spf13/cobra"
)

var configDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after defaults, env substitution, and overrides",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and report any validation problems",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)

	for _, cmd := range []*cobra.Command{configShowCmd, configValidateCmd} {
		cmd.Flags().StringVarP(&configDir, "config-dir", "c", "config", "directory to search for <env>.yaml / default.yaml / config.yaml")
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, SkipValidation: true})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return printJSON(cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, SkipValidation: true})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	errs := config.Validate(cfg)
	if len(errs) == 0 {
		fmt.Println("configuration is valid")
		return nil
	}

	for _, e := range errs {
		fmt.Printf("- %s\n", e)
	}
	return fmt.Errorf("%d validation problem(s) found", len(errs))
}
