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
	"encoding/json"
	"fmt"
	"os"

	"github.com/matrix-org/go-e2ee-core/pushrules"
	"github.com/spf13/cobra"
)

var (
	pushRulesFile string
	pushEventFile string
	pushCtxFile   string
)

var pushrulesCmd = &cobra.Command{
	Use:   "pushrules",
	Short: "Evaluate push rules against an event",
}

var pushrulesEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a rule set against one event and print the matched actions",
	Long: `evaluate reads a push RuleSet, a Matrix event, and an optional
room context, all as JSON files, and prints the actions of the first
matching rule in override > content > room > sender > underride
precedence order.`,
	Example: `  e2ee pushrules evaluate --rules rules.json --event event.json --context context.json`,
	RunE:    runPushrulesEvaluate,
}

func init() {
	rootCmd.AddCommand(pushrulesCmd)
	pushrulesCmd.AddCommand(pushrulesEvaluateCmd)

	pushrulesEvaluateCmd.Flags().StringVar(&pushRulesFile, "rules", "", "path to a JSON-encoded pushrules.RuleSet (required)")
	pushrulesEvaluateCmd.Flags().StringVar(&pushEventFile, "event", "", "path to a JSON-encoded pushrules.Event (required)")
	pushrulesEvaluateCmd.Flags().StringVar(&pushCtxFile, "context", "", "path to a JSON-encoded room context (optional)")
	pushrulesEvaluateCmd.MarkFlagRequired("rules")
	pushrulesEvaluateCmd.MarkFlagRequired("event")
}

// pushContextFile is the on-disk shape of --context: pushrules.RoomContext
// plus the related-events map Evaluate also takes, since they travel
// together in this CLI's input format even though Evaluate takes them as
// two separate parameters.
type pushContextFile struct {
	UserDisplayName string                     `json:"user_display_name"`
	MemberCount     int                        `json:"member_count"`
	UserID          string                     `json:"user_id"`
	PowerLevels     pushrules.PowerLevels      `json:"power_levels"`
	Related         map[string]pushrules.Event `json:"related"`
}

func runPushrulesEvaluate(cmd *cobra.Command, args []string) error {
	var rules pushrules.RuleSet
	if err := readJSONFile(pushRulesFile, &rules); err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}

	var event pushrules.Event
	if err := readJSONFile(pushEventFile, &event); err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}

	var pctx pushContextFile
	if pushCtxFile != "" {
		if err := readJSONFile(pushCtxFile, &pctx); err != nil {
			return fmt.Errorf("failed to read context: %w", err)
		}
	}

	ctx := pushrules.RoomContext{
		UserDisplayName: pctx.UserDisplayName,
		MemberCount:     pctx.MemberCount,
		PowerLevels:     pctx.PowerLevels,
		UserID:          pctx.UserID,
	}

	actions := pushrules.Evaluate(rules, event, pctx.Related, ctx)
	if actions == nil {
		fmt.Println("no rule matched")
		return nil
	}

	return printJSON(actions)
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
