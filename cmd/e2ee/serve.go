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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matrix-org/go-e2ee-core/config"
	"github.com/matrix-org/go-e2ee-core/health"
	"github.com/matrix-org/go-e2ee-core/internal/logger"
	"github.com/matrix-org/go-e2ee-core/internal/metrics"
	"github.com/matrix-org/go-e2ee-core/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health and metrics HTTP endpoints against the configured store",
	Long: `Starts two HTTP servers driven by the loaded configuration:

  - a metrics server exposing Prometheus counters at /metrics
  - a health server exposing /health, /health/live, /health/ready, and
    /health/snapshot against the configured store's reachability

It runs until interrupted (SIGINT/SIGTERM).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&configDir, "config-dir", "c", "config", "directory to search for <env>.yaml / default.yaml / config.yaml")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := store.NewFileStore(cfg.Storage.Directory)
	if err != nil {
		return fmt.Errorf("failed to open store at %q: %w", cfg.Storage.Directory, err)
	}

	log := logger.GetDefaultLogger()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("starting metrics server", logger.String("addr", addr))
			if err := metrics.StartServer(addr); err != nil {
				log.Error("metrics server error: " + err.Error())
			}
		}()
	}

	var healthSrv *health.Server
	if cfg.Health.Enabled {
		checker := health.NewChecker(s)
		healthSrv = health.NewServer(checker, log, cfg.Health.Port)
		if err := healthSrv.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	if healthSrv != nil {
		_ = healthSrv.Stop(context.Background())
	}
	return nil
}
