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

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/matrix-org/go-e2ee-core/internal/logger"
	"github.com/matrix-org/go-e2ee-core/internal/metrics"
)

// Server is the health check HTTP server a host application runs
// alongside the Prometheus metrics endpoint (internal/metrics.Handler).
type Server struct {
	checker *Checker
	logger  logger.Logger
	port    int
	server  *http.Server
}

// NewServer creates a health check server.
func NewServer(checker *Checker, log logger.Logger, port int) *Server {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{checker: checker, logger: log, port: port}
}

// Start begins serving /health, /health/live, /health/ready, and
// /health/snapshot in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/health/snapshot", s.handleSnapshot)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("starting health check server", logger.Int("port", s.port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health check server error: " + err.Error())
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.checker.CheckAll(r.Context())

	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.checker.CheckAll(r.Context())
	ready := status.StorageStatus != nil && status.StorageStatus.Reachable

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"storage": map[string]interface{}{
			"reachable": ready,
			"status":    status.StorageStatus.Status,
		},
	}
	if !ready {
		response["errors"] = status.Errors
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleSnapshot exposes the lightweight MetricsCollector snapshot as
// JSON, for a host that wants a single poll rather than a Prometheus
// scrape (the Prometheus endpoint itself lives at internal/metrics.Handler,
// mounted separately by cmd/e2ee).
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := metrics.GetGlobalCollector().GetSnapshot()

	response := map[string]interface{}{
		"timestamp": snapshot.Timestamp.UTC().Format(time.RFC3339),
		"uptime":    snapshot.Uptime.String(),
		"counters": map[string]int64{
			"sign_operations":        snapshot.SignOperations,
			"decryption_attempts":    snapshot.DecryptionAttempts,
			"successful_decryptions": snapshot.SuccessfulDecryptions,
			"failed_decryptions":     snapshot.FailedDecryptions,
			"skipped_key_lookups":    snapshot.SkippedKeyLookups,
			"cache_hits":             snapshot.CacheHits,
			"cache_misses":           snapshot.CacheMisses,
			"key_backup_operations":  snapshot.KeyBackupOperations,
			"key_backup_errors":      snapshot.KeyBackupErrors,
		},
		"rates": map[string]float64{
			"cache_hit_rate":          snapshot.GetCacheHitRate(),
			"decryption_success_rate": snapshot.GetDecryptionSuccessRate(),
			"key_backup_error_rate":   snapshot.GetKeyBackupErrorRate(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
