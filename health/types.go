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

// Package health reports the liveness/readiness surface a host
// application exposes alongside the metrics endpoint (spec's ambient
// HealthConfig in the config package): whether the configured Store is
// reachable, and whether process-level resource usage (memory, disk,
// goroutine count) is within healthy bounds.
package health

import "time"

// Status is an overall or per-check health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// HealthStatus is the complete health report CheckAll returns.
type HealthStatus struct {
	Status       Status        `json:"status"`
	Timestamp    time.Time     `json:"timestamp"`
	StorageStatus *StorageHealth `json:"storage,omitempty"`
	SystemStatus *SystemHealth `json:"system,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}

// StorageHealth reports whether the configured Store answers.
type StorageHealth struct {
	Status    Status `json:"status"`
	Reachable bool   `json:"reachable"`
	Latency   string `json:"latency,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SystemHealth reports process-level resource usage.
type SystemHealth struct {
	Status        Status  `json:"status"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskUsedGB    uint64  `json:"disk_used_gb"`
	DiskTotalGB   uint64  `json:"disk_total_gb"`
	DiskPercent   float64 `json:"disk_percent"`
	GoRoutines    int     `json:"goroutines"`
	Error         string  `json:"error,omitempty"`
}
