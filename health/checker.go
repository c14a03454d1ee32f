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
	"time"

	"github.com/matrix-org/go-e2ee-core/store"
)

// Checker runs the fixed storage and system health checks and rolls the
// results up into one overall Status.
type Checker struct {
	store store.Store
}

// NewChecker creates a Checker against the given Store.
func NewChecker(s store.Store) *Checker {
	return &Checker{store: s}
}

// CheckAll runs the storage and system checks and returns the combined
// status: unhealthy if either check is unhealthy, degraded if either is
// degraded and neither is unhealthy, healthy otherwise.
func (c *Checker) CheckAll(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	status.StorageStatus = CheckStorage(ctx, c.store)
	mergeStatus(status, status.StorageStatus.Status, "storage", status.StorageStatus.Error)

	status.SystemStatus = CheckSystem()
	mergeStatus(status, status.SystemStatus.Status, "system", status.SystemStatus.Error)

	return status
}

func mergeStatus(status *HealthStatus, checkStatus Status, label, checkErr string) {
	if checkErr != "" {
		status.Errors = append(status.Errors, label+": "+checkErr)
	}
	switch {
	case checkStatus == StatusUnhealthy:
		status.Status = StatusUnhealthy
	case checkStatus == StatusDegraded && status.Status == StatusHealthy:
		status.Status = StatusDegraded
	}
}
