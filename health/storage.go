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
	"fmt"
	"time"

	"github.com/matrix-org/go-e2ee-core/store"
)

// CheckStorage pings the configured Store by listing account blobs, the
// cheapest operation every Store implementation supports. An empty
// result is healthy; the point is whether the call returns at all.
func CheckStorage(ctx context.Context, s store.Store) *StorageHealth {
	health := &StorageHealth{Status: StatusUnhealthy}

	start := time.Now()
	_, err := s.List(ctx, store.KindAccount)
	latency := time.Since(start)
	health.Latency = latency.String()

	if err != nil {
		health.Error = fmt.Sprintf("storage list failed: %v", err)
		return health
	}

	health.Reachable = true
	switch {
	case latency < time.Second:
		health.Status = StatusHealthy
	case latency < 3*time.Second:
		health.Status = StatusDegraded
	default:
		health.Status = StatusUnhealthy
		health.Error = fmt.Sprintf("high latency: %v", latency)
	}

	return health
}
