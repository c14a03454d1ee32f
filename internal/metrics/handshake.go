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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationsInitiated tracks SAS verification flows started.
	VerificationsInitiated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "initiated_total",
			Help:      "Total number of SAS verification flows initiated",
		},
		[]string{"role"}, // initiator, responder
	)

	// VerificationsCompleted tracks SAS verification flows that reached
	// a MAC exchange.
	VerificationsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "completed_total",
			Help:      "Total number of SAS verification flows completed",
		},
		[]string{"status"}, // success, failure
	)

	// VerificationsCancelled tracks SAS verification flows cancelled,
	// by CancellationReason.
	VerificationsCancelled = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "cancelled_total",
			Help:      "Total number of SAS verification flows cancelled by reason",
		},
		[]string{"reason"},
	)

	// VerificationStageDuration tracks SAS verification stage durations.
	VerificationStageDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "stage_duration_seconds",
			Help:      "SAS verification stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"stage"}, // commit, key_agree, sas, mac
	)
)
