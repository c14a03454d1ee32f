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
	// GroupMessagesProcessed tracks megolm group messages encrypted or
	// decrypted.
	GroupMessagesProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "group_messages",
			Name:      "processed_total",
			Help:      "Total number of group messages processed",
		},
		[]string{"direction", "status"}, // encrypt/decrypt, success/failure
	)

	// ReplayedIndicesDetected tracks message indices seen twice by an
	// inbound group session (the skipped-key cache hit on index reuse
	// with a different ciphertext, rather than serving a fresh key).
	ReplayedIndicesDetected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "group_messages",
			Name:      "replayed_indices_detected_total",
			Help:      "Total number of reused message indices detected",
		},
	)

	// SkippedKeyCacheLookups tracks out-of-order message-key cache
	// lookups, by hit/miss, across both olm and megolm sessions.
	SkippedKeyCacheLookups = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "group_messages",
			Name:      "skipped_key_cache_lookups_total",
			Help:      "Total number of skipped message-key cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// GroupMessageProcessingDuration tracks group message processing
	// duration.
	GroupMessageProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "group_messages",
			Name:      "processing_duration_seconds",
			Help:      "Group message processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to 205ms
		},
	)

	// GroupMessageSize tracks group message sizes.
	GroupMessageSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "group_messages",
			Name:      "size_bytes",
			Help:      "Group message size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
		},
	)
)
