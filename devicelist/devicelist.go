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

// Package devicelist is a narrow, host-facing seam for device-list
// tracking. This core never fetches a device list itself (that is
// HTTP-layer work for the host application) but still needs somewhere
// to record "this user's device list changed, re-share keys before the
// next send" — a per-user dirty bit, not a cache of the device list
// itself.
package devicelist

import "sync"

// Store tracks which users' device lists are known to be stale.
// MarkDirty is called by the host application when it observes a
// device-list change (e.g. a /sync m.device_list_update); IsDirty is
// consulted before sharing a room key so the session can be rotated
// instead of shared with a now-unknown device set; MarkClean is called
// once the host has re-queried and re-shared.
type Store interface {
	MarkDirty(userID string)
	IsDirty(userID string) bool
	MarkClean(userID string)
}

// MemoryStore is an in-process Store backed by a guarded set, the same
// single-mutex-per-collection shape internal/metrics's MetricsCollector
// uses for its counters.
type MemoryStore struct {
	mu    sync.RWMutex
	dirty map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dirty: make(map[string]struct{})}
}

func (s *MemoryStore) MarkDirty(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[userID] = struct{}{}
}

func (s *MemoryStore) IsDirty(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dirty[userID]
	return ok
}

func (s *MemoryStore) MarkClean(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, userID)
}

// DirtyUsers returns every user currently marked dirty. Used by a host
// application's key-sharing loop to decide who needs a fresh device
// query before the next room key share.
func (s *MemoryStore) DirtyUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dirty))
	for userID := range s.dirty {
		out = append(out, userID)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
