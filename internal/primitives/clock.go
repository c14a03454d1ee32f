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

package primitives

import (
	"crypto/rand"
	"io"
	"time"
)

// Clock is the explicit time input the core takes instead of calling
// time.Now() directly, per the design note that the core must accept a
// clock and a byte-source as explicit inputs so tests can inject
// deterministic values (spec §9 Design Notes, "Global mutable state").
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a deterministic Clock for tests.
type FixedClock struct{ T time.Time }

func (f FixedClock) Now() time.Time { return f.T }

// EntropySource is the explicit randomness input the core takes instead
// of reaching for crypto/rand.Reader directly in every call site.
type EntropySource interface {
	io.Reader
}

// SystemEntropy is the default EntropySource, backed by crypto/rand.Reader.
var SystemEntropy EntropySource = rand.Reader
