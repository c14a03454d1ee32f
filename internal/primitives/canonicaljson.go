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

// Package primitives holds the small cryptographic building blocks shared
// by every E2EE component: canonical JSON, HKDF sub-key derivation, and
// the AES-CTR + HMAC-SHA-256 envelope used by both secret storage (§4.5)
// and session backup (§4.6). None of this is component-specific state.
package primitives

import (
	"encoding/json"
	"fmt"
)

// CanonicalJSON re-serializes v with object keys sorted and no
// insignificant whitespace, per the Matrix canonical JSON rules used for
// signing. It strips nothing itself — callers remove "signatures" and
// "unsigned" before calling this, since removal is data-shape-specific.
//
// Go's encoding/json already sorts map[string]interface{} keys and emits
// no whitespace from Marshal, so the simplest correct implementation is
// a round-trip through a generic value: marshal the typed value, decode
// it into interface{} (giving map[string]interface{} for every object),
// then marshal again.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: marshal: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicaljson: round-trip: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: re-marshal: %w", err)
	}
	return out, nil
}

// CanonicalJSONMap is a convenience for the common case of signing a
// map[string]interface{} body after deleting "signatures"/"unsigned".
func CanonicalJSONMap(m map[string]interface{}) ([]byte, error) {
	delete(m, "signatures")
	delete(m, "unsigned")
	return CanonicalJSON(m)
}
