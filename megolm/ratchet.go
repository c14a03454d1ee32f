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

// Package megolm implements the room-scoped group ratchet of spec
// §4.3/§4.4: the Outbound Group Session senders use to encrypt to a
// room, and the Inbound Group Session recipients use to decrypt,
// sharing a one-way hash ratchet rather than the Pairwise Session's
// asymmetric Diffie-Hellman ratchet, since every member of a room
// ratchets forward along the exact same chain from a single shared seed.
package megolm

import (
	"crypto/hmac"
	"crypto/sha256"
)

// ratchetSize is the width of the ratchet state in bytes.
const ratchetSize = 32

// stepRatchet is the one-way hash-ratchet step: from the ratchet value
// at message index i, derive the value at index i+1 and the message key
// for index i, via two differently-labelled HMACs so neither output can
// be used to recover the other (the same labelled-HMAC shape
// olm/ratchet.go's kdfCK uses for the Pairwise Session's chain step).
func stepRatchet(r []byte) (next, messageKey []byte) {
	h1 := hmac.New(sha256.New, r)
	h1.Write([]byte{0x00})
	next = h1.Sum(nil)

	h2 := hmac.New(sha256.New, r)
	h2.Write([]byte{0x01})
	messageKey = h2.Sum(nil)
	return
}

// advanceTo walks the ratchet forward from (value at fromIndex) to the
// value at toIndex, returning the new ratchet value. It does not derive
// a message key for toIndex itself — callers needing toIndex's message
// key call stepRatchet once more on the result.
func advanceTo(r []byte, fromIndex, toIndex uint32) []byte {
	cur := append([]byte(nil), r...)
	for i := fromIndex; i < toIndex; i++ {
		next, _ := stepRatchet(cur)
		cur = next
	}
	return cur
}
