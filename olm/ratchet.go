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

package olm

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// kdfRK is the Double Ratchet's root-chain KDF: HKDF-SHA-256 over the
// fresh DH output, salted by the current root key, produces a new root
// key and the first chain key for the chain the DH step just opened.
func kdfRK(rootKey, dhOut []byte) (newRootKey, chainKey []byte) {
	r := hkdf.New(sha256.New, dhOut, rootKey, []byte("OLM_RATCHET"))
	out := make([]byte, 64)
	io.ReadFull(r, out)
	return out[:32], out[32:]
}

// kdfCK is the Double Ratchet's symmetric chain KDF: two HMACs over the
// current chain key produce the message key for this step and the next
// chain key, per the standard constant-label construction.
func kdfCK(chainKey []byte) (nextChainKey, messageKey []byte) {
	h1 := hmac.New(sha256.New, chainKey)
	h1.Write([]byte{0x01})
	nextChainKey = h1.Sum(nil)

	h2 := hmac.New(sha256.New, chainKey)
	h2.Write([]byte{0x02})
	messageKey = h2.Sum(nil)
	return
}

// deriveRootSecret derives the initial root key from the X3DH-style
// triple-DH output computed at session establishment.
func deriveRootSecret(dh1, dh2, dh3 []byte) []byte {
	ikm := append(append(append([]byte{}, dh1...), dh2...), dh3...)
	r := hkdf.New(sha256.New, ikm, nil, []byte("OLM_ROOT"))
	out := make([]byte, 32)
	io.ReadFull(r, out)
	return out
}

// messageAEADKey derives the 32-byte ChaCha20-Poly1305 key used to
// encrypt one ratchet message from that message's message key.
func messageAEADKey(messageKey []byte) []byte {
	r := hkdf.New(sha256.New, messageKey, nil, []byte("OLM_MSG_AEAD"))
	out := make([]byte, 32)
	io.ReadFull(r, out)
	return out
}
