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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// IVSize and MACSize are fixed by the wire formats in spec §6.
const (
	IVSize  = 16
	MACSize = 32
)

// DeriveSubkeys runs HKDF-SHA-256(secret, salt, info) and splits the
// 64-byte output into a 32-byte AES key and a 32-byte HMAC key, the
// derivation shared by secret storage (§4.5) and session backup (§4.6).
func DeriveSubkeys(secret, salt, info []byte) (aesKey, hmacKey []byte, err error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, 64)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, nil, fmt.Errorf("hkdf: %w", err)
	}
	return out[:32], out[32:], nil
}

// RandomIV returns a fresh random 16-byte CTR IV with the topmost bit of
// the counter portion cleared, per spec §6 ("AES-CTR IV, top bit of
// counter cleared") — this keeps the counter from wrapping into a
// forbidden high region over the lifetime of one IV.
func RandomIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}
	iv[0] &= 0x7F
	return iv, nil
}

// SealCTRHMAC AES-256-CTR-encrypts plaintext under aesKey/iv, then
// HMAC-SHA-256s the ciphertext under hmacKey. It implements the
// "encrypt-then-MAC" envelope shared by §4.5 and §4.6.
func SealCTRHMAC(aesKey, hmacKey, iv, plaintext []byte) (ciphertext, mac []byte, err error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, nil, fmt.Errorf("aes: %w", err)
	}
	stream := cipher.NewCTR(block, iv)
	ciphertext = make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	h := hmac.New(sha256.New, hmacKey)
	h.Write(ciphertext)
	mac = h.Sum(nil)
	return ciphertext, mac, nil
}

// OpenCTRHMAC verifies mac over ciphertext in constant time, refusing to
// decrypt on mismatch, then AES-256-CTR-decrypts.
func OpenCTRHMAC(aesKey, hmacKey, iv, ciphertext, mac []byte) ([]byte, error) {
	h := hmac.New(sha256.New, hmacKey)
	h.Write(ciphertext)
	expected := h.Sum(nil)
	if subtle.ConstantTimeCompare(expected, mac) != 1 {
		return nil, fmt.Errorf("mac mismatch")
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	stream := cipher.NewCTR(block, iv)
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// Zero overwrites a secret buffer in place. Used by olm.Account.Close.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
