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

// Package pickle implements the opaque, versioned, key-wrapped binary
// blob format spec §6 calls the "pickle" form: the on-disk encoding for
// an Account, a Pairwise Session, or a Group Session. The caller supplies
// the symmetric key; the kind tag ("account", "session", "inbound_group",
// "outbound_group") is authenticated so a blob of one kind can never be
// mistaken for, or substituted in place of, another.
//
// Unlike libolm's fixed pickle format, this is not required to be
// wire-compatible with any other implementation (spec §6): AES-256-GCM
// is used here because it is a single-pass AEAD already in the example
// pack's dependency surface (golang.org/x/crypto/chacha20poly1305 is used
// elsewhere in this module; crypto/aes+cipher.NewGCM is stdlib and is the
// construction the teacher's own vault package uses for the same
// "encrypt a blob under a caller key" shape).
package pickle

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
)

const version byte = 1

// Seal encrypts payload under key (must be 32 bytes), authenticating kind
// as additional data, and returns a self-describing blob.
func Seal(key []byte, kind string, payload []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, e2eeerr.New("pickle.Seal", e2eeerr.BadKey)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, e2eeerr.Wrap("pickle.Seal", e2eeerr.BadKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, e2eeerr.Wrap("pickle.Seal", e2eeerr.BadKey, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, e2eeerr.Wrap("pickle.Seal", e2eeerr.InsufficientEntropy, err)
	}

	aad := kindAAD(kind)
	ct := aead.Seal(nil, nonce, payload, aad)

	out := make([]byte, 0, 1+2+len(kind)+len(nonce)+len(ct))
	out = append(out, version)
	var kindLen [2]byte
	binary.BigEndian.PutUint16(kindLen[:], uint16(len(kind)))
	out = append(out, kindLen[:]...)
	out = append(out, []byte(kind)...)
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// Open decrypts a blob produced by Seal, verifying it was sealed with
// kind exactly equal to the expected one.
func Open(key []byte, kind string, blob []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.BadKey)
	}
	if len(blob) < 1+2 {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.Corrupted)
	}
	if blob[0] != version {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.UnsupportedAlgorithm)
	}
	kindLen := int(binary.BigEndian.Uint16(blob[1:3]))
	rest := blob[3:]
	if len(rest) < kindLen {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.Corrupted)
	}
	gotKind := string(rest[:kindLen])
	if gotKind != kind {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.Corrupted)
	}
	rest = rest[kindLen:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, e2eeerr.Wrap("pickle.Open", e2eeerr.BadKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, e2eeerr.Wrap("pickle.Open", e2eeerr.BadKey, err)
	}
	if len(rest) < aead.NonceSize() {
		return nil, e2eeerr.New("pickle.Open", e2eeerr.Corrupted)
	}
	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	pt, err := aead.Open(nil, nonce, ct, kindAAD(kind))
	if err != nil {
		return nil, e2eeerr.Wrap("pickle.Open", e2eeerr.BadKey, fmt.Errorf("wrong key or corrupted blob"))
	}
	return pt, nil
}

func kindAAD(kind string) []byte {
	return []byte("matrix-e2ee-pickle:" + kind)
}
