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

package ssss

import (
	"github.com/mr-tron/base58"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// recoveryKeyPrefix is the 2-byte prefix spec §4.5 names for the 35-byte
// recovery-key buffer.
var recoveryKeyPrefix = [2]byte{0x8B, 0x01}

// EncodeRecoveryKey builds the base58 recovery-key string for a 32-byte
// storage key: prefix || storageKey || checksum, per spec §4.5.
func EncodeRecoveryKey(storageKey []byte) (string, error) {
	if len(storageKey) != 32 {
		return "", e2eeerr.New("ssss.EncodeRecoveryKey", e2eeerr.BadKey)
	}
	buf := make([]byte, 0, 35)
	buf = append(buf, recoveryKeyPrefix[0], recoveryKeyPrefix[1])
	buf = append(buf, storageKey...)
	buf = append(buf, recoveryKeyChecksum(buf))
	return base58.Encode(buf), nil
}

// DecodeRecoveryKey parses a recovery-key string back into the 32-byte
// storage key, verifying the prefix and checksum.
func DecodeRecoveryKey(recoveryKey string) ([]byte, error) {
	buf, err := base58.Decode(recoveryKey)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.DecodeRecoveryKey", e2eeerr.BadMessageFormat, err)
	}
	if len(buf) != 35 {
		return nil, e2eeerr.New("ssss.DecodeRecoveryKey", e2eeerr.BadMessageFormat)
	}
	if buf[0] != recoveryKeyPrefix[0] || buf[1] != recoveryKeyPrefix[1] {
		return nil, e2eeerr.New("ssss.DecodeRecoveryKey", e2eeerr.BadMessageFormat)
	}
	want := recoveryKeyChecksum(buf[:34])
	if buf[34] != want {
		return nil, e2eeerr.New("ssss.DecodeRecoveryKey", e2eeerr.BadMessageMac)
	}
	storageKey := append([]byte(nil), buf[2:34]...)
	return storageKey, nil
}

// recoveryKeyChecksum XORs every byte of prefix||storageKey together,
// per spec §4.5's "XOR checksum byte".
func recoveryKeyChecksum(buf []byte) byte {
	var c byte
	for _, b := range buf {
		c ^= b
	}
	return c
}

// GenerateRecoveryKey allocates a fresh random storage key and its
// recovery-key encoding together.
func GenerateRecoveryKey(entropy primitives.EntropySource) (storageKey []byte, recoveryKey string, err error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	storageKey = make([]byte, 32)
	if _, err := entropy.Read(storageKey); err != nil {
		return nil, "", e2eeerr.Wrap("ssss.GenerateRecoveryKey", e2eeerr.InsufficientEntropy, err)
	}
	recoveryKey, err = EncodeRecoveryKey(storageKey)
	if err != nil {
		return nil, "", err
	}
	return storageKey, recoveryKey, nil
}
