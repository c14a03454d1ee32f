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

package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// exportFileVersion is the only binary-payload version this core writes
// or accepts, per spec §6.
const exportFileVersion byte = 0x01

const (
	exportFileHeader = "-----BEGIN MEGOLM SESSION DATA-----"
	exportFileFooter = "-----END MEGOLM SESSION DATA-----"
)

// exportMinPayloadLen is 1 (version) + 16 (salt) + 16 (iv) + 4
// (iterations) + 0 (empty ciphertext) + 32 (hmac), the shortest payload
// that could possibly be well-formed, per spec §8 scenario S3.
const exportMinPayloadLen = 1 + 16 + 16 + 4 + 0 + 32

// EncodeExportFile writes sessions to the text export format of spec §6:
// a `-----BEGIN/END MEGOLM SESSION DATA-----` wrapped base64 blob,
// password-encrypted with PBKDF2-HMAC-SHA-512(password, salt,
// iterations) and authenticated end-to-end with HMAC-SHA-256.
func EncodeExportFile(password string, iterations int, sessions []ExportedSession) (string, error) {
	canon, err := json.Marshal(sessions)
	if err != nil {
		return "", e2eeerr.Wrap("backup.EncodeExportFile", e2eeerr.BadInput, err)
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", e2eeerr.Wrap("backup.EncodeExportFile", e2eeerr.InsufficientEntropy, err)
	}
	iv, err := primitives.RandomIV()
	if err != nil {
		return "", e2eeerr.Wrap("backup.EncodeExportFile", e2eeerr.InsufficientEntropy, err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, 64, sha512.New)
	aesKey, hmacKey := key[:32], key[32:]

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", e2eeerr.Wrap("backup.EncodeExportFile", e2eeerr.BadKey, err)
	}
	ct := make([]byte, len(canon))
	cipher.NewCTR(block, iv).XORKeyStream(ct, canon)

	payload := make([]byte, 0, exportMinPayloadLen+len(canon))
	payload = append(payload, exportFileVersion)
	payload = append(payload, salt...)
	payload = append(payload, iv...)
	var iterBuf [4]byte
	binary.BigEndian.PutUint32(iterBuf[:], uint32(iterations))
	payload = append(payload, iterBuf[:]...)
	payload = append(payload, ct...)

	h := hmac.New(sha256.New, hmacKey)
	h.Write(payload)
	payload = h.Sum(payload)

	b64 := base64.StdEncoding.EncodeToString(payload)
	var sb strings.Builder
	sb.WriteString(exportFileHeader)
	sb.WriteByte('\n')
	sb.WriteString(b64)
	sb.WriteByte('\n')
	sb.WriteString(exportFileFooter)
	sb.WriteByte('\n')
	return sb.String(), nil
}

// DecodeExportFile parses and decrypts a text export produced by
// EncodeExportFile, returning the enclosed sessions in canonical-JSON
// array order. Per spec §8 scenario S3: a payload shorter than 69 bytes
// fails with BadInput "too short"; a recognized-but-unsupported version
// byte fails with BadInput "unsupported format".
func DecodeExportFile(password, text string) ([]ExportedSession, error) {
	header, footer := strings.Index(text, exportFileHeader), strings.Index(text, exportFileFooter)
	if header < 0 || footer < 0 || footer < header {
		return nil, e2eeerr.New("backup.DecodeExportFile", e2eeerr.BadMessageFormat)
	}
	b64 := text[header+len(exportFileHeader) : footer]
	b64 = strings.Join(strings.Fields(b64), "")

	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecodeExportFile", e2eeerr.BadMessageFormat, err)
	}
	if len(payload) < exportMinPayloadLen {
		return nil, e2eeerr.Wrap("backup.DecodeExportFile", e2eeerr.BadInput, errors.New("too short"))
	}

	version := payload[0]
	if version != exportFileVersion {
		return nil, e2eeerr.Wrap("backup.DecodeExportFile", e2eeerr.BadInput, errors.New("unsupported format"))
	}

	salt := payload[1:17]
	iv := payload[17:33]
	iterations := binary.BigEndian.Uint32(payload[33:37])
	ctAndMAC := payload[37:]
	ct := ctAndMAC[:len(ctAndMAC)-32]
	mac := ctAndMAC[len(ctAndMAC)-32:]

	key := pbkdf2.Key([]byte(password), salt, int(iterations), 64, sha512.New)
	aesKey, hmacKey := key[:32], key[32:]

	h := hmac.New(sha256.New, hmacKey)
	h.Write(payload[:len(payload)-32])
	expected := h.Sum(nil)
	if subtle.ConstantTimeCompare(expected, mac) != 1 {
		return nil, e2eeerr.New("backup.DecodeExportFile", e2eeerr.BadMessageMac)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecodeExportFile", e2eeerr.BadKey, err)
	}
	pt := make([]byte, len(ct))
	cipher.NewCTR(block, iv).XORKeyStream(pt, ct)

	var sessions []ExportedSession
	if err := json.Unmarshal(pt, &sessions); err != nil {
		return nil, e2eeerr.Wrap("backup.DecodeExportFile", e2eeerr.BadMessageFormat, err)
	}
	return sessions, nil
}
