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
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"

	"github.com/cloudflare/circl/hpke"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

var hpkeSuite = hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)

const hpkeExportCtx = "matrix-e2ee-session-backup"
const hpkeExportLen = 64

// hpkeInfo binds the HPKE context to the backup algorithm, so an export
// derived here can never be confused with an export from some other HPKE
// use in the same process.
var hpkeInfo = []byte("matrix-e2ee-session-backup-v1")

// EncryptSessionHPKE is an alternate transport for the same shared-secret
// derivation EncryptSession performs by hand: an HPKE Base-mode exchange
// in export-only mode (no HPKE AEAD ciphertext is produced; the exported
// secret feeds the same CTR+HMAC envelope as the plain-ECDH path), gated
// behind this separate entry point rather than folded into EncryptSession
// so callers choose the transport explicitly.
func EncryptSessionHPKE(pub *ecdh.PublicKey, sessionJSON []byte) (*EncryptedSession, error) {
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	rp, err := kem.UnmarshalBinaryPublicKey(pub.Bytes())
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSessionHPKE", e2eeerr.BadKey, err)
	}
	sender, err := hpkeSuite.NewSender(rp, hpkeInfo)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSessionHPKE", e2eeerr.BadKey, err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSessionHPKE", e2eeerr.InsufficientEntropy, err)
	}
	shared := sealer.Export([]byte(hpkeExportCtx), hpkeExportLen)

	aesKey, hmacKey, err := primitives.DeriveSubkeys(shared, make([]byte, 32), nil)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSessionHPKE", e2eeerr.BadKey, err)
	}
	ct, mac, err := primitives.SealCTRHMAC(aesKey, hmacKey, zeroIV, sessionJSON)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSessionHPKE", e2eeerr.BadKey, err)
	}

	return &EncryptedSession{
		Ephemeral:  base64.StdEncoding.EncodeToString(enc),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		MAC:        base64.StdEncoding.EncodeToString(mac),
	}, nil
}

// DecryptSessionHPKE is the receiving half of EncryptSessionHPKE.
func DecryptSessionHPKE(priv *ecdh.PrivateKey, es *EncryptedSession) ([]byte, error) {
	enc, err := base64.StdEncoding.DecodeString(es.Ephemeral)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadMessageFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(es.Ciphertext)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadMessageFormat, err)
	}
	macBytes, err := base64.StdEncoding.DecodeString(es.MAC)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadMessageFormat, err)
	}

	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	skR, err := kem.UnmarshalBinaryPrivateKey(priv.Bytes())
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadKey, err)
	}
	receiver, err := hpkeSuite.NewReceiver(skR, hpkeInfo)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadKey, err)
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadKey, err)
	}
	shared := opener.Export([]byte(hpkeExportCtx), hpkeExportLen)

	aesKey, hmacKey, err := primitives.DeriveSubkeys(shared, make([]byte, 32), nil)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSessionHPKE", e2eeerr.BadKey, err)
	}
	pt, err := primitives.OpenCTRHMAC(aesKey, hmacKey, zeroIV, ct, macBytes)
	if err != nil {
		return nil, e2eeerr.New("backup.DecryptSessionHPKE", e2eeerr.BadMessageMac)
	}
	return pt, nil
}
