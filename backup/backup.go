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

// Package backup implements server-side session backup (spec §4.6): each
// inbound group session is individually encrypted to the backup's public
// key, so only a holder of the matching private key (itself ordinarily
// kept in secret storage) can restore it.
package backup

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// Algorithm is the key-backup algorithm identifier named in spec §4.6's
// Key Backup Version object.
const Algorithm = "m.megolm_backup.v1.curve25519-aes-sha2"

// Version describes a backup generation, per spec §4.6.
type Version struct {
	Version   string    `json:"version"`
	Algorithm string    `json:"algorithm"`
	AuthData  AuthData  `json:"auth_data"`
}

// AuthData carries the backup's public key and, once the key is trusted,
// signatures over this object by the account's cross-signing keys.
type AuthData struct {
	PublicKey  string                       `json:"public_key"`
	Signatures map[string]map[string]string `json:"signatures,omitempty"`
}

// EncryptedSession is the wire shape of one backed-up session, per spec
// §4.6 step 5: `{ephemeral, ciphertext, mac}`, all base64.
type EncryptedSession struct {
	Ephemeral  string `json:"ephemeral"`
	Ciphertext string `json:"ciphertext"`
	MAC        string `json:"mac"`
}

// GenerateKeyPair allocates a fresh backup Curve25519 key pair.
func GenerateKeyPair(entropy primitives.EntropySource) (*ecdh.PrivateKey, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	priv, err := ecdh.X25519().GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.GenerateKeyPair", e2eeerr.InsufficientEntropy, err)
	}
	return priv, nil
}

// EncryptSession encrypts an exported session (session export JSON, per
// spec §4.4 export_at / §6's exported-session-record shape) to the
// backup's public key, per spec §4.6 steps 1-5.
func EncryptSession(pub *ecdh.PublicKey, sessionJSON []byte, entropy primitives.EntropySource) (*EncryptedSession, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	ephPriv, err := ecdh.X25519().GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSession", e2eeerr.InsufficientEntropy, err)
	}
	shared, err := ephPriv.ECDH(pub)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSession", e2eeerr.BadKey, err)
	}

	aesKey, hmacKey, err := primitives.DeriveSubkeys(shared, make([]byte, 32), nil)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSession", e2eeerr.BadKey, err)
	}
	ct, mac, err := primitives.SealCTRHMAC(aesKey, hmacKey, zeroIV, sessionJSON)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.EncryptSession", e2eeerr.BadKey, err)
	}

	return &EncryptedSession{
		Ephemeral:  base64.StdEncoding.EncodeToString(ephPriv.PublicKey().Bytes()),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		MAC:        base64.StdEncoding.EncodeToString(mac),
	}, nil
}

// zeroIV is the all-zero CTR IV session backup uses: the AES key is
// derived fresh from a one-time ECDH shared secret on every call to
// EncryptSession, so the (key, IV) pair this CTR stream runs under never
// repeats and a fixed IV costs nothing. This matches the wire format
// spec §4.6/§6 specify, which carries no "iv" field for backup records
// (unlike the secret-storage envelope, which does).
var zeroIV = make([]byte, primitives.IVSize)

// DecryptSession recovers the exported session JSON given the backup
// private key, per spec §4.6's Decrypt step.
func DecryptSession(priv *ecdh.PrivateKey, es *EncryptedSession) ([]byte, error) {
	ephPubRaw, err := base64.StdEncoding.DecodeString(es.Ephemeral)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadMessageFormat, err)
	}
	ephPub, err := ecdh.X25519().NewPublicKey(ephPubRaw)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadKey, err)
	}
	ct, err := base64.StdEncoding.DecodeString(es.Ciphertext)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadMessageFormat, err)
	}
	macBytes, err := base64.StdEncoding.DecodeString(es.MAC)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadMessageFormat, err)
	}

	shared, err := priv.ECDH(ephPub)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadKey, err)
	}
	aesKey, hmacKey, err := primitives.DeriveSubkeys(shared, make([]byte, 32), nil)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.DecryptSession", e2eeerr.BadKey, err)
	}
	pt, err := primitives.OpenCTRHMAC(aesKey, hmacKey, zeroIV, ct, macBytes)
	if err != nil {
		return nil, e2eeerr.New("backup.DecryptSession", e2eeerr.BadMessageMac)
	}
	return pt, nil
}

// SenderClaimedKeys is the sender's self-claimed device keys, carried
// alongside an exported session so a restoring device can re-run
// whatever trust decision it made the first time it saw this session.
type SenderClaimedKeys struct {
	Ed25519 string `json:"ed25519"`
}

// ExportedSession is the canonical on-disk/on-wire form of an inbound
// group session, per spec §3's Exported Session Record: everything a
// receiving device needs to both install the session
// (megolm.ImportInbound(SessionKey)) and judge its provenance
// (SenderKey, SenderClaimedKeys, ForwardingCurve25519KeyChain), not just
// its identity. Restore ordering (spec §4.4/§4.6) still keys on
// (RoomID, SessionID), with a smaller FirstKnownIndex always winning.
type ExportedSession struct {
	Algorithm                    string            `json:"algorithm"`
	RoomID                       string            `json:"room_id"`
	SenderKey                    string            `json:"sender_key"`
	SessionID                    string            `json:"session_id"`
	SessionKey                   string            `json:"session_key"`
	SenderClaimedKeys            SenderClaimedKeys `json:"sender_claimed_keys"`
	ForwardingCurve25519KeyChain []string          `json:"forwarding_curve25519_key_chain,omitempty"`
	FirstKnownIndex              uint32            `json:"first_message_index"`
}

// MergeRestored applies spec §4.6's "restore ordering" rule across a
// batch of freshly-decrypted exported sessions against whatever is
// already known: a duplicate (RoomID, SessionID) pair is replaced only
// when the incoming FirstKnownIndex is strictly smaller (it can decrypt
// strictly more than what is stored); larger or equal is discarded.
func MergeRestored(known map[[2]string]ExportedSession, incoming []ExportedSession) map[[2]string]ExportedSession {
	if known == nil {
		known = make(map[[2]string]ExportedSession)
	}
	for _, es := range incoming {
		key := [2]string{es.RoomID, es.SessionID}
		existing, ok := known[key]
		if !ok || es.FirstKnownIndex < existing.FirstKnownIndex {
			known[key] = es
		}
	}
	return known
}

// MarshalExportedSession is a small convenience used by callers building
// the JSON blob that EncryptSession seals.
func MarshalExportedSession(es ExportedSession) ([]byte, error) {
	raw, err := json.Marshal(es)
	if err != nil {
		return nil, e2eeerr.Wrap("backup.MarshalExportedSession", e2eeerr.BadInput, err)
	}
	return raw, nil
}
