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

// Package ssss implements Secret Storage and Cross-Signing key management
// (spec §4.5): deriving a 32-byte storage key from a passphrase or a
// recovery key, verifying a candidate key against a descriptor without
// decrypting anything, encrypting/decrypting individual secrets under
// that key, and bootstrapping the three cross-signing Ed25519 identities.
package ssss

import (
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// Algorithm is the secret-storage algorithm identifier in the key
// descriptor, per spec §4.5/§6.
const Algorithm = "m.secret_storage.v1.aes-hmac-sha2"

// KeyDescriptor is the Secret Storage Key Descriptor of spec §6: the MAC
// of a zero plaintext under the derived key, letting a client verify a
// candidate key without decrypting any real secret.
type KeyDescriptor struct {
	Name       string                       `json:"name"`
	Algorithm  string                       `json:"algorithm"`
	IV         string                       `json:"iv"`
	MAC        string                       `json:"mac"`
	Passphrase *PassphraseParams            `json:"passphrase,omitempty"`
	Signatures map[string]map[string]string `json:"signatures,omitempty"`
}

// PassphraseParams records how the storage key was derived from a
// passphrase, so a client can repeat the derivation.
type PassphraseParams struct {
	Algorithm  string `json:"algorithm"`
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
	Bits       int    `json:"bits"`
}

// EncryptedSecret is the Encrypted Secret Envelope of spec §4.5/§6.
type EncryptedSecret struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	MAC        string `json:"mac"`
}

// DeriveKeyFromPassphrase runs PBKDF2-HMAC-SHA-512 over passphrase with
// the given salt and iteration count, producing the 32-byte storage key,
// per spec §4.5.
func DeriveKeyFromPassphrase(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2Key(passphrase, salt, iterations, 32)
}

// NewPassphraseSalt returns a fresh random salt of at least 16 bytes, the
// minimum spec §4.5 requires.
func NewPassphraseSalt(entropy primitives.EntropySource) ([]byte, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	salt := make([]byte, 32)
	if _, err := entropy.Read(salt); err != nil {
		return nil, e2eeerr.Wrap("ssss.NewPassphraseSalt", e2eeerr.InsufficientEntropy, err)
	}
	return salt, nil
}

// BuildDescriptor derives the IV/MAC fields of a KeyDescriptor for
// storage key K, per spec §4.5's verification recipe run in reverse (to
// produce, rather than check, the descriptor).
func BuildDescriptor(name string, storageKey []byte) (*KeyDescriptor, error) {
	iv, err := primitives.RandomIV()
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.BuildDescriptor", e2eeerr.InsufficientEntropy, err)
	}
	aesKey, hmacKey, err := verificationSubkeys(storageKey)
	if err != nil {
		return nil, err
	}
	var zero [32]byte
	_, mac, err := primitives.SealCTRHMAC(aesKey, hmacKey, iv, zero[:])
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.BuildDescriptor", e2eeerr.BadKey, err)
	}
	return &KeyDescriptor{
		Name:      name,
		Algorithm: Algorithm,
		IV:        base64.StdEncoding.EncodeToString(iv),
		MAC:       base64.StdEncoding.EncodeToString(mac),
	}, nil
}

// VerifyKey checks candidate storage key K against descriptor, per spec
// §4.5's Key verification recipe.
func VerifyKey(descriptor *KeyDescriptor, storageKey []byte) (bool, error) {
	iv, err := base64.StdEncoding.DecodeString(descriptor.IV)
	if err != nil {
		return false, e2eeerr.Wrap("ssss.VerifyKey", e2eeerr.BadMessageFormat, err)
	}
	wantMAC, err := base64.StdEncoding.DecodeString(descriptor.MAC)
	if err != nil {
		return false, e2eeerr.Wrap("ssss.VerifyKey", e2eeerr.BadMessageFormat, err)
	}
	aesKey, hmacKey, err := verificationSubkeys(storageKey)
	if err != nil {
		return false, err
	}
	var zero [32]byte
	_, gotMAC, err := primitives.SealCTRHMAC(aesKey, hmacKey, iv, zero[:])
	if err != nil {
		return false, e2eeerr.Wrap("ssss.VerifyKey", e2eeerr.BadKey, err)
	}
	return subtle.ConstantTimeCompare(gotMAC, wantMAC) == 1, nil
}

// verificationSubkeys derives (aes, hmac) with info="" per spec §4.5's
// Key verification recipe, distinct from EncryptSecret/DecryptSecret's
// per-secret-name info string.
func verificationSubkeys(storageKey []byte) (aesKey, hmacKey []byte, err error) {
	aesKey, hmacKey, err = primitives.DeriveSubkeys(storageKey, make([]byte, 32), nil)
	if err != nil {
		return nil, nil, e2eeerr.Wrap("ssss.verificationSubkeys", e2eeerr.BadKey, err)
	}
	return aesKey, hmacKey, nil
}

// EncryptSecret encrypts plaintext under storageKey for secretName, per
// spec §4.5's Secret encryption recipe (info = secretName).
func EncryptSecret(storageKey []byte, secretName string, plaintext []byte) (*EncryptedSecret, error) {
	aesKey, hmacKey, err := primitives.DeriveSubkeys(storageKey, make([]byte, 32), []byte(secretName))
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.EncryptSecret", e2eeerr.BadKey, err)
	}
	iv, err := primitives.RandomIV()
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.EncryptSecret", e2eeerr.InsufficientEntropy, err)
	}
	ct, mac, err := primitives.SealCTRHMAC(aesKey, hmacKey, iv, plaintext)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.EncryptSecret", e2eeerr.BadKey, err)
	}
	return &EncryptedSecret{
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		MAC:        base64.StdEncoding.EncodeToString(mac),
	}, nil
}

// DecryptSecret reverses EncryptSecret, verifying the MAC in constant
// time before decrypting, per spec §4.5.
func DecryptSecret(storageKey []byte, secretName string, es *EncryptedSecret) ([]byte, error) {
	aesKey, hmacKey, err := primitives.DeriveSubkeys(storageKey, make([]byte, 32), []byte(secretName))
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.DecryptSecret", e2eeerr.BadKey, err)
	}
	iv, err := base64.StdEncoding.DecodeString(es.IV)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.DecryptSecret", e2eeerr.BadMessageFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(es.Ciphertext)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.DecryptSecret", e2eeerr.BadMessageFormat, err)
	}
	macBytes, err := base64.StdEncoding.DecodeString(es.MAC)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.DecryptSecret", e2eeerr.BadMessageFormat, err)
	}
	pt, err := primitives.OpenCTRHMAC(aesKey, hmacKey, iv, ct, macBytes)
	if err != nil {
		return nil, e2eeerr.New("ssss.DecryptSecret", e2eeerr.BadMessageMac)
	}
	return pt, nil
}

// SignDescriptor signs descriptor's canonical JSON (with "signatures"
// removed) under the master cross-signing key, per spec §4.5's "Signing
// a key descriptor" recipe. The signature is recorded in the returned
// copy's Signatures map under userID/keyID.
func SignDescriptor(descriptor KeyDescriptor, userID, keyID string, masterPriv ed25519.PrivateKey) (KeyDescriptor, error) {
	descriptor.Signatures = nil
	body, err := primitives.CanonicalJSON(descriptor)
	if err != nil {
		return descriptor, e2eeerr.Wrap("ssss.SignDescriptor", e2eeerr.BadInput, err)
	}
	sig := ed25519.Sign(masterPriv, body)
	descriptor.Signatures = map[string]map[string]string{
		userID: {keyID: base64.StdEncoding.EncodeToString(sig)},
	}
	return descriptor, nil
}

func pbkdf2Key(passphrase string, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha512.New)
}
