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

// Package olm implements the pairwise (double-ratchet) half of the E2EE
// core: the long-lived per-device Account (spec §4.1) and the
// Pairwise Session used to encrypt to-device messages (spec §4.2).
package olm

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
	"github.com/matrix-org/go-e2ee-core/pickle"
)

func subtleEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}

// maxOneTimeKeys bounds the account's one-time-key pool, per spec §4.1
// ("bounded by an internal maximum"). Matches the order of magnitude
// libolm-family implementations use for a single device.
const maxOneTimeKeys = 100

// IdentityKeys is the public half of an Account's identity.
type IdentityKeys struct {
	Curve25519 string `json:"curve25519"`
	Ed25519    string `json:"ed25519"`
}

type oneTimeKey struct {
	id        string
	priv      *ecdh.PrivateKey
	published bool
}

type fallbackKey struct {
	id   string
	priv *ecdh.PrivateKey
}

// Account is the singleton per-device cryptographic identity described
// in spec §4.1. All mutating methods (GenerateOneTimeKeys,
// MarkKeysAsPublished, and the internal one-time-key consumption that
// happens when creating an inbound session) must be serialized by the
// caller — the account is single-writer, per spec §5.
type Account struct {
	mu sync.Mutex

	curve25519 *ecdh.PrivateKey
	ed25519Pub ed25519.PublicKey
	ed25519Priv ed25519.PrivateKey

	oneTimeKeys map[string]*oneTimeKey
	otkOrder    []string
	nextKeyID   uint64

	fallback          *fallbackKey
	previousFallback  *fallbackKey
	fallbackPublished bool

	entropy primitives.EntropySource
}

// CreateNew allocates a fresh Account with random identity keys. It fails
// only if entropy is nil or exhausted (e2eeerr.InsufficientEntropy).
func CreateNew(entropy primitives.EntropySource) (*Account, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	curvePriv, err := ecdh.X25519().GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateNew", e2eeerr.InsufficientEntropy, err)
	}
	edPub, edPriv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateNew", e2eeerr.InsufficientEntropy, err)
	}
	return &Account{
		curve25519:  curvePriv,
		ed25519Pub:  edPub,
		ed25519Priv: edPriv,
		oneTimeKeys: make(map[string]*oneTimeKey),
		entropy:     entropy,
	}, nil
}

// IdentityKeys returns the public identity key bundle.
func (a *Account) IdentityKeys() IdentityKeys {
	return IdentityKeys{
		Curve25519: base64.StdEncoding.EncodeToString(a.curve25519.PublicKey().Bytes()),
		Ed25519:    base64.StdEncoding.EncodeToString(a.ed25519Pub),
	}
}

// Sign returns a base64 Ed25519 signature of message.
func (a *Account) Sign(message []byte) (string, error) {
	sig := ed25519.Sign(a.ed25519Priv, message)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// DeviceKeysBundle is the full published-to-server form of a device's
// identity, the body of a Matrix /keys/upload request: {user_id,
// device_id, algorithms, keys, signatures}.
type DeviceKeysBundle struct {
	UserID     string                       `json:"user_id"`
	DeviceID   string                       `json:"device_id"`
	Algorithms []string                     `json:"algorithms"`
	Keys       map[string]string            `json:"keys"`
	Signatures map[string]map[string]string `json:"signatures"`
}

// identityKeysBody builds the unsigned {algorithms, user_id, device_id,
// keys} map that SignIdentityKeys and IdentityKeysBundle both sign.
func (a *Account) identityKeysBody(userID, deviceID string) map[string]interface{} {
	return map[string]interface{}{
		"algorithms": []string{"m.olm.v1.curve25519-aes-sha2", "m.megolm.v1.aes-sha2"},
		"user_id":    userID,
		"device_id":  deviceID,
		"keys": map[string]string{
			"curve25519:" + deviceID: base64.StdEncoding.EncodeToString(a.curve25519.PublicKey().Bytes()),
			"ed25519:" + deviceID:    base64.StdEncoding.EncodeToString(a.ed25519Pub),
		},
	}
}

// SignIdentityKeys signs the canonical JSON of the public identity-key
// bundle {algorithms, user_id, device_id, keys:{curve25519:<id>,
// ed25519:<id>}}, per spec §4.1.
func (a *Account) SignIdentityKeys(userID, deviceID string) (string, error) {
	canon, err := primitives.CanonicalJSON(a.identityKeysBody(userID, deviceID))
	if err != nil {
		return "", e2eeerr.Wrap("Account.SignIdentityKeys", e2eeerr.BadInput, err)
	}
	return a.Sign(canon)
}

// IdentityKeysBundle returns the signed device-keys bundle a caller can
// POST directly to /keys/upload: the same body SignIdentityKeys signs,
// with the signature attached under signatures[userID]["ed25519:deviceID"].
func (a *Account) IdentityKeysBundle(userID, deviceID string) (*DeviceKeysBundle, error) {
	sig, err := a.SignIdentityKeys(userID, deviceID)
	if err != nil {
		return nil, err
	}
	body := a.identityKeysBody(userID, deviceID)
	return &DeviceKeysBundle{
		UserID:     userID,
		DeviceID:   deviceID,
		Algorithms: body["algorithms"].([]string),
		Keys:       body["keys"].(map[string]string),
		Signatures: map[string]map[string]string{
			userID: {"ed25519:" + deviceID: sig},
		},
	}, nil
}

// GenerateOneTimeKeys generates up to n new one-time keys, returning the
// number actually generated (bounded by maxOneTimeKeys).
func (a *Account) GenerateOneTimeKeys(n int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room := maxOneTimeKeys - len(a.oneTimeKeys)
	if room <= 0 {
		return 0, nil
	}
	if n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		priv, err := ecdh.X25519().GenerateKey(a.entropy)
		if err != nil {
			return i, e2eeerr.Wrap("Account.GenerateOneTimeKeys", e2eeerr.InsufficientEntropy, err)
		}
		id := a.allocateKeyID()
		a.oneTimeKeys[id] = &oneTimeKey{id: id, priv: priv}
		a.otkOrder = append(a.otkOrder, id)
	}
	return n, nil
}

// GenerateFallbackKey produces exactly one fallback key, replacing the
// current one. The prior current key is retained as "previous" until
// ForgetOldFallbackKey is called (spec §4.1 invariant, Open Question 1:
// the policy committed to here is "retain exactly one previous
// fallback, discarded on the next ForgetOldFallbackKey call").
func (a *Account) GenerateFallbackKey() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	priv, err := ecdh.X25519().GenerateKey(a.entropy)
	if err != nil {
		return e2eeerr.Wrap("Account.GenerateFallbackKey", e2eeerr.InsufficientEntropy, err)
	}
	id := a.allocateKeyID()
	newKey := &fallbackKey{id: id, priv: priv}

	if a.fallback != nil {
		a.previousFallback = a.fallback
	}
	a.fallback = newKey
	a.fallbackPublished = false
	return nil
}

// ForgetOldFallbackKey discards the previous fallback key, if any.
func (a *Account) ForgetOldFallbackKey() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.previousFallback = nil
}

func (a *Account) allocateKeyID() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], a.nextKeyID)
	a.nextKeyID++
	return base64.RawStdEncoding.EncodeToString(b[4:])
}

// OneTimeKeys returns the not-yet-published one-time public keys,
// {curve25519: {key_id -> public_key}}.
func (a *Account) OneTimeKeys() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string)
	for _, id := range a.otkOrder {
		k, ok := a.oneTimeKeys[id]
		if !ok || k.published {
			continue
		}
		out[id] = base64.StdEncoding.EncodeToString(k.priv.PublicKey().Bytes())
	}
	return out
}

// UnpublishedFallbackKeys returns the current fallback key if it has not
// yet been marked published, keyed by its id.
func (a *Account) UnpublishedFallbackKeys() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string)
	if a.fallback != nil && !a.fallbackPublished {
		out[a.fallback.id] = base64.StdEncoding.EncodeToString(a.fallback.priv.PublicKey().Bytes())
	}
	return out
}

// SignOneTimeKey signs the canonical JSON {"key": <key>, "fallback":
// true?} for a published one-time or fallback key.
func (a *Account) SignOneTimeKey(keyB64 string, fallback bool) (string, error) {
	body := map[string]interface{}{"key": keyB64}
	if fallback {
		body["fallback"] = true
	}
	canon, err := primitives.CanonicalJSON(body)
	if err != nil {
		return "", e2eeerr.Wrap("Account.SignOneTimeKey", e2eeerr.BadInput, err)
	}
	return a.Sign(canon)
}

// MarkKeysAsPublished marks every currently unpublished one-time key and
// the current fallback key as published: they stop appearing in
// subsequent OneTimeKeys/UnpublishedFallbackKeys calls.
func (a *Account) MarkKeysAsPublished() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.oneTimeKeys {
		k.published = true
	}
	a.fallbackPublished = true
}

// removeOneTimeKeyByPublic finds and consumes the private key whose public
// key matches pub, searching one-time keys then the current and previous
// fallback keys. Used when establishing an inbound session, since a
// pre-key message carries the public key itself rather than its id.
func (a *Account) removeOneTimeKeyByPublic(pub []byte) (priv *ecdh.PrivateKey, id string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, otkID := range a.otkOrder {
		k := a.oneTimeKeys[otkID]
		if k != nil && subtleEqual(k.priv.PublicKey().Bytes(), pub) {
			delete(a.oneTimeKeys, otkID)
			for i, candidate := range a.otkOrder {
				if candidate == otkID {
					a.otkOrder = append(a.otkOrder[:i], a.otkOrder[i+1:]...)
					break
				}
			}
			return k.priv, k.id, true
		}
	}
	if a.fallback != nil && subtleEqual(a.fallback.priv.PublicKey().Bytes(), pub) {
		return a.fallback.priv, a.fallback.id, true
	}
	if a.previousFallback != nil && subtleEqual(a.previousFallback.priv.PublicKey().Bytes(), pub) {
		return a.previousFallback.priv, a.previousFallback.id, true
	}
	return nil, "", false
}

// lookupOneTimeKeyByPublic is the non-consuming counterpart used by
// MatchesInboundFrom-style checks.
func (a *Account) lookupOneTimeKeyByPublic(pub []byte) (id string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, otkID := range a.otkOrder {
		k := a.oneTimeKeys[otkID]
		if k != nil && subtleEqual(k.priv.PublicKey().Bytes(), pub) {
			return k.id, true
		}
	}
	if a.fallback != nil && subtleEqual(a.fallback.priv.PublicKey().Bytes(), pub) {
		return a.fallback.id, true
	}
	if a.previousFallback != nil && subtleEqual(a.previousFallback.priv.PublicKey().Bytes(), pub) {
		return a.previousFallback.id, true
	}
	return "", false
}


// --- Pickling ---

type accountPickleV1 struct {
	Curve25519Priv []byte            `json:"curve25519_priv"`
	Ed25519Seed    []byte            `json:"ed25519_seed"`
	OneTimeKeys    []otkPickle       `json:"one_time_keys"`
	NextKeyID      uint64            `json:"next_key_id"`
	Fallback       *fallbackPickle   `json:"fallback,omitempty"`
	Previous       *fallbackPickle   `json:"previous_fallback,omitempty"`
	FallbackPub    bool              `json:"fallback_published"`
}

type otkPickle struct {
	ID        string `json:"id"`
	Priv      []byte `json:"priv"`
	Published bool   `json:"published"`
}

type fallbackPickle struct {
	ID   string `json:"id"`
	Priv []byte `json:"priv"`
}

// Save produces an opaque encrypted serialization of the account under key.
func (a *Account) Save(key []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := accountPickleV1{
		Curve25519Priv: a.curve25519.Bytes(),
		Ed25519Seed:    a.ed25519Priv.Seed(),
		NextKeyID:      a.nextKeyID,
		FallbackPub:    a.fallbackPublished,
	}
	for _, id := range a.otkOrder {
		k := a.oneTimeKeys[id]
		p.OneTimeKeys = append(p.OneTimeKeys, otkPickle{ID: k.id, Priv: k.priv.Bytes(), Published: k.published})
	}
	if a.fallback != nil {
		p.Fallback = &fallbackPickle{ID: a.fallback.id, Priv: a.fallback.priv.Bytes()}
	}
	if a.previousFallback != nil {
		p.Previous = &fallbackPickle{ID: a.previousFallback.id, Priv: a.previousFallback.priv.Bytes()}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.Save", e2eeerr.BadInput, err)
	}
	return pickle.Seal(key, "account", raw)
}

// Restore reconstructs an Account from a blob produced by Save.
func Restore(blob, key []byte, entropy primitives.EntropySource) (*Account, error) {
	raw, err := pickle.Open(key, "account", blob)
	if err != nil {
		kind, _ := e2eeerr.Of(err)
		return nil, e2eeerr.Wrap("Account.Restore", kind, err)
	}
	var p accountPickleV1
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, e2eeerr.Wrap("Account.Restore", e2eeerr.Corrupted, err)
	}

	curvePriv, err := ecdh.X25519().NewPrivateKey(p.Curve25519Priv)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.Restore", e2eeerr.Corrupted, err)
	}
	if len(p.Ed25519Seed) != ed25519.SeedSize {
		return nil, e2eeerr.New("Account.Restore", e2eeerr.Corrupted)
	}
	edPriv := ed25519.NewKeyFromSeed(p.Ed25519Seed)

	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	a := &Account{
		curve25519:        curvePriv,
		ed25519Pub:        edPriv.Public().(ed25519.PublicKey),
		ed25519Priv:       edPriv,
		oneTimeKeys:       make(map[string]*oneTimeKey),
		nextKeyID:         p.NextKeyID,
		entropy:           entropy,
		fallbackPublished: p.FallbackPub,
	}
	for _, otk := range p.OneTimeKeys {
		priv, err := ecdh.X25519().NewPrivateKey(otk.Priv)
		if err != nil {
			return nil, e2eeerr.Wrap("Account.Restore", e2eeerr.Corrupted, err)
		}
		a.oneTimeKeys[otk.ID] = &oneTimeKey{id: otk.ID, priv: priv, published: otk.Published}
		a.otkOrder = append(a.otkOrder, otk.ID)
	}
	if p.Fallback != nil {
		priv, err := ecdh.X25519().NewPrivateKey(p.Fallback.Priv)
		if err != nil {
			return nil, e2eeerr.Wrap("Account.Restore", e2eeerr.Corrupted, err)
		}
		a.fallback = &fallbackKey{id: p.Fallback.ID, priv: priv}
	}
	if p.Previous != nil {
		priv, err := ecdh.X25519().NewPrivateKey(p.Previous.Priv)
		if err != nil {
			return nil, e2eeerr.Wrap("Account.Restore", e2eeerr.Corrupted, err)
		}
		a.previousFallback = &fallbackKey{id: p.Previous.ID, priv: priv}
	}
	// Keep otkOrder deterministic across restores for test stability.
	sort.Strings(a.otkOrder)
	return a, nil
}

// Close zeroes the account's Ed25519 private key. The X25519 identity,
// one-time and fallback keys are passed to zeroKey, which cannot scrub
// them (see zeroKey). After Close the account must not be used.
func (a *Account) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.oneTimeKeys {
		zeroKey(k.priv)
	}
	if a.fallback != nil {
		zeroKey(a.fallback.priv)
	}
	if a.previousFallback != nil {
		zeroKey(a.previousFallback.priv)
	}
	zeroKey(a.curve25519)
	primitives.Zero(a.ed25519Priv)
}

// zeroKey overwrites a copy of the key's raw bytes. crypto/ecdh.PrivateKey
// is an immutable value type with no exported mutable backing array, so
// this cannot scrub the original allocation the way a byte slice can:
// Bytes returns a fresh copy, and only that copy is overwritten.
func zeroKey(k *ecdh.PrivateKey) {
	if k == nil {
		return
	}
	b := k.Bytes()
	primitives.Zero(b)
}
