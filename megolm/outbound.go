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

package megolm

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
	"github.com/matrix-org/go-e2ee-core/pickle"
)

// DefaultMaxAge and DefaultMaxMessages are the rotation-contract
// defaults named in spec §4.3 ("one week and 100 messages").
const (
	DefaultMaxAge      = 7 * 24 * time.Hour
	DefaultMaxMessages = 100
)

const sessionKeyVersion byte = 2

// GroupMessage is the wire ciphertext a group session emits and consumes.
type GroupMessage struct {
	MessageIndex uint32 `json:"message_index"`
	IV           string `json:"iv"`
	Ciphertext   string `json:"ciphertext"`
	MAC          string `json:"mac"`
	Signature    string `json:"signature"`
}

// OutboundGroupSession is the sending half of spec §4.3.
type OutboundGroupSession struct {
	mu sync.Mutex

	id string

	ratchet []byte
	index   uint32

	edPub  ed25519.PublicKey
	edPriv ed25519.PrivateKey

	createdAt time.Time
}

// InitOutbound allocates a fresh Outbound Group Session with a random
// initial ratchet state and a fresh Ed25519 signing keypair, per spec
// §4.3 init_outbound.
func InitOutbound(entropy primitives.EntropySource, clock primitives.Clock) (*OutboundGroupSession, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	if clock == nil {
		clock = primitives.SystemClock{}
	}
	r := make([]byte, ratchetSize)
	if _, err := entropy.Read(r); err != nil {
		return nil, e2eeerr.Wrap("InitOutbound", e2eeerr.InsufficientEntropy, err)
	}
	edPub, edPriv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("InitOutbound", e2eeerr.InsufficientEntropy, err)
	}
	return &OutboundGroupSession{
		id:        sessionIDFromSigningKey(edPub),
		ratchet:   r,
		index:     0,
		edPub:     edPub,
		edPriv:    edPriv,
		createdAt: clock.Now(),
	}, nil
}

// ID returns the session's stable opaque identifier.
func (s *OutboundGroupSession) ID() string { return s.id }

// MessageCount reports how many messages have been encrypted so far.
func (s *OutboundGroupSession) MessageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// CreatedAt reports when this session was created, for rotation checks.
func (s *OutboundGroupSession) CreatedAt() time.Time { return s.createdAt }

// NeedsRotation applies the rotation contract of spec §4.3: the host
// must create a new session once age or message count reaches maxAge /
// maxMessages.
func (s *OutboundGroupSession) NeedsRotation(now time.Time, maxAge time.Duration, maxMessages uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.createdAt) >= maxAge || s.index >= maxMessages
}

// Encrypt produces the ciphertext for plaintext at the current message
// index, then advances the ratchet, per spec §4.3 encrypt.
func (s *OutboundGroupSession) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messageKey := deriveMessageKey(s.ratchet)
	aesKey, hmacKey := messageSubkeys(messageKey)

	iv, err := primitives.RandomIV()
	if err != nil {
		return nil, e2eeerr.Wrap("OutboundGroupSession.Encrypt", e2eeerr.InsufficientEntropy, err)
	}
	ct, _, err := primitives.SealCTRHMAC(aesKey, hmacKey, iv, plaintext)
	if err != nil {
		return nil, e2eeerr.Wrap("OutboundGroupSession.Encrypt", e2eeerr.BadKey, err)
	}

	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], s.index)
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(idxBytes[:])
	mac.Write(iv)
	mac.Write(ct)
	macSum := mac.Sum(nil)

	signed := append(append(append(append([]byte{}, idxBytes[:]...), iv...), ct...), macSum...)
	sig := ed25519.Sign(s.edPriv, signed)

	gm := GroupMessage{
		MessageIndex: s.index,
		IV:           base64.StdEncoding.EncodeToString(iv),
		Ciphertext:   base64.StdEncoding.EncodeToString(ct),
		MAC:          base64.StdEncoding.EncodeToString(macSum),
		Signature:    base64.StdEncoding.EncodeToString(sig),
	}
	raw, err := json.Marshal(gm)
	if err != nil {
		return nil, e2eeerr.Wrap("OutboundGroupSession.Encrypt", e2eeerr.BadInput, err)
	}

	s.ratchet, _ = stepRatchet(s.ratchet)
	s.index++
	return raw, nil
}

// SessionKey exports session-sharing material sufficient to build a
// matching Inbound Group Session at the current message index, per spec
// §4.3 session_key. Treat the result as secret.
func (s *OutboundGroupSession) SessionKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encodeSessionKey(s.index, s.ratchet, s.edPub, s.edPriv)
}

func encodeSessionKey(index uint32, ratchet []byte, edPub ed25519.PublicKey, edPriv ed25519.PrivateKey) (string, error) {
	body := make([]byte, 0, 1+4+ratchetSize+ed25519.PublicKeySize)
	body = append(body, sessionKeyVersion)
	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], index)
	body = append(body, idxBytes[:]...)
	body = append(body, ratchet...)
	body = append(body, edPub...)
	sig := ed25519.Sign(edPriv, body)
	body = append(body, sig...)
	return base64.StdEncoding.EncodeToString(body), nil
}

func deriveMessageKey(ratchet []byte) []byte {
	_, mk := stepRatchet(ratchet)
	return mk
}

// messageSubkeys derives the AES and HMAC keys used to protect one
// ratchet-indexed message from its message key.
func messageSubkeys(messageKey []byte) (aesKey, hmacKey []byte) {
	r := hkdf.New(sha256.New, messageKey, nil, []byte("MEGOLM_MESSAGE"))
	out := make([]byte, 64)
	_, _ = r.Read(out)
	return out[:32], out[32:]
}

func sessionIDFromSigningKey(pub ed25519.PublicKey) string {
	h := sha256.Sum256(pub)
	return base64.RawStdEncoding.EncodeToString(h[:])[:22]
}

// --- Pickling ---

type outboundPickleV1 struct {
	ID        string `json:"id"`
	Ratchet   []byte `json:"ratchet"`
	Index     uint32 `json:"index"`
	EdPub     []byte `json:"ed_pub"`
	EdSeed    []byte `json:"ed_seed"`
	CreatedAt int64  `json:"created_at"`
}

// Save produces an opaque encrypted serialization under key.
func (s *OutboundGroupSession) Save(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := outboundPickleV1{
		ID:        s.id,
		Ratchet:   s.ratchet,
		Index:     s.index,
		EdPub:     s.edPub,
		EdSeed:    s.edPriv.Seed(),
		CreatedAt: s.createdAt.Unix(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, e2eeerr.Wrap("OutboundGroupSession.Save", e2eeerr.BadInput, err)
	}
	return pickle.Seal(key, "outbound_group", raw)
}

// RestoreOutbound reconstructs an OutboundGroupSession from a Save blob.
func RestoreOutbound(blob, key []byte) (*OutboundGroupSession, error) {
	raw, err := pickle.Open(key, "outbound_group", blob)
	if err != nil {
		kind, _ := e2eeerr.Of(err)
		return nil, e2eeerr.Wrap("OutboundGroupSession.Restore", kind, err)
	}
	var p outboundPickleV1
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, e2eeerr.Wrap("OutboundGroupSession.Restore", e2eeerr.Corrupted, err)
	}
	if len(p.EdSeed) != ed25519.SeedSize {
		return nil, e2eeerr.New("OutboundGroupSession.Restore", e2eeerr.Corrupted)
	}
	edPriv := ed25519.NewKeyFromSeed(p.EdSeed)
	return &OutboundGroupSession{
		id:        p.ID,
		ratchet:   p.Ratchet,
		index:     p.Index,
		edPub:     edPriv.Public().(ed25519.PublicKey),
		edPriv:    edPriv,
		createdAt: time.Unix(p.CreatedAt, 0),
	}, nil
}
