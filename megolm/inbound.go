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
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/pickle"
)

// maxSkippedGroupKeys bounds how many already-advanced-past message keys
// an Inbound Group Session caches to support out-of-order decryption
// within the range it has already reached.
const maxSkippedGroupKeys = 2000

// InboundGroupSession is the receiving half of spec §4.4. Its ratchet
// only ever moves forward; decrypting an index below the ratchet's
// current position requires that index's message key to have been
// cached on a previous advance.
type InboundGroupSession struct {
	mu sync.Mutex

	id string

	ratchet         []byte
	currentIndex    uint32
	firstKnownIndex uint32

	edPub ed25519.PublicKey

	skipped map[uint32][]byte
}

const sessionKeyHeaderLen = 1 + 4 + ratchetSize + ed25519.PublicKeySize

// InitInbound builds an Inbound Group Session from a session_key freshly
// distributed in a to-device room_key event, per spec §4.4 init_inbound.
// This form is self-signed by the originating Outbound Group Session's
// signing key, since the creator (and only the creator) holds that
// private key at the moment it first shares the session.
func InitInbound(sessionKey string) (*InboundGroupSession, error) {
	raw, err := base64.StdEncoding.DecodeString(sessionKey)
	if err != nil {
		return nil, e2eeerr.Wrap("InitInbound", e2eeerr.BadMessageFormat, err)
	}
	if len(raw) != sessionKeyHeaderLen+ed25519.SignatureSize {
		return nil, e2eeerr.New("InitInbound", e2eeerr.BadMessageFormat)
	}
	body, sig := raw[:sessionKeyHeaderLen], raw[sessionKeyHeaderLen:]
	index, ratchet, edPub, err := parseSessionKeyHeader(body)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(edPub, body, sig) {
		return nil, e2eeerr.New("InitInbound", e2eeerr.BadSignature)
	}
	return &InboundGroupSession{
		id:              sessionIDFromSigningKey(edPub),
		ratchet:         ratchet,
		currentIndex:    index,
		firstKnownIndex: index,
		edPub:           edPub,
		skipped:         make(map[uint32][]byte),
	}, nil
}

// ImportInbound builds an Inbound Group Session from an exported or
// forwarded session_key, which may carry a non-zero first-known-index,
// per spec §4.4 import_inbound. The forwarder never holds the original
// signing private key, so this form carries no signature: trust comes
// from the channel that delivered it (an Olm-encrypted to-device
// message, or a password-protected exported session file), not from a
// self-signature on the blob itself.
func ImportInbound(sessionKey string) (*InboundGroupSession, error) {
	raw, err := base64.StdEncoding.DecodeString(sessionKey)
	if err != nil {
		return nil, e2eeerr.Wrap("ImportInbound", e2eeerr.BadMessageFormat, err)
	}
	if len(raw) != sessionKeyHeaderLen {
		return nil, e2eeerr.New("ImportInbound", e2eeerr.BadMessageFormat)
	}
	index, ratchet, edPub, err := parseSessionKeyHeader(raw)
	if err != nil {
		return nil, err
	}
	return &InboundGroupSession{
		id:              sessionIDFromSigningKey(edPub),
		ratchet:         ratchet,
		currentIndex:    index,
		firstKnownIndex: index,
		edPub:           edPub,
		skipped:         make(map[uint32][]byte),
	}, nil
}

func parseSessionKeyHeader(body []byte) (index uint32, ratchet []byte, edPub ed25519.PublicKey, err error) {
	if len(body) != sessionKeyHeaderLen {
		return 0, nil, nil, e2eeerr.New("parseSessionKeyHeader", e2eeerr.BadMessageFormat)
	}
	if body[0] != sessionKeyVersion {
		return 0, nil, nil, e2eeerr.New("parseSessionKeyHeader", e2eeerr.UnsupportedAlgorithm)
	}
	index = binary.BigEndian.Uint32(body[1:5])
	ratchet = append([]byte(nil), body[5:5+ratchetSize]...)
	edPub = ed25519.PublicKey(append([]byte(nil), body[5+ratchetSize:5+ratchetSize+ed25519.PublicKeySize]...))
	return index, ratchet, edPub, nil
}

// ID returns the session's stable opaque identifier.
func (s *InboundGroupSession) ID() string { return s.id }

// FirstKnownIndex returns the earliest message index this session can
// decrypt.
func (s *InboundGroupSession) FirstKnownIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstKnownIndex
}

// CurrentIndex returns the next index the ratchet has not yet reached.
func (s *InboundGroupSession) CurrentIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// Decrypt verifies and decrypts a GroupMessage, returning the plaintext
// and the message index it was encrypted at, per spec §4.4 decrypt.
func (s *InboundGroupSession) Decrypt(body []byte) (plaintext []byte, index uint32, err error) {
	var gm GroupMessage
	if err := json.Unmarshal(body, &gm); err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageFormat, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gm.MessageIndex < s.firstKnownIndex {
		return nil, 0, e2eeerr.New("InboundGroupSession.Decrypt", e2eeerr.UnknownMessageIndex)
	}

	messageKey, err := s.messageKeyFor(gm.MessageIndex)
	if err != nil {
		return nil, 0, err
	}

	iv, err := base64.StdEncoding.DecodeString(gm.IV)
	if err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(gm.Ciphertext)
	if err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageFormat, err)
	}
	macBytes, err := base64.StdEncoding.DecodeString(gm.MAC)
	if err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageFormat, err)
	}
	sig, err := base64.StdEncoding.DecodeString(gm.Signature)
	if err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageFormat, err)
	}

	aesKey, hmacKey := messageSubkeys(messageKey)

	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], gm.MessageIndex)
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(idxBytes[:])
	mac.Write(iv)
	mac.Write(ct)
	expectedMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(expectedMAC, macBytes) != 1 {
		return nil, 0, e2eeerr.New("InboundGroupSession.Decrypt", e2eeerr.BadMessageMac)
	}

	signed := append(append(append(append([]byte{}, idxBytes[:]...), iv...), ct...), expectedMAC...)
	if !ed25519.Verify(s.edPub, signed, sig) {
		return nil, 0, e2eeerr.New("InboundGroupSession.Decrypt", e2eeerr.BadSignature)
	}

	pt, err := decryptCTR(aesKey, iv, ct)
	if err != nil {
		return nil, 0, e2eeerr.Wrap("InboundGroupSession.Decrypt", e2eeerr.BadMessageMac, err)
	}
	return pt, gm.MessageIndex, nil
}

// messageKeyFor returns the message key for target, advancing and
// caching skipped keys as needed. Caller holds s.mu.
func (s *InboundGroupSession) messageKeyFor(target uint32) ([]byte, error) {
	if mk, ok := s.skipped[target]; ok {
		delete(s.skipped, target)
		return mk, nil
	}
	if target < s.currentIndex {
		return nil, e2eeerr.New("InboundGroupSession.messageKeyFor", e2eeerr.UnknownMessageIndex)
	}
	if target-s.currentIndex > maxSkippedGroupKeys {
		return nil, e2eeerr.New("InboundGroupSession.messageKeyFor", e2eeerr.UnknownMessageIndex)
	}

	var messageKey []byte
	for s.currentIndex <= target {
		next, mk := stepRatchet(s.ratchet)
		if s.currentIndex == target {
			messageKey = mk
		} else {
			s.skipped[s.currentIndex] = mk
			if len(s.skipped) > maxSkippedGroupKeys {
				// Drop an arbitrary entry to respect the cap; the peer can
				// resend or the caller can request a backup/forwarded key.
				for k := range s.skipped {
					delete(s.skipped, k)
					break
				}
			}
		}
		s.ratchet = next
		s.currentIndex++
	}
	return messageKey, nil
}

// ExportAt produces a session_key usable by ImportInbound, advanced to
// index (spec §4.4 export_at). Passing the session's current index
// exports the ratchet at its current position, and a later index is
// reached by advancing a copy of the ratchet. An index below the current
// index is refused with UnknownMessageIndex, even when it is at or above
// the first-known-index: only the current ratchet value is kept.
func (s *InboundGroupSession) ExportAt(index uint32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < s.firstKnownIndex {
		return "", e2eeerr.New("InboundGroupSession.ExportAt", e2eeerr.UnknownMessageIndex)
	}
	ratchet := s.ratchet
	if index > s.currentIndex {
		ratchet = advanceTo(s.ratchet, s.currentIndex, index)
	} else if index < s.currentIndex {
		// The one-way ratchet cannot move backward; only a value we have
		// already cached on the way forward can serve an earlier index.
		return "", e2eeerr.New("InboundGroupSession.ExportAt", e2eeerr.UnknownMessageIndex)
	}
	return encodeExportedRatchet(index, ratchet, s.edPub)
}

// encodeExportedRatchet builds an unsigned session_key body: export_at
// has no private signing key to sign with (only the session's public
// verification key is known to an inbound session), so the exported
// form is the same serialization without a trailing signature — the
// recipient verifies authenticity via the room_key to-device channel's
// own transport, not via this encoding.
func encodeExportedRatchet(index uint32, ratchet []byte, edPub ed25519.PublicKey) (string, error) {
	body := make([]byte, 0, 1+4+ratchetSize+ed25519.PublicKeySize)
	body = append(body, sessionKeyVersion)
	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], index)
	body = append(body, idxBytes[:]...)
	body = append(body, ratchet...)
	body = append(body, edPub...)
	return base64.StdEncoding.EncodeToString(body), nil
}

// decryptCTR decrypts ciphertext with no further authentication: the
// caller has already verified the HMAC (which, unlike
// primitives.OpenCTRHMAC's, covers the message index as well as the
// ciphertext) before reaching this point.
func decryptCTR(aesKey, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, iv)
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// --- Pickling ---

type inboundPickleV1 struct {
	ID              string           `json:"id"`
	Ratchet         []byte           `json:"ratchet"`
	CurrentIndex    uint32           `json:"current_index"`
	FirstKnownIndex uint32           `json:"first_known_index"`
	EdPub           []byte           `json:"ed_pub"`
	Skipped         map[uint32][]byte `json:"skipped,omitempty"`
}

// Save produces an opaque encrypted serialization under key.
func (s *InboundGroupSession) Save(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := inboundPickleV1{
		ID:              s.id,
		Ratchet:         s.ratchet,
		CurrentIndex:    s.currentIndex,
		FirstKnownIndex: s.firstKnownIndex,
		EdPub:           s.edPub,
		Skipped:         s.skipped,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, e2eeerr.Wrap("InboundGroupSession.Save", e2eeerr.BadInput, err)
	}
	return pickle.Seal(key, "inbound_group", raw)
}

// RestoreInbound reconstructs an InboundGroupSession from a Save blob.
func RestoreInbound(blob, key []byte) (*InboundGroupSession, error) {
	raw, err := pickle.Open(key, "inbound_group", blob)
	if err != nil {
		kind, _ := e2eeerr.Of(err)
		return nil, e2eeerr.Wrap("InboundGroupSession.Restore", kind, err)
	}
	var p inboundPickleV1
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, e2eeerr.Wrap("InboundGroupSession.Restore", e2eeerr.Corrupted, err)
	}
	skipped := p.Skipped
	if skipped == nil {
		skipped = make(map[uint32][]byte)
	}
	return &InboundGroupSession{
		id:              p.ID,
		ratchet:         p.Ratchet,
		currentIndex:    p.CurrentIndex,
		firstKnownIndex: p.FirstKnownIndex,
		edPub:           ed25519.PublicKey(p.EdPub),
		skipped:         skipped,
	}, nil
}
