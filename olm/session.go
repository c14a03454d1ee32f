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

package olm

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/pickle"
)

// PreKeyMessageType and NormalMessageType are the two wire message types
// a Pairwise Session emits, per spec §4.2.
const (
	PreKeyMessageType = 0
	NormalMessageType = 1
)

// maxSkippedKeys bounds how many out-of-order message keys a receiving
// chain will cache before giving up on a gap, preventing a malicious or
// badly lagging peer from forcing unbounded memory growth.
const maxSkippedKeys = 200

// preKeyPayload is the type-0 wire body: the X3DH material the recipient
// needs to derive the session, wrapping the first normal message body.
type preKeyPayload struct {
	IdentityKey string `json:"identity_key"`
	BaseKey     string `json:"base_key"`
	OneTimeKey  string `json:"one_time_key"`
	Message     string `json:"message"`
}

// messageBody is the type-1 wire body: the current sending ratchet
// public key, the chain index, and the AEAD-encrypted ciphertext.
type messageBody struct {
	RatchetKey string `json:"ratchet_key"`
	ChainIndex uint32 `json:"chain_index"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type sendChain struct {
	key   []byte
	index uint32
}

type recvChain struct {
	key   []byte
	index uint32
}

// PairwiseSession is the double-ratchet session of spec §4.2, built over
// an initial X3DH-style triple-DH agreement the same way the teacher's
// session package chains an HKDF seed into a session id (session/session.go),
// generalized here into a full asymmetric-ratchet + symmetric-chain
// construction so forward secrecy and break-in recovery hold per message.
type PairwiseSession struct {
	mu sync.Mutex

	id string

	ourIdentityPub   []byte // our Account's curve25519 public key
	theirIdentityPub []byte
	theirBaseKey     []byte // the EK_A used at establishment, for MatchesInboundFrom

	rootKey []byte

	ourRatchetPriv *ecdh.PrivateKey
	ourRatchetPub  []byte

	theirRatchetPub string // base64, empty until first DH ratchet step lands

	sending   *sendChain
	receiving map[string]*recvChain // keyed by base64 ratchet pub

	skipped map[string][]byte // "ratchetPubB64:index" -> message key

	needsPreKey bool
	theirOTKPub string // base64, only set for outbound sessions, for continued type-0 wrapping
	baseKeyPriv *ecdh.PrivateKey
}

// CreateOutboundSession starts a new Pairwise Session to a peer identified
// by theirIdentityKey, using one of their published one-time keys
// (theirOneTimeKey), per spec §4.2 create_outbound. The one-time key is
// not ours to consume here — it belongs to the peer's account and is
// consumed on their side when they build the matching inbound session.
func (a *Account) CreateOutboundSession(theirIdentityKey, theirOneTimeKey string) (*PairwiseSession, error) {
	theirIDPub, err := decodeCurvePub(theirIdentityKey)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}
	theirOTKPub, err := decodeCurvePub(theirOneTimeKey)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}

	baseKeyPriv, err := ecdh.X25519().GenerateKey(a.entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.InsufficientEntropy, err)
	}

	dh1, err := a.curve25519.ECDH(theirOTKPub) // IK_A x OTK_B
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}
	dh2, err := baseKeyPriv.ECDH(theirIDPub) // EK_A x IK_B
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}
	dh3, err := baseKeyPriv.ECDH(theirOTKPub) // EK_A x OTK_B
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}
	root := deriveRootSecret(dh1, dh2, dh3)

	ratchetPriv, err := ecdh.X25519().GenerateKey(a.entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.InsufficientEntropy, err)
	}
	dhRatchet, err := ratchetPriv.ECDH(theirOTKPub)
	if err != nil {
		return nil, e2eeerr.Wrap("Account.CreateOutboundSession", e2eeerr.BadKey, err)
	}
	newRoot, chainKey := kdfRK(root, dhRatchet)

	s := &PairwiseSession{
		ourIdentityPub:   a.curve25519.PublicKey().Bytes(),
		theirIdentityPub: theirIDPub.Bytes(),
		theirBaseKey:     baseKeyPriv.PublicKey().Bytes(),
		rootKey:          newRoot,
		ourRatchetPriv:   ratchetPriv,
		ourRatchetPub:    ratchetPriv.PublicKey().Bytes(),
		theirRatchetPub:  base64.StdEncoding.EncodeToString(theirOTKPub.Bytes()),
		sending:          &sendChain{key: chainKey},
		receiving:        make(map[string]*recvChain),
		skipped:          make(map[string][]byte),
		needsPreKey:      true,
		theirOTKPub:      theirOneTimeKey,
		baseKeyPriv:      baseKeyPriv,
	}
	s.id = computeSessionID(s.ourIdentityPub, s.theirIdentityPub, s.theirBaseKey, theirOneTimeKey)
	return s, nil
}

// CreateInboundSessionFrom establishes a session from a received type-0
// pre-key message and decrypts it, consuming the one-time (or fallback)
// key it names, per spec §4.2 create_inbound_from.
func (a *Account) CreateInboundSessionFrom(theirIdentityKey string, preKeyMessage []byte) (*PairwiseSession, []byte, error) {
	var payload preKeyPayload
	if err := json.Unmarshal(preKeyMessage, &payload); err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadMessageFormat, err)
	}
	if payload.IdentityKey != theirIdentityKey {
		return nil, nil, e2eeerr.New("Account.CreateInboundSessionFrom", e2eeerr.BadMessageFormat)
	}

	theirIDPub, err := decodeCurvePub(payload.IdentityKey)
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}
	theirBasePub, err := decodeCurvePub(payload.BaseKey)
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}
	otkPubRaw, err := base64.StdEncoding.DecodeString(payload.OneTimeKey)
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}

	otkPriv, _, ok := a.removeOneTimeKeyByPublic(otkPubRaw)
	if !ok {
		return nil, nil, e2eeerr.New("Account.CreateInboundSessionFrom", e2eeerr.BadMessageKeyId)
	}

	dh1, err := otkPriv.ECDH(theirIDPub) // OTK_B x IK_A == IK_A x OTK_B
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}
	dh2, err := a.curve25519.ECDH(theirBasePub) // IK_B x EK_A == EK_A x IK_B
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}
	dh3, err := otkPriv.ECDH(theirBasePub) // OTK_B x EK_A == EK_A x OTK_B
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadKey, err)
	}
	root := deriveRootSecret(dh1, dh2, dh3)

	s := &PairwiseSession{
		ourIdentityPub:   a.curve25519.PublicKey().Bytes(),
		theirIdentityPub: theirIDPub.Bytes(),
		theirBaseKey:     theirBasePub.Bytes(),
		rootKey:          root,
		ourRatchetPriv:   otkPriv, // bootstrap: our first ratchet key is the consumed one-time key
		ourRatchetPub:    otkPriv.PublicKey().Bytes(),
		receiving:        make(map[string]*recvChain),
		skipped:          make(map[string][]byte),
		needsPreKey:      false,
	}
	s.id = computeSessionID(s.theirIdentityPub, s.ourIdentityPub, s.theirBaseKey, payload.OneTimeKey)

	innerMB, err := base64.StdEncoding.DecodeString(payload.Message)
	if err != nil {
		return nil, nil, e2eeerr.Wrap("Account.CreateInboundSessionFrom", e2eeerr.BadMessageFormat, err)
	}
	pt, err := s.decryptNormal(innerMB)
	if err != nil {
		return nil, nil, err
	}
	return s, pt, nil
}

// MatchesInboundFrom reports whether theirOneTimeKey, as embedded in a
// freshly received pre-key message, is still held by this account as an
// unconsumed one-time or fallback key — i.e. whether create_inbound_from
// would still be able to establish a session from it, per spec §4.2.
func (a *Account) MatchesInboundFrom(preKeyMessage []byte) (bool, error) {
	var payload preKeyPayload
	if err := json.Unmarshal(preKeyMessage, &payload); err != nil {
		return false, e2eeerr.Wrap("Account.MatchesInboundFrom", e2eeerr.BadMessageFormat, err)
	}
	otkPubRaw, err := base64.StdEncoding.DecodeString(payload.OneTimeKey)
	if err != nil {
		return false, e2eeerr.Wrap("Account.MatchesInboundFrom", e2eeerr.BadKey, err)
	}
	_, ok := a.lookupOneTimeKeyByPublic(otkPubRaw)
	return ok, nil
}

// MatchesSession reports whether an existing session was established
// from exactly this pre-key message (same peer identity key and base
// key), letting a caller avoid decrypting a re-delivered first message
// as if it were a new conversation.
func (s *PairwiseSession) MatchesSession(theirIdentityKey string, preKeyMessage []byte) bool {
	var payload preKeyPayload
	if err := json.Unmarshal(preKeyMessage, &payload); err != nil {
		return false
	}
	theirIDPub, err := decodeCurvePub(theirIdentityKey)
	if err != nil {
		return false
	}
	theirBasePub, err := decodeCurvePub(payload.BaseKey)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(theirIDPub.Bytes(), s.theirIdentityPub) == 1 &&
		subtle.ConstantTimeCompare(theirBasePub.Bytes(), s.theirBaseKey) == 1
}

// ID returns the session's stable, opaque identifier.
func (s *PairwiseSession) ID() string { return s.id }

// Encrypt produces the next ciphertext in the sending chain, returning
// its wire type (0 while waiting on the peer's acknowledgement, else 1)
// and body.
func (s *PairwiseSession) Encrypt(plaintext []byte) (msgType int, body []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextChainKey, messageKey := kdfCK(s.sending.key)
	index := s.sending.index
	s.sending.key = nextChainKey
	s.sending.index++

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return 0, nil, e2eeerr.Wrap("PairwiseSession.Encrypt", e2eeerr.InsufficientEntropy, err)
	}
	aead, err := chacha20poly1305.New(messageAEADKey(messageKey))
	if err != nil {
		return 0, nil, e2eeerr.Wrap("PairwiseSession.Encrypt", e2eeerr.BadKey, err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)

	mb := messageBody{
		RatchetKey: base64.StdEncoding.EncodeToString(s.ourRatchetPub),
		ChainIndex: index,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}
	rawMB, err := json.Marshal(mb)
	if err != nil {
		return 0, nil, e2eeerr.Wrap("PairwiseSession.Encrypt", e2eeerr.BadInput, err)
	}

	if s.needsPreKey {
		payload := preKeyPayload{
			IdentityKey: base64.StdEncoding.EncodeToString(s.ourIdentityPub),
			BaseKey:     base64.StdEncoding.EncodeToString(s.baseKeyPriv.PublicKey().Bytes()),
			OneTimeKey:  s.theirOTKPub,
			Message:     base64.StdEncoding.EncodeToString(rawMB),
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, e2eeerr.Wrap("PairwiseSession.Encrypt", e2eeerr.BadInput, err)
		}
		return PreKeyMessageType, raw, nil
	}
	return NormalMessageType, rawMB, nil
}

// Decrypt consumes a received ciphertext of the given wire type, advancing
// the ratchet as needed and caching any skipped message keys for
// out-of-order delivery.
func (s *PairwiseSession) Decrypt(msgType int, body []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msgType {
	case PreKeyMessageType:
		var payload preKeyPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, e2eeerr.Wrap("PairwiseSession.Decrypt", e2eeerr.BadMessageFormat, err)
		}
		innerMB, err := base64.StdEncoding.DecodeString(payload.Message)
		if err != nil {
			return nil, e2eeerr.Wrap("PairwiseSession.Decrypt", e2eeerr.BadMessageFormat, err)
		}
		pt, err := s.decryptNormal(innerMB)
		if err != nil {
			return nil, err
		}
		s.needsPreKey = false
		return pt, nil
	case NormalMessageType:
		pt, err := s.decryptNormal(body)
		if err != nil {
			return nil, err
		}
		s.needsPreKey = false
		return pt, nil
	default:
		return nil, e2eeerr.New("PairwiseSession.Decrypt", e2eeerr.UnsupportedAlgorithm)
	}
}

// decryptNormal handles a type-1 body (or the inner message of a type-0
// payload), performing a DH ratchet step if the peer has advanced to a
// new ratchet key.
func (s *PairwiseSession) decryptNormal(rawMB []byte) ([]byte, error) {
	var mb messageBody
	if err := json.Unmarshal(rawMB, &mb); err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.decryptNormal", e2eeerr.BadMessageFormat, err)
	}

	if mb.RatchetKey != s.theirRatchetPub {
		if err := s.ratchetStep(mb.RatchetKey); err != nil {
			return nil, err
		}
	}

	messageKey, err := s.advanceReceivingTo(mb.RatchetKey, mb.ChainIndex)
	if err != nil {
		return nil, err
	}

	nonce, err := base64.StdEncoding.DecodeString(mb.Nonce)
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.decryptNormal", e2eeerr.BadMessageFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(mb.Ciphertext)
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.decryptNormal", e2eeerr.BadMessageFormat, err)
	}
	aead, err := chacha20poly1305.New(messageAEADKey(messageKey))
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.decryptNormal", e2eeerr.BadKey, err)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.decryptNormal", e2eeerr.BadMessageMac, err)
	}
	return pt, nil
}

// ratchetStep performs one Diffie-Hellman ratchet: the peer has started
// sending from a new ratchet public key, so the root chain advances twice
// (once to open the new receiving chain, once to open our next sending
// chain) and we generate a fresh ratchet keypair of our own.
func (s *PairwiseSession) ratchetStep(theirNewRatchetPubB64 string) error {
	theirNewPub, err := decodeCurvePub(theirNewRatchetPubB64)
	if err != nil {
		return e2eeerr.Wrap("PairwiseSession.ratchetStep", e2eeerr.BadKey, err)
	}

	dh, err := s.ourRatchetPriv.ECDH(theirNewPub)
	if err != nil {
		return e2eeerr.Wrap("PairwiseSession.ratchetStep", e2eeerr.BadKey, err)
	}
	newRoot, recvChainKey := kdfRK(s.rootKey, dh)

	s.theirRatchetPub = theirNewRatchetPubB64
	s.receiving[theirNewRatchetPubB64] = &recvChain{key: recvChainKey}

	newOurPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return e2eeerr.Wrap("PairwiseSession.ratchetStep", e2eeerr.InsufficientEntropy, err)
	}
	dh2, err := newOurPriv.ECDH(theirNewPub)
	if err != nil {
		return e2eeerr.Wrap("PairwiseSession.ratchetStep", e2eeerr.BadKey, err)
	}
	newRoot2, sendChainKey := kdfRK(newRoot, dh2)

	s.rootKey = newRoot2
	s.ourRatchetPriv = newOurPriv
	s.ourRatchetPub = newOurPriv.PublicKey().Bytes()
	s.sending = &sendChain{key: sendChainKey}
	return nil
}

// advanceReceivingTo returns the message key for chain index target on
// the named receiving chain, deriving and caching skipped keys for any
// indices between the chain's current position and target.
func (s *PairwiseSession) advanceReceivingTo(ratchetPubB64 string, target uint32) ([]byte, error) {
	skipKey := fmt.Sprintf("%s:%d", ratchetPubB64, target)
	if mk, ok := s.skipped[skipKey]; ok {
		delete(s.skipped, skipKey)
		return mk, nil
	}

	chain, ok := s.receiving[ratchetPubB64]
	if !ok {
		return nil, e2eeerr.New("PairwiseSession.advanceReceivingTo", e2eeerr.UnknownMessageIndex)
	}
	if target < chain.index {
		return nil, e2eeerr.New("PairwiseSession.advanceReceivingTo", e2eeerr.UnknownMessageIndex)
	}
	if target-chain.index > maxSkippedKeys {
		return nil, e2eeerr.New("PairwiseSession.advanceReceivingTo", e2eeerr.UnknownMessageIndex)
	}

	var messageKey []byte
	for chain.index <= target {
		nextKey, mk := kdfCK(chain.key)
		if chain.index == target {
			messageKey = mk
		} else {
			s.skipped[fmt.Sprintf("%s:%d", ratchetPubB64, chain.index)] = mk
		}
		chain.key = nextKey
		chain.index++
	}
	return messageKey, nil
}

// --- Pickling ---

type sessionPickleV1 struct {
	ID               string            `json:"id"`
	OurIdentityPub   []byte            `json:"our_identity_pub"`
	TheirIdentityPub []byte            `json:"their_identity_pub"`
	TheirBaseKey     []byte            `json:"their_base_key"`
	RootKey          []byte            `json:"root_key"`
	OurRatchetPriv   []byte            `json:"our_ratchet_priv"`
	TheirRatchetPub  string            `json:"their_ratchet_pub"`
	Sending          *sendChain        `json:"sending"`
	Receiving        map[string][]byte `json:"receiving_keys"`
	ReceivingIndex   map[string]uint32 `json:"receiving_index"`
	Skipped          map[string][]byte `json:"skipped"`
	NeedsPreKey      bool              `json:"needs_prekey"`
	TheirOTKPub      string            `json:"their_otk_pub,omitempty"`
	BaseKeyPriv      []byte            `json:"base_key_priv,omitempty"`
}

// Save produces an opaque encrypted serialization of the session under key.
func (s *PairwiseSession) Save(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := sessionPickleV1{
		ID:               s.id,
		OurIdentityPub:   s.ourIdentityPub,
		TheirIdentityPub: s.theirIdentityPub,
		TheirBaseKey:     s.theirBaseKey,
		RootKey:          s.rootKey,
		OurRatchetPriv:   s.ourRatchetPriv.Bytes(),
		TheirRatchetPub:  s.theirRatchetPub,
		Sending:          s.sending,
		Receiving:        make(map[string][]byte),
		ReceivingIndex:   make(map[string]uint32),
		Skipped:          s.skipped,
		NeedsPreKey:      s.needsPreKey,
		TheirOTKPub:      s.theirOTKPub,
	}
	for k, v := range s.receiving {
		p.Receiving[k] = v.key
		p.ReceivingIndex[k] = v.index
	}
	if s.baseKeyPriv != nil {
		p.BaseKeyPriv = s.baseKeyPriv.Bytes()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.Save", e2eeerr.BadInput, err)
	}
	return pickle.Seal(key, "session", raw)
}

// RestoreSession reconstructs a PairwiseSession from a blob produced by Save.
func RestoreSession(blob, key []byte) (*PairwiseSession, error) {
	raw, err := pickle.Open(key, "session", blob)
	if err != nil {
		kind, _ := e2eeerr.Of(err)
		return nil, e2eeerr.Wrap("PairwiseSession.Restore", kind, err)
	}
	var p sessionPickleV1
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.Restore", e2eeerr.Corrupted, err)
	}

	ratchetPriv, err := ecdh.X25519().NewPrivateKey(p.OurRatchetPriv)
	if err != nil {
		return nil, e2eeerr.Wrap("PairwiseSession.Restore", e2eeerr.Corrupted, err)
	}

	s := &PairwiseSession{
		id:               p.ID,
		ourIdentityPub:   p.OurIdentityPub,
		theirIdentityPub: p.TheirIdentityPub,
		theirBaseKey:     p.TheirBaseKey,
		rootKey:          p.RootKey,
		ourRatchetPriv:   ratchetPriv,
		ourRatchetPub:    ratchetPriv.PublicKey().Bytes(),
		theirRatchetPub:  p.TheirRatchetPub,
		sending:          p.Sending,
		receiving:        make(map[string]*recvChain),
		skipped:          p.Skipped,
		needsPreKey:      p.NeedsPreKey,
		theirOTKPub:      p.TheirOTKPub,
	}
	if s.skipped == nil {
		s.skipped = make(map[string][]byte)
	}
	for k, key := range p.Receiving {
		s.receiving[k] = &recvChain{key: key, index: p.ReceivingIndex[k]}
	}
	if len(p.BaseKeyPriv) > 0 {
		bkPriv, err := ecdh.X25519().NewPrivateKey(p.BaseKeyPriv)
		if err != nil {
			return nil, e2eeerr.Wrap("PairwiseSession.Restore", e2eeerr.Corrupted, err)
		}
		s.baseKeyPriv = bkPriv
	}
	return s, nil
}

func decodeCurvePub(b64 string) (*ecdh.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return ecdh.X25519().NewPublicKey(raw)
}

func computeSessionID(a, b, baseKey []byte, otkID string) string {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	h.Write(baseKey)
	h.Write([]byte(otkID))
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))[:22]
}
