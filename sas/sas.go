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

// Package sas implements Short Authentication String device verification
// (spec §4.7): an ephemeral Curve25519 key agreement, followed by an
// HKDF-SHA-256-derived byte stream rendered as either decimal numbers or
// emoji indices for humans to compare out of band, and an HMAC-SHA-256
// MAC exchange to finish verification once the SAS matches.
package sas

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// Method is the only verification method this package implements.
const Method = "sas.v1"

// CancellationReason is the finite set of reasons a verification flow may
// be cancelled, per spec §4.7.
type CancellationReason string

const (
	ReasonUser                 CancellationReason = "user"
	ReasonTimeout              CancellationReason = "timeout"
	ReasonMismatchedSAS        CancellationReason = "mismatched_sas"
	ReasonMismatchedCommitment CancellationReason = "mismatched_commitment"
	ReasonKeyMismatch          CancellationReason = "key_mismatch"
	ReasonUserMismatch         CancellationReason = "user_mismatch"
	ReasonInvalidMessage       CancellationReason = "invalid_message"
	ReasonAccepted             CancellationReason = "accepted"
	ReasonUnknownMethod        CancellationReason = "unknown_method"
)

// StartMessage is the protocol surface Party A advertises, per spec
// §4.7 step 1.
type StartMessage struct {
	Method                     string   `json:"method"`
	FromDevice                 string   `json:"from_device"`
	TransactionID              string   `json:"transaction_id"`
	KeyAgreementProtocols      []string `json:"key_agreement_protocols"`
	Hashes                     []string `json:"hashes"`
	MessageAuthenticationCodes []string `json:"message_authentication_codes"`
	ShortAuthenticationString  []string `json:"short_authentication_string"`
}

// DefaultStartMessage builds the start message with the one supported
// algorithm set spec §4.7 names.
func DefaultStartMessage(fromDevice, transactionID string) StartMessage {
	return StartMessage{
		Method:                     Method,
		FromDevice:                 fromDevice,
		TransactionID:              transactionID,
		KeyAgreementProtocols:      []string{"curve25519-hkdf-sha256", "curve25519"},
		Hashes:                     []string{"sha256"},
		MessageAuthenticationCodes: []string{"hkdf-hmac-sha256"},
		ShortAuthenticationString:  []string{"decimal", "emoji"},
	}
}

// AcceptMessage is Party B's reply, choosing one algorithm from each of
// the start message's supported sets and carrying the commitment.
type AcceptMessage struct {
	Method                    string `json:"method"`
	KeyAgreementProtocol      string `json:"key_agreement_protocol"`
	Hash                      string `json:"hash"`
	MessageAuthenticationCode string `json:"message_authentication_code"`
	ShortAuthenticationString string `json:"short_authentication_string,omitempty"`
	Commitment                string `json:"commitment"`
}

// Party holds one side's ephemeral verification key pair and identity.
type Party struct {
	UserID   string
	DeviceID string

	priv *ecdh.PrivateKey
}

// NewParty allocates a fresh ephemeral Curve25519 key pair for userID/deviceID.
func NewParty(userID, deviceID string, entropy primitives.EntropySource) (*Party, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	priv, err := ecdh.X25519().GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("sas.NewParty", e2eeerr.InsufficientEntropy, err)
	}
	return &Party{UserID: userID, DeviceID: deviceID, priv: priv}, nil
}

// PublicKeyBase64 returns this party's ephemeral public key, as carried
// on the wire.
func (p *Party) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(p.priv.PublicKey().Bytes())
}

// Commit computes A's commitment over its own ephemeral public key and
// the canonical JSON of the start message, per spec §4.7 step 1.
func (p *Party) Commit(start StartMessage) (string, error) {
	body, err := primitives.CanonicalJSON(start)
	if err != nil {
		return "", e2eeerr.Wrap("sas.Commit", e2eeerr.BadInput, err)
	}
	h := sha256.New()
	h.Write(p.priv.PublicKey().Bytes())
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifyCommitment recomputes A's commitment given A's now-known public
// key and the start message, for B to check against the accept message
// it sent (or, symmetrically, for A to confirm B echoed it correctly).
func VerifyCommitment(aPubBase64 string, start StartMessage, commitment string) (bool, error) {
	aPub, err := base64.StdEncoding.DecodeString(aPubBase64)
	if err != nil {
		return false, e2eeerr.Wrap("sas.VerifyCommitment", e2eeerr.BadMessageFormat, err)
	}
	body, err := primitives.CanonicalJSON(start)
	if err != nil {
		return false, e2eeerr.Wrap("sas.VerifyCommitment", e2eeerr.BadInput, err)
	}
	h := sha256.New()
	h.Write(aPub)
	h.Write(body)
	want, err := base64.StdEncoding.DecodeString(commitment)
	if err != nil {
		return false, e2eeerr.Wrap("sas.VerifyCommitment", e2eeerr.BadMessageFormat, err)
	}
	return subtle.ConstantTimeCompare(h.Sum(nil), want) == 1, nil
}

// Session holds the shared secret and naming context both parties need
// once ephemeral keys have been exchanged, via SetTheirKey.
type Session struct {
	self *Party

	aUser, aDevice, aKey string
	bUser, bDevice, bKey string
	transactionID        string

	shared []byte
}

// SetTheirKey derives the shared secret and builds the canonical
// (A, B) naming context the rest of this package's derivations use.
// isInitiator indicates whether self played party A (the one who sent
// the start message) in this exchange.
func (p *Party) SetTheirKey(theirPubBase64, theirUserID, theirDeviceID, transactionID string, isInitiator bool) (*Session, error) {
	theirPubRaw, err := base64.StdEncoding.DecodeString(theirPubBase64)
	if err != nil {
		return nil, e2eeerr.Wrap("sas.SetTheirKey", e2eeerr.BadMessageFormat, err)
	}
	theirPub, err := ecdh.X25519().NewPublicKey(theirPubRaw)
	if err != nil {
		return nil, e2eeerr.Wrap("sas.SetTheirKey", e2eeerr.BadKey, err)
	}
	shared, err := p.priv.ECDH(theirPub)
	if err != nil {
		return nil, e2eeerr.Wrap("sas.SetTheirKey", e2eeerr.BadKey, err)
	}

	s := &Session{self: p, shared: shared, transactionID: transactionID}
	if isInitiator {
		s.aUser, s.aDevice, s.aKey = p.UserID, p.DeviceID, p.PublicKeyBase64()
		s.bUser, s.bDevice, s.bKey = theirUserID, theirDeviceID, theirPubBase64
	} else {
		s.aUser, s.aDevice, s.aKey = theirUserID, theirDeviceID, theirPubBase64
		s.bUser, s.bDevice, s.bKey = p.UserID, p.DeviceID, p.PublicKeyBase64()
	}
	return s, nil
}

// sasInfo builds the HKDF info string of spec §4.7 step 4.
func (s *Session) sasInfo() string {
	return fmt.Sprintf(
		"MATRIX_KEY_VERIFICATION_SAS|%s|%s|%s|%s|%s|%s|%s",
		s.aUser, s.aDevice, s.aKey, s.bUser, s.bDevice, s.bKey, s.transactionID,
	)
}

// macInfo builds the HKDF info string that derives the MAC key, per spec
// §4.7 step 7 ("…|MAC" reuses the same A/B ordering context with a
// distinct trailing label so a SAS-byte reader and a MAC-key reader
// never collide on the same HKDF output).
func (s *Session) macInfo() string {
	return fmt.Sprintf(
		"MATRIX_KEY_VERIFICATION_MAC|%s|%s|%s|%s|%s|%s|%s",
		s.aUser, s.aDevice, s.aKey, s.bUser, s.bDevice, s.bKey, s.transactionID,
	)
}

// sasBytes reads n bytes from the HKDF-SHA-256(shared, info=sasInfo())
// stream. Decimal needs 5, emoji needs 6; both read from the same
// logical stream so their leading bytes always agree.
func (s *Session) sasBytes(n int) ([]byte, error) {
	r := hkdf.New(sha256.New, s.shared, nil, []byte(s.sasInfo()))
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil {
		return nil, e2eeerr.Wrap("sas.sasBytes", e2eeerr.BadKey, err)
	}
	return out, nil
}

// Decimal computes the three 13-bit-plus-1000 decimal codes of spec
// §4.7 step 5.
func (s *Session) Decimal() (n0, n1, n2 int, err error) {
	b, err := s.sasBytes(5)
	if err != nil {
		return 0, 0, 0, err
	}
	n0 = (int(b[0])<<5 | int(b[1])>>3) + 1000
	n1 = ((int(b[1])&0x07)<<10 | int(b[2])<<2 | int(b[3])>>6) + 1000
	n2 = ((int(b[3])&0x3F)<<7 | int(b[4])>>1) + 1000
	return n0, n1, n2, nil
}

// Emoji computes the seven 6-bit emoji indices of spec §4.7 step 6.
func (s *Session) Emoji() ([7]int, error) {
	var out [7]int
	b, err := s.sasBytes(6)
	if err != nil {
		return out, err
	}
	out[0] = int(b[0] >> 2)
	out[1] = int((b[0]<<4 | b[1]>>4) & 0x3F)
	out[2] = int((b[1]<<2 | b[2]>>6) & 0x3F)
	out[3] = int(b[2] & 0x3F)
	out[4] = int(b[3] >> 2)
	out[5] = int((b[3]<<4 | b[4]>>4) & 0x3F)
	out[6] = int((b[4]<<2 | b[5]>>6) & 0x3F)
	return out, nil
}

// macKey derives the HMAC key for the MAC exchange of spec §4.7 step 7.
func (s *Session) macKey() ([]byte, error) {
	r := hkdf.New(sha256.New, s.shared, nil, []byte(s.macInfo()))
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return nil, e2eeerr.Wrap("sas.macKey", e2eeerr.BadKey, err)
	}
	return key, nil
}

// ComputeMAC computes one party's MAC, per spec §4.7 step 7: an
// HMAC-SHA-256 under the derived MAC key over this party's public key
// identifier/value plus a sorted, comma-joined list of all key IDs being
// verified in this flow.
func (s *Session) ComputeMAC(ownKeyID, ownKeyValue string, allKeyIDs []string) (string, error) {
	key, err := s.macKey()
	if err != nil {
		return "", err
	}
	input := macInput(ownKeyID, ownKeyValue, allKeyIDs)
	mac := hmac.New(sha256.New, key)
	mac.Write(input)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifyMAC checks a received MAC against the same derivation.
func (s *Session) VerifyMAC(ownKeyID, ownKeyValue string, allKeyIDs []string, mac string) (bool, error) {
	want, err := s.ComputeMAC(ownKeyID, ownKeyValue, allKeyIDs)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(mac)) == 1, nil
}

func macInput(keyID, keyValue string, allKeyIDs []string) []byte {
	sorted := append([]string(nil), allKeyIDs...)
	sort.Strings(sorted)
	return []byte(keyValue + "," + keyID + "," + strings.Join(sorted, ","))
}
