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

// Package todevice defines the closed tagged-variant type for to-device
// payloads the core cares about: room_key, forwarded_room_key, the
// room-key-request pair, the secret-sharing request/send pair, and the
// SAS verification message kinds. An Event routes on its "type" field;
// a tag this package does not recognize round-trips as opaque JSON
// rather than failing to decode.
package todevice

import (
	"encoding/json"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
)

// Kind is a to-device event's "type" field.
type Kind string

const (
	KindRoomKey          Kind = "m.room_key"
	KindForwardedRoomKey Kind = "m.forwarded_room_key"
	KindKeyRequest       Kind = "m.room_key_request"
	KindSecretRequest    Kind = "m.secret.request"
	KindSecretSend       Kind = "m.secret.send"

	KindVerificationRequest Kind = "m.key.verification.request"
	KindVerificationStart   Kind = "m.key.verification.start"
	KindVerificationAccept  Kind = "m.key.verification.accept"
	KindVerificationKey     Kind = "m.key.verification.key"
	KindVerificationMac     Kind = "m.key.verification.mac"
	KindVerificationCancel  Kind = "m.key.verification.cancel"
	KindVerificationDone    Kind = "m.key.verification.done"
)

// RequestAction is the "action" field shared by m.room_key_request and
// m.secret.request content.
type RequestAction string

const (
	ActionRequest             RequestAction = "request"
	ActionRequestCancellation RequestAction = "request_cancellation"
)

// RoomKeyContent is m.room_key's content: the session_key init_inbound
// needs to install a fresh Inbound Group Session.
type RoomKeyContent struct {
	Algorithm  string `json:"algorithm"`
	RoomID     string `json:"room_id"`
	SessionID  string `json:"session_id"`
	SessionKey string `json:"session_key"`
}

// ForwardedRoomKeyContent is m.forwarded_room_key's content: a
// RoomKeyContent plus the provenance fields a recipient needs to judge
// how far the key has been forwarded from its origin.
type ForwardedRoomKeyContent struct {
	Algorithm                    string   `json:"algorithm"`
	RoomID                       string   `json:"room_id"`
	SessionID                    string   `json:"session_id"`
	SessionKey                   string   `json:"session_key"`
	SenderKey                    string   `json:"sender_key"`
	SenderClaimedEd25519Key      string   `json:"sender_claimed_ed25519_key"`
	ForwardingCurve25519KeyChain []string `json:"forwarding_curve25519_key_chain"`
}

// KeyRequestContent is m.room_key_request's content: a device asking for
// (or cancelling a request for) a room key it is missing. Fields beyond
// RequestID/RequestingDeviceID/Action are only present when Action is
// ActionRequest.
type KeyRequestContent struct {
	Algorithm          string        `json:"algorithm,omitempty"`
	RoomID             string        `json:"room_id,omitempty"`
	SessionID          string        `json:"session_id,omitempty"`
	SenderKey          string        `json:"sender_key,omitempty"`
	RequestID          string        `json:"request_id"`
	RequestingDeviceID string        `json:"requesting_device_id"`
	Action             RequestAction `json:"action"`
}

// SecretRequestContent is m.secret.request's content: a request (or
// cancellation) for a secret-storage secret, e.g. the cross-signing
// private keys or the backup decryption key.
type SecretRequestContent struct {
	Name               string        `json:"name,omitempty"`
	RequestID          string        `json:"request_id"`
	RequestingDeviceID string        `json:"requesting_device_id"`
	Action             RequestAction `json:"action"`
}

// SecretSendContent is m.secret.send's content: the plaintext secret
// sent in answer to an m.secret.request, wrapped in a Pairwise Session
// before it ever reaches the wire.
type SecretSendContent struct {
	RequestID string `json:"request_id"`
	Secret    string `json:"secret"`
}

// VerificationContent is the opaque content of any m.key.verification.*
// kind. The cryptographic stepping for SAS lives in package sas; this
// package only needs to route the envelope, not interpret it.
type VerificationContent map[string]interface{}

// Event is the closed tagged-variant to-device payload. Exactly one of
// the typed fields is non-nil for a recognized Kind; Opaque carries the
// full envelope for any other Kind, recognized or not, so a caller can
// always re-marshal what it received.
type Event struct {
	Kind Kind

	RoomKey          *RoomKeyContent
	ForwardedRoomKey *ForwardedRoomKeyContent
	KeyRequest       *KeyRequestContent
	SecretRequest    *SecretRequestContent
	SecretSend       *SecretSendContent
	Verification     VerificationContent

	Opaque json.RawMessage
}

type envelope struct {
	Type    Kind            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON writes the {"type", "content"} envelope Matrix to-device
// events use on the wire.
func (e Event) MarshalJSON() ([]byte, error) {
	var content interface{}
	switch e.Kind {
	case KindRoomKey:
		content = e.RoomKey
	case KindForwardedRoomKey:
		content = e.ForwardedRoomKey
	case KindKeyRequest:
		content = e.KeyRequest
	case KindSecretRequest:
		content = e.SecretRequest
	case KindSecretSend:
		content = e.SecretSend
	case KindVerificationRequest, KindVerificationStart, KindVerificationAccept,
		KindVerificationKey, KindVerificationMac, KindVerificationCancel, KindVerificationDone:
		content = e.Verification
	default:
		return e.Opaque, nil
	}
	rawContent, err := json.Marshal(content)
	if err != nil {
		return nil, e2eeerr.Wrap("Event.MarshalJSON", e2eeerr.BadInput, err)
	}
	return json.Marshal(envelope{Type: e.Kind, Content: rawContent})
}

// UnmarshalJSON routes on the "type" field. A Kind this package does not
// recognize is preserved verbatim in Opaque rather than rejected.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
	}
	e.Kind = env.Type

	switch env.Type {
	case KindRoomKey:
		var c RoomKeyContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.RoomKey = &c
	case KindForwardedRoomKey:
		var c ForwardedRoomKeyContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.ForwardedRoomKey = &c
	case KindKeyRequest:
		var c KeyRequestContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.KeyRequest = &c
	case KindSecretRequest:
		var c SecretRequestContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.SecretRequest = &c
	case KindSecretSend:
		var c SecretSendContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.SecretSend = &c
	case KindVerificationRequest, KindVerificationStart, KindVerificationAccept,
		KindVerificationKey, KindVerificationMac, KindVerificationCancel, KindVerificationDone:
		var c VerificationContent
		if err := json.Unmarshal(env.Content, &c); err != nil {
			return e2eeerr.Wrap("Event.UnmarshalJSON", e2eeerr.BadMessageFormat, err)
		}
		e.Verification = c
	default:
		e.Opaque = append(json.RawMessage(nil), data...)
	}
	return nil
}
