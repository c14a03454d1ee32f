package todevice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomKeyEventRoundTrip(t *testing.T) {
	e := Event{
		Kind: KindRoomKey,
		RoomKey: &RoomKeyContent{
			Algorithm:  "m.megolm.v1.aes-sha2",
			RoomID:     "!room:example.org",
			SessionID:  "sess1",
			SessionKey: "c2Vzc2lvbmtleQ==",
		},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))

	require.NotNil(t, got.RoomKey)
	assert.Equal(t, KindRoomKey, got.Kind)
	assert.Equal(t, *e.RoomKey, *got.RoomKey)
	assert.Nil(t, got.Opaque)
}

func TestForwardedRoomKeyEventRoundTrip(t *testing.T) {
	e := Event{
		Kind: KindForwardedRoomKey,
		ForwardedRoomKey: &ForwardedRoomKeyContent{
			Algorithm:                    "m.megolm.v1.aes-sha2",
			RoomID:                       "!room:example.org",
			SessionID:                    "sess1",
			SessionKey:                   "c2Vzc2lvbmtleQ==",
			SenderKey:                    "c2VuZGVya2V5",
			SenderClaimedEd25519Key:      "Y2xhaW1lZGtleQ==",
			ForwardingCurve25519KeyChain: []string{"aGop", "b3A="},
		},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))

	require.NotNil(t, got.ForwardedRoomKey)
	assert.Equal(t, *e.ForwardedRoomKey, *got.ForwardedRoomKey)
}

func TestKeyRequestEventRoundTrip(t *testing.T) {
	e := Event{
		Kind: KindKeyRequest,
		KeyRequest: &KeyRequestContent{
			Algorithm:          "m.megolm.v1.aes-sha2",
			RoomID:             "!room:example.org",
			SessionID:          "sess1",
			SenderKey:          "c2VuZGVya2V5",
			RequestID:          "req1",
			RequestingDeviceID: "DEVICE1",
			Action:             ActionRequest,
		},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))

	require.NotNil(t, got.KeyRequest)
	assert.Equal(t, *e.KeyRequest, *got.KeyRequest)
}

func TestKeyRequestCancellationOmitsOptionalFields(t *testing.T) {
	e := Event{
		Kind: KindKeyRequest,
		KeyRequest: &KeyRequestContent{
			RequestID:          "req1",
			RequestingDeviceID: "DEVICE1",
			Action:             ActionRequestCancellation,
		},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "room_id")

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ActionRequestCancellation, got.KeyRequest.Action)
}

func TestSecretRequestAndSecretSendRoundTrip(t *testing.T) {
	req := Event{
		Kind: KindSecretRequest,
		SecretRequest: &SecretRequestContent{
			Name:               "m.megolm_backup.v1",
			RequestID:          "req2",
			RequestingDeviceID: "DEVICE2",
			Action:             ActionRequest,
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var gotReq Event
	require.NoError(t, json.Unmarshal(raw, &gotReq))
	assert.Equal(t, *req.SecretRequest, *gotReq.SecretRequest)

	send := Event{
		Kind: KindSecretSend,
		SecretSend: &SecretSendContent{
			RequestID: "req2",
			Secret:    "c2VjcmV0",
		},
	}
	raw, err = json.Marshal(send)
	require.NoError(t, err)
	var gotSend Event
	require.NoError(t, json.Unmarshal(raw, &gotSend))
	assert.Equal(t, *send.SecretSend, *gotSend.SecretSend)
}

func TestVerificationEventRoundTrip(t *testing.T) {
	e := Event{
		Kind: KindVerificationStart,
		Verification: VerificationContent{
			"from_device": "DEVICE1",
			"method":      "m.sas.v1",
			"transaction_id": "tx1",
		},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))

	require.NotNil(t, got.Verification)
	assert.Equal(t, "DEVICE1", got.Verification["from_device"])
	assert.Equal(t, "m.sas.v1", got.Verification["method"])
}

func TestUnknownKindRoundTripsAsOpaque(t *testing.T) {
	raw := []byte(`{"type":"m.some.unknown.kind","content":{"foo":"bar"}}`)

	var e Event
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, Kind("m.some.unknown.kind"), e.Kind)
	assert.Nil(t, e.RoomKey)
	require.NotNil(t, e.Opaque)

	remarshaled, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(remarshaled))
}
