package olm

import (
	"crypto/ecdh"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	a, err := CreateNew(primitives.SystemEntropy)
	require.NoError(t, err)
	return a
}

func firstOneTimeKey(t *testing.T, a *Account) string {
	t.Helper()
	n, err := a.GenerateOneTimeKeys(1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	for _, pub := range a.OneTimeKeys() {
		return pub
	}
	t.Fatal("no one-time key generated")
	return ""
}

// establishSessions runs create_outbound on alice and create_inbound_from
// on bob against alice's first pre-key message, then has bob reply so
// both sides leave pre-key mode, per spec §4.2.
func establishSessions(t *testing.T) (alice, bob *Account, aliceSess, bobSess *PairwiseSession) {
	t.Helper()
	alice = newTestAccount(t)
	bob = newTestAccount(t)

	bobOTK := firstOneTimeKey(t, bob)

	aliceSess, err := alice.CreateOutboundSession(bob.IdentityKeys().Curve25519, bobOTK)
	require.NoError(t, err)

	msgType, body, err := aliceSess.Encrypt([]byte("hello bob"))
	require.NoError(t, err)
	require.Equal(t, PreKeyMessageType, msgType)

	bobSess, pt, err := bob.CreateInboundSessionFrom(alice.IdentityKeys().Curve25519, body)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", string(pt))
	assert.Equal(t, aliceSess.ID(), bobSess.ID())

	// Bob replies so Alice's session leaves pre-key mode too.
	replyType, replyBody, err := bobSess.Encrypt([]byte("hello alice"))
	require.NoError(t, err)
	require.Equal(t, NormalMessageType, replyType)

	pt, err = aliceSess.Decrypt(replyType, replyBody)
	require.NoError(t, err)
	assert.Equal(t, "hello alice", string(pt))

	return alice, bob, aliceSess, bobSess
}

func TestCreateOutboundCreateInboundFromRoundTrip(t *testing.T) {
	establishSessions(t)
}

func TestNormalMessageRoundTripAfterEstablishment(t *testing.T) {
	_, _, aliceSess, bobSess := establishSessions(t)

	msgType, body, err := aliceSess.Encrypt([]byte("second message"))
	require.NoError(t, err)
	assert.Equal(t, NormalMessageType, msgType)

	pt, err := bobSess.Decrypt(msgType, body)
	require.NoError(t, err)
	assert.Equal(t, "second message", string(pt))
}

func TestOutOfOrderDeliveryUsesSkippedKeyCache(t *testing.T) {
	_, _, aliceSess, bobSess := establishSessions(t)

	type wireMsg struct {
		msgType int
		body    []byte
	}
	var msgs []wireMsg
	plaintexts := []string{"msg-zero", "msg-one", "msg-two"}
	for _, pt := range plaintexts {
		msgType, body, err := aliceSess.Encrypt([]byte(pt))
		require.NoError(t, err)
		msgs = append(msgs, wireMsg{msgType, body})
	}

	// Deliver index 2 first: index 0 and 1's message keys land in the
	// skipped-key cache.
	pt2, err := bobSess.Decrypt(msgs[2].msgType, msgs[2].body)
	require.NoError(t, err)
	assert.Equal(t, plaintexts[2], string(pt2))

	// Index 0 and 1 now come from the skipped cache, not the live chain.
	pt0, err := bobSess.Decrypt(msgs[0].msgType, msgs[0].body)
	require.NoError(t, err)
	assert.Equal(t, plaintexts[0], string(pt0))

	pt1, err := bobSess.Decrypt(msgs[1].msgType, msgs[1].body)
	require.NoError(t, err)
	assert.Equal(t, plaintexts[1], string(pt1))
}

func TestSkippedKeyIsConsumedOnlyOnce(t *testing.T) {
	_, _, aliceSess, bobSess := establishSessions(t)

	msgType0, body0, err := aliceSess.Encrypt([]byte("first"))
	require.NoError(t, err)
	msgType1, body1, err := aliceSess.Encrypt([]byte("second"))
	require.NoError(t, err)

	_, err = bobSess.Decrypt(msgType1, body1)
	require.NoError(t, err)

	_, err = bobSess.Decrypt(msgType0, body0)
	require.NoError(t, err)

	// Replaying the same message a second time must not succeed: its
	// skipped-cache entry was deleted on first use.
	_, err = bobSess.Decrypt(msgType0, body0)
	assert.Error(t, err)
}

func TestRatchetStepAdvancesRootAndOpensReceivingChain(t *testing.T) {
	_, _, aliceSess, bobSess := establishSessions(t)

	oldRoot := append([]byte(nil), bobSess.rootKey...)
	oldReceivingCount := len(bobSess.receiving)

	newPriv, err := ecdh.X25519().GenerateKey(primitives.SystemEntropy)
	require.NoError(t, err)
	newPubB64 := base64.StdEncoding.EncodeToString(newPriv.PublicKey().Bytes())

	err = bobSess.ratchetStep(newPubB64)
	require.NoError(t, err)

	assert.NotEqual(t, oldRoot, bobSess.rootKey)
	assert.Equal(t, newPubB64, bobSess.theirRatchetPub)
	assert.Greater(t, len(bobSess.receiving), oldReceivingCount)
	assert.Contains(t, bobSess.receiving, newPubB64)
}

func TestMatchesInboundFromAndMatchesSession(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)

	bobOTK := firstOneTimeKey(t, bob)
	aliceSess, err := alice.CreateOutboundSession(bob.IdentityKeys().Curve25519, bobOTK)
	require.NoError(t, err)

	_, body, err := aliceSess.Encrypt([]byte("hi"))
	require.NoError(t, err)

	ok, err := bob.MatchesInboundFrom(body)
	require.NoError(t, err)
	assert.True(t, ok)

	bobSess, _, err := bob.CreateInboundSessionFrom(alice.IdentityKeys().Curve25519, body)
	require.NoError(t, err)

	assert.True(t, bobSess.MatchesSession(alice.IdentityKeys().Curve25519, body))

	// The one-time key is now consumed: a second create_inbound_from
	// attempt against the same message no longer matches.
	ok, err = bob.MatchesInboundFrom(body)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionSaveRestoreRoundTrip(t *testing.T) {
	_, _, aliceSess, bobSess := establishSessions(t)

	key := make([]byte, 32)
	blob, err := bobSess.Save(key)
	require.NoError(t, err)

	restored, err := RestoreSession(blob, key)
	require.NoError(t, err)
	assert.Equal(t, bobSess.ID(), restored.ID())

	msgType, body, err := aliceSess.Encrypt([]byte("post-restore"))
	require.NoError(t, err)

	pt, err := restored.Decrypt(msgType, body)
	require.NoError(t, err)
	assert.Equal(t, "post-restore", string(pt))
}
