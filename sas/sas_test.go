package sas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

func setupSessions(t *testing.T) (*Session, *Session) {
	t.Helper()
	a, err := NewParty("@alice:example.org", "DEVICEA", primitives.SystemEntropy)
	require.NoError(t, err)
	b, err := NewParty("@bob:example.org", "DEVICEB", primitives.SystemEntropy)
	require.NoError(t, err)

	txnID := "txn1"
	sA, err := a.SetTheirKey(b.PublicKeyBase64(), b.UserID, b.DeviceID, txnID, true)
	require.NoError(t, err)
	sB, err := b.SetTheirKey(a.PublicKeyBase64(), a.UserID, a.DeviceID, txnID, false)
	require.NoError(t, err)
	return sA, sB
}

func TestBothPartiesDeriveSameSAS(t *testing.T) {
	sA, sB := setupSessions(t)

	n0a, n1a, n2a, err := sA.Decimal()
	require.NoError(t, err)
	n0b, n1b, n2b, err := sB.Decimal()
	require.NoError(t, err)
	assert.Equal(t, [3]int{n0a, n1a, n2a}, [3]int{n0b, n1b, n2b})

	emojiA, err := sA.Emoji()
	require.NoError(t, err)
	emojiB, err := sB.Emoji()
	require.NoError(t, err)
	assert.Equal(t, emojiA, emojiB)
}

func TestDecimalCodesInExpectedRange(t *testing.T) {
	sA, _ := setupSessions(t)
	n0, n1, n2, err := sA.Decimal()
	require.NoError(t, err)
	for _, n := range []int{n0, n1, n2} {
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9191)
	}
}

func TestEmojiIndicesAreSixBit(t *testing.T) {
	sA, _ := setupSessions(t)
	indices, err := sA.Emoji()
	require.NoError(t, err)
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.LessOrEqual(t, idx, 63)
	}
}

func TestCommitmentRoundTrip(t *testing.T) {
	a, err := NewParty("@alice:example.org", "DEVICEA", primitives.SystemEntropy)
	require.NoError(t, err)
	start := DefaultStartMessage("DEVICEA", "txn1")

	commitment, err := a.Commit(start)
	require.NoError(t, err)

	ok, err := VerifyCommitment(a.PublicKeyBase64(), start, commitment)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommitmentRejectsTamperedStartMessage(t *testing.T) {
	a, err := NewParty("@alice:example.org", "DEVICEA", primitives.SystemEntropy)
	require.NoError(t, err)
	start := DefaultStartMessage("DEVICEA", "txn1")
	commitment, err := a.Commit(start)
	require.NoError(t, err)

	tampered := start
	tampered.TransactionID = "txn2"
	ok, err := VerifyCommitment(a.PublicKeyBase64(), tampered, commitment)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMACRoundTripAndMismatch(t *testing.T) {
	sA, sB := setupSessions(t)

	keyIDs := []string{"ed25519:DEVICEA", "ed25519:DEVICEB"}
	macA, err := sA.ComputeMAC("ed25519:DEVICEA", "aliceEd25519PubBase64", keyIDs)
	require.NoError(t, err)

	ok, err := sB.VerifyMAC("ed25519:DEVICEA", "aliceEd25519PubBase64", keyIDs, macA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sB.VerifyMAC("ed25519:DEVICEA", "wrongPubKey", keyIDs, macA)
	require.NoError(t, err)
	assert.False(t, ok)
}
