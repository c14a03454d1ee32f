package megolm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

func TestOutboundInboundRoundTrip(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)

	sessionKey, err := out.SessionKey()
	require.NoError(t, err)

	in, err := InitInbound(sessionKey)
	require.NoError(t, err)
	assert.Equal(t, out.ID(), in.ID())
	assert.Equal(t, uint32(0), in.FirstKnownIndex())

	ct, err := out.Encrypt([]byte("hello room"))
	require.NoError(t, err)

	pt, idx, err := in.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
	assert.Equal(t, "hello room", string(pt))
}

func TestOutboundAdvancesIndexAndRatchet(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ct, err := out.Encrypt([]byte("msg"))
		require.NoError(t, err)
		_, idx, err := in.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), idx)
	}
	assert.Equal(t, uint32(3), out.MessageCount())
}

func TestInboundRejectsTamperedCiphertext(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)

	ct, err := out.Encrypt([]byte("hello"))
	require.NoError(t, err)
	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-2] ^= 0xff

	_, _, err = in.Decrypt(tampered)
	assert.Error(t, err)
}

func TestOutOfOrderDeliveryUsesSkippedCache(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)

	var cts [][]byte
	for i := 0; i < 3; i++ {
		ct, err := out.Encrypt([]byte("msg"))
		require.NoError(t, err)
		cts = append(cts, ct)
	}

	// Deliver index 2 first, forcing the ratchet to skip over 0 and 1.
	pt, idx, err := in.Decrypt(cts[2])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx)
	assert.Equal(t, "msg", string(pt))

	// Indices 0 and 1 should still decrypt from the skipped-key cache.
	_, idx0, err := in.Decrypt(cts[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx0)

	_, idx1, err := in.Decrypt(cts[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx1)
}

func TestImportInboundAtNonZeroIndex(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := out.Encrypt([]byte("skip me"))
		require.NoError(t, err)
	}
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)

	// SessionKey is the signed InitInbound form; ImportInbound takes the
	// unsigned form that ExportAt produces.
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)
	exported, err := in.ExportAt(2)
	require.NoError(t, err)

	imported, err := ImportInbound(exported)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), imported.FirstKnownIndex())

	ct, err := out.Encrypt([]byte("after import"))
	require.NoError(t, err)
	pt, idx, err := imported.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx)
	assert.Equal(t, "after import", string(pt))
}

func TestImportInboundRejectsSignedSessionKey(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)

	// InitInbound's format carries a trailing signature ImportInbound's
	// shorter exported-session-key format does not expect.
	_, err = ImportInbound(sessionKey)
	assert.Error(t, err)
}

func TestExportAtRoundTripsThroughImportInbound(t *testing.T) {
	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	sessionKey, err := out.SessionKey()
	require.NoError(t, err)
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ct, err := out.Encrypt([]byte("msg"))
		require.NoError(t, err)
		_, _, err = in.Decrypt(ct)
		require.NoError(t, err)
	}

	exported, err := in.ExportAt(3)
	require.NoError(t, err)

	reimported, err := ImportInbound(exported)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), reimported.FirstKnownIndex())
	assert.Equal(t, in.ID(), reimported.ID())

	_, err = reimported.ExportAt(1)
	assert.Error(t, err, "exporting below first-known-index must fail")
}

func TestOutboundNeedsRotation(t *testing.T) {
	clock := &primitives.FixedClock{}
	out, err := InitOutbound(primitives.SystemEntropy, clock)
	require.NoError(t, err)

	assert.False(t, out.NeedsRotation(clock.Now(), DefaultMaxAge, DefaultMaxMessages))
	assert.True(t, out.NeedsRotation(clock.Now().Add(DefaultMaxAge), DefaultMaxAge, DefaultMaxMessages))
}

func TestPicklingRoundTrip(t *testing.T) {
	key := make([]byte, 32)

	out, err := InitOutbound(primitives.SystemEntropy, primitives.SystemClock{})
	require.NoError(t, err)
	_, err = out.Encrypt([]byte("before pickle"))
	require.NoError(t, err)

	blob, err := out.Save(key)
	require.NoError(t, err)
	restored, err := RestoreOutbound(blob, key)
	require.NoError(t, err)
	assert.Equal(t, out.ID(), restored.ID())
	assert.Equal(t, out.MessageCount(), restored.MessageCount())

	sessionKey, err := out.SessionKey()
	require.NoError(t, err)
	in, err := InitInbound(sessionKey)
	require.NoError(t, err)

	blob2, err := in.Save(key)
	require.NoError(t, err)
	restoredIn, err := RestoreInbound(blob2, key)
	require.NoError(t, err)
	assert.Equal(t, in.ID(), restoredIn.ID())
	assert.Equal(t, in.CurrentIndex(), restoredIn.CurrentIndex())
}
