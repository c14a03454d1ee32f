package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

func TestEncryptDecryptSessionRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(primitives.SystemEntropy)
	require.NoError(t, err)

	es := ExportedSession{
		RoomID:          "!room:example.org",
		SessionID:       "sess1",
		FirstKnownIndex: 0,
		SessionKey:      "c2Vzc2lvbmtleQ==",
	}
	raw, err := MarshalExportedSession(es)
	require.NoError(t, err)

	enc, err := EncryptSession(priv.PublicKey(), raw, primitives.SystemEntropy)
	require.NoError(t, err)

	pt, err := DecryptSession(priv, enc)
	require.NoError(t, err)
	assert.Equal(t, raw, pt)
}

func TestDecryptSessionRejectsTamperedCiphertext(t *testing.T) {
	priv, err := GenerateKeyPair(primitives.SystemEntropy)
	require.NoError(t, err)

	enc, err := EncryptSession(priv.PublicKey(), []byte(`{"foo":"bar"}`), primitives.SystemEntropy)
	require.NoError(t, err)

	enc.Ciphertext = "AAAA" + enc.Ciphertext[4:]
	_, err = DecryptSession(priv, enc)
	assert.Error(t, err)
}

func TestDecryptSessionWrongKeyFails(t *testing.T) {
	priv1, err := GenerateKeyPair(primitives.SystemEntropy)
	require.NoError(t, err)
	priv2, err := GenerateKeyPair(primitives.SystemEntropy)
	require.NoError(t, err)

	enc, err := EncryptSession(priv1.PublicKey(), []byte("top secret"), primitives.SystemEntropy)
	require.NoError(t, err)

	_, err = DecryptSession(priv2, enc)
	assert.Error(t, err)
}

func TestEncryptDecryptSessionHPKERoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(primitives.SystemEntropy)
	require.NoError(t, err)

	enc, err := EncryptSessionHPKE(priv.PublicKey(), []byte("via hpke"))
	require.NoError(t, err)

	pt, err := DecryptSessionHPKE(priv, enc)
	require.NoError(t, err)
	assert.Equal(t, "via hpke", string(pt))
}

func TestMergeRestoredAppliesSmallerFirstKnownIndexWins(t *testing.T) {
	known := map[[2]string]ExportedSession{}

	first := ExportedSession{RoomID: "!r", SessionID: "s1", FirstKnownIndex: 10}
	known = MergeRestored(known, []ExportedSession{first})
	assert.Equal(t, uint32(10), known[[2]string{"!r", "s1"}].FirstKnownIndex)

	// A larger or equal first-known-index must be discarded.
	known = MergeRestored(known, []ExportedSession{{RoomID: "!r", SessionID: "s1", FirstKnownIndex: 20}})
	assert.Equal(t, uint32(10), known[[2]string{"!r", "s1"}].FirstKnownIndex)

	// A smaller first-known-index replaces the stored one.
	known = MergeRestored(known, []ExportedSession{{RoomID: "!r", SessionID: "s1", FirstKnownIndex: 3}})
	assert.Equal(t, uint32(3), known[[2]string{"!r", "s1"}].FirstKnownIndex)
}
