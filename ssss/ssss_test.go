package ssss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

func TestPassphraseDerivationIsDeterministic(t *testing.T) {
	salt, err := NewPassphraseSalt(primitives.SystemEntropy)
	require.NoError(t, err)

	k1 := DeriveKeyFromPassphrase("correct horse battery staple", salt, 10000)
	k2 := DeriveKeyFromPassphrase("correct horse battery staple", salt, 10000)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	k3 := DeriveKeyFromPassphrase("wrong passphrase", salt, 10000)
	assert.NotEqual(t, k1, k3)
}

func TestRecoveryKeyRoundTrip(t *testing.T) {
	storageKey, recoveryKey, err := GenerateRecoveryKey(primitives.SystemEntropy)
	require.NoError(t, err)

	decoded, err := DecodeRecoveryKey(recoveryKey)
	require.NoError(t, err)
	assert.Equal(t, storageKey, decoded)
}

func TestRecoveryKeyRejectsTamperedKey(t *testing.T) {
	_, recoveryKey, err := GenerateRecoveryKey(primitives.SystemEntropy)
	require.NoError(t, err)

	tampered := []rune(recoveryKey)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	_, err = DecodeRecoveryKey(string(tampered))
	assert.Error(t, err)
}

func TestVerifyKeyAcceptsCorrectKeyRejectsWrong(t *testing.T) {
	storageKey := make([]byte, 32)
	_, _ = primitives.SystemEntropy.Read(storageKey)
	descriptor, err := BuildDescriptor("m.default", storageKey)
	require.NoError(t, err)

	ok, err := VerifyKey(descriptor, storageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	other := make([]byte, 32)
	_, _ = primitives.SystemEntropy.Read(other)
	ok, err = VerifyKey(descriptor, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncryptDecryptSecretRoundTrip(t *testing.T) {
	storageKey := make([]byte, 32)
	_, _ = primitives.SystemEntropy.Read(storageKey)

	es, err := EncryptSecret(storageKey, "m.megolm_backup.v1", []byte("backup private key bytes"))
	require.NoError(t, err)

	pt, err := DecryptSecret(storageKey, "m.megolm_backup.v1", es)
	require.NoError(t, err)
	assert.Equal(t, "backup private key bytes", string(pt))
}

func TestDecryptSecretRejectsWrongName(t *testing.T) {
	storageKey := make([]byte, 32)
	_, _ = primitives.SystemEntropy.Read(storageKey)

	es, err := EncryptSecret(storageKey, "m.cross_signing.master", []byte("seed"))
	require.NoError(t, err)

	_, err = DecryptSecret(storageKey, "m.cross_signing.self_signing", es)
	assert.Error(t, err, "wrong info string must fail the MAC check")
}

func TestCrossSigningBootstrapSignatures(t *testing.T) {
	id, err := Bootstrap("@alice:example.org", primitives.SystemEntropy)
	require.NoError(t, err)

	assert.NotEmpty(t, id.Master.Signatures)
	assert.NotEmpty(t, id.SelfSigning.Signatures)
	assert.NotEmpty(t, id.UserSigning.Signatures)

	storageKey := make([]byte, 32)
	_, _ = primitives.SystemEntropy.Read(storageKey)
	secrets, err := id.PersistPrivateSeeds(storageKey)
	require.NoError(t, err)
	assert.Len(t, secrets, 3)

	pt, err := DecryptSecret(storageKey, SecretMaster, secrets[SecretMaster])
	require.NoError(t, err)
	assert.Equal(t, id.MasterPriv.Seed(), pt)
}
