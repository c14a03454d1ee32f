package backup

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
)

func sampleSessions() []ExportedSession {
	return []ExportedSession{
		{
			Algorithm:         Algorithm,
			RoomID:            "!room:example.org",
			SenderKey:         "c2VuZGVya2V5",
			SessionID:         "sess1",
			SessionKey:        "c2Vzc2lvbmtleTE=",
			SenderClaimedKeys: SenderClaimedKeys{Ed25519: "ZWQyNTUxOWtleQ=="},
			FirstKnownIndex:   0,
		},
		{
			Algorithm:                    Algorithm,
			RoomID:                       "!room2:example.org",
			SenderKey:                    "c2VuZGVya2V5Mg==",
			SessionID:                    "sess2",
			SessionKey:                   "c2Vzc2lvbmtleTI=",
			SenderClaimedKeys:            SenderClaimedKeys{Ed25519: "ZWQyNTUxOWtleTI="},
			ForwardingCurve25519KeyChain: []string{"Zmlyc3Rob3A=", "c2Vjb25kaG9w"},
			FirstKnownIndex:              12,
		},
	}
}

func TestExportFileRoundTrip(t *testing.T) {
	sessions := sampleSessions()

	text, err := EncodeExportFile("correct horse battery staple", 10000, sessions)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, exportFileHeader))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), exportFileFooter))

	got, err := DecodeExportFile("correct horse battery staple", text)
	require.NoError(t, err)
	assert.Equal(t, sessions, got)
}

func TestExportFileWrongPasswordFailsMAC(t *testing.T) {
	text, err := EncodeExportFile("right password", 10000, sampleSessions())
	require.NoError(t, err)

	_, err = DecodeExportFile("wrong password", text)
	require.Error(t, err)
	kind, ok := e2eeerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, e2eeerr.BadMessageMac, kind)
}

func TestDecodeExportFileTooShort(t *testing.T) {
	// 68 raw bytes, one short of the 69-byte minimum.
	raw := make([]byte, 68)
	raw[0] = exportFileVersion
	text := exportFileHeader + "\n" + base64.StdEncoding.EncodeToString(raw) + "\n" + exportFileFooter + "\n"

	_, err := DecodeExportFile("anything", text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestDecodeExportFileUnsupportedVersion(t *testing.T) {
	raw := make([]byte, exportMinPayloadLen)
	raw[0] = 0x02

	text := exportFileHeader + "\n" + base64.StdEncoding.EncodeToString(raw) + "\n" + exportFileFooter + "\n"

	_, err := DecodeExportFile("anything", text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestDecodeExportFileMissingMarkersIsBadFormat(t *testing.T) {
	_, err := DecodeExportFile("anything", "not an export file at all")
	require.Error(t, err)
	kind, ok := e2eeerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, e2eeerr.BadMessageFormat, kind)
}
