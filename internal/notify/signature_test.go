package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceHMAC computes HMAC-SHA256 independently for test verification.
func referenceHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSign_BasicSigning(t *testing.T) {
	payload := []byte(`{"event":"risk_escalation","site":{"key":"lake-erie"}}`)
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	keys := SigningKeys{Secret: "whsec_test_secret_123"}

	header, err := Sign(payload, keys, now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(header, "t="), "header should start with t=")
	assert.Contains(t, header, ",v1=")
	assert.NotContains(t, header, "v1_old", "no v1_old without a previous secret")

	parts := parseSignatureHeader(header)
	assert.Equal(t, fmt.Sprintf("%d", now.Unix()), parts.timestamp)

	signedContent := fmt.Sprintf("%d.%s", now.Unix(), string(payload))
	assert.Equal(t, referenceHMAC(signedContent, "whsec_test_secret_123"), parts.v1)
}

func TestSign_EmptySecret(t *testing.T) {
	_, err := Sign([]byte(`{}`), SigningKeys{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty signing secret")
}

func TestSign_DualValidity(t *testing.T) {
	payload := []byte(`{"event":"risk_escalation"}`)
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	keys := SigningKeys{
		Secret:         "whsec_new",
		PreviousSecret: "whsec_old",
		PreviousUntil:  now.Add(24 * time.Hour),
	}

	header, err := Sign(payload, keys, now)
	require.NoError(t, err)

	parts := parseSignatureHeader(header)
	require.NotEmpty(t, parts.v1Old, "grace period open, v1_old expected")

	signedContent := fmt.Sprintf("%d.%s", now.Unix(), string(payload))
	assert.Equal(t, referenceHMAC(signedContent, "whsec_new"), parts.v1)
	assert.Equal(t, referenceHMAC(signedContent, "whsec_old"), parts.v1Old)
}

func TestSign_ExpiredPreviousSecretOmitted(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	keys := SigningKeys{
		Secret:         "whsec_new",
		PreviousSecret: "whsec_old",
		PreviousUntil:  now.Add(-time.Minute),
	}

	header, err := Sign([]byte(`{}`), keys, now)
	require.NoError(t, err)
	assert.NotContains(t, header, "v1_old")
}

func TestSign_PreviousSecretWithoutExpiryOmitted(t *testing.T) {
	keys := SigningKeys{
		Secret:         "whsec_new",
		PreviousSecret: "whsec_old",
	}

	header, err := Sign([]byte(`{}`), keys, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, header, "v1_old", "validity unknown without expiry")
}

func TestVerify_RoundTrip(t *testing.T) {
	payload := []byte(`{"event":"risk_escalation","transition":{"to":"CRITICAL"}}`)
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	keys := SigningKeys{Secret: "whsec_secret"}

	header, err := Sign(payload, keys, now)
	require.NoError(t, err)

	assert.True(t, Verify(payload, header, keys))
}

func TestVerify_TamperedPayload(t *testing.T) {
	payload := []byte(`{"score":42}`)
	keys := SigningKeys{Secret: "whsec_secret"}

	header, err := Sign(payload, keys, time.Now())
	require.NoError(t, err)

	assert.False(t, Verify([]byte(`{"score":99}`), header, keys))
}

func TestVerify_WrongSecret(t *testing.T) {
	payload := []byte(`{"score":42}`)
	header, err := Sign(payload, SigningKeys{Secret: "whsec_a"}, time.Now())
	require.NoError(t, err)

	assert.False(t, Verify(payload, header, SigningKeys{Secret: "whsec_b"}))
}

func TestVerify_ReceiverStillOnOldSecret(t *testing.T) {
	// Sender has rotated; the receiver only knows the old secret as its
	// "previous". The v1_old signature keeps verification working.
	payload := []byte(`{"event":"risk_escalation"}`)
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	senderKeys := SigningKeys{
		Secret:         "whsec_new",
		PreviousSecret: "whsec_old",
		PreviousUntil:  now.Add(time.Hour),
	}
	header, err := Sign(payload, senderKeys, now)
	require.NoError(t, err)

	receiverKeys := SigningKeys{Secret: "whsec_other", PreviousSecret: "whsec_old"}
	assert.True(t, Verify(payload, header, receiverKeys))
}

func TestVerify_MalformedHeader(t *testing.T) {
	keys := SigningKeys{Secret: "whsec_secret"}
	assert.False(t, Verify([]byte(`{}`), "", keys))
	assert.False(t, Verify([]byte(`{}`), "not a header", keys))
	assert.False(t, Verify([]byte(`{}`), "t=123", keys))
}

func TestParseSignatureHeader(t *testing.T) {
	parts := parseSignatureHeader("t=1752580800,v1=abc123,v1_old=def456")
	assert.Equal(t, "1752580800", parts.timestamp)
	assert.Equal(t, "abc123", parts.v1)
	assert.Equal(t, "def456", parts.v1Old)

	parts = parseSignatureHeader(" t = 1752580800 , v1 = abc123 ")
	assert.Equal(t, "1752580800", parts.timestamp)
	assert.Equal(t, "abc123", parts.v1)
}
