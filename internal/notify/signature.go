// Package notify delivers escalation webhooks. When a site's risk level
// rises into WARNING or CRITICAL, the notifier POSTs a signed JSON
// payload to the configured endpoint. Payloads are signed with
// HMAC-SHA256 under a dual-validity scheme so receivers keep verifying
// through a secret rotation.
//
// Header format: X-BloomWatch-Signature: t=<unix>,v1=<hmac>[,v1_old=<hmac>]
package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the payload signature.
const SignatureHeader = "X-BloomWatch-Signature"

// SigningKeys holds the active signing secret plus an optional previous
// secret that stays valid until its expiry.
type SigningKeys struct {
	Secret         string
	PreviousSecret string
	PreviousUntil  time.Time
}

// Sign generates the signature header value for a payload. The signed
// content is "{unix_timestamp}.{payload}". A v1_old signature is
// appended only while the previous secret's grace period is open.
func Sign(payload []byte, keys SigningKeys, now time.Time) (string, error) {
	if keys.Secret == "" {
		return "", fmt.Errorf("webhook signature: empty signing secret")
	}

	timestamp := now.Unix()
	signedContent := fmt.Sprintf("%d.%s", timestamp, string(payload))

	header := fmt.Sprintf("t=%d,v1=%s", timestamp, computeHMAC(signedContent, keys.Secret))

	if keys.PreviousSecret != "" && !keys.PreviousUntil.IsZero() && !now.After(keys.PreviousUntil) {
		header = fmt.Sprintf("%s,v1_old=%s", header, computeHMAC(signedContent, keys.PreviousSecret))
	}
	return header, nil
}

// Verify checks a payload against a signature header. It accepts a match
// of v1 against either secret, or v1_old against the previous secret,
// covering both sides of an in-flight rotation.
func Verify(payload []byte, header string, keys SigningKeys) bool {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || parts.v1 == "" {
		return false
	}

	signedContent := fmt.Sprintf("%s.%s", parts.timestamp, string(payload))

	if keys.Secret != "" {
		expected := computeHMAC(signedContent, keys.Secret)
		if hmac.Equal([]byte(parts.v1), []byte(expected)) {
			return true
		}
	}
	if keys.PreviousSecret != "" {
		expected := computeHMAC(signedContent, keys.PreviousSecret)
		if hmac.Equal([]byte(parts.v1), []byte(expected)) {
			return true
		}
		if parts.v1Old != "" && hmac.Equal([]byte(parts.v1Old), []byte(expected)) {
			return true
		}
	}
	return false
}

type signatureParts struct {
	timestamp string
	v1        string
	v1Old     string
}

// parseSignatureHeader breaks a signature header into its component parts.
// Expected format: "t=<unix>,v1=<hex>[,v1_old=<hex>]"
func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		kv := strings.SplitN(segment, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "t":
			parts.timestamp = strings.TrimSpace(kv[1])
		case "v1":
			parts.v1 = strings.TrimSpace(kv[1])
		case "v1_old":
			parts.v1Old = strings.TrimSpace(kv[1])
		}
	}
	return parts
}

// computeHMAC computes the HMAC-SHA256 of content using the given key
// and returns it as a lowercase hex string.
func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
