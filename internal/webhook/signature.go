package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks a GitHub webhook signature header
// ("sha256=<hex>") against the raw request body. It never returns an
// error: a malformed header, a wrong algorithm tag, or a signature of
// the wrong length all yield false. Comparison is constant-time.
func VerifySignature(payload []byte, header, secret string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	want, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return hmac.Equal(mac.Sum(nil), want)
}

// SignPayload computes the signature header value for a payload.
// Used by tests and outbound webhook simulation.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
