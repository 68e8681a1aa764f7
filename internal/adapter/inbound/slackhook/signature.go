package slackhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	// signatureVersion is the Slack signing scheme version prefix.
	signatureVersion = "v0"
	// replayWindow bounds the accepted clock skew between Slack's request
	// timestamp and local time.
	replayWindow = 300 * time.Second
)

// VerifySignature checks that a request body was signed by Slack with the
// shared signing secret. Any malformed input rejects; a rejected request must
// receive 401 and no further processing.
func VerifySignature(body []byte, signature, timestamp, secret string, now time.Time) bool {
	if secret == "" || timestamp == "" {
		return false
	}
	if !strings.HasPrefix(signature, signatureVersion+"=") {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(replayWindow/time.Second) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signature, signatureVersion+"="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the signature Slack would send for the given body and
// timestamp. Exported for tests and local tooling.
func Sign(body []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
