package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the HMAC Razorpay computes over the raw body.
const SignatureHeader = "X-Razorpay-Signature"

// VerifySignature checks the webhook HMAC-SHA256 over the raw request body.
// Constant-time comparison; the raw body must be the exact received bytes,
// re-serialized JSON will not match.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
