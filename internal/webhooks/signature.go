package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHMAC returns the hex HMAC-SHA256 of payload under secret, as carried
// in the X-Signature header.
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches payload under secret, in constant time.
func Verify(secret string, payload []byte, sig string) bool {
	return hmac.Equal([]byte(SignHMAC(secret, payload)), []byte(sig))
}
