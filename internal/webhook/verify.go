// Package webhook verifies and normalizes inbound signed deliveries
// from the upstream platform. Verification always runs over the exact
// raw request bytes; re-serializing a parsed body can shift byte
// layout and break the signature even when the content is identical.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the upstream's delivery signature header.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature recomputes the HMAC-SHA256 of body under secret and
// compares it to the header value ("sha256=<hex>"). The comparison is
// constant time so response timing leaks nothing about where a forged
// signature first diverges. An empty secret always fails: an
// unconfigured deployment must reject rather than accept everything.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// VerifyHandshake checks the unsigned subscription handshake: the
// mode must be "subscribe" and the caller's verify-token must equal
// ours. This proves endpoint ownership to the upstream; it is plain
// string equality by protocol, not an HMAC.
func VerifyHandshake(verifyToken, mode, token string) bool {
	return verifyToken != "" && mode == "subscribe" && token == verifyToken
}
