package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces HMAC-SHA256 signatures for authenticated REST requests.
type Signer struct {
	key    string
	secret []byte
}

// NewSigner builds a signer from an API key pair.
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{key: apiKey, secret: []byte(apiSecret)}
}

// APIKey returns the public key half of the credential pair.
func (s *Signer) APIKey() string { return s.key }

// Sign returns the hex-encoded HMAC-SHA256 of payload under the secret.
func (s *Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
