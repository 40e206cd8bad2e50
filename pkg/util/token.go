package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateVerificationCode returns a random token a source operator
// publishes as a DNS TXT record to prove control of the domain.
func GenerateVerificationCode() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
