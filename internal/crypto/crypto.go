// Package crypto handles tenant API key minting and hashing. Keys are stored
// only as SHA-256 hashes; the plaintext is returned once at creation time.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const apiKeyPrefix = "llm-gw-"

// GenerateAPIKey mints a new tenant credential with 32 bytes of entropy.
func GenerateAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

func HashAPIKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}
