package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest is the stored form of a bearer token: hex SHA-256. Tokens
// carry enough entropy that an unsalted fast hash is sufficient.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
