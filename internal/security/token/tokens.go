// Package tokens holds the hashing and random-token primitives used for
// client secrets, refresh tokens and access-token audit records.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// RefreshTokenPrefix marks opaque refresh tokens so they are recognisable in leaks and logs.
const RefreshTokenPrefix = "cw_rt_"

// HashToken devuelve hex(sha256(s)). Es la forma en que se guardan secrets y tokens.
func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GenerateOpaqueToken devuelve prefix + hex de nBytes aleatorios.
func GenerateOpaqueToken(prefix string, nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

// SecretMatches reports whether plain hashes to storedHash. Empty inputs never match.
func SecretMatches(plain, storedHash string) bool {
	if plain == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(plain)), []byte(storedHash)) == 1
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
