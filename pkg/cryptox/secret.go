package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// SecretHashLength is the length of a hex encoded SHA-256 digest.
const SecretHashLength = sha256.Size * 2

// NewSessionSecret returns an opaque refresh secret built from two random
// version 4 UUIDs joined by a dot (244 bits of entropy). It is handed to the
// client once and never stored.
func NewSessionSecret() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("cryptox: generate session secret: %w", err)
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("cryptox: generate session secret: %w", err)
	}
	return a.String() + "." + b.String(), nil
}

// HashSecret returns the lowercase hex SHA-256 digest of raw. The digest is
// deterministic so it can be used as a unique lookup key.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SecretMatchesHash reports whether raw hashes to storedHash, comparing in
// constant time.
func SecretMatchesHash(raw, storedHash string) bool {
	if len(storedHash) != SecretHashLength {
		return false
	}
	computed := HashSecret(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
