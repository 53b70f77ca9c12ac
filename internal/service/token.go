package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const sessionTokenBytes = 32

// newSessionToken generates an unguessable bearer value. The raw value goes
// to the client exactly once; the store only ever sees its digest.
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashSessionToken is the at-rest form of a session token. A fast one-way
// digest is sufficient here: the input already carries 256 bits of entropy,
// so there is nothing for an offline guesser to enumerate.
func hashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
