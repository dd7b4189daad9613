// Package token generates the random opaque strings used for login and
// registration challenges and session identifiers.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Size is the number of random bytes behind every token.
const Size = 32

// New returns Size bytes from the system's secure random source, encoded
// with the unpadded URL-safe base64 alphabet. It panics if the random source fails,
// since nothing can be authenticated without it.
func New() string {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		panic("token: reading random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
