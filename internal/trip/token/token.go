// Package token issues public share tokens: 16 characters over a 64-symbol
// URL-safe alphabet (~96 bits of entropy) from a cryptographically strong
// source. Generation alone does not guarantee uniqueness; the store reserves
// the token inside the transaction that creates the trip, and the service
// retries with a fresh token on conflict.
package token

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Length is the share token length in characters.
const Length = 16

// alphabet has exactly 64 symbols, so masking a random byte to 6 bits maps
// uniformly onto it with no rejection sampling.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Pattern matches a well-formed share token.
var Pattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16}$`)

// Generate returns a fresh share token. The random source is process-wide and
// stateless per call; collision safety comes from the store's reservation
// check, not from the generator.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate share token: %w", err)
	}
	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = alphabet[b&0x3f]
	}
	return string(out), nil
}
