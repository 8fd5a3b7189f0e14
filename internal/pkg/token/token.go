package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Digits is the alphabet used for email one-time codes.
const Digits = "0123456789"

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Random returns n characters drawn uniformly from alphabet using crypto/rand.
func Random(n int, alphabet string) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", fmt.Errorf("random token: invalid length %d or empty alphabet", n)
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random token: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
