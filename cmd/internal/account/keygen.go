package account

import (
	"crypto/rand"
	"fmt"
)

const (
	keyPrefix   = "sk-"
	keyBodyLen  = 32
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewSecret mints an API key secret: "sk-" followed by 32 random
// alphanumerics.
func NewSecret() (string, error) {
	buf := make([]byte, keyBodyLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("account: key entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return keyPrefix + string(buf), nil
}
