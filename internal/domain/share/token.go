package share

import (
	"crypto/rand"
	"fmt"
)

// TokenLength is the number of characters in a share token.
const TokenLength = 21

const tokenAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// NewToken returns a random URL-safe token. The alphabet has 64 symbols, so
// masking each random byte keeps the distribution uniform.
func NewToken() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[b&63]
	}
	return string(buf), nil
}
