package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const digits = "0123456789"

// Generator produces one-time verification codes from a fixed numeric
// alphabet. When fixedCode is non-empty every call returns that exact code;
// this mode exists for test environments only and is controlled strictly by
// configuration, never by environment sniffing.
type Generator struct {
	length    int
	fixedCode string
}

func NewGenerator(length int, fixedCode string) *Generator {
	if length < 1 {
		length = 6
	}
	return &Generator{length: length, fixedCode: fixedCode}
}

// Generate returns a code that is cryptographically unpredictable unless the
// generator was built with a fixed code. It has no side effects.
func (g *Generator) Generate() (string, error) {
	if g.fixedCode != "" {
		return g.fixedCode, nil
	}
	b := make([]byte, g.length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}
