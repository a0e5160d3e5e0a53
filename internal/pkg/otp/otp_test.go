package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	g := NewGenerator(6, "")
	for i := 0; i < 50; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "unexpected character %q in code %q", c, code)
		}
	}
}

func TestGenerate_FixedCodeMode(t *testing.T) {
	g := NewGenerator(6, "424242")
	for i := 0; i < 3; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Equal(t, "424242", code)
	}
}

func TestGenerate_NotConstant(t *testing.T) {
	g := NewGenerator(8, "")
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		seen[code] = true
	}
	// 20 draws from 10^8 possibilities colliding into one value would mean
	// the generator is not random at all.
	assert.Greater(t, len(seen), 1)
}

func TestNewGenerator_DefaultsInvalidLength(t *testing.T) {
	g := NewGenerator(0, "")
	code, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, code, 6)
}
