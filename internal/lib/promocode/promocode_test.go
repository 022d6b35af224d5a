package promocode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 32)
	for _, c := range "IO01" {
		assert.NotContains(t, Alphabet, string(c))
	}
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := Generate()
		require.NoError(t, err)

		parts := strings.Split(code, "-")
		require.Len(t, parts, 3)
		for _, p := range parts {
			require.Len(t, p, 4)
			for _, c := range p {
				assert.Contains(t, Alphabet, string(c))
			}
		}
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "ABCD-EFGH-JKLM", want: "ABCD"},
		{code: "ABCDEFGH", want: "ABCD"},
		{code: "AB", want: "AB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Prefix(tt.code))
	}
}
