package codehash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		secrets []string
		wantErr bool
	}{
		{name: "single secret", secrets: []string{"s1"}},
		{name: "several secrets", secrets: []string{"s1", "s2", "s3"}},
		{name: "no secrets", secrets: nil, wantErr: true},
		{name: "empty secret", secrets: []string{"s1", ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.secrets)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.secrets), h.LatestVersion())
		})
	}
}

func TestHasher_HashCode(t *testing.T) {
	h, err := New([]string{"old-secret", "new-secret"})
	require.NoError(t, err)

	got := h.HashCode("abcd-efgh-2345")

	assert.Equal(t, 2, got.Version)
	// нормализация: регистр и дефисы не влияют на хэш
	assert.Equal(t, got, h.HashCode("ABCDEFGH2345"))
	assert.Equal(t, got, h.HashCode("  abcd efgh 2345  "))
}

func TestHasher_CodeHashes_AllVersions(t *testing.T) {
	h, err := New([]string{"old-secret", "new-secret"})
	require.NoError(t, err)

	hashes := h.CodeHashes("PROMO2024")

	require.Len(t, hashes, 2)
	assert.Equal(t, 2, hashes[0].Version)
	assert.Equal(t, 1, hashes[1].Version)
	assert.NotEqual(t, hashes[0].Value, hashes[1].Value)

	// хэш старой версии совпадает с хэшем, который выдал бы Hasher
	// до ротации — записи, созданные до неё, остаются находимыми
	old, err := New([]string{"old-secret"})
	require.NoError(t, err)
	assert.Equal(t, old.HashCode("PROMO2024").Value, hashes[1].Value)
}

func TestHasher_HashEmail(t *testing.T) {
	h, err := New([]string{"secret"})
	require.NoError(t, err)

	got := h.HashEmail("User@Example.COM ")

	assert.Equal(t, 1, got.Version)
	assert.Equal(t, got, h.HashEmail("user@example.com"))
	assert.NotEqual(t, got.Value, h.HashEmail("other@example.com").Value)
}
