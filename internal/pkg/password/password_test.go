package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)
	assert.NoError(t, h.Compare(hash, "Secret123!"))
	assert.ErrorIs(t, h.Compare(hash, "secret123!"), ErrMismatch)
}

func TestHasher_SaltDiffersPerHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_EmptyHashNeverMatches(t *testing.T) {
	assert.ErrorIs(t, NewHasher(bcrypt.MinCost).Compare("", ""), ErrMismatch)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}
