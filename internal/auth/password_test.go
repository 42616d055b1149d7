package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, hasher.Compare(hash, "secret1"))
	assert.False(t, hasher.Compare(hash, "secret2"))
}

func TestBcryptHasherEmptyHashNeverMatches(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	assert.False(t, hasher.Compare("", ""))
	assert.False(t, hasher.Compare("", "anything"))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).Cost)
	assert.Equal(t, 10, NewBcryptHasher(10).Cost)
}
