package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("0242"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("matches the original code", func(t *testing.T) {
		assert.True(t, CheckPasswordHash("0242", string(hash)))
	})

	t.Run("rejects a different code", func(t *testing.T) {
		assert.False(t, CheckPasswordHash("9999", string(hash)))
	})

	t.Run("rejects a malformed hash", func(t *testing.T) {
		assert.False(t, CheckPasswordHash("0242", "not-a-hash"))
	})
}

func TestMaskCode(t *testing.T) {
	t.Run("keeps only the first two characters", func(t *testing.T) {
		assert.Equal(t, "AB****", MaskCode("ABC234"))
	})

	t.Run("fully masks short input", func(t *testing.T) {
		assert.Equal(t, "******", MaskCode("AB"))
		assert.Equal(t, "******", MaskCode(""))
	})
}
