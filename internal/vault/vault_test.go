package vault

import (
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "windseat/pkg/domain-errors"
)

func generateKey(t *testing.T) string {
	t.Helper()
	var key fernet.Key
	require.NoError(t, key.Generate())
	return key.Encode()
}

func TestVault(t *testing.T) {
	encoded := generateKey(t)

	t.Run("round trip", func(t *testing.T) {
		v, err := New(encoded)
		require.NoError(t, err)

		token, err := v.Encrypt("hunter2")
		require.NoError(t, err)

		plaintext, err := v.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", plaintext)
	})

	t.Run("unpadded key is accepted", func(t *testing.T) {
		trimmed := encoded
		for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
			trimmed = trimmed[:len(trimmed)-1]
		}
		_, err := New(trimmed)
		assert.NoError(t, err)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		_, err := New("")
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("garbage token fails with decryption code", func(t *testing.T) {
		v, err := New(encoded)
		require.NoError(t, err)

		_, err = v.Decrypt([]byte("not-a-fernet-token"))
		assert.True(t, dErrors.Is(err, dErrors.CodeDecryption))
	})

	t.Run("token sealed under a foreign key fails", func(t *testing.T) {
		v1, err := New(encoded)
		require.NoError(t, err)
		v2, err := New(generateKey(t))
		require.NoError(t, err)

		token, err := v2.Encrypt("secret")
		require.NoError(t, err)

		_, err = v1.Decrypt(token)
		assert.True(t, dErrors.Is(err, dErrors.CodeDecryption))
	})
}
