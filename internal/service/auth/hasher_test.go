package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Argon2Hasher(t *testing.T) {
	t.Parallel()

	hasher := DefaultHasher()

	t.Run("hash and compare ok", func(t *testing.T) {
		hash, err := hasher.Hash("strong-password")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "hash should be in PHC format")
		assert.NoError(t, hasher.Compare(hash, "strong-password"))
	})

	t.Run("compare fails on wrong password", func(t *testing.T) {
		hash, err := hasher.Hash("strong-password")
		require.NoError(t, err)

		assert.Error(t, hasher.Compare(hash, "other-password"))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		first, err := hasher.Hash("strong-password")
		require.NoError(t, err)

		second, err := hasher.Hash("strong-password")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("compare fails on garbage hash", func(t *testing.T) {
		assert.Error(t, hasher.Compare("not-a-hash", "whatever"))
		assert.Error(t, hasher.Compare("$argon2id$v=19$m=bad$x$y", "whatever"))
	})
}
