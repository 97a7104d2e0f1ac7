package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/repository/memory"
)

func Test_FormatName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "john doe", want: "John Doe"},
		{in: "  john   ronald doe ", want: "John Ronald Doe"},
		{in: "JOHN DOE", want: "John Doe"},
		{in: "john", want: "John"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatName(tt.in))
	}
}

func Test_PointSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "John Doe", want: "john.doe"},
		{in: "John Ronald Doe", want: "john.ronald.doe"},
		{in: "O'Brien  McDonald", want: "obrien.mcdonald"},
		{in: "John", want: "john"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pointSlug(tt.in))
	}
}

func Test_GenerateUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := memory.NewUserRepo()

	username, err := generateUsername(ctx, repo, "John Doe")
	require.NoError(t, err)
	assert.Equal(t, "john.doe", username)

	createTestRepoUser(t, repo, "first@mail.com", "john.doe")

	username, err = generateUsername(ctx, repo, "John Doe")
	require.NoError(t, err)
	assert.Equal(t, "john.doe1", username)

	createTestRepoUser(t, repo, "second@mail.com", "john.doe1")

	username, err = generateUsername(ctx, repo, "John Doe")
	require.NoError(t, err)
	assert.Equal(t, "john.doe2", username)
}
