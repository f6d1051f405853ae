package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestUserRepo_CreateAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Create(ctx, "  A@X.com ", "Ann", "hash", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotZero(t, u.ID)

	got, err := f.users.GetByEmail(ctx, "a@X.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, "a@x.com", "", "h1", model.RoleUser)
	require.NoError(t, err)
	_, err = f.users.Create(ctx, "A@x.com", "", "h2", model.RoleUser)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
