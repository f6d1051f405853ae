package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestSessions_IssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewSessions("secret", 7*24*time.Hour)
	id := Identity{UserID: 42, Role: model.RoleAdmin, Email: "a@x.com"}

	tok, exp, err := s.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, time.Minute)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSessions_VerifyRejects(t *testing.T) {
	t.Parallel()

	s := NewSessions("secret", time.Hour)
	tok, _, err := s.Issue(Identity{UserID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	expired := NewSessions("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "root", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "user",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name string
		s    *Sessions
		raw  string
	}{
		{name: "garbage", s: s, raw: "not-a-jwt"},
		{name: "wrong secret", s: NewSessions("other", time.Hour), raw: tok},
		{name: "expired", s: expired, raw: tok},
		{name: "alg none", s: s, raw: none},
		{name: "unknown role", s: s, raw: badRole},
		{name: "no expiry", s: s, raw: noExp},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.s.Verify(tt.raw)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	admin := Identity{UserID: 1, Role: model.RoleAdmin}
	user := Identity{UserID: 2, Role: model.RoleUser}

	assert.NoError(t, RequireRole(admin, model.RoleAdmin))
	assert.ErrorIs(t, RequireRole(user, model.RoleAdmin), apperr.ErrForbidden)
	assert.NoError(t, RequireAdmin(admin))
	assert.ErrorIs(t, RequireAdmin(user), apperr.ErrForbidden)
	assert.ErrorIs(t, RequireAdmin(Identity{}), apperr.ErrForbidden)
}
