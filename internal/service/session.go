// Package service holds the application logic between HTTP handlers and the
// repositories: authentication, catalog management, checkout, access tokens
// and notification delivery.  Collaborators that reach outside the process
// (payment gateway, mail server, broker) are injected through interfaces.
package service

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
)

// Identity is the authenticated caller carried by a session token.
type Identity struct {
	UserID uint64     `json:"id"`
	Role   model.Role `json:"role"`
	Email  string     `json:"email"`
}

type sessionClaims struct {
	ID    uint64 `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var errUnauthorized = apperr.New(apperr.ErrUnauthorized, "unauthorized")

// Sessions issues and verifies HS256 session tokens with a fixed lifetime.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for id and returns it with its expiry.
func (s *Sessions) Issue(id Identity) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := sessionClaims{
		ID:    id.UserID,
		Role:  id.Role.String(),
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses raw and returns the identity it carries.  Any malformed,
// foreign, expired or role-less token yields an Unauthorized error.
func (s *Sessions) Verify(raw string) (Identity, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return Identity{}, errUnauthorized
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return Identity{}, errUnauthorized
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, errUnauthorized
	}
	return Identity{UserID: uid, Role: role, Email: claims.Email}, nil
}

// RequireRole fails with Forbidden unless the identity holds role.
func RequireRole(id Identity, role model.Role) error {
	if id.Role != role {
		return apperr.New(apperr.ErrForbidden, "forbidden")
	}
	return nil
}

// RequireAdmin fails with Forbidden unless the identity may administer the
// catalog.
func RequireAdmin(id Identity) error {
	if !id.Role.CanAdminister() {
		return apperr.New(apperr.ErrForbidden, "forbidden")
	}
	return nil
}
