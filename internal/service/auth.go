package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/utils"
)

// AuthResult is returned by sign-up and log-in.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// Auth implements sign-up, log-in and admin bootstrap on top of the user
// repository and the session signer.
type Auth struct {
	users        *repository.UserRepo
	sessions     *Sessions
	bcryptCost   int
	bootstrapKey string
	log          *slog.Logger
}

func NewAuth(users *repository.UserRepo, sessions *Sessions, bcryptCost int, bootstrapKey string, log *slog.Logger) *Auth {
	return &Auth{users: users, sessions: sessions, bcryptCost: bcryptCost, bootstrapKey: bootstrapKey, log: log}
}

var errInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid_credentials")

func validateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperr.New(apperr.ErrValidation, "email_and_password_required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.New(apperr.ErrValidation, "invalid_email")
	}
	if len(password) > 72 {
		return apperr.New(apperr.ErrValidation, "password_too_long")
	}
	return nil
}

// SignUp registers a regular user and signs them in.
func (a *Auth) SignUp(ctx context.Context, email, password, name string) (AuthResult, error) {
	u, err := a.register(ctx, email, password, name, model.RoleUser)
	if err != nil {
		return AuthResult{}, err
	}
	return a.issue(u)
}

// CreateAdmin registers an admin when key matches the configured bootstrap
// key.  With no key configured the operation is disabled.
func (a *Auth) CreateAdmin(ctx context.Context, key, email, password, name string) (AuthResult, error) {
	if a.bootstrapKey == "" {
		return AuthResult{}, apperr.New(apperr.ErrForbidden, "admin_bootstrap_disabled")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(a.bootstrapKey)) != 1 {
		a.log.Warn("admin bootstrap rejected", "email", repository.NormalizeEmail(email))
		return AuthResult{}, apperr.New(apperr.ErrForbidden, "invalid_bootstrap_key")
	}
	u, err := a.register(ctx, email, password, name, model.RoleAdmin)
	if err != nil {
		return AuthResult{}, err
	}
	a.log.Info("admin account created", "user_id", u.ID)
	return a.issue(u)
}

// CreateAdminDirect registers an admin without the bootstrap gate.  It is
// only reachable from the operator CLI.
func (a *Auth) CreateAdminDirect(ctx context.Context, email, password, name string) (model.User, error) {
	return a.register(ctx, email, password, name, model.RoleAdmin)
}

func (a *Auth) register(ctx context.Context, email, password, name string, role model.Role) (model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(password, a.bcryptCost)
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.ErrInternal, "hash_failed", err)
	}
	u, err := a.users.Create(ctx, email, name, hash, role)
	if errors.Is(err, repository.ErrEmailExists) {
		return model.User{}, apperr.New(apperr.ErrConflict, "email_exists")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.ErrInternal, "create_user_failed", err)
	}
	return u, nil
}

// LogIn checks the credentials.  Unknown email and wrong password produce
// the same error, and both pay for one bcrypt comparison.
func (a *Auth) LogIn(ctx context.Context, email, password string) (AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return AuthResult{}, apperr.New(apperr.ErrValidation, "email_and_password_required")
	}
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.BurnPasswordCheck(password)
		return AuthResult{}, errInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return AuthResult{}, errInvalidCredentials
	}
	return a.issue(u)
}

// Me resolves the identity to the stored user.
func (a *Auth) Me(ctx context.Context, id Identity) (model.User, error) {
	u, err := a.users.GetByID(ctx, id.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, errUnauthorized
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return u, nil
}

func (a *Auth) issue(u model.User) (AuthResult, error) {
	tok, exp, err := a.sessions.Issue(Identity{UserID: u.ID, Role: u.Role, Email: u.Email})
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.ErrInternal, "issue_session_failed", err)
	}
	return AuthResult{Token: tok, ExpiresAt: exp, User: u}, nil
}
