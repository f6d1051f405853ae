package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/utils"
)

// Rejection reasons reported by Verify and Consume.  Each one is a distinct
// client-visible outcome.
var (
	ErrTokenInvalid = apperr.New(apperr.ErrTokenRejected, "invalid")
	ErrTokenRevoked = apperr.New(apperr.ErrTokenRejected, "revoked")
	ErrTokenExpired = apperr.New(apperr.ErrTokenRejected, "expired")
	ErrTokenLimit   = apperr.New(apperr.ErrTokenRejected, "limit")
)

const mintAttempts = 5

// AccessTokens mints, checks and redeems access tokens.
type AccessTokens struct {
	tokens   *repository.AccessTokenRepo
	videos   *repository.VideoRepo
	log      *slog.Logger
	now      func() time.Time
	newToken func() (string, error)
}

func NewAccessTokens(tokens *repository.AccessTokenRepo, videos *repository.VideoRepo, log *slog.Logger) *AccessTokens {
	return &AccessTokens{tokens: tokens, videos: videos, log: log, now: time.Now, newToken: utils.NewTokenString}
}

// MintSpec describes a token to mint.
type MintSpec struct {
	UserID        uint64
	VideoID       uint64
	TransactionID *uint64
	TTL           time.Duration
	MaxDownloads  int
}

func (s MintSpec) validate() error {
	if s.UserID == 0 || s.VideoID == 0 {
		return apperr.New(apperr.ErrValidation, "user_and_video_required")
	}
	if s.TTL <= 0 || s.MaxDownloads < 1 {
		return apperr.New(apperr.ErrValidation, "invalid_token_policy")
	}
	return nil
}

// Mint creates a token with a fresh random value.
func (a *AccessTokens) Mint(ctx context.Context, spec MintSpec) (model.AccessToken, error) {
	return a.mint(spec, func(t *model.AccessToken) error { return a.tokens.Create(ctx, t) })
}

// MintTx is Mint inside the caller's database transaction.
func (a *AccessTokens) MintTx(ctx context.Context, tx *sql.Tx, spec MintSpec) (model.AccessToken, error) {
	return a.mint(spec, func(t *model.AccessToken) error { return a.tokens.CreateTx(ctx, tx, t) })
}

// mint retries with a new value when the store reports a collision.  With
// 192 random bits a collision means a broken RNG more than bad luck, so the
// number of attempts is small.
func (a *AccessTokens) mint(spec MintSpec, insert func(*model.AccessToken) error) (model.AccessToken, error) {
	if err := spec.validate(); err != nil {
		return model.AccessToken{}, err
	}
	var lastErr error
	for i := 0; i < mintAttempts; i++ {
		value, err := a.newToken()
		if err != nil {
			return model.AccessToken{}, apperr.Wrap(apperr.ErrInternal, "token_generation_failed", err)
		}
		t := model.AccessToken{
			UserID:        spec.UserID,
			VideoID:       spec.VideoID,
			TransactionID: spec.TransactionID,
			Token:         value,
			ExpiresAt:     a.now().UTC().Add(spec.TTL),
			MaxDownloads:  spec.MaxDownloads,
		}
		err = insert(&t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return model.AccessToken{}, apperr.Wrap(apperr.ErrInternal, "mint_failed", err)
		}
		a.log.Warn("access token collision, retrying", "attempt", i+1)
		lastErr = err
	}
	return model.AccessToken{}, apperr.Wrap(apperr.ErrInternal, "mint_failed", lastErr)
}

// rejection maps a token's state to its reason error, or nil when usable.
func rejection(t model.AccessToken, now time.Time) error {
	switch t.State(now) {
	case model.TokenRevoked:
		return ErrTokenRevoked
	case model.TokenExpired:
		return ErrTokenExpired
	case model.TokenExhausted:
		return ErrTokenLimit
	}
	return nil
}

func (a *AccessTokens) load(ctx context.Context, token string) (model.AccessToken, error) {
	if token == "" {
		return model.AccessToken{}, ErrTokenInvalid
	}
	t, err := a.tokens.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return model.AccessToken{}, ErrTokenInvalid
	}
	if err != nil {
		return model.AccessToken{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return t, nil
}

// VerifyResult is a usable token together with the video it unlocks.
type VerifyResult struct {
	Token model.AccessToken
	Video model.Video
}

// Verify reports whether token is usable right now.  It never changes the
// token.
func (a *AccessTokens) Verify(ctx context.Context, token string) (VerifyResult, error) {
	t, err := a.load(ctx, token)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := rejection(t, a.now()); err != nil {
		return VerifyResult{}, err
	}
	v, err := a.videos.GetByID(ctx, t.VideoID)
	if errors.Is(err, repository.ErrVideoNotFound) {
		return VerifyResult{}, ErrTokenInvalid
	}
	if err != nil {
		return VerifyResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return VerifyResult{Token: t, Video: v}, nil
}

// Consume spends one redemption and returns the updated token.  The
// increment is one conditional statement, so concurrent redemptions can
// never push the count past the limit.  When it is refused the token is
// re-read to report the precise reason.
func (a *AccessTokens) Consume(ctx context.Context, token string) (model.AccessToken, error) {
	if token == "" {
		return model.AccessToken{}, ErrTokenInvalid
	}
	now := a.now()
	ok, err := a.tokens.Consume(ctx, token, now)
	if err != nil {
		return model.AccessToken{}, apperr.Wrap(apperr.ErrInternal, "consume_failed", err)
	}
	t, err := a.load(ctx, token)
	if err != nil {
		return model.AccessToken{}, err
	}
	if ok {
		return t, nil
	}
	if err := rejection(t, now); err != nil {
		return model.AccessToken{}, err
	}
	// The row changed between the refused update and the re-read; the
	// limit is the only state that can be reached that way.
	return model.AccessToken{}, ErrTokenLimit
}

// Revoke disables a token permanently.
func (a *AccessTokens) Revoke(ctx context.Context, token string) error {
	err := a.tokens.Revoke(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return apperr.New(apperr.ErrNotFound, "token_not_found")
	}
	if err != nil {
		return apperr.Wrap(apperr.ErrInternal, "revoke_failed", err)
	}
	return nil
}

// OwnedToken is a token listed for its owner with its QR image.
type OwnedToken struct {
	repository.TokenDetail
	Remaining int    `json:"downloadsRemaining"`
	Usable    bool   `json:"usable"`
	QRDataURI string `json:"qrCode,omitempty"`
}

// ListByUser returns the caller's tokens, newest first, each with its QR
// code rendered.
func (a *AccessTokens) ListByUser(ctx context.Context, userID uint64) ([]OwnedToken, error) {
	rows, err := a.tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	now := a.now()
	out := make([]OwnedToken, 0, len(rows))
	for _, r := range rows {
		o := OwnedToken{TokenDetail: r, Remaining: r.Remaining(), Usable: r.State(now) == model.TokenActive}
		if qr, err := RenderQR(r.Token); err == nil {
			o.QRDataURI = qr.DataURI
		} else {
			a.log.Warn("qr render failed", "token_id", r.ID, "error", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// QRImage is a rendered token.
type QRImage struct {
	PNG     []byte
	DataURI string
}

// QRSize is the side of the rendered square in pixels.
const QRSize = 256

// RenderQR encodes token as a PNG QR code with medium error recovery.
func RenderQR(token string) (QRImage, error) {
	if token == "" {
		return QRImage{}, apperr.New(apperr.ErrValidation, "token_required")
	}
	png, err := qrcode.Encode(token, qrcode.Medium, QRSize)
	if err != nil {
		return QRImage{}, fmt.Errorf("qr encode: %w", err)
	}
	return QRImage{PNG: png, DataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)}, nil
}
