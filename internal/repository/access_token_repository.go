package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ramtunguturi36/cvb/internal/model"
)

// AccessTokenRepo persists redeemable access tokens.  Tokens are never
// deleted; revocation is a flag and redemption is a counter.
type AccessTokenRepo struct {
	db *sql.DB
}

func NewAccessTokenRepo(db *sql.DB) *AccessTokenRepo { return &AccessTokenRepo{db: db} }

const tokenColumns = `id, user_id, video_id, transaction_id, token, expires_at, max_downloads,
	download_count, is_revoked, created_at`

func scanToken(s scanner) (model.AccessToken, error) {
	var (
		t     model.AccessToken
		txnID sql.NullInt64
	)
	err := s.Scan(&t.ID, &t.UserID, &t.VideoID, &txnID, &t.Token, &t.ExpiresAt, &t.MaxDownloads,
		&t.DownloadCount, &t.IsRevoked, &t.CreatedAt)
	if err != nil {
		return model.AccessToken{}, err
	}
	if txnID.Valid {
		id := uint64(txnID.Int64)
		t.TransactionID = &id
	}
	return t, nil
}

// Create inserts t.  A collision on the token string yields ErrDuplicateToken
// so that the caller can retry with a fresh value.
func (r *AccessTokenRepo) Create(ctx context.Context, t *model.AccessToken) error {
	return insertToken(ctx, r.db, t)
}

// CreateTx is Create inside the caller's transaction.
func (r *AccessTokenRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.AccessToken) error {
	return insertToken(ctx, tx, t)
}

func insertToken(ctx context.Context, q queryer, t *model.AccessToken) error {
	t.CreatedAt = nowUTC()
	t.ExpiresAt = t.ExpiresAt.UTC().Truncate(time.Microsecond)
	var txnID any
	if t.TransactionID != nil {
		txnID = *t.TransactionID
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO access_tokens (user_id, video_id, transaction_id, token, expires_at, max_downloads,
			download_count, is_revoked, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		t.UserID, t.VideoID, txnID, t.Token, t.ExpiresAt, t.MaxDownloads,
		t.DownloadCount, boolInt(t.IsRevoked), t.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateToken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByToken loads a token by its string.  It never modifies the row.
func (r *AccessTokenRepo) GetByToken(ctx context.Context, token string) (model.AccessToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM access_tokens WHERE token = ?", token))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessToken{}, ErrTokenNotFound
	}
	return t, err
}

// GetByTransactionIDTx returns the token minted for a paid transaction.
func (r *AccessTokenRepo) GetByTransactionIDTx(ctx context.Context, tx *sql.Tx, txnID uint64) (model.AccessToken, error) {
	return getTokenByTxn(ctx, tx, txnID)
}

// GetByTransactionID is GetByTransactionIDTx outside a transaction.
func (r *AccessTokenRepo) GetByTransactionID(ctx context.Context, txnID uint64) (model.AccessToken, error) {
	return getTokenByTxn(ctx, r.db, txnID)
}

func getTokenByTxn(ctx context.Context, q queryer, txnID uint64) (model.AccessToken, error) {
	t, err := scanToken(q.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM access_tokens WHERE transaction_id = ? ORDER BY id LIMIT 1", txnID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessToken{}, ErrTokenNotFound
	}
	return t, err
}

// Consume spends one redemption in a single conditional statement.  It
// reports false when the token is missing, revoked, expired at now or
// already at its limit; the row is untouched in that case.
func (r *AccessTokenRepo) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET download_count = download_count + 1
		 WHERE token = ? AND is_revoked = 0 AND expires_at > ? AND download_count < max_downloads`,
		token, now.UTC())
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Revoke sets the revoked flag.  Revoking twice is not an error.
func (r *AccessTokenRepo) Revoke(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE access_tokens SET is_revoked = 1 WHERE token = ?", token)
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		// MySQL reports zero affected rows when the value is unchanged.
		if _, err := r.GetByToken(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// TokenDetail is a token joined with the title and file of its video.
type TokenDetail struct {
	model.AccessToken
	VideoTitle   string `json:"videoTitle"`
	VideoFileURL string `json:"videoFileUrl"`
}

// ListByUser returns every token owned by the user, newest first.
func (r *AccessTokenRepo) ListByUser(ctx context.Context, userID uint64) ([]TokenDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.video_id, a.transaction_id, a.token, a.expires_at, a.max_downloads,
		        a.download_count, a.is_revoked, a.created_at, v.title, v.file_url
		 FROM access_tokens a
		 JOIN videos v ON v.id = a.video_id
		 WHERE a.user_id = ?
		 ORDER BY a.created_at DESC, a.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TokenDetail{}
	for rows.Next() {
		var (
			d     TokenDetail
			txnID sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.VideoID, &txnID, &d.Token, &d.ExpiresAt, &d.MaxDownloads,
			&d.DownloadCount, &d.IsRevoked, &d.CreatedAt, &d.VideoTitle, &d.VideoFileURL); err != nil {
			return nil, err
		}
		if txnID.Valid {
			id := uint64(txnID.Int64)
			d.TransactionID = &id
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ActiveByUser returns the user's tokens that are neither revoked nor
// expired at now, grouped by video id.  Exhausted tokens are included so
// that the owner can still see them.
func (r *AccessTokenRepo) ActiveByUser(ctx context.Context, userID uint64, now time.Time) (map[uint64][]model.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tokenColumns+` FROM access_tokens
		 WHERE user_id = ? AND is_revoked = 0 AND expires_at > ?
		 ORDER BY created_at DESC, id DESC`, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uint64][]model.AccessToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out[t.VideoID] = append(out[t.VideoID], t)
	}
	return out, rows.Err()
}
