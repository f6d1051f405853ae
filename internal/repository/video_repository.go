package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ramtunguturi36/cvb/internal/model"
)

// VideoRepo manages the catalog.  Deletion is a soft flag: rows are kept so
// that ledger entries and tokens keep a valid reference.
type VideoRepo struct {
	db *sql.DB
}

func NewVideoRepo(db *sql.DB) *VideoRepo { return &VideoRepo{db: db} }

// DB exposes the handle for callers that need to begin a transaction.
func (r *VideoRepo) DB() *sql.DB { return r.db }

const videoColumns = `id, title, description, price_inr, folder, preview_url, thumbnail_url,
	file_url, access_token, is_active, created_at, updated_at`

func scanVideo(s scanner) (model.Video, error) {
	var v model.Video
	err := s.Scan(&v.ID, &v.Title, &v.Description, &v.PriceINR, &v.Folder, &v.PreviewURL,
		&v.ThumbnailURL, &v.FileURL, &v.AccessToken, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func scanVideos(rows *sql.Rows) ([]model.Video, error) {
	defer rows.Close()
	out := []model.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create inserts v and fills in its ID and timestamps.  Folder defaults to
// model.DefaultFolder.
func (r *VideoRepo) Create(ctx context.Context, v *model.Video) error {
	return insertVideo(ctx, r.db, v)
}

// CreateTx is Create inside the caller's transaction.
func (r *VideoRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Video) error {
	return insertVideo(ctx, tx, v)
}

func insertVideo(ctx context.Context, q queryer, v *model.Video) error {
	now := nowUTC()
	if strings.TrimSpace(v.Folder) == "" {
		v.Folder = model.DefaultFolder
	}
	v.CreatedAt, v.UpdatedAt = now, now
	res, err := q.ExecContext(ctx,
		`INSERT INTO videos (title, description, price_inr, folder, preview_url, thumbnail_url,
			file_url, access_token, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		v.Title, v.Description, v.PriceINR, v.Folder, v.PreviewURL, v.ThumbnailURL,
		v.FileURL, v.AccessToken, boolInt(v.IsActive), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// GetByID returns a video regardless of its active flag.
func (r *VideoRepo) GetByID(ctx context.Context, id uint64) (model.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Video{}, ErrVideoNotFound
	}
	return v, err
}

// VideoPatch lists the admin-editable fields.  Nil fields are left unchanged.
type VideoPatch struct {
	Title       *string
	Description *string
	PriceINR    *int64
	Folder      *string
	IsActive    *bool
}

// Empty reports whether the patch changes nothing.
func (p VideoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.PriceINR == nil && p.Folder == nil && p.IsActive == nil
}

// Update applies p to the video and returns the updated row.
func (r *VideoRepo) Update(ctx context.Context, id uint64, p VideoPatch) (model.Video, error) {
	sets := []string{}
	args := []any{}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.PriceINR != nil {
		sets = append(sets, "price_inr = ?")
		args = append(args, *p.PriceINR)
	}
	if p.Folder != nil {
		sets = append(sets, "folder = ?")
		args = append(args, *p.Folder)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolInt(*p.IsActive))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowUTC(), id)

	res, err := r.db.ExecContext(ctx, "UPDATE videos SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return model.Video{}, err
	}
	if ok, err := rowsAffected(res); err != nil {
		return model.Video{}, err
	} else if !ok {
		return model.Video{}, ErrVideoNotFound
	}
	return r.GetByID(ctx, id)
}

// SoftDelete hides the video from the feed and from new purchases.
func (r *VideoRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE videos SET is_active = 0, updated_at = ? WHERE id = ?", nowUTC(), id)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVideoNotFound
	}
	return nil
}

// SetAccessTokenTx records the permanent preview token minted with the video.
func (r *VideoRepo) SetAccessTokenTx(ctx context.Context, tx *sql.Tx, id uint64, token string) error {
	_, err := tx.ExecContext(ctx, "UPDATE videos SET access_token = ?, updated_at = ? WHERE id = ?", token, nowUTC(), id)
	return err
}

// FeedCursor identifies the last item of a feed page.  Pages are ordered by
// (created_at DESC, id DESC) so the pair is a strict position.
type FeedCursor struct {
	CreatedAt time.Time
	ID        uint64
}

// Encode returns the opaque form handed to clients.
func (c FeedCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatUint(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeFeedCursor parses a cursor produced by Encode.
func DecodeFeedCursor(s string) (FeedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return FeedCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return FeedCursor{}, errors.New("decode cursor: malformed")
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return FeedCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return FeedCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return FeedCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: n}, nil
}

// FeedQuery selects one page of active videos.  When After is set the page
// starts strictly after that cursor; otherwise Page (1-based) is used as an
// offset.
type FeedQuery struct {
	Search string
	After  *FeedCursor
	Page   int
	Limit  int
}

// FeedPage is one page of the public feed.
type FeedPage struct {
	Items      []model.Video
	Total      int64
	HasMore    bool
	NextCursor string
}

// escapeLike escapes LIKE wildcards using '!' as the escape character, which
// both MySQL and SQLite accept without string-literal backslash rules.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// Feed returns active videos newest first with an optional case-insensitive
// substring filter over title, description and folder.
func (r *VideoRepo) Feed(ctx context.Context, q FeedQuery) (FeedPage, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	where := []string{"is_active = 1"}
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(folder) LIKE ? ESCAPE '!')`)
		args = append(args, pattern, pattern, pattern)
	}
	cond := strings.Join(where, " AND ")

	var page FeedPage
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos WHERE "+cond, args...).Scan(&page.Total); err != nil {
		return FeedPage{}, err
	}

	dataArgs := append([]any{}, args...)
	dataCond := cond
	offset := 0
	if q.After != nil {
		dataCond += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		dataArgs = append(dataArgs, q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
	} else if q.Page > 1 {
		offset = (q.Page - 1) * q.Limit
	}
	dataArgs = append(dataArgs, q.Limit+1, offset)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE "+dataCond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		dataArgs...)
	if err != nil {
		return FeedPage{}, err
	}
	items, err := scanVideos(rows)
	if err != nil {
		return FeedPage{}, err
	}
	if len(items) > q.Limit {
		items = items[:q.Limit]
		page.HasMore = true
	}
	page.Items = items
	if page.HasMore {
		last := items[len(items)-1]
		page.NextCursor = FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return page, nil
}

// ListAdmin returns every video, active or not, newest first, optionally
// restricted to one folder.
func (r *VideoRepo) ListAdmin(ctx context.Context, folder string) ([]model.Video, error) {
	q := "SELECT " + videoColumns + " FROM videos"
	args := []any{}
	if folder != "" {
		q += " WHERE folder = ?"
		args = append(args, folder)
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	return scanVideos(rows)
}

// Folders returns the distinct folder labels in alphabetical order.
func (r *VideoRepo) Folders(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT folder FROM videos ORDER BY folder")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ActiveByIDs loads the active videos among ids, keyed by id.
func (r *VideoRepo) ActiveByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Video, error) {
	out := make(map[uint64]model.Video, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE is_active = 1 AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, err
	}
	for _, v := range videos {
		out[v.ID] = v
	}
	return out, nil
}
