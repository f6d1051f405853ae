package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/repository"
)

// Feed limits.
const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 50
)

// Catalog manages videos and the read models built on the ledger.
type Catalog struct {
	videos    *repository.VideoRepo
	txns      *repository.TransactionRepo
	tokens    *repository.AccessTokenRepo
	access    *AccessTokens
	uploadDir string
	preview   AccessPolicy
	log       *slog.Logger
	now       func() time.Time
}

func NewCatalog(
	videos *repository.VideoRepo,
	txns *repository.TransactionRepo,
	tokens *repository.AccessTokenRepo,
	access *AccessTokens,
	uploadDir string,
	preview AccessPolicy,
	log *slog.Logger,
) *Catalog {
	return &Catalog{videos: videos, txns: txns, tokens: tokens, access: access, uploadDir: uploadDir,
		preview: preview, log: log, now: time.Now}
}

// FeedParams selects a feed page.  Cursor wins over Page when both are set.
type FeedParams struct {
	Search string
	Cursor string
	Page   int
	Limit  int
}

// FeedResult is one page of the public feed.
type FeedResult struct {
	Videos     []model.Video `json:"videos"`
	Total      int64         `json:"total"`
	Page       int           `json:"page,omitempty"`
	Limit      int           `json:"limit"`
	HasMore    bool          `json:"hasMore"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// Feed lists active videos newest first.
func (c *Catalog) Feed(ctx context.Context, p FeedParams) (FeedResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	q := repository.FeedQuery{Search: p.Search, Limit: limit}
	if p.Cursor != "" {
		cur, err := repository.DecodeFeedCursor(p.Cursor)
		if err != nil {
			return FeedResult{}, apperr.Wrap(apperr.ErrValidation, "invalid_cursor", err)
		}
		q.After = &cur
	} else {
		q.Page = p.Page
		if q.Page < 1 {
			q.Page = 1
		}
	}
	page, err := c.videos.Feed(ctx, q)
	if err != nil {
		return FeedResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	res := FeedResult{
		Videos:     page.Items,
		Total:      page.Total,
		Page:       q.Page,
		Limit:      limit,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}
	for i := range res.Videos {
		// preview tokens are for admins only
		res.Videos[i].AccessToken = ""
	}
	return res, nil
}

// Get returns one active video.
func (c *Catalog) Get(ctx context.Context, id uint64) (model.Video, error) {
	v, err := c.videos.GetByID(ctx, id)
	if errors.Is(err, repository.ErrVideoNotFound) || (err == nil && !v.IsActive) {
		return model.Video{}, apperr.New(apperr.ErrNotFound, "video_not_found")
	}
	if err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	v.AccessToken = ""
	return v, nil
}

// VideoInput holds the admin-supplied metadata of a new video.
type VideoInput struct {
	Title        string
	Description  string
	PriceINR     int64
	Folder       string
	PreviewURL   string
	ThumbnailURL string
	FileURL      string
}

func (in VideoInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.New(apperr.ErrValidation, "title_required")
	}
	if in.PriceINR < 1 {
		return apperr.New(apperr.ErrValidation, "price_must_be_positive")
	}
	return nil
}

// Create adds a video and mints its permanent preview token, owned by the
// admin who created it.  Both rows are written in one transaction.
func (c *Catalog) Create(ctx context.Context, admin Identity, in VideoInput) (model.Video, error) {
	if err := RequireAdmin(admin); err != nil {
		return model.Video{}, err
	}
	if err := in.validate(); err != nil {
		return model.Video{}, err
	}
	v := model.Video{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		PriceINR:     in.PriceINR,
		Folder:       strings.TrimSpace(in.Folder),
		PreviewURL:   in.PreviewURL,
		ThumbnailURL: in.ThumbnailURL,
		FileURL:      in.FileURL,
		IsActive:     true,
	}
	tx, err := c.videos.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "begin_failed", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := c.videos.CreateTx(ctx, tx, &v); err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "create_video_failed", err)
	}
	tok, err := c.access.MintTx(ctx, tx, MintSpec{
		UserID:       admin.UserID,
		VideoID:      v.ID,
		TTL:          c.preview.TTL,
		MaxDownloads: c.preview.MaxDownloads,
	})
	if err != nil {
		return model.Video{}, err
	}
	if err := c.videos.SetAccessTokenTx(ctx, tx, v.ID, tok.Token); err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "store_preview_token_failed", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "commit_failed", err)
	}
	committed = true
	v.AccessToken = tok.Token
	c.log.Info("video created", "video_id", v.ID, "admin_id", admin.UserID)
	return v, nil
}

// UploadFile is one multipart file part.
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Upload stores the preview image and the full video under the upload
// directory and creates the catalog entry pointing at them.
func (c *Catalog) Upload(ctx context.Context, admin Identity, in VideoInput, preview, full *UploadFile) (model.Video, error) {
	if err := RequireAdmin(admin); err != nil {
		return model.Video{}, err
	}
	if err := in.validate(); err != nil {
		return model.Video{}, err
	}
	if full == nil {
		return model.Video{}, apperr.New(apperr.ErrValidation, "full_file_required")
	}
	if !strings.HasPrefix(strings.ToLower(full.ContentType), "video/") {
		return model.Video{}, apperr.New(apperr.ErrValidation, "full_file_must_be_video")
	}
	if preview != nil && !strings.HasPrefix(strings.ToLower(preview.ContentType), "image/") {
		return model.Video{}, apperr.New(apperr.ErrValidation, "preview_file_must_be_image")
	}

	var saved []string
	cleanup := func() {
		for _, p := range saved {
			_ = os.Remove(p)
		}
	}

	fullPath, fullURL, err := c.store("fullFile", full)
	if err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "store_file_failed", err)
	}
	saved = append(saved, fullPath)
	in.FileURL = fullURL

	if preview != nil {
		previewPath, previewURL, err := c.store("previewFile", preview)
		if err != nil {
			cleanup()
			return model.Video{}, apperr.Wrap(apperr.ErrInternal, "store_file_failed", err)
		}
		saved = append(saved, previewPath)
		in.PreviewURL = previewURL
		in.ThumbnailURL = previewURL
	}

	v, err := c.Create(ctx, admin, in)
	if err != nil {
		cleanup()
		return model.Video{}, err
	}
	return v, nil
}

// store writes f to UPLOAD_DIR/videos/<field>-<uuid><ext> and returns the
// file path and its public URL.
func (c *Catalog) store(field string, f *UploadFile) (string, string, error) {
	dir := filepath.Join(c.uploadDir, "videos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir uploads: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(f.Filename)))
	if len(ext) > 10 {
		ext = ""
	}
	name := field + "-" + uuid.NewString() + ext
	p := filepath.Join(dir, name)
	out, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(out, f.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(p)
		return "", "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(p)
		return "", "", fmt.Errorf("close %s: %w", name, err)
	}
	return p, path.Join("/uploads", "videos", name), nil
}

// VideoUpdate is a partial admin edit.  Nil fields are left as they are.
type VideoUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PriceINR    *int64  `json:"priceINR"`
	Folder      *string `json:"folder"`
	IsActive    *bool   `json:"isActive"`
}

// Update edits a video.
func (c *Catalog) Update(ctx context.Context, admin Identity, id uint64, u VideoUpdate) (model.Video, error) {
	if err := RequireAdmin(admin); err != nil {
		return model.Video{}, err
	}
	patch := repository.VideoPatch{
		Title:       u.Title,
		Description: u.Description,
		PriceINR:    u.PriceINR,
		Folder:      u.Folder,
		IsActive:    u.IsActive,
	}
	if patch.Empty() {
		return model.Video{}, apperr.New(apperr.ErrValidation, "nothing_to_update")
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return model.Video{}, apperr.New(apperr.ErrValidation, "title_required")
		}
		patch.Title = &t
	}
	if patch.PriceINR != nil && *patch.PriceINR < 1 {
		return model.Video{}, apperr.New(apperr.ErrValidation, "price_must_be_positive")
	}
	if patch.Folder != nil {
		f := strings.TrimSpace(*patch.Folder)
		if f == "" {
			f = model.DefaultFolder
		}
		patch.Folder = &f
	}
	v, err := c.videos.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrVideoNotFound) {
		return model.Video{}, apperr.New(apperr.ErrNotFound, "video_not_found")
	}
	if err != nil {
		return model.Video{}, apperr.Wrap(apperr.ErrInternal, "update_failed", err)
	}
	return v, nil
}

// Delete hides a video.  Rows are kept for the ledger.
func (c *Catalog) Delete(ctx context.Context, admin Identity, id uint64) error {
	if err := RequireAdmin(admin); err != nil {
		return err
	}
	err := c.videos.SoftDelete(ctx, id)
	if errors.Is(err, repository.ErrVideoNotFound) {
		return apperr.New(apperr.ErrNotFound, "video_not_found")
	}
	if err != nil {
		return apperr.Wrap(apperr.ErrInternal, "delete_failed", err)
	}
	c.log.Info("video deactivated", "video_id", id, "admin_id", admin.UserID)
	return nil
}

// PurchasedVideo is an owned video with its currently valid tokens.
type PurchasedVideo struct {
	model.Video
	PurchasedAt time.Time           `json:"purchasedAt"`
	Tokens      []model.AccessToken `json:"tokens"`
}

// Purchased lists the active videos the user has paid for, one entry per
// video, each with its unexpired unrevoked tokens.
func (c *Catalog) Purchased(ctx context.Context, userID uint64) ([]PurchasedVideo, error) {
	purchases, err := c.txns.PaidPurchases(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	ids := make([]uint64, 0, len(purchases))
	for _, p := range purchases {
		ids = append(ids, p.VideoID)
	}
	videos, err := c.videos.ActiveByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	tokens, err := c.tokens.ActiveByUser(ctx, userID, c.now())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	out := []PurchasedVideo{}
	for _, p := range purchases {
		v, ok := videos[p.VideoID]
		if !ok {
			continue
		}
		v.AccessToken = ""
		toks := tokens[p.VideoID]
		if toks == nil {
			toks = []model.AccessToken{}
		}
		out = append(out, PurchasedVideo{Video: v, PurchasedAt: p.PurchasedAt, Tokens: toks})
	}
	return out, nil
}

// MyTransactions lists the caller's ledger entries.
func (c *Catalog) MyTransactions(ctx context.Context, userID uint64) ([]repository.TransactionDetail, error) {
	rows, err := c.txns.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return rows, nil
}

// AdminTransactions lists the whole ledger.
func (c *Catalog) AdminTransactions(ctx context.Context, admin Identity) ([]repository.AdminTransactionRow, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	rows, err := c.txns.ListAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return rows, nil
}

// AdminVideos lists every video including inactive ones and their preview
// tokens.
func (c *Catalog) AdminVideos(ctx context.Context, admin Identity, folder string) ([]model.Video, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	rows, err := c.videos.ListAdmin(ctx, strings.TrimSpace(folder))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return rows, nil
}

// Folders lists the distinct folder labels.
func (c *Catalog) Folders(ctx context.Context, admin Identity) ([]string, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	rows, err := c.videos.Folders(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	return rows, nil
}
