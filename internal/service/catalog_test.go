package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestCatalog_CreateMintsPreviewToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)

	v, err := h.catalog.Create(ctx, admin, VideoInput{Title: " Intro ", PriceINR: 10})
	require.NoError(t, err)
	assert.Equal(t, "Intro", v.Title)
	assert.Equal(t, model.DefaultFolder, v.Folder)
	require.NotEmpty(t, v.AccessToken)

	tok, err := h.tokens.GetByToken(ctx, v.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.UserID, tok.UserID)
	assert.Equal(t, 1000, tok.MaxDownloads)
	assert.Nil(t, tok.TransactionID)
	assert.WithinDuration(t, time.Now().Add(365*24*time.Hour), tok.ExpiresAt, time.Minute)

	stored, err := h.videos.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.AccessToken, stored.AccessToken)
}

func TestCatalog_AdminOperationsRequireAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.user(t, "a@x.com", model.RoleUser)

	_, err := h.catalog.Create(ctx, user, VideoInput{Title: "x", PriceINR: 1})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = h.catalog.AdminVideos(ctx, user, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = h.catalog.AdminTransactions(ctx, user)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = h.catalog.Folders(ctx, user)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, h.catalog.Delete(ctx, user, 1), apperr.ErrForbidden)
}

func TestCatalog_CreateValidation(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root@x.com", model.RoleAdmin)

	_, err := h.catalog.Create(context.Background(), admin, VideoInput{Title: "", PriceINR: 10})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.catalog.Create(context.Background(), admin, VideoInput{Title: "x", PriceINR: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCatalog_UploadStoresFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)

	v, err := h.catalog.Upload(ctx, admin, VideoInput{Title: "Clip", PriceINR: 99, Folder: "Demos"},
		&UploadFile{Filename: "thumb.PNG", ContentType: "image/png", Body: strings.NewReader("png-bytes")},
		&UploadFile{Filename: "movie.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4-bytes")},
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.FileURL, "/uploads/videos/fullFile-"))
	assert.True(t, strings.HasSuffix(v.FileURL, ".mp4"))
	assert.True(t, strings.HasPrefix(v.PreviewURL, "/uploads/videos/previewFile-"))
	assert.True(t, strings.HasSuffix(v.PreviewURL, ".png"))
	assert.Equal(t, v.PreviewURL, v.ThumbnailURL)
	assert.Equal(t, "Demos", v.Folder)

	body, err := os.ReadFile(filepath.Join(h.catalog.uploadDir, "videos", filepath.Base(v.FileURL)))
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(body))
}

func TestCatalog_UploadRollsBackWhenMintFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)
	h.access.newToken = func() (string, error) { return "", errors.New("rng down") }

	_, err := h.catalog.Upload(ctx, admin, VideoInput{Title: "Clip", PriceINR: 99}, nil,
		&UploadFile{Filename: "movie.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4-bytes")})
	require.Error(t, err)

	feed, err := h.catalog.Feed(ctx, FeedParams{})
	require.NoError(t, err)
	assert.Empty(t, feed.Videos)
	assert.Zero(t, feed.Total)

	all, err := h.catalog.AdminVideos(ctx, admin, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	entries, _ := os.ReadDir(filepath.Join(h.catalog.uploadDir, "videos"))
	assert.Empty(t, entries)
}

func TestCatalog_UploadRejectsWrongTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)
	in := VideoInput{Title: "Clip", PriceINR: 99}

	_, err := h.catalog.Upload(ctx, admin, in, nil,
		&UploadFile{Filename: "a.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.catalog.Upload(ctx, admin, in,
		&UploadFile{Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x")},
		&UploadFile{Filename: "b.mp4", ContentType: "video/mp4", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.catalog.Upload(ctx, admin, in, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	entries, _ := os.ReadDir(filepath.Join(h.catalog.uploadDir, "videos"))
	assert.Empty(t, entries)
	assert.Zero(t, h.count(t, "videos"))
}

func TestCatalog_FeedHidesPreviewTokensAndClampsLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)
	_, err := h.catalog.Create(ctx, admin, VideoInput{Title: "one", PriceINR: 1})
	require.NoError(t, err)

	res, err := h.catalog.Feed(ctx, FeedParams{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxFeedLimit, res.Limit)
	require.Len(t, res.Videos, 1)
	assert.Empty(t, res.Videos[0].AccessToken)

	_, err = h.catalog.Feed(ctx, FeedParams{Cursor: "%%%"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCatalog_GetAndUpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "root@x.com", model.RoleAdmin)
	v, err := h.catalog.Create(ctx, admin, VideoInput{Title: "one", PriceINR: 1})
	require.NoError(t, err)

	got, err := h.catalog.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AccessToken)

	price := int64(0)
	_, err = h.catalog.Update(ctx, admin, v.ID, VideoUpdate{PriceINR: &price})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.catalog.Update(ctx, admin, v.ID, VideoUpdate{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	folder := "  "
	price = 5
	upd, err := h.catalog.Update(ctx, admin, v.ID, VideoUpdate{PriceINR: &price, Folder: &folder})
	require.NoError(t, err)
	assert.Equal(t, int64(5), upd.PriceINR)
	assert.Equal(t, model.DefaultFolder, upd.Folder)

	require.NoError(t, h.catalog.Delete(ctx, admin, v.ID))
	_, err = h.catalog.Get(ctx, v.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, h.catalog.Delete(ctx, admin, 9999), apperr.ErrNotFound)

	all, err := h.catalog.AdminVideos(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestCatalog_PurchasedJoinsPaidActiveVideosWithTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "a@x.com", model.RoleUser)
	admin := h.user(t, "root@x.com", model.RoleAdmin)
	bought := h.video(t, "bought", true)
	removed := h.video(t, "removed", true)
	pending := h.video(t, "pending", true)

	for _, vid := range []uint64{bought.ID, bought.ID, removed.ID} {
		o, err := h.checkout.Initiate(ctx, u.UserID, vid)
		require.NoError(t, err)
		_, err = h.checkout.Finalize(ctx, paidInput(o, u))
		require.NoError(t, err)
	}
	_, err := h.checkout.Initiate(ctx, u.UserID, pending.ID)
	require.NoError(t, err)
	require.NoError(t, h.catalog.Delete(ctx, admin, removed.ID))

	items, err := h.catalog.Purchased(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bought.ID, items[0].ID)
	assert.Len(t, items[0].Tokens, 2, "both paid orders granted a token")

	mine, err := h.catalog.MyTransactions(ctx, u.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 4)

	ledger, err := h.catalog.AdminTransactions(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, ledger, 4)
}
