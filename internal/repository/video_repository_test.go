package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestVideoRepo_CreateDefaultsFolder(t *testing.T) {
	f := newFixture(t)
	v := f.video(t, "intro")

	got, err := f.videos.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFolder, got.Folder)
	assert.True(t, got.IsActive)
	assert.Equal(t, int64(99), got.PriceINR)
}

func TestVideoRepo_UpdatePatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.video(t, "intro")

	title := "renamed"
	price := int64(250)
	got, err := f.videos.Update(ctx, v.ID, VideoPatch{Title: &title, PriceINR: &price})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, int64(250), got.PriceINR)
	assert.Equal(t, v.Description, got.Description)

	_, err = f.videos.Update(ctx, 9999, VideoPatch{Title: &title})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestVideoRepo_SoftDeleteHidesFromFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.video(t, "keep")
	gone := f.video(t, "gone")

	require.NoError(t, f.videos.SoftDelete(ctx, gone.ID))

	page, err := f.videos.Feed(ctx, FeedQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, keep.ID, page.Items[0].ID)
	assert.Equal(t, int64(1), page.Total)

	row, err := f.videos.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, row.IsActive)

	all, err := f.videos.ListAdmin(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, f.videos.SoftDelete(ctx, 424242), ErrVideoNotFound)
}

func TestVideoRepo_FeedSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.video(t, "Golang Basics")
	v := model.Video{Title: "Cooking", Description: "pasta", PriceINR: 10, Folder: "Kitchen", IsActive: true}
	require.NoError(t, f.videos.Create(ctx, &v))
	f.video(t, "100% pure")

	page, err := f.videos.Feed(ctx, FeedQuery{Search: "GOLANG", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Golang Basics", page.Items[0].Title)

	page, err = f.videos.Feed(ctx, FeedQuery{Search: "kitch", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, v.ID, page.Items[0].ID)

	// '%' is matched literally.
	page, err = f.videos.Feed(ctx, FeedQuery{Search: "0%", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "100% pure", page.Items[0].Title)
}

func TestVideoRepo_FeedCursorStableUnderHeadInserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := map[uint64]bool{}
	for i := 0; i < 7; i++ {
		v := f.video(t, fmt.Sprintf("v%d", i))
		want[v.ID] = true
	}

	seen := map[uint64]int{}
	var after *FeedCursor
	for pages := 0; pages < 10; pages++ {
		page, err := f.videos.Feed(ctx, FeedQuery{After: after, Limit: 3})
		require.NoError(t, err)
		for _, v := range page.Items {
			seen[v.ID]++
		}
		// a newer video lands at the head between page fetches
		time.Sleep(time.Millisecond)
		f.video(t, fmt.Sprintf("late%d", pages))

		if !page.HasMore {
			break
		}
		c, err := DecodeFeedCursor(page.NextCursor)
		require.NoError(t, err)
		after = &c
	}

	for id := range want {
		assert.Equal(t, 1, seen[id], "video %d", id)
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "video %d returned more than once", id)
		assert.True(t, want[id], "video %d inserted after the first page leaked in", id)
	}
}

func TestVideoRepo_FeedOffsetPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.video(t, fmt.Sprintf("v%d", i))
	}

	p1, err := f.videos.Feed(ctx, FeedQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	p3, err := f.videos.Feed(ctx, FeedQuery{Page: 3, Limit: 2})
	require.NoError(t, err)

	assert.Len(t, p1.Items, 2)
	assert.True(t, p1.HasMore)
	assert.Len(t, p3.Items, 1)
	assert.False(t, p3.HasMore)
	assert.Equal(t, int64(5), p3.Total)
	assert.Equal(t, "v4", p1.Items[0].Title)
}

func TestFeedCursor_RoundTripAndGarbage(t *testing.T) {
	c := FeedCursor{CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 123000, time.UTC), ID: 42}
	got, err := DecodeFeedCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, c.ID, got.ID)

	for _, bad := range []string{"!!", "bm9jb2xvbg", "YWJjOjEy"} {
		_, err := DecodeFeedCursor(bad)
		assert.Error(t, err, bad)
	}
}

func TestVideoRepo_FoldersAndActiveByIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := model.Video{Title: "a", PriceINR: 1, Folder: "Zoo", IsActive: true}
	b := model.Video{Title: "b", PriceINR: 1, Folder: "Art", IsActive: false}
	require.NoError(t, f.videos.Create(ctx, &a))
	require.NoError(t, f.videos.Create(ctx, &b))

	folders, err := f.videos.Folders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Art", "Zoo"}, folders)

	byID, err := f.videos.ActiveByIDs(ctx, []uint64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Contains(t, byID, a.ID)
	assert.NotContains(t, byID, b.ID)
}
