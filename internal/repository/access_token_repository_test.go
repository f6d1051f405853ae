package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestAccessTokenRepo_DuplicateToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v := f.video(t, "v")

	a := model.AccessToken{UserID: u.ID, VideoID: v.ID, Token: "same", ExpiresAt: time.Now().Add(time.Hour), MaxDownloads: 1}
	require.NoError(t, f.tokens.Create(ctx, &a))
	b := a
	b.ID = 0
	assert.ErrorIs(t, f.tokens.Create(ctx, &b), ErrDuplicateToken)
}

func TestAccessTokenRepo_ConcurrentConsumeNeverExceedsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, f.user(t, "a@x.com"), f.video(t, "v"), time.Hour, 1)

	const workers = 16
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := f.tokens.Consume(ctx, tok.Token, time.Now())
			if assert.NoError(t, err) && ok {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
	got, err := f.tokens.GetByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)
}

func TestAccessTokenRepo_ConsumeGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v := f.video(t, "v")

	expired := f.token(t, u, v, -time.Minute, 5)
	ok, err := f.tokens.Consume(ctx, expired.Token, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	revoked := f.token(t, u, v, time.Hour, 5)
	require.NoError(t, f.tokens.Revoke(ctx, revoked.Token))
	require.NoError(t, f.tokens.Revoke(ctx, revoked.Token))
	ok, err = f.tokens.Consume(ctx, revoked.Token, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.tokens.Consume(ctx, "missing", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.tokens.Revoke(ctx, "missing"), ErrTokenNotFound)
}

func TestAccessTokenRepo_GetByTokenIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, f.user(t, "a@x.com"), f.video(t, "v"), time.Hour, 3)

	for i := 0; i < 5; i++ {
		got, err := f.tokens.GetByToken(ctx, tok.Token)
		require.NoError(t, err)
		assert.Equal(t, 0, got.DownloadCount)
	}
	_, err := f.tokens.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestAccessTokenRepo_TransactionLinkAndListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v := f.video(t, "clip")
	txn := model.Transaction{UserID: u.ID, VideoID: v.ID, GatewayOrderID: "order_1", AmountINR: 99}
	require.NoError(t, f.txns.Create(ctx, &txn))

	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	linked := model.AccessToken{UserID: u.ID, VideoID: v.ID, TransactionID: &txn.ID, Token: "linked",
		ExpiresAt: time.Now().Add(time.Hour), MaxDownloads: 5}
	require.NoError(t, f.tokens.CreateTx(ctx, tx, &linked))
	got, err := f.tokens.GetByTransactionIDTx(ctx, tx, txn.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, "linked", got.Token)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, txn.ID, *got.TransactionID)

	f.token(t, u, v, -time.Hour, 5)

	list, err := f.tokens.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "clip", list[0].VideoTitle)

	active, err := f.tokens.ActiveByUser(ctx, u.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, active[v.ID], 1)
	assert.Equal(t, "linked", active[v.ID][0].Token)
}
