package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/testutil"
)

type fixture struct {
	db     *sql.DB
	users  *UserRepo
	videos *VideoRepo
	txns   *TransactionRepo
	tokens *AccessTokenRepo
	outbox *OutboxRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return fixture{
		db:     db,
		users:  NewUserRepo(db),
		videos: NewVideoRepo(db),
		txns:   NewTransactionRepo(db),
		tokens: NewAccessTokenRepo(db),
		outbox: NewOutboxRepo(db),
	}
}

func (f fixture) user(t *testing.T, email string) model.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, "Test", "hash", model.RoleUser)
	require.NoError(t, err)
	return u
}

func (f fixture) video(t *testing.T, title string) model.Video {
	t.Helper()
	v := model.Video{Title: title, Description: "about " + title, PriceINR: 99, IsActive: true}
	require.NoError(t, f.videos.Create(context.Background(), &v))
	return v
}

func (f fixture) token(t *testing.T, u model.User, v model.Video, ttl time.Duration, max int) model.AccessToken {
	t.Helper()
	tok := model.AccessToken{
		UserID:       u.ID,
		VideoID:      v.ID,
		Token:        fmt.Sprintf("tok-%d-%d-%d", u.ID, v.ID, time.Now().UnixNano()),
		ExpiresAt:    time.Now().Add(ttl),
		MaxDownloads: max,
	}
	require.NoError(t, f.tokens.Create(context.Background(), &tok))
	return tok
}
