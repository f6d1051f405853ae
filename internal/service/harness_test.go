package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/queue"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/testutil"
)

const testGatewaySecret = "rzp_test_secret"

// fakeGateway issues sequential order ids and verifies signatures with a
// fixed secret.
type fakeGateway struct {
	mu     sync.Mutex
	n      int
	failOn int
}

func (g *fakeGateway) OpenOrder(_ context.Context, amountMinor int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.failOn == g.n {
		return "", apperr.New(apperr.ErrGateway, "gateway_error")
	}
	return fmt.Sprintf("order_%d", g.n), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(testGatewaySecret, orderID, paymentID, signature)
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type fakeMailer struct {
	mu   sync.Mutex
	sent []queue.AccessIssuedEvent
	err  error
}

func (m *fakeMailer) SendAccess(_ context.Context, ev queue.AccessIssuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, ev)
	return nil
}

type harness struct {
	db       *sql.DB
	users    *repository.UserRepo
	videos   *repository.VideoRepo
	txns     *repository.TransactionRepo
	tokens   *repository.AccessTokenRepo
	outbox   *repository.OutboxRepo
	sessions *Sessions
	auth     *Auth
	access   *AccessTokens
	gateway  *fakeGateway
	checkout *Checkout
	catalog  *Catalog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	log := logging.Discard()
	h := &harness{
		db:       db,
		users:    repository.NewUserRepo(db),
		videos:   repository.NewVideoRepo(db),
		txns:     repository.NewTransactionRepo(db),
		tokens:   repository.NewAccessTokenRepo(db),
		outbox:   repository.NewOutboxRepo(db),
		sessions: NewSessions("test-secret", 7*24*time.Hour),
		gateway:  &fakeGateway{},
	}
	h.auth = NewAuth(h.users, h.sessions, 4, "boot-key", log)
	h.access = NewAccessTokens(h.tokens, h.videos, log)
	h.checkout = NewCheckout(h.users, h.videos, h.txns, h.outbox, h.access, h.gateway,
		AccessPolicy{TTL: 7 * 24 * time.Hour, MaxDownloads: 5}, log)
	h.catalog = NewCatalog(h.videos, h.txns, h.tokens, h.access, t.TempDir(),
		AccessPolicy{TTL: 365 * 24 * time.Hour, MaxDownloads: 1000}, log)
	return h
}

func (h *harness) user(t *testing.T, email string, role model.Role) Identity {
	t.Helper()
	u, err := h.users.Create(context.Background(), email, "Test User", "hash", role)
	require.NoError(t, err)
	return Identity{UserID: u.ID, Role: u.Role, Email: u.Email}
}

func (h *harness) video(t *testing.T, title string, active bool) model.Video {
	t.Helper()
	v := model.Video{Title: title, Description: "d", PriceINR: 149, IsActive: active}
	require.NoError(t, h.videos.Create(context.Background(), &v))
	return v
}

func (h *harness) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func reasonOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
