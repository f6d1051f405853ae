package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/queue"
	"github.com/ramtunguturi36/cvb/internal/repository"
)

// AccessPolicy is the token granted for a paid order.
type AccessPolicy struct {
	TTL          time.Duration
	MaxDownloads int
}

// Checkout runs the two phase purchase: open a gateway order, then turn a
// signed payment callback into an access token.
type Checkout struct {
	users   *repository.UserRepo
	videos  *repository.VideoRepo
	txns    *repository.TransactionRepo
	outbox  *repository.OutboxRepo
	access  *AccessTokens
	gateway Gateway
	policy  AccessPolicy
	log     *slog.Logger
}

func NewCheckout(
	users *repository.UserRepo,
	videos *repository.VideoRepo,
	txns *repository.TransactionRepo,
	outbox *repository.OutboxRepo,
	access *AccessTokens,
	gateway Gateway,
	policy AccessPolicy,
	log *slog.Logger,
) *Checkout {
	return &Checkout{users: users, videos: videos, txns: txns, outbox: outbox, access: access,
		gateway: gateway, policy: policy, log: log}
}

// Order is what the client needs to open the gateway's payment UI.
type Order struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	TxnID    uint64 `json:"transactionId"`
	VideoID  uint64 `json:"videoId"`
	KeyID    string `json:"key"`
}

// toMinorUnits converts whole rupees to paise.
func toMinorUnits(priceINR int64) int64 { return priceINR * 100 }

// Initiate opens a gateway order for one active video and records it as a
// created transaction.
func (c *Checkout) Initiate(ctx context.Context, userID, videoID uint64) (Order, error) {
	if videoID == 0 {
		return Order{}, apperr.New(apperr.ErrValidation, "video_id_required")
	}
	v, err := c.videos.GetByID(ctx, videoID)
	if errors.Is(err, repository.ErrVideoNotFound) || (err == nil && !v.IsActive) {
		return Order{}, apperr.New(apperr.ErrNotFound, "video_not_found")
	}
	if err != nil {
		return Order{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}

	amount := toMinorUnits(v.PriceINR)
	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	orderID, err := c.gateway.OpenOrder(ctx, amount, model.CurrencyINR, receipt)
	if err != nil {
		if !errors.Is(err, apperr.ErrGateway) {
			err = apperr.Wrap(apperr.ErrGateway, "gateway_error", err)
		}
		c.log.Warn("gateway order failed", "video_id", videoID, "error", err)
		return Order{}, err
	}

	txn := model.Transaction{
		UserID:         userID,
		VideoID:        v.ID,
		GatewayOrderID: orderID,
		AmountINR:      v.PriceINR,
		Currency:       model.CurrencyINR,
	}
	if err := c.txns.Create(ctx, &txn); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			return Order{}, apperr.Wrap(apperr.ErrGateway, "duplicate_order_id", err)
		}
		return Order{}, apperr.Wrap(apperr.ErrInternal, "create_transaction_failed", err)
	}
	return Order{
		OrderID:  orderID,
		Amount:   amount,
		Currency: model.CurrencyINR,
		TxnID:    txn.ID,
		VideoID:  v.ID,
		KeyID:    c.gateway.KeyID(),
	}, nil
}

// InitiateBatch opens orders for each video in turn and stops at the first
// failure.  Orders opened before the failure are returned with the error
// and stay valid on their own.
func (c *Checkout) InitiateBatch(ctx context.Context, userID uint64, videoIDs []uint64) ([]Order, error) {
	if len(videoIDs) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "video_ids_required")
	}
	orders := make([]Order, 0, len(videoIDs))
	for _, id := range videoIDs {
		o, err := c.Initiate(ctx, userID, id)
		if err != nil {
			return orders, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// FinalizeInput is the gateway callback as relayed by the client.
type FinalizeInput struct {
	OrderID   string
	PaymentID string
	Signature string
	// VideoID is optional.  When set it must match the order.
	VideoID uint64
	Caller  Identity
}

// FinalizeResult describes the access granted for a paid order.
type FinalizeResult struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expiresAt"`
	DownloadsRemaining int       `json:"downloadsRemaining"`
	TxnID              uint64    `json:"transactionId"`
	VideoID            uint64    `json:"videoId"`
	AlreadyProcessed   bool      `json:"alreadyProcessed"`
}

func resultFor(t model.AccessToken, txnID uint64, replay bool) FinalizeResult {
	return FinalizeResult{
		Token:              t.Token,
		ExpiresAt:          t.ExpiresAt,
		DownloadsRemaining: t.Remaining(),
		TxnID:              txnID,
		VideoID:            t.VideoID,
		AlreadyProcessed:   replay,
	}
}

// Finalize verifies the payment signature and, exactly once per order,
// marks the transaction paid, mints its token and queues the notification.
// A replayed callback for a paid order returns the token minted the first
// time.
func (c *Checkout) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return FinalizeResult{}, apperr.New(apperr.ErrValidation, "payment_fields_required")
	}
	if !c.gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		c.log.Warn("payment signature mismatch", "order_id", in.OrderID, "user_id", in.Caller.UserID)
		return FinalizeResult{}, apperr.New(apperr.ErrInvalidSignature, "invalid_signature")
	}

	txn, err := c.txns.GetByOrderID(ctx, in.OrderID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return FinalizeResult{}, apperr.New(apperr.ErrNotFound, "order_not_found")
	}
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	if txn.UserID != in.Caller.UserID {
		return FinalizeResult{}, apperr.New(apperr.ErrForbidden, "order_not_owned")
	}
	if in.VideoID != 0 && in.VideoID != txn.VideoID {
		return FinalizeResult{}, apperr.New(apperr.ErrValidation, "video_mismatch")
	}
	switch txn.Status {
	case model.TxnPaid:
		return c.replay(ctx, txn)
	case model.TxnFailed, model.TxnRefunded:
		return FinalizeResult{}, apperr.New(apperr.ErrConflict, "order_"+string(txn.Status))
	}

	// Reads for the notification happen before the write transaction.
	user, err := c.users.GetByID(ctx, txn.UserID)
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}
	video, err := c.videos.GetByID(ctx, txn.VideoID)
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	}

	tx, err := c.txns.DB().BeginTx(ctx, nil)
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "begin_failed", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	won, err := c.txns.MarkPaidTx(ctx, tx, in.OrderID, in.PaymentID, in.Signature)
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "mark_paid_failed", err)
	}
	if !won {
		// Another finalize got there first, or the order was failed meanwhile.
		_ = tx.Rollback()
		committed = true
		current, err := c.txns.GetByOrderID(ctx, in.OrderID)
		if err != nil {
			return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "query_failed", err)
		}
		if current.Status == model.TxnPaid {
			return c.replay(ctx, current)
		}
		return FinalizeResult{}, apperr.New(apperr.ErrConflict, "order_"+string(current.Status))
	}

	txnID := txn.ID
	tok, err := c.access.MintTx(ctx, tx, MintSpec{
		UserID:        txn.UserID,
		VideoID:       txn.VideoID,
		TransactionID: &txnID,
		TTL:           c.policy.TTL,
		MaxDownloads:  c.policy.MaxDownloads,
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	payload, err := json.Marshal(queue.AccessIssuedEvent{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		VideoID:       video.ID,
		VideoTitle:    video.Title,
		TransactionID: txn.ID,
		OrderID:       txn.GatewayOrderID,
		Token:         tok.Token,
		ExpiresAt:     tok.ExpiresAt,
		MaxDownloads:  tok.MaxDownloads,
		IssuedAt:      tok.CreatedAt,
	})
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "encode_event_failed", err)
	}
	if _, err := c.outbox.EnqueueTx(ctx, tx, model.OutboxKindAccessIssued, payload); err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "enqueue_failed", err)
	}

	if err := tx.Commit(); err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "commit_failed", err)
	}
	committed = true

	c.log.Info("order paid", "order_id", in.OrderID, "transaction_id", txn.ID, "user_id", txn.UserID, "video_id", txn.VideoID)
	return resultFor(tok, txn.ID, false), nil
}

func (c *Checkout) replay(ctx context.Context, txn model.Transaction) (FinalizeResult, error) {
	tok, err := c.access.tokens.GetByTransactionID(ctx, txn.ID)
	if err != nil {
		return FinalizeResult{}, apperr.Wrap(apperr.ErrInternal, "load_token_failed",
			fmt.Errorf("paid transaction %d: %w", txn.ID, err))
	}
	c.log.Info("finalize replayed", "order_id", txn.GatewayOrderID, "transaction_id", txn.ID)
	return resultFor(tok, txn.ID, true), nil
}

// Fail records that the client's payment attempt failed.  Only created
// orders owned by the caller can be failed.
func (c *Checkout) Fail(ctx context.Context, orderID string, caller Identity) error {
	if orderID == "" {
		return apperr.New(apperr.ErrValidation, "order_id_required")
	}
	ok, err := c.txns.MarkFailed(ctx, orderID, caller.UserID)
	if err != nil {
		return apperr.Wrap(apperr.ErrInternal, "mark_failed_failed", err)
	}
	if ok {
		return nil
	}
	txn, err := c.txns.GetByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, repository.ErrTransactionNotFound):
		return apperr.New(apperr.ErrNotFound, "order_not_found")
	case err != nil:
		return apperr.Wrap(apperr.ErrInternal, "query_failed", err)
	case txn.UserID != caller.UserID:
		return apperr.New(apperr.ErrForbidden, "order_not_owned")
	case txn.Status == model.TxnFailed:
		return nil
	}
	return apperr.New(apperr.ErrConflict, "order_"+string(txn.Status))
}
