package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ramtunguturi36/cvb/internal/model"
)

// TransactionRepo is the order ledger.  Status changes are conditional
// updates keyed by the gateway order id so that a transaction leaves the
// created state at most once.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the underlying handle so callers can begin a transaction that
// spans the ledger, the token store and the outbox.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

const txnColumns = `id, user_id, video_id, gateway_order_id, gateway_payment_id, gateway_signature,
	amount_inr, currency, status, created_at, updated_at`

func scanTxn(s scanner) (model.Transaction, error) {
	var (
		t         model.Transaction
		paymentID sql.NullString
		signature sql.NullString
		status    string
	)
	err := s.Scan(&t.ID, &t.UserID, &t.VideoID, &t.GatewayOrderID, &paymentID, &signature,
		&t.AmountINR, &t.Currency, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	t.GatewayPaymentID = paymentID.String
	t.GatewaySignature = signature.String
	t.Status = model.TxnStatus(status)
	return t, nil
}

// Create inserts a transaction in the created state.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	now := nowUTC()
	t.Status = model.TxnCreated
	if t.Currency == "" {
		t.Currency = model.CurrencyINR
	}
	t.CreatedAt, t.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, video_id, gateway_order_id, amount_inr, currency, status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.UserID, t.VideoID, t.GatewayOrderID, t.AmountINR, t.Currency, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateOrder
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

// GetByOrderID looks a transaction up by its gateway order id.
func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID string) (model.Transaction, error) {
	return getTxnByOrderID(ctx, r.db, orderID)
}

// GetByOrderIDTx is GetByOrderID inside the caller's transaction.
func (r *TransactionRepo) GetByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) (model.Transaction, error) {
	return getTxnByOrderID(ctx, tx, orderID)
}

func getTxnByOrderID(ctx context.Context, q queryer, orderID string) (model.Transaction, error) {
	t, err := scanTxn(q.QueryRowContext(ctx, "SELECT "+txnColumns+" FROM transactions WHERE gateway_order_id = ?", orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// MarkPaidTx moves a created transaction to paid and stores the gateway
// payment id and signature.  It reports false when the transaction was not
// in the created state, in which case nothing changed.
func (r *TransactionRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, orderID, paymentID, signature string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, gateway_payment_id = ?, gateway_signature = ?, updated_at = ?
		 WHERE gateway_order_id = ? AND status = ?`,
		string(model.TxnPaid), paymentID, signature, nowUTC(), orderID, string(model.TxnCreated))
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// MarkFailed moves a created transaction owned by userID to failed.
func (r *TransactionRepo) MarkFailed(ctx context.Context, orderID string, userID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, updated_at = ?
		 WHERE gateway_order_id = ? AND user_id = ? AND status = ?`,
		string(model.TxnFailed), nowUTC(), orderID, userID, string(model.TxnCreated))
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// TransactionDetail is a ledger entry joined with the purchased video, as
// shown in a user's purchase history.
type TransactionDetail struct {
	model.Transaction
	Video struct {
		ID       uint64 `json:"id"`
		Title    string `json:"title"`
		PriceINR int64  `json:"priceINR"`
		FileURL  string `json:"fileUrl"`
	} `json:"video"`
}

// ListByUser returns the user's transactions newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]TransactionDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.video_id, t.gateway_order_id, t.gateway_payment_id, t.gateway_signature,
		        t.amount_inr, t.currency, t.status, t.created_at, t.updated_at,
		        v.id, v.title, v.price_inr, v.file_url
		 FROM transactions t
		 JOIN videos v ON v.id = t.video_id
		 WHERE t.user_id = ?
		 ORDER BY t.created_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TransactionDetail{}
	for rows.Next() {
		var (
			d         TransactionDetail
			paymentID sql.NullString
			signature sql.NullString
			status    string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.VideoID, &d.GatewayOrderID, &paymentID, &signature,
			&d.AmountINR, &d.Currency, &status, &d.CreatedAt, &d.UpdatedAt,
			&d.Video.ID, &d.Video.Title, &d.Video.PriceINR, &d.Video.FileURL); err != nil {
			return nil, err
		}
		d.GatewayPaymentID = paymentID.String
		d.GatewaySignature = signature.String
		d.Status = model.TxnStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AdminTransactionRow is a ledger entry with the buyer's email and the video
// title for the admin report.
type AdminTransactionRow struct {
	model.Transaction
	UserEmail  string `json:"userEmail"`
	VideoTitle string `json:"videoTitle"`
}

// ListAll returns the whole ledger newest first.
func (r *TransactionRepo) ListAll(ctx context.Context) ([]AdminTransactionRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.video_id, t.gateway_order_id, t.gateway_payment_id, t.gateway_signature,
		        t.amount_inr, t.currency, t.status, t.created_at, t.updated_at,
		        u.email, v.title
		 FROM transactions t
		 JOIN users u  ON u.id = t.user_id
		 JOIN videos v ON v.id = t.video_id
		 ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AdminTransactionRow{}
	for rows.Next() {
		var (
			row       AdminTransactionRow
			paymentID sql.NullString
			signature sql.NullString
			status    string
		)
		if err := rows.Scan(&row.ID, &row.UserID, &row.VideoID, &row.GatewayOrderID, &paymentID, &signature,
			&row.AmountINR, &row.Currency, &status, &row.CreatedAt, &row.UpdatedAt,
			&row.UserEmail, &row.VideoTitle); err != nil {
			return nil, err
		}
		row.GatewayPaymentID = paymentID.String
		row.GatewaySignature = signature.String
		row.Status = model.TxnStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Purchase is the first paid transaction of a user for one video.
type Purchase struct {
	VideoID     uint64
	PurchasedAt time.Time
}

// PaidPurchases returns one Purchase per distinct video the user has paid
// for, oldest purchase first.
func (r *TransactionRepo) PaidPurchases(ctx context.Context, userID uint64) ([]Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT video_id, created_at FROM transactions
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`, userID, string(model.TxnPaid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := map[uint64]bool{}
	out := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.VideoID, &p.PurchasedAt); err != nil {
			return nil, err
		}
		if seen[p.VideoID] {
			continue
		}
		seen[p.VideoID] = true
		out = append(out, p)
	}
	return out, rows.Err()
}
