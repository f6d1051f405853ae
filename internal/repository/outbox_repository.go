package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ramtunguturi36/cvb/internal/model"
)

// OutboxRepo stores side effects that must happen after a committed state
// change.  Rows are written inside the business transaction and drained by
// a relay.
type OutboxRepo struct {
	db *sql.DB
}

func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

const outboxColumns = `id, message_id, kind, payload, status, attempts, last_error, next_attempt_at,
	created_at, updated_at`

func scanOutbox(s scanner) (model.OutboxMessage, error) {
	var m model.OutboxMessage
	err := s.Scan(&m.ID, &m.MessageID, &m.Kind, &m.Payload, &m.Status, &m.Attempts, &m.LastError,
		&m.NextAttemptAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// EnqueueTx records a pending message in the caller's transaction.  The
// message id is generated here and doubles as the broker message id.
func (r *OutboxRepo) EnqueueTx(ctx context.Context, tx *sql.Tx, kind string, payload []byte) (model.OutboxMessage, error) {
	now := nowUTC()
	m := model.OutboxMessage{
		MessageID:     uuid.NewString(),
		Kind:          kind,
		Payload:       payload,
		Status:        model.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (message_id, kind, payload, status, attempts, last_error, next_attempt_at, created_at, updated_at)
		 VALUES (?,?,?,?,0,'',?,?,?)`,
		m.MessageID, m.Kind, m.Payload, m.Status, m.NextAttemptAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return model.OutboxMessage{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.OutboxMessage{}, err
	}
	m.ID = uint64(id)
	return m, nil
}

// ClaimDue leases up to limit messages whose next attempt is due at now.
// Pending rows and processing rows whose lease ran out are both eligible.
// Each row is claimed with its own conditional update so two relays never
// hold the same message; the claimed rows carry next_attempt_at = leaseUntil.
func (r *OutboxRepo) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]model.OutboxMessage, error) {
	now = now.UTC()
	leaseUntil = leaseUntil.UTC().Truncate(time.Microsecond)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+outboxColumns+` FROM outbox
		 WHERE status IN (?, ?) AND next_attempt_at <= ?
		 ORDER BY next_attempt_at, id LIMIT ?`,
		model.OutboxPending, model.OutboxProcessing, now, limit)
	if err != nil {
		return nil, err
	}
	candidates := []model.OutboxMessage{}
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	claimed := make([]model.OutboxMessage, 0, len(candidates))
	for _, m := range candidates {
		res, err := r.db.ExecContext(ctx,
			`UPDATE outbox SET status = ?, next_attempt_at = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?) AND next_attempt_at <= ?`,
			model.OutboxProcessing, leaseUntil, nowUTC(), m.ID, model.OutboxPending, model.OutboxProcessing, now)
		if err != nil {
			return claimed, err
		}
		ok, err := rowsAffected(res)
		if err != nil {
			return claimed, err
		}
		if !ok {
			continue
		}
		m.Status = model.OutboxProcessing
		m.NextAttemptAt = leaseUntil
		claimed = append(claimed, m)
	}
	return claimed, nil
}

// MarkSent records a successful delivery.
func (r *OutboxRepo) MarkSent(ctx context.Context, id uint64) error {
	return r.setStatus(ctx, id, model.OutboxSent, "", nowUTC(), false)
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *OutboxRepo) MarkRetry(ctx context.Context, id uint64, lastErr string, next time.Time) error {
	return r.setStatus(ctx, id, model.OutboxPending, lastErr, next.UTC().Truncate(time.Microsecond), true)
}

// MarkDead gives up on a message after its final failed attempt.
func (r *OutboxRepo) MarkDead(ctx context.Context, id uint64, lastErr string) error {
	return r.setStatus(ctx, id, model.OutboxDead, lastErr, nowUTC(), true)
}

func (r *OutboxRepo) setStatus(ctx context.Context, id uint64, status, lastErr string, next time.Time, failed bool) error {
	lastErr = truncateUTF8(lastErr, 1024)
	inc := 0
	if failed {
		inc = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, attempts = attempts + ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		status, inc, lastErr, next, nowUTC(), id)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOutboxNotFound
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.ToValidUTF8(s[:n], "")
}

// GetByMessageID loads one message, mainly for inspection.
func (r *OutboxRepo) GetByMessageID(ctx context.Context, messageID string) (model.OutboxMessage, error) {
	m, err := scanOutbox(r.db.QueryRowContext(ctx, "SELECT "+outboxColumns+" FROM outbox WHERE message_id = ?", messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.OutboxMessage{}, ErrOutboxNotFound
	}
	return m, err
}

// CountByStatus returns how many messages are in status.
func (r *OutboxRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox WHERE status = ?", status).Scan(&n)
	return n, err
}
