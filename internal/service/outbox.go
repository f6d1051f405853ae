package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ramtunguturi36/cvb/internal/model"
	"github.com/ramtunguturi36/cvb/internal/queue"
	"github.com/ramtunguturi36/cvb/internal/repository"
)

// Dispatcher performs the side effect recorded by an outbox message.
type Dispatcher interface {
	Dispatch(ctx context.Context, m model.OutboxMessage) error
}

// MailDispatcher delivers outbox messages by emailing directly.
type MailDispatcher struct {
	Mailer Mailer
}

func (d MailDispatcher) Dispatch(ctx context.Context, m model.OutboxMessage) error {
	switch m.Kind {
	case model.OutboxKindAccessIssued:
		var ev queue.AccessIssuedEvent
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", m.Kind, err)
		}
		return d.Mailer.SendAccess(ctx, ev)
	}
	return fmt.Errorf("no handler for outbox kind %q", m.Kind)
}

// RelayOptions tunes the outbox relay.  Zero values take defaults.
type RelayOptions struct {
	MaxAttempts int
	BatchSize   int
	Lease       time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (o RelayOptions) withDefaults() RelayOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 8
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.Lease <= 0 {
		o.Lease = time.Minute
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 10 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Hour
	}
	return o
}

// RelayStats summarises one relay pass.
type RelayStats struct {
	Claimed int
	Sent    int
	Retried int
	Dead    int
}

// OutboxRelay drains the outbox through a Dispatcher, retrying failures
// with exponential backoff until MaxAttempts.
type OutboxRelay struct {
	repo *repository.OutboxRepo
	disp Dispatcher
	opts RelayOptions
	log  *slog.Logger
	now  func() time.Time
}

func NewOutboxRelay(repo *repository.OutboxRepo, disp Dispatcher, opts RelayOptions, log *slog.Logger) *OutboxRelay {
	return &OutboxRelay{repo: repo, disp: disp, opts: opts.withDefaults(), log: log, now: time.Now}
}

// backoff is BaseBackoff doubled per failed attempt, capped at MaxBackoff.
func (r *OutboxRelay) backoff(attempts int) time.Duration {
	d := r.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.opts.MaxBackoff {
			return r.opts.MaxBackoff
		}
	}
	return d
}

// RunOnce claims the due messages and dispatches each of them once.
func (r *OutboxRelay) RunOnce(ctx context.Context) (RelayStats, error) {
	now := r.now()
	msgs, err := r.repo.ClaimDue(ctx, now, now.Add(r.opts.Lease), r.opts.BatchSize)
	stats := RelayStats{Claimed: len(msgs)}
	if err != nil {
		return stats, fmt.Errorf("claim outbox: %w", err)
	}
	for _, m := range msgs {
		if ctx.Err() != nil {
			// Unprocessed leases expire and are picked up by the next pass.
			return stats, ctx.Err()
		}
		derr := r.disp.Dispatch(ctx, m)
		if derr == nil {
			if err := r.repo.MarkSent(ctx, m.ID); err != nil {
				return stats, fmt.Errorf("mark sent: %w", err)
			}
			stats.Sent++
			continue
		}

		attempts := m.Attempts + 1
		if attempts >= r.opts.MaxAttempts {
			r.log.Error("outbox message dead", "message_id", m.MessageID, "kind", m.Kind, "attempts", attempts, "error", derr)
			if err := r.repo.MarkDead(ctx, m.ID, derr.Error()); err != nil {
				return stats, fmt.Errorf("mark dead: %w", err)
			}
			stats.Dead++
			continue
		}
		next := r.now().Add(r.backoff(attempts))
		r.log.Warn("outbox dispatch failed", "message_id", m.MessageID, "kind", m.Kind, "attempts", attempts,
			"next_attempt_at", next, "error", derr)
		if err := r.repo.MarkRetry(ctx, m.ID, derr.Error(), next); err != nil {
			return stats, fmt.Errorf("mark retry: %w", err)
		}
		stats.Retried++
	}
	return stats, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if stats, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("outbox relay pass failed", "error", err)
		} else if stats.Claimed > 0 {
			r.log.Debug("outbox relay pass", "claimed", stats.Claimed, "sent", stats.Sent,
				"retried", stats.Retried, "dead", stats.Dead)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
