package model

import "time"

// Outbox statuses.  A message is pending until a relay claims it, processing
// while a relay holds its lease, then sent or dead.
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxSent       = "sent"
	OutboxDead       = "dead"
)

// OutboxKindAccessIssued is written when checkout mints a token for a paid order.
const OutboxKindAccessIssued = "access_issued"

// OutboxMessage is a durable side effect recorded in the same database
// transaction as the state change that caused it.
type OutboxMessage struct {
	ID            uint64
	MessageID     string
	Kind          string
	Payload       []byte
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
