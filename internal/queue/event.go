// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and consumer that carry them.
package queue

import "time"

// AccessIssuedQueue is the durable queue carrying AccessIssuedEvent.
const AccessIssuedQueue = "access.issued"

// AccessIssuedEvent is emitted when a paid order yields an access token.  It
// holds everything needed to email the buyer without reading the database.
type AccessIssuedEvent struct {
	UserID        uint64    `json:"user_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	VideoID       uint64    `json:"video_id"`
	VideoTitle    string    `json:"video_title"`
	TransactionID uint64    `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxDownloads  int       `json:"max_downloads"`
	IssuedAt      time.Time `json:"issued_at"`
}
