package model

import "time"

// TokenState classifies an access token for redemption.  Every state other
// than TokenActive is terminal with respect to consuming the token.
type TokenState int

const (
	TokenActive TokenState = iota
	TokenRevoked
	TokenExpired
	TokenExhausted
)

// AccessToken grants a limited number of redemptions of one video to one
// user until ExpiresAt.  DownloadCount never exceeds MaxDownloads.
type AccessToken struct {
	ID            uint64    `json:"id"`
	UserID        uint64    `json:"userId"`
	VideoID       uint64    `json:"videoId"`
	TransactionID *uint64   `json:"transactionId,omitempty"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
	MaxDownloads  int       `json:"maxDownloads"`
	DownloadCount int       `json:"downloadCount"`
	IsRevoked     bool      `json:"isRevoked"`
	CreatedAt     time.Time `json:"createdAt"`
}

// State reports the redemption state of t at the given instant.  Revocation
// wins over expiry, which wins over exhaustion.
func (t AccessToken) State(now time.Time) TokenState {
	switch {
	case t.IsRevoked:
		return TokenRevoked
	case !t.ExpiresAt.After(now):
		return TokenExpired
	case t.DownloadCount >= t.MaxDownloads:
		return TokenExhausted
	}
	return TokenActive
}

// Remaining returns how many redemptions are left.
func (t AccessToken) Remaining() int {
	if n := t.MaxDownloads - t.DownloadCount; n > 0 {
		return n
	}
	return 0
}
