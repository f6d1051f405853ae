package model

import "time"

// TxnStatus is the lifecycle state of a purchase attempt.  The only
// transitions are created -> paid and created -> failed; refunded is
// terminal and set outside the checkout flow.
type TxnStatus string

const (
	TxnCreated  TxnStatus = "created"
	TxnPaid     TxnStatus = "paid"
	TxnFailed   TxnStatus = "failed"
	TxnRefunded TxnStatus = "refunded"
)

// CurrencyINR is the only currency the gateway is asked to charge in.
const CurrencyINR = "INR"

// Transaction is one order ledger entry.  GatewayOrderID is unique across the
// ledger; GatewayPaymentID and GatewaySignature are only set once the order
// is paid.
type Transaction struct {
	ID               uint64    `json:"id"`
	UserID           uint64    `json:"userId"`
	VideoID          uint64    `json:"videoId"`
	GatewayOrderID   string    `json:"razorpayOrderId"`
	GatewayPaymentID string    `json:"razorpayPaymentId,omitempty"`
	GatewaySignature string    `json:"razorpaySignature,omitempty"`
	AmountINR        int64     `json:"amountINR"`
	Currency         string    `json:"currency"`
	Status           TxnStatus `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
