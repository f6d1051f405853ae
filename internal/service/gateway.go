package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/ramtunguturi36/cvb/internal/apperr"
)

// Gateway is the payment provider contract used by checkout.
type Gateway interface {
	// OpenOrder creates an order for amountMinor units of currency and
	// returns the provider's order id.
	OpenOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	// VerifySignature reports whether signature proves that paymentID
	// completed orderID.
	VerifySignature(orderID, paymentID, signature string) bool
	// KeyID is the public key the client passes to the checkout widget.
	KeyID() string
}

// ComputeSignature returns the provider's payment signature:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func ComputeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want := ComputeSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}

// orderCreator is the slice of the Razorpay SDK used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway talks to Razorpay with credentials fixed at construction.
type RazorpayGateway struct {
	keyID  string
	secret string
	orders orderCreator
}

// NewRazorpayGateway builds a gateway.  Empty credentials are accepted so the
// server can start; every OpenOrder then fails with a gateway error.
func NewRazorpayGateway(keyID, secret string) *RazorpayGateway {
	g := &RazorpayGateway{keyID: keyID, secret: secret}
	if keyID != "" && secret != "" {
		g.orders = razorpay.NewClient(keyID, secret).Order
	}
	return g
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

func (g *RazorpayGateway) OpenOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	if g.orders == nil {
		return "", apperr.New(apperr.ErrGateway, "payments_not_configured")
	}
	if err := ctx.Err(); err != nil {
		return "", apperr.Wrap(apperr.ErrGateway, "gateway_error", err)
	}
	body, err := g.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrGateway, "gateway_error", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", apperr.Wrap(apperr.ErrGateway, "gateway_error", fmt.Errorf("razorpay: order response without id"))
	}
	return id, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(g.secret, orderID, paymentID, signature)
}
