package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "typed conflict", err: New(ErrConflict, "email_taken"), status: http.StatusConflict, reason: "email_taken"},
		{name: "wrapped sentinel", err: fmt.Errorf("%w: title required", ErrValidation), status: http.StatusBadRequest, reason: "invalid_request"},
		{name: "token rejected", err: New(ErrTokenRejected, "expired"), status: http.StatusBadRequest, reason: "expired"},
		{name: "gateway", err: Wrap(ErrGateway, "gateway_error", errors.New("boom")), status: http.StatusBadGateway, reason: "gateway_error"},
		{name: "unknown", err: errors.New("db down"), status: http.StatusInternalServerError, reason: "internal_error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, Status(tt.err))
			assert.Equal(t, tt.reason, Reason(tt.err))
		})
	}
}

func TestErrorMatchesKindAndValue(t *testing.T) {
	t.Parallel()

	sentinel := New(ErrTokenRejected, "limit")
	wrapped := fmt.Errorf("consume: %w", sentinel)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.ErrorIs(t, wrapped, ErrTokenRejected)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
}
