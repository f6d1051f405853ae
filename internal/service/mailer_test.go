package service

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/queue"
)

func TestSMTPMailer_SendAccess(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Pass: "p", From: "shop@example.com"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	ev := queue.AccessIssuedEvent{
		Email:        "buyer@x.com",
		Name:         "Bea",
		VideoTitle:   "Clip",
		OrderID:      "order_1",
		Token:        "deadbeef",
		ExpiresAt:    time.Date(2030, 1, 2, 3, 4, 0, 0, time.UTC),
		MaxDownloads: 5,
	}
	require.NoError(t, m.SendAccess(context.Background(), ev))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"buyer@x.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Your access code for Clip")
	assert.Contains(t, gotMsg, "Your access code: deadbeef")
	assert.Contains(t, gotMsg, "Hello Bea")
	assert.Contains(t, gotMsg, "02 Jan 2030")
	assert.Contains(t, gotMsg, "multipart/mixed")
	assert.True(t, strings.Contains(gotMsg, `filename="access-qr.png"`))
}

func TestSMTPMailer_SendFailure(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	err := m.SendAccess(context.Background(), queue.AccessIssuedEvent{Email: "a@x.com", Token: "t"})
	assert.Error(t, err)
}

func TestAccessSubject(t *testing.T) {
	assert.Equal(t, "Your access code for Clip", accessSubject("Clip"))

	injected := accessSubject("Clip\r\nBcc: victim@x.com\rX-Evil: 1")
	assert.NotContains(t, injected, "\r")
	assert.NotContains(t, injected, "\n")

	encoded := accessSubject("Café tour")
	assert.True(t, strings.HasPrefix(encoded, "=?utf-8?q?"), encoded)
	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, "Your access code for Café tour", decoded)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{Logger: logging.Discard()}.SendAccess(context.Background(), queue.AccessIssuedEvent{}))
}
