package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ramtunguturi36/cvb/internal/queue"
)

// Mailer delivers the access email for an issued token.
type Mailer interface {
	SendAccess(ctx context.Context, ev queue.AccessIssuedEvent) error
}

// SMTPConfig carries the mail server settings.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

var accessBody = template.Must(template.New("access").Parse(`Hello{{if .Name}} {{.Name}}{{end}},

Thank you for your purchase of "{{.VideoTitle}}".

Your access code: {{.Token}}

It can be redeemed {{.MaxDownloads}} time(s) until {{.ExpiresAt.Format "02 Jan 2006 15:04 MST"}}.
The attached QR code carries the same code.

Order: {{.OrderID}}
`))

// SendAccess emails the token as text with its QR code attached.
func (m *SMTPMailer) SendAccess(ctx context.Context, ev queue.AccessIssuedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildAccessMessage(m.cfg.From, ev)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := m.send(addr, auth, m.cfg.From, []string{ev.Email}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildAccessMessage(from string, ev queue.AccessIssuedEvent) ([]byte, error) {
	var text bytes.Buffer
	if err := accessBody.Execute(&text, ev); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	qr, err := RenderQR(ev.Token)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(text.Bytes()); err != nil {
		return nil, err
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {`attachment; filename="access-qr.png"`},
	})
	if err != nil {
		return nil, err
	}
	enc := base64.StdEncoding.EncodeToString(qr.PNG)
	for len(enc) > 76 {
		if _, err := part.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return nil, err
		}
		enc = enc[76:]
	}
	if _, err := part.Write([]byte(enc + "\r\n")); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", ev.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", accessSubject(ev.VideoTitle))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// accessSubject builds the Subject header value, RFC 2047 encoded when the
// title is not plain ASCII.
func accessSubject(title string) string {
	return mime.QEncoding.Encode("utf-8", "Your access code for "+headerBreaks.Replace(title))
}

// LogMailer writes access emails to the log instead of sending them.  It is
// used when SMTP is not configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendAccess(_ context.Context, ev queue.AccessIssuedEvent) error {
	m.Logger.Info("access email (smtp not configured)",
		"to", ev.Email, "video_id", ev.VideoID, "transaction_id", ev.TransactionID,
		"expires_at", ev.ExpiresAt)
	return nil
}
