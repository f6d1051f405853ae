// Package app builds the collaborators shared by the server and the
// operator CLI from a loaded configuration.
package app

import (
	"database/sql"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ramtunguturi36/cvb/internal/config"
	"github.com/ramtunguturi36/cvb/internal/queue"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/service"
)

// Mailer returns the SMTP mailer, or a mailer that only logs when SMTP is
// not configured.
func Mailer(cfg config.Config, log *slog.Logger) service.Mailer {
	if !cfg.SMTPConfigured() {
		log.Warn("smtp not configured; access emails are logged only")
		return service.LogMailer{Logger: log}
	}
	return service.NewSMTPMailer(service.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.FromEmail,
	})
}

// Dispatcher publishes outbox messages to RabbitMQ when a broker is
// configured and emails them directly otherwise.
func Dispatcher(cfg config.Config, mailer service.Mailer, log *slog.Logger) service.Dispatcher {
	if cfg.RabbitMQURL != "" {
		return queue.NewPublisher(cfg.RabbitMQURL, log)
	}
	return service.MailDispatcher{Mailer: mailer}
}

// Relay builds the outbox relay over db.
func Relay(db *sql.DB, cfg config.Config, disp service.Dispatcher, log *slog.Logger) *service.OutboxRelay {
	return service.NewOutboxRelay(repository.NewOutboxRepo(db), disp,
		service.RelayOptions{MaxAttempts: cfg.OutboxMaxAttempts}, log)
}

// Consumer returns the access.issued consumer that emails each event, or
// nil when no broker is configured.  Handled message ids are remembered in
// Redis when rdb is set and in process memory otherwise.
func Consumer(cfg config.Config, mailer service.Mailer, rdb *redis.Client, log *slog.Logger) *queue.Consumer {
	if cfg.RabbitMQURL == "" {
		return nil
	}
	var dedupe queue.Deduper = queue.NewMemoryDeduper(0)
	if rdb != nil {
		dedupe = queue.NewRedisDeduper(rdb, 0)
	}
	return &queue.Consumer{
		URL:         cfg.RabbitMQURL,
		Logger:      log,
		Handle:      mailer.SendAccess,
		Dedupe:      dedupe,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}
}

// Addr is the listen address for port.
func Addr(port string) string {
	if _, err := strconv.Atoi(port); err == nil {
		return ":" + port
	}
	return port
}
