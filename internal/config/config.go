package config // package config loads application configuration from the environment

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Secrets for the payment
// gateway, SMTP and sessions live here and are handed to the clients that
// need them at construction time; nothing reads the environment later.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int

	// AdminBootstrapKey gates POST /api/auth/create-admin.  Empty disables the route.
	AdminBootstrapKey string

	UploadDir      string
	UploadMaxBytes int64
	CORSOrigins    []string

	RazorpayKeyID     string
	RazorpayKeySecret string

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	FromEmail string

	RabbitMQURL string

	AccessTTL           time.Duration
	AccessMaxDownloads  int
	PreviewTTL          time.Duration
	PreviewMaxDownloads int

	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int
}

// Load reads an optional .env file and then the environment.  Required
// variables are enforced by must() and abort the process when missing.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser: must("DB_USER"),
		DBPass: envStr("DB_PASS", ""),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:  must("JWT_SECRET"),
		SessionTTL: envDur("SESSION_TTL", 7*24*time.Hour),
		BcryptCost: envInt("BCRYPT_COST", 10),

		AdminBootstrapKey: envStr("ADMIN_BOOTSTRAP_KEY", ""),

		UploadDir:      envStr("UPLOAD_DIR", "uploads"),
		UploadMaxBytes: envInt64("UPLOAD_MAX_BYTES", 100<<20),
		CORSOrigins:    envList("CORS_ORIGINS"),

		RazorpayKeyID:     envStr("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: envStr("RAZORPAY_KEY_SECRET", ""),

		SMTPHost:  envStr("SMTP_HOST", ""),
		SMTPPort:  envInt("SMTP_PORT", 587),
		SMTPUser:  envStr("SMTP_USER", ""),
		SMTPPass:  envStr("SMTP_PASS", ""),
		FromEmail: envStr("FROM_EMAIL", "no-reply@example.com"),

		RabbitMQURL: envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),

		AccessTTL:           envDur("ACCESS_TTL", 7*24*time.Hour),
		AccessMaxDownloads:  envInt("ACCESS_MAX_DOWNLOADS", 5),
		PreviewTTL:          envDur("PREVIEW_TTL", 365*24*time.Hour),
		PreviewMaxDownloads: envInt("PREVIEW_MAX_DOWNLOADS", 1000),

		OutboxPollInterval: envDur("OUTBOX_POLL_INTERVAL", 5*time.Second),
		OutboxMaxAttempts:  envInt("OUTBOX_MAX_ATTEMPTS", 8),
	}
}

// LoadDatabase reads only the variables needed to reach the database.  The
// operator CLI uses it so that migrations do not require the HTTP settings.
func LoadDatabase() Config {
	_ = godotenv.Load()
	return Config{
		DBUser:     must("DB_USER"),
		DBPass:     envStr("DB_PASS", ""),
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		BcryptCost: envInt("BCRYPT_COST", 10),

		RabbitMQURL: envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),
		SMTPHost:    envStr("SMTP_HOST", ""),
		SMTPPort:    envInt("SMTP_PORT", 587),
		SMTPUser:    envStr("SMTP_USER", ""),
		SMTPPass:    envStr("SMTP_PASS", ""),
		FromEmail:   envStr("FROM_EMAIL", "no-reply@example.com"),

		OutboxMaxAttempts: envInt("OUTBOX_MAX_ATTEMPTS", 8),
	}
}

// PaymentsConfigured reports whether gateway credentials are present.
func (c Config) PaymentsConfigured() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// SMTPConfigured reports whether outbound email can be attempted.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}
