package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ramtunguturi36/cvb/internal/app"
	"github.com/ramtunguturi36/cvb/internal/config"
	"github.com/ramtunguturi36/cvb/internal/database"
	"github.com/ramtunguturi36/cvb/internal/handler"
	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/router"
	"github.com/ramtunguturi36/cvb/internal/service"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable; rate limiting and caching disabled", "error", err)
	} else {
		defer rdb.Close()
	}

	if !cfg.PaymentsConfigured() {
		log.Warn("razorpay credentials missing; order creation will fail")
	}

	users := repository.NewUserRepo(db)
	videos := repository.NewVideoRepo(db)
	txns := repository.NewTransactionRepo(db)
	tokens := repository.NewAccessTokenRepo(db)
	outbox := repository.NewOutboxRepo(db)

	sessions := service.NewSessions(cfg.JWTSecret, cfg.SessionTTL)
	auth := service.NewAuth(users, sessions, cfg.BcryptCost, cfg.AdminBootstrapKey, log)
	access := service.NewAccessTokens(tokens, videos, log)
	catalog := service.NewCatalog(videos, txns, tokens, access, cfg.UploadDir,
		service.AccessPolicy{TTL: cfg.PreviewTTL, MaxDownloads: cfg.PreviewMaxDownloads}, log)
	checkout := service.NewCheckout(users, videos, txns, outbox, access,
		service.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		service.AccessPolicy{TTL: cfg.AccessTTL, MaxDownloads: cfg.AccessMaxDownloads}, log)

	mailer := app.Mailer(cfg, log)
	relay := app.Relay(db, cfg, app.Dispatcher(cfg, mailer, log), log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx, cfg.OutboxPollInterval)
	}()
	if consumer := app.Consumer(cfg, mailer, rdb, log); consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("access consumer stopped", "error", err)
			}
		}()
	}

	e := router.New(router.Handlers{
		Auth:   handler.NewAuthHandler(auth),
		Videos: handler.NewVideoHandler(catalog),
		Orders: handler.NewOrderHandler(checkout, catalog),
		Access: handler.NewAccessHandler(access),
		Admin:  handler.NewAdminHandler(catalog, access),
	}, router.Options{
		Sessions:       sessions,
		Redis:          rdb,
		RateLimit:      config.LoadRateLimitConfig(),
		Cache:          config.LoadCacheConfig(),
		UploadDir:      cfg.UploadDir,
		UploadMaxBytes: cfg.UploadMaxBytes,
		AllowOrigins:   cfg.CORSOrigins,
		DB:             db,
		Logger:         log,
	})

	addr := app.Addr(cfg.Port)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	wg.Wait()
}
