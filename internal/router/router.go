// Package router assembles the echo instance: global middleware, route
// groups and the static media directory.
package router

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/ramtunguturi36/cvb/internal/config"
	"github.com/ramtunguturi36/cvb/internal/handler"
	"github.com/ramtunguturi36/cvb/internal/middleware"
)

// Handlers groups the route handlers.
type Handlers struct {
	Auth   *handler.AuthHandler
	Videos *handler.VideoHandler
	Orders *handler.OrderHandler
	Access *handler.AccessHandler
	Admin  *handler.AdminHandler
}

// Options carries everything the middleware stack needs.  A nil Redis client
// turns rate limiting and response caching into pass-throughs.
type Options struct {
	Sessions       middleware.SessionVerifier
	Redis          *redis.Client
	RateLimit      config.RateLimitConfig
	Cache          config.CacheConfig
	UploadDir      string
	UploadMaxBytes int64
	AllowOrigins   []string
	DB             handler.Pinger
	Logger         *slog.Logger
}

// jsonBodyLimit bounds every request except uploads.
const jsonBodyLimit = "1M"

// New returns an echo instance with every route of the API registered.
func New(h Handlers, o Options) *echo.Echo {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(o.Logger))
	origins := o.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, handler.BootstrapKeyHeader},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
	}))

	RegisterRoutes(e, o)
	RegisterAuth(e, h.Auth, o)
	RegisterVideos(e, h.Videos, o)
	RegisterOrders(e, h.Orders, o)
	RegisterAccess(e, h.Access, o)
	RegisterAdmin(e, h.Admin, o)
	return e
}

// RegisterRoutes registers the health probe and the uploaded media.  Media
// is served through http.ServeContent, which answers Range requests for
// streaming playback.
func RegisterRoutes(e *echo.Echo, o Options) {
	e.GET("/healthz", handler.Health(o.DB))
	if o.UploadDir != "" {
		e.Static("/uploads", o.UploadDir)
	}
}

func uploadLimit(n int64) string {
	if n <= 0 {
		n = 100 << 20
	}
	kb := n / 1024
	if kb < 1 {
		kb = 1
	}
	return fmt.Sprintf("%dK", kb)
}
