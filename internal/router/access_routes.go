package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ramtunguturi36/cvb/internal/handler"
	"github.com/ramtunguturi36/cvb/internal/middleware"
)

// RegisterAccess registers /api/access.  Token checks are anonymous, so the
// group is rate limited against token guessing.
func RegisterAccess(e *echo.Echo, a *handler.AccessHandler, o Options) {
	g := e.Group("/api/access",
		echomw.BodyLimit(jsonBodyLimit),
		middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Logger),
	)
	g.POST("/verify", a.Verify)
	g.POST("/consume", a.Consume)
	g.GET("/qr/:token", a.QR)
	g.GET("/my-qr", a.MyQR, middleware.JWTAuth(o.Sessions))
}

// RegisterAdmin registers /api/admin.  Every route requires an admin session.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, o Options) {
	g := e.Group("/api/admin",
		echomw.BodyLimit(jsonBodyLimit),
		middleware.JWTAuth(o.Sessions),
		middleware.RequireAdmin(),
	)
	g.GET("/transactions", h.Transactions)
	g.GET("/videos", h.Videos)
	g.GET("/folders", h.Folders)
	g.POST("/access/:token/revoke", h.RevokeToken)
}
