package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ramtunguturi36/cvb/internal/handler"
	"github.com/ramtunguturi36/cvb/internal/middleware"
)

// RegisterAuth registers /api/auth.  The whole group is rate limited.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o Options) {
	g := e.Group("/api/auth",
		echomw.BodyLimit(jsonBodyLimit),
		middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Logger),
	)
	g.POST("/signup", a.SignUp)
	g.POST("/login", a.LogIn)
	g.POST("/create-admin", a.CreateAdmin)
	g.GET("/me", a.Me, middleware.JWTAuth(o.Sessions))
}
