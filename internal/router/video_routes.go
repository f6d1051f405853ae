package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ramtunguturi36/cvb/internal/handler"
	"github.com/ramtunguturi36/cvb/internal/middleware"
)

// RegisterVideos registers /api/videos.  The public feed is cached in Redis
// for anonymous callers; management routes require an admin session.
func RegisterVideos(e *echo.Echo, v *handler.VideoHandler, o Options) {
	g := e.Group("/api/videos")
	auth := middleware.JWTAuth(o.Sessions)
	admin := middleware.RequireAdmin()
	jsonLimit := echomw.BodyLimit(jsonBodyLimit)

	g.GET("/feed", v.Feed, middleware.NewRedisCache(o.Cache, o.Redis, o.Logger))
	g.GET("/purchased", v.Purchased, auth)
	g.POST("/upload", v.Upload, echomw.BodyLimit(uploadLimit(o.UploadMaxBytes)), auth, admin)
	g.POST("", v.Create, jsonLimit, auth, admin)
	g.GET("/:id", v.Get)
	g.PATCH("/:id", v.Update, jsonLimit, auth, admin)
	g.DELETE("/:id", v.Delete, auth, admin)
}

// RegisterOrders registers /api/orders.  Every route requires a session.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, o Options) {
	g := e.Group("/api/orders", echomw.BodyLimit(jsonBodyLimit), middleware.JWTAuth(o.Sessions))
	g.POST("/create", h.Create)
	g.POST("/create-batch", h.CreateBatch)
	g.POST("/verify", h.Verify)
	g.POST("/fail", h.Fail)
	g.GET("/my-transactions", h.MyTransactions)
}
