// Package handler contains the echo handlers of the HTTP API.  Handlers
// parse and validate the request shape, call one service method under a
// short timeout and translate service errors into {"error": reason}
// responses.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/middleware"
	"github.com/ramtunguturi36/cvb/internal/service"
)

const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondErr writes err as {"error": reason} with the status of its kind.
// Server-side failures are logged with the cause, which is never sent.
func respondErr(c echo.Context, err error) error {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request failed", "error", err)
	}
	return c.JSON(status, echo.Map{"error": apperr.Reason(err)})
}

func badRequest(c echo.Context, reason string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": reason})
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// caller returns the session identity.  Routes using it sit behind
// JWTAuth, so a miss is answered as unauthorized.
func caller(c echo.Context) (service.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return service.Identity{}, apperr.New(apperr.ErrUnauthorized, "unauthorized")
	}
	return id, nil
}

type itemsResp[T any] struct {
	Items []T `json:"items"`
}

func items[T any](xs []T) itemsResp[T] {
	if xs == nil {
		xs = []T{}
	}
	return itemsResp[T]{Items: xs}
}
