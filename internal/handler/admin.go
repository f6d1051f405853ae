package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/service"
)

// AdminHandler serves /api/admin.  Every route sits behind RequireAdmin;
// the services check the role again.
type AdminHandler struct {
	Catalog *service.Catalog
	Access  *service.AccessTokens
}

func NewAdminHandler(cat *service.Catalog, a *service.AccessTokens) *AdminHandler {
	return &AdminHandler{Catalog: cat, Access: a}
}

func (h *AdminHandler) Transactions(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Catalog.AdminTransactions(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// Videos lists every video, inactive ones included.  Query: folder.
func (h *AdminHandler) Videos(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Catalog.AdminVideos(ctx, id, strings.TrimSpace(c.QueryParam("folder")))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

func (h *AdminHandler) Folders(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Catalog.Folders(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// RevokeToken disables an access token for good.
func (h *AdminHandler) RevokeToken(c echo.Context) error {
	if _, err := caller(c); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Access.Revoke(ctx, c.Param("token")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
