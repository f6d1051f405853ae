package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/service"
)

// BootstrapKeyHeader carries the admin bootstrap key on create-admin.
const BootstrapKeyHeader = "X-Bootstrap-Key"

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Auth *service.Auth
}

func NewAuthHandler(a *service.Auth) *AuthHandler {
	return &AuthHandler{Auth: a}
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignUp creates a user account and logs it in.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Auth.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) LogIn(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Auth.LogIn(ctx, req.Email, req.Password)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CreateAdmin registers an admin account.  The request must carry the
// bootstrap key in the X-Bootstrap-Key header.
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Auth.CreateAdmin(ctx, c.Request().Header.Get(BootstrapKeyHeader), req.Email, req.Password, req.Name)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Me(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Auth.Me(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
