package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/service"
)

// AccessHandler serves /api/access.
type AccessHandler struct {
	Access *service.AccessTokens
}

func NewAccessHandler(a *service.AccessTokens) *AccessHandler {
	return &AccessHandler{Access: a}
}

type tokenReq struct {
	Token string `json:"token"`
}

type accessVideo struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	FileURL string `json:"fileUrl"`
}

func bindToken(c echo.Context) (string, error) {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	return strings.TrimSpace(req.Token), nil
}

// Verify reports whether a token is usable and which video it unlocks.  It
// does not spend a redemption.  Rejections answer 400 with one of the
// reasons invalid, revoked, expired or limit.
func (h *AccessHandler) Verify(c echo.Context) error {
	token, err := bindToken(c)
	if err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Access.Verify(ctx, token)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":                 true,
		"video":              accessVideo{ID: res.Video.ID, Title: res.Video.Title, FileURL: res.Video.FileURL},
		"expiresAt":          res.Token.ExpiresAt,
		"downloadsRemaining": res.Token.Remaining(),
	})
}

// Consume spends one redemption.
func (h *AccessHandler) Consume(c echo.Context) error {
	token, err := bindToken(c)
	if err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Access.Consume(ctx, token)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "remaining": t.Remaining()})
}

// QR renders the token as a QR code.  The default answer is JSON with a
// data URI; ?format=png returns the image itself.
func (h *AccessHandler) QR(c echo.Context) error {
	token := c.Param("token")
	img, err := service.RenderQR(token)
	if err != nil {
		return respondErr(c, err)
	}
	if strings.EqualFold(c.QueryParam("format"), "png") {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=3600")
		return c.Blob(http.StatusOK, "image/png", img.PNG)
	}
	return c.JSON(http.StatusOK, echo.Map{"qrCode": img.DataURI, "token": token})
}

// MyQR lists the caller's tokens with their QR codes.
func (h *AccessHandler) MyQR(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Access.ListByUser(ctx, id.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}
