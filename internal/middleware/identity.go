package middleware

// identity.go holds the context keys set by JWTAuth and the helpers that
// read them back.  Rate-limit keys fall back to "anon" for callers without
// a session.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/service"
)

const (
	ctxIdentity = "identity"
	ctxUserID   = "user_id"
	ctxRole     = "role"
)

// IdentityFrom returns the identity stored by JWTAuth.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(service.Identity)
	return id, ok && id.UserID != 0
}

func setIdentity(c echo.Context, id service.Identity) {
	c.Set(ctxIdentity, id)
	c.Set(ctxUserID, id.UserID)
	c.Set(ctxRole, id.Role)
}

// userKey identifies the caller for rate limiting.
func userKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
