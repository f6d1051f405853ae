package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/apperr"
	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/service"
)

// OrderHandler serves /api/orders.
type OrderHandler struct {
	Checkout *service.Checkout
	Catalog  *service.Catalog
}

func NewOrderHandler(co *service.Checkout, cat *service.Catalog) *OrderHandler {
	return &OrderHandler{Checkout: co, Catalog: cat}
}

type createOrderReq struct {
	VideoID uint64 `json:"videoId"`
}

// Create opens a gateway order for one video.
func (h *OrderHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	if req.VideoID == 0 {
		return badRequest(c, "video_id_required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	o, err := h.Checkout.Initiate(ctx, id.UserID, req.VideoID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

type createBatchReq struct {
	VideoIDs []uint64 `json:"videoIds"`
}

// CreateBatch opens one order per video, as a cart checkout does.  When an
// order fails the ones already opened are still returned next to the error.
func (h *OrderHandler) CreateBatch(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req createBatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	orders, err := h.Checkout.InitiateBatch(ctx, id.UserID, req.VideoIDs)
	if orders == nil {
		orders = []service.Order{}
	}
	if err != nil {
		status := apperr.Status(err)
		if status >= http.StatusInternalServerError {
			logging.FromContext(ctx).Error("batch order failed", "opened", len(orders), "error", err)
		}
		return c.JSON(status, echo.Map{"error": apperr.Reason(err), "orders": orders})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

type verifyOrderReq struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	VideoID   uint64 `json:"videoId"`
}

// Verify finalizes a paid order and returns its access token.  Replays of
// the same callback return the token issued the first time.
func (h *OrderHandler) Verify(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req verifyOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Checkout.Finalize(ctx, service.FinalizeInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		VideoID:   req.VideoID,
		Caller:    id,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type failOrderReq struct {
	OrderID string `json:"razorpay_order_id"`
}

func (h *OrderHandler) Fail(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req failOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Checkout.Fail(ctx, req.OrderID, id); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *OrderHandler) MyTransactions(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Catalog.MyTransactions(ctx, id.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}
