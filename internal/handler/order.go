package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// OrderHandler serves /v1/orders.
type OrderHandler struct {
	orders *service.Orders
}

func NewOrderHandler(orders *service.Orders) *OrderHandler {
	if orders == nil {
		panic("nil orders passed to NewOrderHandler")
	}
	return &OrderHandler{orders: orders}
}

// Get handles GET /v1/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	return h.do(c, h.orders.Get)
}

// List handles GET /v1/orders?status=&reservation_id=&limit=&offset=.
func (h *OrderHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	st, err := statuses(c.QueryParam("status"), (*model.OrderStatus).UnmarshalText)
	if err != nil {
		return fail(c, err)
	}
	resID, err := queryUint(c, "reservation_id")
	if err != nil {
		return fail(c, err)
	}
	f := repository.OrderFilter{ReservationID: resID, Statuses: st}
	f.Limit, f.Offset = page(c)
	list, err := h.orders.List(c.Request().Context(), a, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// Pay handles POST /v1/orders/:id/pay with {"pay_method", "pay_ref"}.
func (h *OrderHandler) Pay(c echo.Context) error {
	var body service.PayRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.do(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Order, error) {
		return h.orders.Pay(ctx, a, id, body)
	})
}

// Cancel handles POST /v1/orders/:id/cancel.
func (h *OrderHandler) Cancel(c echo.Context) error {
	return h.do(c, h.orders.Cancel)
}

// Refund handles POST /v1/orders/:id/refund with an optional reason.
func (h *OrderHandler) Refund(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.do(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Order, error) {
		return h.orders.Refund(ctx, a, id, body.Reason)
	})
}

func (h *OrderHandler) do(c echo.Context, fn func(ctx context.Context, a model.Actor, id uint64) (*model.Order, error)) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	order, err := fn(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
