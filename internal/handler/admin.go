package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/reconcile"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// AdminHandler serves /v1/admin. Routes are expected behind
// RequireRole(model.RoleAdmin).
type AdminHandler struct {
	reconciler *reconcile.Service
	stats      *service.Stats
}

func NewAdminHandler(reconciler *reconcile.Service, stats *service.Stats) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, stats: stats}
}

// Sweep handles POST /v1/admin/sweep and runs a reconciliation sweep
// synchronously.
func (h *AdminHandler) Sweep(c echo.Context) error {
	rep, err := h.reconciler.Sweep(c.Request().Context(), "manual")
	if err != nil {
		return fail(c, err)
	}
	h.stats.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, rep)
}

// Consistency handles GET /v1/admin/consistency?order_id=&reservation_id=.
func (h *AdminHandler) Consistency(c echo.Context) error {
	orderID, err := queryUint(c, "order_id")
	if err != nil {
		return fail(c, err)
	}
	resID, err := queryUint(c, "reservation_id")
	if err != nil {
		return fail(c, err)
	}
	if orderID == 0 || resID == 0 {
		return badRequest(c, "order_id and reservation_id are required")
	}
	ok, err := h.reconciler.ValidateConsistency(c.Request().Context(), orderID, resID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": orderID, "reservation_id": resID, "consistent": ok})
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	st, err := h.stats.Get(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
