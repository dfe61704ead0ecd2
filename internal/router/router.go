// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Health       echo.HandlerFunc
	Reservations *handler.ReservationHandler
	Orders       *handler.OrderHandler
	Admin        *handler.AdminHandler
	// BookingLimit throttles reservation creation. Nil disables it.
	BookingLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the public health endpoints and the authenticated /v1 API.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	booking := []echo.MiddlewareFunc{}
	if h.BookingLimit != nil {
		booking = append(booking, h.BookingLimit)
	}
	r := v1.Group("/reservations")
	r.POST("", h.Reservations.Create, booking...)
	r.POST("/allocate", h.Reservations.Allocate)
	r.GET("", h.Reservations.List)
	r.GET("/:id", h.Reservations.Get)
	r.POST("/:id/cancel", h.Reservations.Cancel)
	r.POST("/:id/extend", h.Reservations.Extend)
	r.POST("/:id/order", h.Reservations.CreateOrder)

	admin := middleware.RequireRole(model.RoleAdmin)
	r.POST("/:id/confirm", h.Reservations.Confirm, admin)
	r.POST("/:id/check-in", h.Reservations.CheckIn, admin)
	r.POST("/:id/check-out", h.Reservations.CheckOut, admin)

	o := v1.Group("/orders")
	o.GET("", h.Orders.List)
	o.GET("/:id", h.Orders.Get)
	o.POST("/:id/pay", h.Orders.Pay)
	o.POST("/:id/cancel", h.Orders.Cancel)
	o.POST("/:id/refund", h.Orders.Refund)

	a := v1.Group("/admin", admin)
	a.POST("/sweep", h.Admin.Sweep)
	a.GET("/consistency", h.Admin.Consistency)
	a.GET("/stats", h.Admin.Stats)
}
