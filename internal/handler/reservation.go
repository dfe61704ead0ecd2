package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// ReservationHandler serves /v1/reservations.
type ReservationHandler struct {
	coordinator  *booking.Coordinator
	reservations *service.Reservations
	orders       *service.Orders
}

func NewReservationHandler(coordinator *booking.Coordinator, reservations *service.Reservations, orders *service.Orders) *ReservationHandler {
	if coordinator == nil || reservations == nil || orders == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{coordinator: coordinator, reservations: reservations, orders: orders}
}

// stayRequest is the wire form of booking.CreateReservationRequest with
// civil dates as YYYY-MM-DD strings.
type stayRequest struct {
	RoomID     uint64 `json:"room_id"`
	RoomTypeID uint64 `json:"room_type_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	GuestCount int    `json:"guest_count"`
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
	Notes      string `json:"notes"`
}

func (r stayRequest) toCore(userID uint64) (booking.CreateReservationRequest, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return booking.CreateReservationRequest{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return booking.CreateReservationRequest{}, err
	}
	return booking.CreateReservationRequest{
		UserID:     userID,
		RoomID:     r.RoomID,
		RoomTypeID: r.RoomTypeID,
		StartDate:  start,
		EndDate:    end,
		GuestCount: r.GuestCount,
		GuestName:  r.GuestName,
		GuestPhone: r.GuestPhone,
		Notes:      r.Notes,
	}, nil
}

// Create handles POST /v1/reservations. Either room_id or room_type_id
// must be given; with only a type the allocator picks the room.
func (h *ReservationHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var body stayRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	req, err := body.toCore(a.UserID)
	if err != nil {
		return fail(c, err)
	}
	res, err := h.coordinator.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Allocate handles POST /v1/reservations/allocate: it previews the room
// a by-type request would get without booking it.
func (h *ReservationHandler) Allocate(c echo.Context) error {
	if _, err := actor(c); err != nil {
		return err
	}
	var body stayRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.RoomTypeID == 0 {
		return badRequest(c, "room_type_id is required")
	}
	req, err := body.toCore(0)
	if err != nil {
		return fail(c, err)
	}
	if req.GuestCount < 1 {
		req.GuestCount = 1
	}
	if !req.StartDate.Before(req.EndDate) {
		return badRequest(c, "start_date must be before end_date")
	}
	room, err := h.coordinator.Allocator().Allocate(c.Request().Context(), req.RoomTypeID, req.StartDate, req.EndDate, req.GuestCount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	res, err := h.reservations.Get(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// List handles GET /v1/reservations?status=PENDING,CONFIRMED&room_id=&limit=&offset=.
func (h *ReservationHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	st, err := statuses(c.QueryParam("status"), (*model.ReservationStatus).UnmarshalText)
	if err != nil {
		return fail(c, err)
	}
	roomID, err := queryUint(c, "room_id")
	if err != nil {
		return fail(c, err)
	}
	f := repository.ReservationFilter{RoomID: roomID, Statuses: st}
	f.Limit, f.Offset = page(c)
	list, err := h.reservations.List(c.Request().Context(), a, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.reservations.Cancel)
}

// Confirm handles POST /v1/reservations/:id/confirm (admin).
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.reservations.Confirm)
}

// CheckIn handles POST /v1/reservations/:id/check-in (admin).
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	var body struct {
		GuestIDCard string `json:"guest_id_card"`
		Notes       string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.transition(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Reservation, error) {
		return h.reservations.CheckIn(ctx, a, id, body.GuestIDCard, body.Notes)
	})
}

// CheckOut handles POST /v1/reservations/:id/check-out (admin).
func (h *ReservationHandler) CheckOut(c echo.Context) error {
	var body struct {
		AdditionalFee decimal.Decimal `json:"additional_fee"`
		Notes         string          `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.transition(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Reservation, error) {
		return h.reservations.CheckOut(ctx, a, id, body.AdditionalFee, body.Notes)
	})
}

// Extend handles POST /v1/reservations/:id/extend.
func (h *ReservationHandler) Extend(c echo.Context) error {
	var body struct {
		NewEndDate string `json:"new_end_date"`
		Reason     string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	newEnd, err := parseDate("new_end_date", body.NewEndDate)
	if err != nil {
		return fail(c, err)
	}
	return h.transition(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Reservation, error) {
		return h.reservations.ExtendStay(ctx, a, id, newEnd, body.Reason)
	})
}

// CreateOrder handles POST /v1/reservations/:id/order. Repeated calls
// return the same order.
func (h *ReservationHandler) CreateOrder(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	order, err := h.orders.Create(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *ReservationHandler) transition(c echo.Context, fn func(ctx context.Context, a model.Actor, id uint64) (*model.Reservation, error)) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	res, err := fn(c.Request().Context(), a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
