package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/metrics"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// maxAllocationAttempts bounds how many candidates a by-type request
// tries when the first pick is taken by a concurrent booking.
const maxAllocationAttempts = 3

// CreateReservationRequest asks for a stay in a specific room, or in any
// room of a type when RoomID is zero.
type CreateReservationRequest struct {
	UserID     uint64    `json:"-" validate:"required"`
	RoomID     uint64    `json:"room_id" validate:"required_without=RoomTypeID"`
	RoomTypeID uint64    `json:"room_type_id" validate:"required_without=RoomID"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required"`
	GuestCount int       `json:"guest_count" validate:"gte=1"`
	GuestName  string    `json:"guest_name" validate:"required,max=64"`
	GuestPhone string    `json:"guest_phone" validate:"required,max=32"`
	Notes      string    `json:"notes" validate:"max=500"`
}

// Coordinator creates reservations. The availability re-check, pricing
// and insert run in one transaction while the room lock is held.
type Coordinator struct {
	store     repository.Store
	locker    lock.Locker
	allocator *Allocator
	roomTypes *RoomTypes
	clock     clock.Clock
	validate  *validator.Validate
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(store repository.Store, locker lock.Locker, roomTypes *RoomTypes, clk clock.Clock) *Coordinator {
	return &Coordinator{
		store:     store,
		locker:    locker,
		allocator: NewAllocator(store, roomTypes),
		roomTypes: roomTypes,
		clock:     clk,
		validate:  validator.New(),
	}
}

// Allocator exposes the allocator used for by-type requests.
func (c *Coordinator) Allocator() *Allocator { return c.allocator }

// CreateReservation validates req, picks a room when only a type is
// given, and books it in state (PENDING, UNPAID).
func (c *Coordinator) CreateReservation(ctx context.Context, req CreateReservationRequest) (*model.Reservation, error) {
	if err := c.normalize(&req); err != nil {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if req.RoomID != 0 {
		res, err := c.reserve(ctx, req.RoomID, req)
		observe(err)
		return res, err
	}

	candidates, err := c.allocator.Candidates(ctx, req.RoomTypeID, req.StartDate, req.EndDate, req.GuestCount)
	if err != nil {
		observe(err)
		return nil, err
	}
	for i, room := range candidates {
		if i == maxAllocationAttempts {
			break
		}
		res, err := c.reserve(ctx, room.ID, req)
		if err == nil || !errors.Is(err, apperr.ErrRoomConflict) {
			observe(err)
			return res, err
		}
		log.Info().Uint64("room_id", room.ID).Msg("booking: allocated room taken concurrently, trying next")
	}
	err = fmt.Errorf("%w: room type %d from %s to %s", apperr.ErrNoRoomAvailable, req.RoomTypeID,
		req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly))
	observe(err)
	return nil, err
}

func (c *Coordinator) normalize(req *CreateReservationRequest) error {
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.GuestPhone = strings.TrimSpace(req.GuestPhone)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	req.StartDate = clock.Today(req.StartDate)
	req.EndDate = clock.Today(req.EndDate)
	if !req.StartDate.Before(req.EndDate) {
		return fmt.Errorf("%w: start date must be before end date", apperr.ErrValidation)
	}
	if req.StartDate.Before(clock.Today(c.clock.Now())) {
		return fmt.Errorf("%w: start date is in the past", apperr.ErrValidation)
	}
	return nil
}

func (c *Coordinator) reserve(ctx context.Context, roomID uint64, req CreateReservationRequest) (*model.Reservation, error) {
	lease, err := AcquireRoom(ctx, c.locker, roomID)
	if err != nil {
		return nil, err
	}
	defer ReleaseRoom(lease, roomID)

	var res *model.Reservation
	err = c.store.ExecTx(ctx, func(q repository.Querier) error {
		room, err := q.GetRoomForUpdate(ctx, roomID)
		if err != nil {
			return fmt.Errorf("room %d: %w", roomID, err)
		}
		if err := NewAvailability(q).Check(ctx, room, req.StartDate, req.EndDate, 0); err != nil {
			return err
		}
		rt, err := c.roomTypes.Get(ctx, room.RoomTypeID)
		if err != nil {
			return fmt.Errorf("room type %d: %w", room.RoomTypeID, err)
		}
		if rt.MaxPeople < req.GuestCount {
			return fmt.Errorf("%w: room %s holds at most %d guests", apperr.ErrValidation, room.RoomNumber, rt.MaxPeople)
		}
		nights := model.Nights(req.StartDate, req.EndDate)
		if nights < 1 {
			return fmt.Errorf("%w: stay must be at least one night", apperr.ErrValidation)
		}

		now := c.clock.Now()
		res = &model.Reservation{
			UserID:     req.UserID,
			RoomID:     room.ID,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			GuestCount: req.GuestCount,
			GuestName:  req.GuestName,
			GuestPhone: req.GuestPhone,
			Notes:      req.Notes,
			Status:     model.ReservationPending,
			PayStatus:  model.PayUnpaid,
			Price:      Price(rt.Price, nights),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return q.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("reservation_id", res.ID).Uint64("room_id", res.RoomID).
		Str("start", res.StartDate.Format(time.DateOnly)).Str("end", res.EndDate.Format(time.DateOnly)).
		Msg("booking: reservation created")
	return res, nil
}

// AcquireRoom takes the lock guarding reservations of roomID. A lease
// that cannot be obtained within the wait becomes an error wrapping
// apperr.ErrRoomConflict.
func AcquireRoom(ctx context.Context, locker lock.Locker, roomID uint64) (lock.Lease, error) {
	started := time.Now()
	lease, err := locker.Acquire(ctx, lock.RoomKey(roomID))
	metrics.LockWait.Observe(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			log.Warn().Uint64("room_id", roomID).Msg("booking: room lock not obtained")
			return nil, fmt.Errorf("%w: room %d is being booked concurrently", apperr.ErrRoomConflict, roomID)
		}
		log.Error().Err(err).Uint64("room_id", roomID).Msg("booking: room lock failed")
		return nil, err
	}
	return lease, nil
}

// ReleaseRoom releases a lease taken with AcquireRoom, logging failures.
func ReleaseRoom(lease lock.Lease, roomID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		log.Warn().Err(err).Uint64("room_id", roomID).Msg("booking: room lock release failed")
	}
}

// Price is the cost of nights at the nightly rate.
func Price(nightly decimal.Decimal, nights int) decimal.Decimal {
	return nightly.Mul(decimal.NewFromInt(int64(nights)))
}

func observe(err error) {
	result := "created"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrRoomConflict):
		result = "conflict"
	case errors.Is(err, apperr.ErrNoRoomAvailable):
		result = "no_room"
	case errors.Is(err, apperr.ErrValidation):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.Reservations.WithLabelValues(result).Inc()
}
