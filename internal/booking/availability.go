// Package booking decides room availability, allocates rooms and creates
// reservations under a per-room lock.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Availability answers conflict questions against one Querier. Bind it
// to a transaction's Querier to re-check inside the critical section.
type Availability struct {
	q repository.Querier
}

// NewAvailability returns an Availability reading through q.
func NewAvailability(q repository.Querier) *Availability { return &Availability{q: q} }

// IsOverlapping reports whether any PENDING or CONFIRMED reservation of
// roomID intersects [start, end).
func (a *Availability) IsOverlapping(ctx context.Context, roomID uint64, start, end time.Time) (bool, error) {
	return a.overlaps(ctx, roomID, start, end, 0)
}

func (a *Availability) overlaps(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	found, err := a.q.ListReservations(ctx, repository.ReservationFilter{
		RoomID:    roomID,
		Statuses:  model.OccupyingStatuses,
		Overlap:   &repository.DateRange{Start: start, End: end},
		ExcludeID: excludeID,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// IsAvailable reports whether roomID exists, is AVAILABLE and has no
// overlapping reservation for [start, end).
func (a *Availability) IsAvailable(ctx context.Context, roomID uint64, start, end time.Time) (bool, error) {
	room, err := a.q.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Status != model.RoomAvailable {
		return false, nil
	}
	overlap, err := a.IsOverlapping(ctx, roomID, start, end)
	return !overlap, err
}

// Check returns an error wrapping apperr.ErrRoomConflict when room cannot
// take [start, end). Reservation excludeID is ignored, so a stay can be
// checked against everything but itself.
func (a *Availability) Check(ctx context.Context, room *model.Room, start, end time.Time, excludeID uint64) error {
	if room.Status != model.RoomAvailable {
		return fmt.Errorf("%w: room %s is under maintenance", apperr.ErrRoomConflict, room.RoomNumber)
	}
	overlap, err := a.overlaps(ctx, room.ID, start, end, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("%w: room %s is already booked from %s to %s", apperr.ErrRoomConflict,
			room.RoomNumber, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return nil
}
