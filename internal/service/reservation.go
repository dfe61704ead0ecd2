// Package service implements the reservation and order state machines on
// top of the booking core, plus the statistics read model.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Reservations drives reservation status changes after creation.
type Reservations struct {
	store     repository.Store
	locker    lock.Locker
	roomTypes *booking.RoomTypes
	clock     clock.Clock
	dispatch  Dispatcher
}

// NewReservations wires a Reservations service. d may be nil, in which
// case compensation is left entirely to the sweep.
func NewReservations(store repository.Store, locker lock.Locker, roomTypes *booking.RoomTypes, clk clock.Clock, d Dispatcher) *Reservations {
	return &Reservations{store: store, locker: locker, roomTypes: roomTypes, clock: clk, dispatch: d}
}

// Get returns a reservation the actor may see.
func (s *Reservations) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", id, err)
	}
	if !actor.Owns(res.UserID) {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", apperr.ErrPolicyViolation, id)
	}
	return res, nil
}

// List returns reservations matching f. Non-admin actors only see their
// own.
func (s *Reservations) List(ctx context.Context, actor model.Actor, f repository.ReservationFilter) ([]model.Reservation, error) {
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return s.store.ListReservations(ctx, f)
}

// Cancel moves a reservation to CANCELLED. Guests must cancel more than
// CancellationCutoff before the stay; admins are exempt. A PAID
// reservation becomes REFUNDED and its order is settled in the
// background.
func (s *Reservations) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		res, err = q.GetReservationForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, err)
		}
		if !actor.Owns(res.UserID) {
			return fmt.Errorf("%w: reservation %d belongs to another user", apperr.ErrPolicyViolation, id)
		}
		if !res.Status.CanTransitionTo(model.ReservationCancelled) {
			return fmt.Errorf("%w: reservation %d is %s", apperr.ErrInvalidStateTransition, id, res.Status)
		}
		now := s.clock.Now()
		if !actor.IsAdmin() {
			if res.StartDate.Before(clock.Today(now)) {
				return fmt.Errorf("%w: stay has already started", apperr.ErrPolicyViolation)
			}
			if !beforeCutoff(res.StartDate, now) {
				return fmt.Errorf("%w: cannot cancel within %s of check-in", apperr.ErrPolicyViolation, CancellationCutoff)
			}
		}

		res.Status = model.ReservationCancelled
		if res.PayStatus == model.PayPaid {
			res.PayStatus = model.PayRefunded
		}
		res.UpdatedAt = now
		_, err = q.UpdateReservation(ctx, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("reservation_id", id).Str("pay_status", res.PayStatus.String()).Msg("service: reservation cancelled")
	notifyCancelled(ctx, s.dispatch, id)
	return res, nil
}

// Confirm moves a PENDING reservation to CONFIRMED. Only admins confirm.
func (s *Reservations) Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	return s.UpdateStatus(ctx, actor, id, model.ReservationConfirmed)
}

// UpdateStatus applies an administrative status change through the
// transition table. Cancellation goes through Cancel so its side effects
// are scheduled.
func (s *Reservations) UpdateStatus(ctx context.Context, actor model.Actor, id uint64, next model.ReservationStatus) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: status changes require the %s role", apperr.ErrPolicyViolation, model.RoleAdmin)
	}
	if next == model.ReservationCancelled {
		return s.Cancel(ctx, actor, id)
	}
	return s.mutate(ctx, actor, id, func(res *model.Reservation, _ time.Time) error {
		if !res.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", apperr.ErrInvalidStateTransition, res.Status, next)
		}
		res.Status = next
		return nil
	})
}

// CheckIn records the guest's arrival. The reservation must be CONFIRMED
// and PAID, and today must fall within CheckInWindow days of the start.
func (s *Reservations) CheckIn(ctx context.Context, actor model.Actor, id uint64, guestIDCard, notes string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: check-in requires the %s role", apperr.ErrPolicyViolation, model.RoleAdmin)
	}
	guestIDCard = strings.TrimSpace(guestIDCard)
	if guestIDCard == "" {
		return nil, fmt.Errorf("%w: guest id card is required", apperr.ErrValidation)
	}
	return s.mutate(ctx, actor, id, func(res *model.Reservation, now time.Time) error {
		if res.Status != model.ReservationConfirmed {
			return fmt.Errorf("%w: only confirmed reservations check in, got %s", apperr.ErrInvalidStateTransition, res.Status)
		}
		if res.PayStatus != model.PayPaid {
			return fmt.Errorf("%w: reservation is %s", apperr.ErrPolicyViolation, res.PayStatus)
		}
		today := clock.Today(now)
		if res.StartDate.After(today) {
			return fmt.Errorf("%w: check-in opens on %s", apperr.ErrPolicyViolation, res.StartDate.Format(time.DateOnly))
		}
		if res.StartDate.AddDate(0, 0, CheckInWindow).Before(today) {
			return fmt.Errorf("%w: check-in window closed", apperr.ErrPolicyViolation)
		}
		res.GuestIDCard = guestIDCard
		res.CheckInTime = &now
		note := fmt.Sprintf("[check-in %s]", now.Format(time.DateTime))
		if n := strings.TrimSpace(notes); n != "" {
			note += " " + n
		}
		res.AppendNote(note)
		return nil
	})
}

// CheckOut completes a stay that has started. A positive fee is added to
// the reservation price.
func (s *Reservations) CheckOut(ctx context.Context, actor model.Actor, id uint64, fee decimal.Decimal, notes string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: check-out requires the %s role", apperr.ErrPolicyViolation, model.RoleAdmin)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("%w: additional fee must not be negative", apperr.ErrValidation)
	}
	return s.mutate(ctx, actor, id, func(res *model.Reservation, now time.Time) error {
		if !res.Status.CanTransitionTo(model.ReservationCompleted) {
			return fmt.Errorf("%w: only confirmed reservations check out, got %s", apperr.ErrInvalidStateTransition, res.Status)
		}
		if res.StartDate.After(clock.Today(now)) {
			return fmt.Errorf("%w: stay has not started", apperr.ErrPolicyViolation)
		}
		note := fmt.Sprintf("[check-out %s]", now.Format(time.DateTime))
		if fee.IsPositive() {
			res.Price = res.Price.Add(fee)
			note += " fee " + fee.StringFixed(2)
		}
		if n := strings.TrimSpace(notes); n != "" {
			note += " " + n
		}
		res.Status = model.ReservationCompleted
		res.CheckOutTime = &now
		res.AppendNote(note)
		return nil
	})
}

// ExtendStay moves the end date of a CONFIRMED reservation to newEnd and
// charges the extra nights at the room type's rate. The added interval
// is re-checked under the room lock.
func (s *Reservations) ExtendStay(ctx context.Context, actor model.Actor, id uint64, newEnd time.Time, reason string) (*model.Reservation, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	newEnd = clock.Today(newEnd)
	extra := clock.DaysBetween(current.EndDate, newEnd)
	if extra < 1 {
		return nil, fmt.Errorf("%w: new end date must be after %s", apperr.ErrValidation, current.EndDate.Format(time.DateOnly))
	}
	if extra > MaxExtensionNights {
		return nil, fmt.Errorf("%w: at most %d extra nights per request", apperr.ErrValidation, MaxExtensionNights)
	}

	lease, err := booking.AcquireRoom(ctx, s.locker, current.RoomID)
	if err != nil {
		return nil, err
	}
	defer booking.ReleaseRoom(lease, current.RoomID)

	var res *model.Reservation
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		res, err = q.GetReservationForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, err)
		}
		if res.Status != model.ReservationConfirmed {
			return fmt.Errorf("%w: only confirmed reservations can be extended, got %s", apperr.ErrInvalidStateTransition, res.Status)
		}
		if !res.EndDate.Equal(current.EndDate) {
			return fmt.Errorf("%w: reservation %d changed concurrently", apperr.ErrRoomConflict, id)
		}
		room, err := q.GetRoomForUpdate(ctx, res.RoomID)
		if err != nil {
			return fmt.Errorf("room %d: %w", res.RoomID, err)
		}
		if err := booking.NewAvailability(q).Check(ctx, room, res.EndDate, newEnd, res.ID); err != nil {
			return err
		}
		rt, err := s.roomTypes.Get(ctx, room.RoomTypeID)
		if err != nil {
			return fmt.Errorf("room type %d: %w", room.RoomTypeID, err)
		}

		now := s.clock.Now()
		fee := booking.Price(rt.Price, extra)
		res.EndDate = newEnd
		res.Price = res.Price.Add(fee)
		res.UpdatedAt = now
		note := fmt.Sprintf("[extended %s] until %s, %d nights, fee %s", now.Format(time.DateTime),
			newEnd.Format(time.DateOnly), extra, fee.StringFixed(2))
		if r := strings.TrimSpace(reason); r != "" {
			note += ": " + r
		}
		res.AppendNote(note)
		_, err = q.UpdateReservation(ctx, res)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint64("reservation_id", id).Str("end", newEnd.Format(time.DateOnly)).Int("nights", res.Nights()).
		Msg("service: stay extended")
	return res, nil
}

// mutate loads the reservation for update, applies fn and saves it.
func (s *Reservations) mutate(ctx context.Context, actor model.Actor, id uint64, fn func(res *model.Reservation, now time.Time) error) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		res, err = q.GetReservationForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, err)
		}
		if !actor.Owns(res.UserID) {
			return fmt.Errorf("%w: reservation %d belongs to another user", apperr.ErrPolicyViolation, id)
		}
		now := s.clock.Now()
		if err := fn(res, now); err != nil {
			return err
		}
		res.UpdatedAt = now
		_, err = q.UpdateReservation(ctx, res)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
