package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/reconcile"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// PayRequest carries the payment details submitted by the guest.
type PayRequest struct {
	Method string `json:"pay_method"`
	PayRef string `json:"pay_ref"`
}

// Orders drives the order lifecycle: creation, payment, cancellation and
// refund. Pay, Cancel and Refund of one order are serialized by a lease
// on its OrderKey held across the gateway call and the commit.
type Orders struct {
	store      repository.Store
	locker     lock.Locker
	gateway    payment.Gateway
	reconciler *reconcile.Service
	clock      clock.Clock
	dispatch   Dispatcher
}

// NewOrders wires an Orders service. The reconciler expires orders whose
// payment window has passed when a late payment arrives.
func NewOrders(store repository.Store, locker lock.Locker, gateway payment.Gateway, reconciler *reconcile.Service, clk clock.Clock, d Dispatcher) *Orders {
	return &Orders{store: store, locker: locker, gateway: gateway, reconciler: reconciler, clock: clk, dispatch: d}
}

func (s *Orders) acquire(ctx context.Context, id uint64) (lock.Lease, error) {
	lease, err := s.locker.Acquire(ctx, lock.OrderKey(id))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, fmt.Errorf("%w: order %d is being processed concurrently", apperr.ErrInvalidStateTransition, id)
		}
		log.Error().Err(err).Uint64("order_id", id).Msg("service: order lock failed")
		return nil, err
	}
	return lease, nil
}

func release(lease lock.Lease, id uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		log.Warn().Err(err).Uint64("order_id", id).Msg("service: order lock release failed")
	}
}

// Create returns the order of a reservation, creating it on first call.
func (s *Orders) Create(ctx context.Context, actor model.Actor, reservationID uint64) (*model.Order, error) {
	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", reservationID, err)
	}
	if !actor.Owns(res.UserID) {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", apperr.ErrPolicyViolation, reservationID)
	}

	existing, err := s.store.GetOrderByReservation(ctx, reservationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation %d is %s", apperr.ErrInvalidStateTransition, reservationID, res.Status)
	}

	now := s.clock.Now()
	order := &model.Order{
		OrderNo:       OrderNo(now),
		UserID:        res.UserID,
		ReservationID: res.ID,
		Amount:        res.Price,
		Status:        model.OrderUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.store.GetOrderByReservation(ctx, reservationID)
		}
		return nil, err
	}
	log.Info().Uint64("order_id", order.ID).Uint64("reservation_id", res.ID).Str("order_no", order.OrderNo).
		Msg("service: order created")
	return order, nil
}

// Get returns an order the actor may see.
func (s *Orders) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	if !actor.Owns(order.UserID) {
		return nil, fmt.Errorf("%w: order %d belongs to another user", apperr.ErrPolicyViolation, id)
	}
	return order, nil
}

// List returns orders matching f. Non-admin actors only see their own.
func (s *Orders) List(ctx context.Context, actor model.Actor, f repository.OrderFilter) ([]model.Order, error) {
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return s.store.ListOrders(ctx, f)
}

// Pay verifies the payment with the gateway and marks the order and its
// reservation PAID. The reservation is not confirmed. Orders of cancelled
// or finished reservations cannot be paid.
func (s *Orders) Pay(ctx context.Context, actor model.Actor, id uint64, req PayRequest) (*model.Order, error) {
	lease, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release(lease, id)

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderUnpaid {
		return nil, fmt.Errorf("%w: order %d is %s", apperr.ErrPolicyViolation, id, order.Status)
	}
	res, err := s.store.GetReservation(ctx, order.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", order.ReservationID, err)
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation %d is %s", apperr.ErrInvalidStateTransition, res.ID, res.Status)
	}
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	req.PayRef = strings.TrimSpace(req.PayRef)
	if req.Method == "" {
		return nil, fmt.Errorf("%w: pay method is required", apperr.ErrValidation)
	}
	if !order.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: order amount must be positive", apperr.ErrValidation)
	}
	if s.reconciler.Expired(order.CreatedAt, s.clock.Now()) {
		if _, err := s.reconciler.ExpireOrder(ctx, id); err != nil {
			log.Warn().Err(err).Uint64("order_id", id).Msg("service: expiring order failed")
		}
		return nil, fmt.Errorf("%w: order %d was not paid within %s", apperr.ErrOrderExpired, id, s.reconciler.PaymentTTL())
	}

	ok, err := s.gateway.Verify(ctx, req.Method, req.PayRef, order.Amount)
	if err != nil {
		log.Warn().Err(err).Uint64("order_id", id).Msg("service: payment verification error")
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentVerificationFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: payment %q was rejected", apperr.ErrPaymentVerificationFailed, req.PayRef)
	}

	// stale is set when the order or reservation moved on while the
	// gateway was verifying; the captured payment is then voided.
	var stale bool
	amount := order.Amount
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		order, err = q.GetOrderForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if order.Status != model.OrderUnpaid {
			stale = true
			return fmt.Errorf("%w: order %d is %s", apperr.ErrPolicyViolation, id, order.Status)
		}
		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", order.ReservationID, err)
		}
		if res.Status.Terminal() {
			stale = true
			return fmt.Errorf("%w: reservation %d is %s", apperr.ErrInvalidStateTransition, res.ID, res.Status)
		}

		now := s.clock.Now()
		order.Status = model.OrderPaid
		order.PayMethod = req.Method
		order.PayRef = req.PayRef
		order.PayTime = &now
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if res.PayStatus == model.PayUnpaid {
			res.PayStatus = model.PayPaid
			res.UpdatedAt = now
			_, err = q.UpdateReservation(ctx, res)
		}
		return err
	})
	if err != nil {
		if stale {
			s.void(ctx, id, req.PayRef, amount)
		}
		return nil, err
	}

	log.Info().Uint64("order_id", id).Str("method", req.Method).Msg("service: order paid")
	notifyPaid(ctx, s.dispatch, id)
	return order, nil
}

// void returns a verified payment that could not be recorded.
func (s *Orders) void(ctx context.Context, id uint64, payRef string, amount decimal.Decimal) {
	ok, err := s.gateway.Refund(context.WithoutCancel(ctx), payRef, amount)
	if err != nil || !ok {
		log.Error().Err(err).Uint64("order_id", id).Str("pay_ref", payRef).Str("amount", amount.StringFixed(2)).
			Msg("service: voiding unrecorded payment failed")
		return
	}
	log.Warn().Uint64("order_id", id).Str("pay_ref", payRef).Msg("service: unrecorded payment voided")
}

// Cancel cancels an UNPAID order together with its reservation and
// releases the room.
func (s *Orders) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Order, error) {
	lease, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release(lease, id)

	var order *model.Order
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		order, err = q.GetOrderForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if !actor.Owns(order.UserID) {
			return fmt.Errorf("%w: order %d belongs to another user", apperr.ErrPolicyViolation, id)
		}
		if order.Status != model.OrderUnpaid {
			return fmt.Errorf("%w: only unpaid orders can be cancelled, order %d is %s",
				apperr.ErrInvalidStateTransition, id, order.Status)
		}
		now := s.clock.Now()
		order.Status = model.OrderCancelled
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return err
		}

		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !res.Status.Terminal() {
			res.Status = model.ReservationCancelled
			res.UpdatedAt = now
			res.AppendNote("cancelled with order " + order.OrderNo)
			if _, err := q.UpdateReservation(ctx, res); err != nil {
				return err
			}
		}
		_, err = reconcile.ReleaseRoom(ctx, q, res.RoomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint64("order_id", id).Msg("service: order cancelled")
	return order, nil
}

// Refund returns part of a PAID order's amount according to
// payment.RefundAmount and releases the reservation. Guests may not
// refund within CancellationCutoff of the stay or once it has ended or
// been cancelled.
func (s *Orders) Refund(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Order, error) {
	lease, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release(lease, id)

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderPaid {
		return nil, fmt.Errorf("%w: only paid orders can be refunded, order %d is %s",
			apperr.ErrInvalidStateTransition, id, order.Status)
	}
	res, err := s.store.GetReservation(ctx, order.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", order.ReservationID, err)
	}

	now := s.clock.Now()
	if !actor.IsAdmin() {
		switch {
		case res.StartDate.Before(clock.Today(now)):
			return nil, fmt.Errorf("%w: stay has already started", apperr.ErrPolicyViolation)
		case !beforeCutoff(res.StartDate, now):
			return nil, fmt.Errorf("%w: cannot refund within %s of check-in", apperr.ErrPolicyViolation, CancellationCutoff)
		case res.Status.Terminal():
			return nil, fmt.Errorf("%w: reservation is %s", apperr.ErrPolicyViolation, res.Status)
		}
	}

	amount := payment.RefundAmount(order.Amount, clock.DaysBetween(now, res.StartDate))
	ok, err := s.gateway.Refund(ctx, order.PayRef, amount)
	if err != nil {
		log.Warn().Err(err).Uint64("order_id", id).Msg("service: refund processing error")
		return nil, fmt.Errorf("%w: %v", apperr.ErrRefundProcessingFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: refund of order %d was rejected", apperr.ErrRefundProcessingFailed, id)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "requested by " + actor.Role
	}
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		order, err = q.GetOrderForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if order.Status != model.OrderPaid {
			return fmt.Errorf("%w: order %d is %s", apperr.ErrInvalidStateTransition, id, order.Status)
		}
		now := s.clock.Now()
		order.Status = model.OrderRefunded
		order.RefundAmount = amount
		order.RefundTime = &now
		order.RefundReason = reason
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return err
		}

		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", order.ReservationID, err)
		}
		res.PayStatus = model.PayRefunded
		if res.StartDate.After(clock.Today(now)) && !res.Status.Terminal() {
			res.Status = model.ReservationCancelled
		}
		res.UpdatedAt = now
		if _, err := q.UpdateReservation(ctx, res); err != nil {
			return err
		}
		_, err = reconcile.ReleaseRoom(ctx, q, res.RoomID)
		return err
	})
	if err != nil {
		log.Error().Err(err).Uint64("order_id", id).Str("refund_amount", amount.StringFixed(2)).
			Msg("service: refund accepted by gateway but not recorded")
		return nil, err
	}

	log.Info().Uint64("order_id", id).Str("refund_amount", amount.StringFixed(2)).Msg("service: order refunded")
	return order, nil
}

// OrderNo builds a 22 character order number: the timestamp to the
// second followed by 8 random hex digits.
func OrderNo(now time.Time) string {
	return now.Format("20060102150405") + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
