// Package reconcile restores the consistency contract between orders and
// reservations after partial failures and expires stale unpaid orders.
//
// Every operation is idempotent: it re-reads the current state inside a
// transaction and only writes what is still missing, so calls from the
// compensation queue, the scheduler and operators may overlap freely.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/metrics"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// DefaultPaymentTTL is how long an order may stay UNPAID.
const DefaultPaymentTTL = 24 * time.Hour

// Repair kinds, used in logs and the reconcile_repairs_total metric.
const (
	KindPayment      = "payment"
	KindCancellation = "cancellation"
	KindExpiry       = "expiry"
	KindRefund       = "refund"
)

// ErrNoRefunds is returned when a paid order of a cancelled reservation
// must be refunded but no gateway was configured with WithRefunds.
var ErrNoRefunds = errors.New("no refund gateway configured")

// Service implements the reconciliation operations.
type Service struct {
	store      repository.Store
	clock      clock.Clock
	paymentTTL time.Duration
	refunds    payment.Gateway
	locker     lock.Locker
}

// Option configures a Service.
type Option func(*Service)

// WithRefunds lets the Service return the money of PAID orders whose
// reservation was cancelled. Refunds hold the OrderKey lease of locker so
// they never overlap a refund issued by the order service.
func WithRefunds(g payment.Gateway, locker lock.Locker) Option {
	return func(s *Service) {
		s.refunds = g
		s.locker = locker
	}
}

// New returns a Service. A non-positive paymentTTL means DefaultPaymentTTL.
func New(store repository.Store, clk clock.Clock, paymentTTL time.Duration, opts ...Option) *Service {
	if paymentTTL <= 0 {
		paymentTTL = DefaultPaymentTTL
	}
	s := &Service{store: store, clock: clk, paymentTTL: paymentTTL}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PaymentTTL returns the payment window of UNPAID orders.
func (s *Service) PaymentTTL() time.Duration { return s.paymentTTL }

// Expired reports whether an UNPAID order created at createdAt is past
// its payment window at now.
func (s *Service) Expired(createdAt, now time.Time) bool {
	return now.Sub(createdAt) > s.paymentTTL
}

// CompensateAfterPayment re-derives Reservation.payStatus = PAID from a
// PAID order. It does nothing for orders in any other state and never
// overwrites a REFUNDED pay status.
func (s *Service) CompensateAfterPayment(ctx context.Context, orderID uint64) error {
	var repaired bool
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderPaid {
			return nil
		}
		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if err != nil {
			return err
		}
		if res.PayStatus != model.PayUnpaid {
			return nil
		}
		res.PayStatus = model.PayPaid
		res.UpdatedAt = s.clock.Now()
		if _, err := q.UpdateReservation(ctx, res); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	return s.finish(KindPayment, "order_id", orderID, repaired, err)
}

// CompensateAfterCancellation releases the room of a CANCELLED
// reservation and settles its open order: UNPAID becomes CANCELLED, PAID
// is refunded through the gateway by payment.RefundAmount and becomes
// REFUNDED.
func (s *Service) CompensateAfterCancellation(ctx context.Context, reservationID uint64) error {
	var (
		repaired bool
		paidID   uint64
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		res, err := q.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationCancelled {
			return nil
		}
		repaired, paidID, err = settleCancelled(ctx, q, res, s.clock.Now())
		return err
	})
	if err == nil && paidID != 0 {
		var refunded bool
		refunded, err = s.refundCancelled(ctx, paidID)
		repaired = repaired || refunded
	}
	return s.finish(KindCancellation, "reservation_id", reservationID, repaired, err)
}

// settleCancelled applies the cancellation side effects for res inside
// an open transaction and reports whether anything changed. A PAID order
// is left untouched and its id returned: the refund needs the gateway,
// which is never called inside a transaction.
func settleCancelled(ctx context.Context, q repository.Querier, res *model.Reservation, now time.Time) (bool, uint64, error) {
	changed, err := ReleaseRoom(ctx, q, res.RoomID)
	if err != nil {
		return false, 0, err
	}

	order, err := q.GetOrderByReservation(ctx, res.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return changed, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	switch order.Status {
	case model.OrderUnpaid:
		order.Status = model.OrderCancelled
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return false, 0, err
		}
		return true, 0, nil
	case model.OrderPaid:
		return changed, order.ID, nil
	default:
		return changed, 0, nil
	}
}

// refundCancelled returns the money of a PAID order whose reservation
// was cancelled and records the refund. It reports whether this call
// refunded the order.
func (s *Service) refundCancelled(ctx context.Context, orderID uint64) (bool, error) {
	if s.refunds == nil {
		return false, fmt.Errorf("order %d: %w", orderID, ErrNoRefunds)
	}
	lease, err := s.locker.Acquire(ctx, lock.OrderKey(orderID))
	if err != nil {
		return false, fmt.Errorf("order %d: %w", orderID, err)
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			log.Warn().Err(err).Uint64("order_id", orderID).Msg("reconcile: order lock release failed")
		}
	}()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != model.OrderPaid {
		return false, nil
	}
	res, err := s.store.GetReservation(ctx, order.ReservationID)
	if err != nil {
		return false, err
	}
	now := s.clock.Now()
	amount := payment.RefundAmount(order.Amount, clock.DaysBetween(now, res.StartDate))
	ok, err := s.refunds.Refund(ctx, order.PayRef, amount)
	if err != nil {
		return false, fmt.Errorf("refund order %d: %w", orderID, err)
	}
	if !ok {
		return false, fmt.Errorf("refund order %d: rejected by gateway", orderID)
	}

	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderPaid {
			return nil
		}
		order.Status = model.OrderRefunded
		order.RefundAmount = amount
		order.RefundTime = &now
		order.RefundReason = "reservation cancelled"
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return err
		}
		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if err != nil {
			return err
		}
		if res.PayStatus == model.PayPaid {
			res.PayStatus = model.PayRefunded
			res.UpdatedAt = now
			_, err = q.UpdateReservation(ctx, res)
		}
		return err
	})
	if err != nil {
		log.Error().Err(err).Uint64("order_id", orderID).Str("refund_amount", amount.StringFixed(2)).
			Msg("reconcile: refund accepted by gateway but not recorded")
		return false, err
	}
	return true, nil
}

// ReleaseRoom marks the room AVAILABLE again and reports whether its
// status changed.
func ReleaseRoom(ctx context.Context, q repository.Querier, roomID uint64) (bool, error) {
	room, err := q.GetRoom(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if room.Status == model.RoomAvailable {
		return false, nil
	}
	_, err = q.UpdateRoomStatus(ctx, roomID, model.RoomAvailable)
	return err == nil, err
}

// CompensateAfterRefund re-derives the reservation side of a REFUNDED
// order: pay status REFUNDED, room released, and the stay cancelled when
// it has not started.
func (s *Service) CompensateAfterRefund(ctx context.Context, orderID uint64) error {
	var repaired bool
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderRefunded {
			return nil
		}
		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if err != nil {
			return err
		}
		if res.PayStatus == model.PayRefunded {
			return nil
		}
		now := s.clock.Now()
		res.PayStatus = model.PayRefunded
		if res.StartDate.After(clock.Today(now)) && !res.Status.Terminal() {
			res.Status = model.ReservationCancelled
		}
		res.UpdatedAt = now
		if _, err := q.UpdateReservation(ctx, res); err != nil {
			return err
		}
		if _, err := ReleaseRoom(ctx, q, res.RoomID); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	return s.finish(KindRefund, "order_id", orderID, repaired, err)
}

// ExpireOrder cancels an UNPAID order whose payment window has passed,
// cancelling its reservation too when it is still PENDING. It reports
// whether the order was expired by this call.
func (s *Service) ExpireOrder(ctx context.Context, orderID uint64) (bool, error) {
	var expired bool
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if order.Status != model.OrderUnpaid || !s.Expired(order.CreatedAt, now) {
			return nil
		}
		order.Status = model.OrderCancelled
		order.UpdatedAt = now
		if _, err := q.UpdateOrder(ctx, order); err != nil {
			return err
		}
		expired = true

		res, err := q.GetReservationForUpdate(ctx, order.ReservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if res.Status != model.ReservationPending {
			return nil
		}
		res.Status = model.ReservationCancelled
		res.UpdatedAt = now
		res.AppendNote("cancelled: payment window expired")
		if _, err := q.UpdateReservation(ctx, res); err != nil {
			return err
		}
		_, _, err = settleCancelled(ctx, q, res, now)
		return err
	})
	return expired, s.finish(KindExpiry, "order_id", orderID, expired, err)
}

func (s *Service) finish(kind, idField string, id uint64, repaired bool, err error) error {
	switch {
	case err != nil:
		metrics.Repairs.WithLabelValues(kind, "failed").Inc()
		log.Error().Err(err).Str("kind", kind).Uint64(idField, id).Msg("reconcile: repair failed")
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %s %s=%d: %v", apperr.ErrConsistencyRepair, kind, idField, id, err)
	case repaired:
		metrics.Repairs.WithLabelValues(kind, "repaired").Inc()
		log.Info().Str("kind", kind).Uint64(idField, id).Msg("reconcile: repaired")
	default:
		metrics.Repairs.WithLabelValues(kind, "noop").Inc()
	}
	return nil
}

// ValidateConsistency reports whether the order and reservation satisfy
// the consistency contract. It never writes. Missing records and an
// order linked to a different reservation are reported as inconsistent.
func (s *Service) ValidateConsistency(ctx context.Context, orderID, reservationID uint64) (bool, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	res, err := s.store.GetReservation(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return Consistent(order, res), nil
}

// Consistent checks the contract for one linked pair.
func Consistent(order *model.Order, res *model.Reservation) bool {
	if order.ReservationID != res.ID {
		return false
	}
	if order.Status == model.OrderPaid && res.PayStatus != model.PayPaid {
		return false
	}
	if order.Status == model.OrderRefunded && res.PayStatus != model.PayRefunded {
		return false
	}
	if res.Status == model.ReservationCancelled && order.Status.Open() {
		return false
	}
	return true
}
