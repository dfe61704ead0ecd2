package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Dispatcher schedules background compensation after a state change has
// been committed. Implementations must not block on the repair itself.
type Dispatcher interface {
	PaymentSucceeded(ctx context.Context, orderID uint64) error
	ReservationCancelled(ctx context.Context, reservationID uint64) error
}

// notifyPaid and notifyCancelled are fire-and-forget: a dispatch failure
// is logged and left for the next sweep.
func notifyPaid(ctx context.Context, d Dispatcher, orderID uint64) {
	if d == nil {
		return
	}
	if err := d.PaymentSucceeded(context.WithoutCancel(ctx), orderID); err != nil {
		log.Warn().Err(err).Uint64("order_id", orderID).Msg("service: payment compensation not dispatched")
	}
}

func notifyCancelled(ctx context.Context, d Dispatcher, reservationID uint64) {
	if d == nil {
		return
	}
	if err := d.ReservationCancelled(context.WithoutCancel(ctx), reservationID); err != nil {
		log.Warn().Err(err).Uint64("reservation_id", reservationID).Msg("service: cancellation compensation not dispatched")
	}
}
