package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/hotel-reservation/internal/metrics"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// SweepReport summarizes one sweep. Counts are records visited per step;
// Failed counts records whose repair returned an error.
type SweepReport struct {
	Trigger       string        `json:"trigger"`
	Payments      int           `json:"payments"`
	Cancellations int           `json:"cancellations"`
	Expired       int           `json:"expired"`
	Refunds       int           `json:"refunds"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// Sweep scans the store for drift and repairs every record it finds:
//
//  1. PAID orders whose reservation is still UNPAID;
//  2. open orders of CANCELLED reservations;
//  3. UNPAID orders older than the payment window;
//  4. REFUNDED orders whose reservation is not REFUNDED.
//
// A failing record is logged and counted, and the sweep moves on. The
// returned error joins the scan failures only; per-record failures are
// left for the next sweep.
func (s *Service) Sweep(ctx context.Context, trigger string) (SweepReport, error) {
	started := time.Now()
	rep := SweepReport{Trigger: trigger}
	var scanErrs []error

	scan := func(step string, f repository.OrderFilter, repair func(o model.Order) error, counter *int) {
		orders, err := s.store.ListOrders(ctx, f)
		if err != nil {
			log.Error().Err(err).Str("step", step).Msg("reconcile: sweep scan failed")
			scanErrs = append(scanErrs, fmt.Errorf("%s scan: %w", step, err))
			return
		}
		for _, o := range orders {
			if ctx.Err() != nil {
				scanErrs = append(scanErrs, ctx.Err())
				return
			}
			*counter++
			if err := repair(o); err != nil {
				rep.Failed++
			}
		}
	}

	scan(KindPayment, repository.OrderFilter{
		Statuses:               []model.OrderStatus{model.OrderPaid},
		ReservationPayStatuses: []model.PayStatus{model.PayUnpaid},
	}, func(o model.Order) error {
		return s.CompensateAfterPayment(ctx, o.ID)
	}, &rep.Payments)

	scan(KindCancellation, repository.OrderFilter{
		Statuses:            []model.OrderStatus{model.OrderUnpaid, model.OrderPaid},
		ReservationStatuses: []model.ReservationStatus{model.ReservationCancelled},
	}, func(o model.Order) error {
		return s.CompensateAfterCancellation(ctx, o.ReservationID)
	}, &rep.Cancellations)

	cutoff := s.clock.Now().Add(-s.paymentTTL)
	scan(KindExpiry, repository.OrderFilter{
		Statuses:      []model.OrderStatus{model.OrderUnpaid},
		CreatedBefore: &cutoff,
	}, func(o model.Order) error {
		_, err := s.ExpireOrder(ctx, o.ID)
		return err
	}, &rep.Expired)

	scan(KindRefund, repository.OrderFilter{
		Statuses:               []model.OrderStatus{model.OrderRefunded},
		ReservationPayStatuses: []model.PayStatus{model.PayUnpaid, model.PayPaid},
	}, func(o model.Order) error {
		return s.CompensateAfterRefund(ctx, o.ID)
	}, &rep.Refunds)

	rep.Duration = time.Since(started)
	metrics.SweepDuration.WithLabelValues(trigger).Observe(rep.Duration.Seconds())
	log.Info().Str("trigger", trigger).Int("payments", rep.Payments).Int("cancellations", rep.Cancellations).
		Int("expired", rep.Expired).Int("refunds", rep.Refunds).Int("failed", rep.Failed).
		Dur("duration", rep.Duration).Msg("reconcile: sweep finished")
	return rep, errors.Join(scanErrs...)
}
