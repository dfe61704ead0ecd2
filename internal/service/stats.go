package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/cache"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// OrderStats counts orders per status and sums their amounts.
type OrderStats struct {
	Total          int64           `json:"total"`
	Unpaid         int64           `json:"unpaid"`
	Paid           int64           `json:"paid"`
	Cancelled      int64           `json:"cancelled"`
	Refunded       int64           `json:"refunded"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
}

// ReservationStats counts reservations per status plus today's arrivals
// and departures.
type ReservationStats struct {
	Total          int64 `json:"total"`
	Pending        int64 `json:"pending"`
	Confirmed      int64 `json:"confirmed"`
	Cancelled      int64 `json:"cancelled"`
	Completed      int64 `json:"completed"`
	TodayCheckIns  int64 `json:"today_check_ins"`
	TodayCheckOuts int64 `json:"today_check_outs"`
}

// Statistics is the dashboard snapshot for one day.
type Statistics struct {
	Date         string           `json:"date"`
	Orders       OrderStats       `json:"orders"`
	Reservations ReservationStats `json:"reservations"`
}

// Stats serves Statistics through a read-through cache keyed by day.
type Stats struct {
	store repository.Querier
	clock clock.Clock
	cache *cache.ReadThrough[Statistics]
}

// NewStats returns a Stats reader. A nil rdb computes on every call.
func NewStats(store repository.Querier, rdb *redis.Client, prefix string, ttl time.Duration, clk clock.Clock) *Stats {
	s := &Stats{store: store, clock: clk}
	s.cache = cache.New(rdb, prefix, "stats", ttl, func(ctx context.Context, day string) (Statistics, error) {
		return s.Compute(ctx, day)
	})
	return s
}

// Get returns today's statistics, possibly up to the cache TTL old.
func (s *Stats) Get(ctx context.Context) (Statistics, error) {
	return s.cache.Get(ctx, s.today())
}

// Invalidate drops today's cached snapshot.
func (s *Stats) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, s.today())
}

func (s *Stats) today() string {
	return clock.Today(s.clock.Now()).Format(time.DateOnly)
}

// Compute reads the statistics for day (YYYY-MM-DD) from the store.
func (s *Stats) Compute(ctx context.Context, day string) (Statistics, error) {
	date, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return Statistics{}, err
	}
	st := Statistics{Date: day}

	orderCounts := []struct {
		dst    *int64
		status []model.OrderStatus
	}{
		{&st.Orders.Total, nil},
		{&st.Orders.Unpaid, []model.OrderStatus{model.OrderUnpaid}},
		{&st.Orders.Paid, []model.OrderStatus{model.OrderPaid}},
		{&st.Orders.Cancelled, []model.OrderStatus{model.OrderCancelled}},
		{&st.Orders.Refunded, []model.OrderStatus{model.OrderRefunded}},
	}
	for _, c := range orderCounts {
		if *c.dst, err = s.store.CountOrders(ctx, repository.OrderFilter{Statuses: c.status}); err != nil {
			return Statistics{}, err
		}
	}

	orderSums := []struct {
		dst    *decimal.Decimal
		status []model.OrderStatus
	}{
		{&st.Orders.TotalAmount, nil},
		{&st.Orders.PaidAmount, []model.OrderStatus{model.OrderPaid}},
		{&st.Orders.RefundedAmount, []model.OrderStatus{model.OrderRefunded}},
	}
	for _, c := range orderSums {
		if *c.dst, err = s.store.SumOrderAmounts(ctx, repository.OrderFilter{Statuses: c.status}); err != nil {
			return Statistics{}, err
		}
	}

	arrived := []model.ReservationStatus{model.ReservationConfirmed, model.ReservationCompleted}
	resCounts := []struct {
		dst *int64
		f   repository.ReservationFilter
	}{
		{&st.Reservations.Total, repository.ReservationFilter{}},
		{&st.Reservations.Pending, repository.ReservationFilter{Statuses: []model.ReservationStatus{model.ReservationPending}}},
		{&st.Reservations.Confirmed, repository.ReservationFilter{Statuses: []model.ReservationStatus{model.ReservationConfirmed}}},
		{&st.Reservations.Cancelled, repository.ReservationFilter{Statuses: []model.ReservationStatus{model.ReservationCancelled}}},
		{&st.Reservations.Completed, repository.ReservationFilter{Statuses: []model.ReservationStatus{model.ReservationCompleted}}},
		{&st.Reservations.TodayCheckIns, repository.ReservationFilter{Statuses: arrived, StartDate: &date}},
		{&st.Reservations.TodayCheckOuts, repository.ReservationFilter{Statuses: arrived, EndDate: &date}},
	}
	for _, c := range resCounts {
		if *c.dst, err = s.store.CountReservations(ctx, c.f); err != nil {
			return Statistics{}, err
		}
	}
	return st, nil
}
