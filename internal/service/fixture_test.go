package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/reconcile"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// now is 2024-05-20 09:00 UTC; stays start on 2024-06-01.
var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

var (
	guest = model.Actor{UserID: 7, Role: model.RoleGuest}
	other = model.Actor{UserID: 8, Role: model.RoleGuest}
	admin = model.Actor{UserID: 1, Role: model.RoleAdmin}
)

func june(d int) time.Time { return clock.Date(2024, time.June, d) }

// inline runs compensation synchronously so tests observe its effect.
type inline struct{ rec *reconcile.Service }

func (d inline) PaymentSucceeded(ctx context.Context, orderID uint64) error {
	return d.rec.CompensateAfterPayment(ctx, orderID)
}

func (d inline) ReservationCancelled(ctx context.Context, reservationID uint64) error {
	return d.rec.CompensateAfterCancellation(ctx, reservationID)
}

type fixture struct {
	store        *repository.MemoryStore
	clock        *clock.Fixed
	coord        *booking.Coordinator
	rec          *reconcile.Service
	reservations *Reservations
	orders       *Orders
}

type option func(*fixtureConfig)

type fixtureConfig struct {
	gateway    payment.Gateway
	dispatch   Dispatcher
	noDispatch bool
}

func withGateway(g payment.Gateway) option { return func(c *fixtureConfig) { c.gateway = g } }

func withDispatcher(d Dispatcher) option {
	return func(c *fixtureConfig) {
		c.dispatch = d
		c.noDispatch = d == nil
	}
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutRoomType(model.RoomType{ID: 1, Name: "double", Price: decimal.RequireFromString("100.00"), MaxPeople: 2})
	store.PutRoom(model.Room{ID: 101, RoomNumber: "101", RoomTypeID: 1, Floor: 1, Status: model.RoomAvailable})
	store.PutRoom(model.Room{ID: 102, RoomNumber: "102", RoomTypeID: 1, Floor: 1, Status: model.RoomAvailable})

	clk := clock.NewFixed(now)
	locker := lock.NewLocalLocker(time.Second)
	rts := booking.NewRoomTypes(store, nil, "", 0)
	cfg := fixtureConfig{gateway: payment.Simulator{}}
	for _, o := range opts {
		o(&cfg)
	}
	rec := reconcile.New(store, clk, 0, reconcile.WithRefunds(cfg.gateway, locker))
	if !cfg.noDispatch && cfg.dispatch == nil {
		cfg.dispatch = inline{rec}
	}
	return &fixture{
		store:        store,
		clock:        clk,
		coord:        booking.NewCoordinator(store, locker, rts, clk),
		rec:          rec,
		reservations: NewReservations(store, locker, rts, clk, cfg.dispatch),
		orders:       NewOrders(store, locker, cfg.gateway, rec, clk, cfg.dispatch),
	}
}

// book creates a two night stay in room 101 from June start for the guest.
func (f *fixture) book(t *testing.T, start int) *model.Reservation {
	t.Helper()
	res, err := f.coord.CreateReservation(context.Background(), booking.CreateReservationRequest{
		UserID:     guest.UserID,
		RoomID:     101,
		StartDate:  june(start),
		EndDate:    june(start + 2),
		GuestCount: 2,
		GuestName:  "Li Wei",
		GuestPhone: "13800000000",
	})
	require.NoError(t, err)
	return res
}

// paid books a stay and pays its order.
func (f *fixture) paid(t *testing.T, start int) (*model.Reservation, *model.Order) {
	t.Helper()
	ctx := context.Background()
	res := f.book(t, start)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	order, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "TX-1"})
	require.NoError(t, err)
	return f.reservation(t, res.ID), order
}

func (f *fixture) reservation(t *testing.T, id uint64) *model.Reservation {
	t.Helper()
	r, err := f.store.GetReservation(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (f *fixture) order(t *testing.T, id uint64) *model.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) room(t *testing.T, id uint64) *model.Room {
	t.Helper()
	r, err := f.store.GetRoom(context.Background(), id)
	require.NoError(t, err)
	return r
}
