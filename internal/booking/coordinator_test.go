package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.CreateReservation(ctx, request(101, june(1), june(4)))
	require.NoError(t, err)
	require.NotZero(t, res.ID)
	require.Equal(t, model.ReservationPending, res.Status)
	require.Equal(t, model.PayUnpaid, res.PayStatus)
	require.True(t, res.Price.Equal(decimal.RequireFromString("300.00")))
	require.Equal(t, now, res.CreatedAt)

	stored, err := f.store.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, res.Price.String(), stored.Price.String())

	next, err := f.coord.CreateReservation(ctx, request(101, june(4), june(6)))
	require.NoError(t, err, "back-to-back stay is allowed")
	require.NotEqual(t, res.ID, next.ID)
}

func TestCreateReservationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		mutate func(r *CreateReservationRequest)
	}{
		{"end before start", func(r *CreateReservationRequest) { r.EndDate = june(1); r.StartDate = june(3) }},
		{"zero nights", func(r *CreateReservationRequest) { r.EndDate = r.StartDate }},
		{"past start", func(r *CreateReservationRequest) { r.StartDate = now.AddDate(0, 0, -1) }},
		{"no guests", func(r *CreateReservationRequest) { r.GuestCount = 0 }},
		{"blank name", func(r *CreateReservationRequest) { r.GuestName = "   " }},
		{"blank phone", func(r *CreateReservationRequest) { r.GuestPhone = "" }},
		{"no room or type", func(r *CreateReservationRequest) { r.RoomID = 0 }},
		{"no user", func(r *CreateReservationRequest) { r.UserID = 0 }},
		{"over capacity", func(r *CreateReservationRequest) { r.GuestCount = 3 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := request(101, june(1), june(3))
			tc.mutate(&req)
			_, err := f.coord.CreateReservation(ctx, req)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	n, err := f.store.CountReservations(ctx, repository.ReservationFilter{})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCreateReservationToday(t *testing.T) {
	f := newFixture(t)
	today := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	_, err := f.coord.CreateReservation(context.Background(), request(101, today, today.AddDate(0, 0, 1)))
	require.NoError(t, err)
}

func TestCreateReservationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.CreateReservation(ctx, request(101, june(1), june(5)))
	require.NoError(t, err)

	_, err = f.coord.CreateReservation(ctx, request(101, june(3), june(7)))
	require.ErrorIs(t, err, apperr.ErrRoomConflict)

	_, err = f.coord.CreateReservation(ctx, request(110, june(1), june(2)))
	require.ErrorIs(t, err, apperr.ErrRoomConflict, "maintenance")

	_, err = f.coord.CreateReservation(ctx, request(999, june(1), june(2)))
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateReservationByType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(0, june(1), june(3))
	req.RoomTypeID = 1

	var got []uint64
	for i := 0; i < 3; i++ {
		res, err := f.coord.CreateReservation(ctx, req)
		require.NoError(t, err)
		got = append(got, res.RoomID)
	}
	require.Equal(t, []uint64{101, 102, 201}, got)

	_, err := f.coord.CreateReservation(ctx, req)
	require.ErrorIs(t, err, apperr.ErrNoRoomAvailable)
}

func TestConcurrentCreateSameRoom(t *testing.T) {
	run := func(t *testing.T, locker lock.Locker) {
		f := newFixture(t)
		f.coord.locker = locker
		ctx := context.Background()

		const callers = 8
		var wg sync.WaitGroup
		errs := make([]error, callers)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = f.coord.CreateReservation(ctx, request(101, june(1), june(3)))
			}(i)
		}
		close(start)
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, apperr.ErrRoomConflict)
		}
		require.Equal(t, 1, wins)

		n, err := f.store.CountReservations(ctx, repository.ReservationFilter{RoomID: 101})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}

	t.Run("local", func(t *testing.T) { run(t, lock.NewLocalLocker(2*time.Second)) })
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		run(t, lock.NewRedisLocker(rdb, lock.Options{TTL: 5 * time.Second, Wait: 2 * time.Second, Retry: 5 * time.Millisecond}))
	})
}

func TestConcurrentCreateDifferentRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, roomID := range []uint64{101, 102, 201} {
		wg.Add(1)
		go func(i int, roomID uint64) {
			defer wg.Done()
			_, errs[i] = f.coord.CreateReservation(ctx, request(roomID, june(1), june(3)))
		}(i, roomID)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestPrice(t *testing.T) {
	require.Equal(t, "751.5", Price(decimal.RequireFromString("250.50"), 3).String())
}
