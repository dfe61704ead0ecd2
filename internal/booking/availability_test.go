package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

func TestIsOverlapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, r := range []model.Reservation{
		{RoomID: 101, StartDate: june(1), EndDate: june(3), Status: model.ReservationConfirmed},
		{RoomID: 101, StartDate: june(10), EndDate: june(12), Status: model.ReservationCancelled},
		{RoomID: 101, StartDate: june(20), EndDate: june(22), Status: model.ReservationCompleted},
		{RoomID: 101, StartDate: june(25), EndDate: june(27), Status: model.ReservationPending},
	} {
		r := r
		require.NoError(t, f.store.InsertReservation(ctx, &r))
	}
	a := NewAvailability(f.store)

	testCases := []struct {
		name       string
		start, end int
		want       bool
	}{
		{"same range", 1, 3, true},
		{"partial", 2, 5, true},
		{"contains", 26, 30, true},
		{"adjacent after checkout", 3, 5, false},
		{"adjacent before checkin", 24, 25, false},
		{"cancelled ignored", 10, 12, false},
		{"completed ignored", 20, 22, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := a.IsOverlapping(ctx, 101, june(tc.start), june(tc.end))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	ok, err := a.IsAvailable(ctx, 110, june(1), june(2))
	require.NoError(t, err)
	require.False(t, ok, "maintenance room is never available")

	ok, err = a.IsAvailable(ctx, 102, june(1), june(2))
	require.NoError(t, err)
	require.True(t, ok)

	room, err := f.store.GetRoom(ctx, 110)
	require.NoError(t, err)
	require.ErrorIs(t, a.Check(ctx, room, june(1), june(2), 0), apperr.ErrRoomConflict)

	room, err = f.store.GetRoom(ctx, 101)
	require.NoError(t, err)
	require.ErrorIs(t, a.Check(ctx, room, june(2), june(4), 0), apperr.ErrRoomConflict)
	require.NoError(t, a.Check(ctx, room, june(2), june(3), 1), "own reservation excluded")
}
