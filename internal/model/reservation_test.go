package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func TestOverlaps(t *testing.T) {
	r := &Reservation{StartDate: day(1), EndDate: day(5)}

	require.True(t, r.Overlaps(day(3), day(7)))
	require.True(t, r.Overlaps(day(2), day(3)))
	require.True(t, r.Overlaps(day(1), day(5)))
	require.False(t, r.Overlaps(day(5), day(7)), "adjacent after")
	require.False(t, r.Overlaps(day(0), day(1)), "adjacent before")
}

func TestNights(t *testing.T) {
	require.Equal(t, 4, Nights(day(1), day(5)))
	require.Equal(t, 0, Nights(day(5), day(5)))
	require.Equal(t, 0, Nights(day(5), day(1)))
	require.Equal(t, 1, Nights(day(1), day(1).Add(2*time.Hour)))
}

func TestAppendNote(t *testing.T) {
	r := &Reservation{}
	r.AppendNote("")
	require.Empty(t, r.Notes)
	r.AppendNote("late arrival")
	r.AppendNote("checked in")
	require.Equal(t, "late arrival\nchecked in", r.Notes)
}

func TestActor(t *testing.T) {
	require.True(t, Actor{UserID: 1}.Owns(1))
	require.False(t, Actor{UserID: 1}.Owns(2))
	require.True(t, Actor{UserID: 1, Role: RoleAdmin}.Owns(2))
}

func TestOccupies(t *testing.T) {
	for _, tc := range []struct {
		s    ReservationStatus
		want bool
	}{
		{ReservationPending, true},
		{ReservationConfirmed, true},
		{ReservationCancelled, false},
		{ReservationCompleted, false},
	} {
		r := &Reservation{Status: tc.s}
		require.Equal(t, tc.want, r.Occupies(), tc.s.String())
	}
}
