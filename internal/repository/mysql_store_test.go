package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

func TestReservationWhere(t *testing.T) {
	w := reservationWhere(ReservationFilter{
		RoomID:    101,
		ExcludeID: 9,
		Statuses:  []model.ReservationStatus{model.ReservationPending, model.ReservationConfirmed},
		Overlap:   &DateRange{Start: date(1), End: date(3)},
	})
	require.Equal(t, " WHERE room_id = ? AND id <> ? AND status IN (?, ?) AND start_date < ? AND end_date > ?", w.sql())
	require.Equal(t, []any{uint64(101), uint64(9), int8(0), int8(1), date(3), date(1)}, w.args)
}

func TestOrderFromJoinsOnlyWhenNeeded(t *testing.T) {
	from, w := orderFrom(OrderFilter{Statuses: []model.OrderStatus{model.OrderPaid}})
	require.Equal(t, " FROM orders o", from)
	require.Equal(t, " WHERE o.status IN (?)", w.sql())

	from, w = orderFrom(OrderFilter{
		Statuses:               []model.OrderStatus{model.OrderPaid},
		ReservationPayStatuses: []model.PayStatus{model.PayUnpaid},
	})
	require.Equal(t, " FROM orders o JOIN reservations r ON r.id = o.reservation_id", from)
	require.Equal(t, " WHERE r.pay_status IN (?) AND o.status IN (?)", w.sql())
	require.Equal(t, []any{int8(0), int8(1)}, w.args)
}

func TestLimit(t *testing.T) {
	require.Equal(t, "", limit(0, 10))
	require.Equal(t, " LIMIT 20 OFFSET 40", limit(20, 40))
}
