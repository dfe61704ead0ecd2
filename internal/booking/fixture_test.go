package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// now is 2024-05-20 09:00 UTC in every test.
var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func june(d int) time.Time { return clock.Date(2024, time.June, d) }

type fixture struct {
	store *repository.MemoryStore
	clock *clock.Fixed
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutRoomType(model.RoomType{ID: 1, Name: "double", Price: decimal.RequireFromString("100.00"), MaxPeople: 2})
	store.PutRoomType(model.RoomType{ID: 2, Name: "suite", Price: decimal.RequireFromString("250.50"), MaxPeople: 4})
	for _, r := range []model.Room{
		{ID: 101, RoomNumber: "101", RoomTypeID: 1, Floor: 1, Status: model.RoomAvailable},
		{ID: 102, RoomNumber: "102", RoomTypeID: 1, Floor: 1, Status: model.RoomAvailable},
		{ID: 201, RoomNumber: "201", RoomTypeID: 1, Floor: 2, Status: model.RoomAvailable},
		{ID: 110, RoomNumber: "110", RoomTypeID: 1, Floor: 1, Status: model.RoomMaintenance},
		{ID: 301, RoomNumber: "301", RoomTypeID: 2, Floor: 3, Status: model.RoomAvailable},
	} {
		store.PutRoom(r)
	}
	clk := clock.NewFixed(now)
	rts := NewRoomTypes(store, nil, "", 0)
	return &fixture{
		store: store,
		clock: clk,
		coord: NewCoordinator(store, lock.NewLocalLocker(2*time.Second), rts, clk),
	}
}

func request(roomID uint64, start, end time.Time) CreateReservationRequest {
	return CreateReservationRequest{
		UserID:     7,
		RoomID:     roomID,
		StartDate:  start,
		EndDate:    end,
		GuestCount: 2,
		GuestName:  "Li Wei",
		GuestPhone: "13800000000",
	}
}
