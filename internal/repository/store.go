package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// DateRange is a half-open civil date interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RoomFilter narrows ListRooms. Zero values match everything.
type RoomFilter struct {
	RoomTypeID uint64
	Status     *model.RoomStatus
}

// ReservationFilter narrows ListReservations and CountReservations.
// Zero values match everything.
type ReservationFilter struct {
	UserID    uint64
	RoomID    uint64
	Statuses  []model.ReservationStatus
	Overlap   *DateRange // intervals intersecting this range
	ExcludeID uint64
	StartDate *time.Time // exact start date
	EndDate   *time.Time // exact end date
	Limit     int
	Offset    int
}

// OrderFilter narrows ListOrders, CountOrders and SumOrderAmounts. The Reservation*
// fields filter on the linked reservation.
type OrderFilter struct {
	UserID                 uint64
	ReservationID          uint64
	Statuses               []model.OrderStatus
	CreatedBefore          *time.Time
	ReservationStatuses    []model.ReservationStatus
	ReservationPayStatuses []model.PayStatus
	Limit                  int
	Offset                 int
}

// Querier is the set of reads and writes available both inside and
// outside a transaction. Update* methods return the number of affected
// rows. Get* methods return ErrNotFound when no row matches. The
// ForUpdate variants lock the row until the enclosing transaction ends.
type Querier interface {
	GetRoom(ctx context.Context, id uint64) (*model.Room, error)
	GetRoomForUpdate(ctx context.Context, id uint64) (*model.Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error)
	UpdateRoomStatus(ctx context.Context, id uint64, status model.RoomStatus) (int64, error)
	GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error)

	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	CountReservations(ctx context.Context, f ReservationFilter) (int64, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) (int64, error)

	GetOrder(ctx context.Context, id uint64) (*model.Order, error)
	GetOrderForUpdate(ctx context.Context, id uint64) (*model.Order, error)
	GetOrderByReservation(ctx context.Context, reservationID uint64) (*model.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int64, error)
	InsertOrder(ctx context.Context, o *model.Order) error
	UpdateOrder(ctx context.Context, o *model.Order) (int64, error)
	SumOrderAmounts(ctx context.Context, f OrderFilter) (decimal.Decimal, error)
}

// Store is a Querier that can also run a function inside a transaction
// with at least read-committed isolation. The transaction commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(q Querier) error) error
}
