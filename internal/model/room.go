package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Room is a physical, bookable room. Rooms of the same RoomType are
// interchangeable for allocation.
type Room struct {
	ID         uint64     `json:"id"`           // rooms.id
	RoomNumber string     `json:"room_number"`  // rooms.room_number
	RoomTypeID uint64     `json:"room_type_id"` // rooms.room_type_id
	Floor      int        `json:"floor"`        // rooms.floor
	Status     RoomStatus `json:"status"`       // rooms.status
	UpdatedAt  time.Time  `json:"updated_at"`   // rooms.updated_at
}

// RoomType carries the nightly price and the guest capacity shared by
// all rooms of the type.
type RoomType struct {
	ID        uint64          `json:"id"`         // room_types.id
	Name      string          `json:"name"`       // room_types.name
	Price     decimal.Decimal `json:"price"`      // room_types.price, per night
	MaxPeople int             `json:"max_people"` // room_types.max_people
}
