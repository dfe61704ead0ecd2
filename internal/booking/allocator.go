package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Allocator picks a concrete room of a type for a stay. Its reads are a
// relaxed snapshot; the Coordinator re-checks under the room lock.
type Allocator struct {
	store     repository.Querier
	roomTypes *RoomTypes
}

// NewAllocator returns an Allocator over store.
func NewAllocator(store repository.Querier, roomTypes *RoomTypes) *Allocator {
	return &Allocator{store: store, roomTypes: roomTypes}
}

// Allocate returns the first candidate of Candidates, or an error
// wrapping apperr.ErrNoRoomAvailable.
func (a *Allocator) Allocate(ctx context.Context, roomTypeID uint64, start, end time.Time, guestCount int) (*model.Room, error) {
	rooms, err := a.Candidates(ctx, roomTypeID, start, end, guestCount)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, fmt.Errorf("%w: room type %d from %s to %s", apperr.ErrNoRoomAvailable,
			roomTypeID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return &rooms[0], nil
}

// Candidates lists every AVAILABLE room of roomTypeID that is free for
// [start, end) and fits guestCount, ordered by floor and then room
// number.
func (a *Allocator) Candidates(ctx context.Context, roomTypeID uint64, start, end time.Time, guestCount int) ([]model.Room, error) {
	rt, err := a.roomTypes.Get(ctx, roomTypeID)
	if err != nil {
		return nil, err
	}
	if rt.MaxPeople < guestCount {
		return nil, nil
	}

	available := model.RoomAvailable
	rooms, err := a.store.ListRooms(ctx, repository.RoomFilter{RoomTypeID: roomTypeID, Status: &available})
	if err != nil {
		return nil, err
	}

	check := NewAvailability(a.store)
	free := rooms[:0]
	for _, room := range rooms {
		overlap, err := check.IsOverlapping(ctx, room.ID, start, end)
		if err != nil {
			return nil, err
		}
		if !overlap {
			free = append(free, room)
		}
	}
	SortRooms(free)
	return free, nil
}

// SortRooms orders rooms by floor ascending, then by room number as a
// string, then by id.
func SortRooms(rooms []model.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		if a.RoomNumber != b.RoomNumber {
			return a.RoomNumber < b.RoomNumber
		}
		return a.ID < b.ID
	})
}
