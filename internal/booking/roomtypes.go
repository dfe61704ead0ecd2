package booking

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation/internal/cache"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// RoomTypes serves room type lookups through a read-through cache.
type RoomTypes struct {
	rt *cache.ReadThrough[model.RoomType]
}

// NewRoomTypes caches room types from store in rdb. A nil rdb reads the
// store on every call.
func NewRoomTypes(store repository.Querier, rdb *redis.Client, prefix string, ttl time.Duration) *RoomTypes {
	load := func(ctx context.Context, key string) (model.RoomType, error) {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return model.RoomType{}, err
		}
		rt, err := store.GetRoomType(ctx, id)
		if err != nil {
			return model.RoomType{}, err
		}
		return *rt, nil
	}
	return &RoomTypes{rt: cache.New(rdb, prefix, "room_type", ttl, load)}
}

// Get returns the room type with the given id.
func (r *RoomTypes) Get(ctx context.Context, id uint64) (*model.RoomType, error) {
	rt, err := r.rt.Get(ctx, strconv.FormatUint(id, 10))
	if err != nil {
		return nil, err
	}
	return &rt, nil
}
