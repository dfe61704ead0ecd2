package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// MemoryStore is an in-process Store. Transactions are serialized and
// run against a private copy of the data that replaces the shared state
// only when the transaction function succeeds, so readers never observe
// uncommitted writes.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	rooms        map[uint64]model.Room
	roomTypes    map[uint64]model.RoomType
	reservations map[uint64]model.Reservation
	orders       map[uint64]model.Order
	nextResID    uint64
	nextOrderID  uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		rooms:        map[uint64]model.Room{},
		roomTypes:    map[uint64]model.RoomType{},
		reservations: map[uint64]model.Reservation{},
		orders:       map[uint64]model.Order{},
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		rooms:        make(map[uint64]model.Room, len(d.rooms)),
		roomTypes:    make(map[uint64]model.RoomType, len(d.roomTypes)),
		reservations: make(map[uint64]model.Reservation, len(d.reservations)),
		orders:       make(map[uint64]model.Order, len(d.orders)),
		nextResID:    d.nextResID,
		nextOrderID:  d.nextOrderID,
	}
	for k, v := range d.rooms {
		c.rooms[k] = v
	}
	for k, v := range d.roomTypes {
		c.roomTypes[k] = v
	}
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	return c
}

// ExecTx implements Store.
func (s *MemoryStore) ExecTx(ctx context.Context, fn func(q Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&memQuerier{d: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// PutRoomType inserts or replaces a room type.
func (s *MemoryStore) PutRoomType(rt model.RoomType) {
	_ = s.ExecTx(context.Background(), func(q Querier) error {
		q.(*memQuerier).d.roomTypes[rt.ID] = rt
		return nil
	})
}

// PutRoom inserts or replaces a room.
func (s *MemoryStore) PutRoom(r model.Room) {
	_ = s.ExecTx(context.Background(), func(q Querier) error {
		q.(*memQuerier).d.rooms[r.ID] = r
		return nil
	})
}

func (s *MemoryStore) read() *memQuerier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memQuerier{d: s.data}
}

// The committed snapshot is never mutated in place, so a reader may keep
// using it after releasing the lock.

func (s *MemoryStore) GetRoom(ctx context.Context, id uint64) (*model.Room, error) {
	return s.read().GetRoom(ctx, id)
}

func (s *MemoryStore) GetRoomForUpdate(ctx context.Context, id uint64) (*model.Room, error) {
	return s.read().GetRoom(ctx, id)
}

func (s *MemoryStore) ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	return s.read().ListRooms(ctx, f)
}

func (s *MemoryStore) UpdateRoomStatus(ctx context.Context, id uint64, status model.RoomStatus) (n int64, err error) {
	err = s.ExecTx(ctx, func(q Querier) error {
		n, err = q.UpdateRoomStatus(ctx, id, status)
		return err
	})
	return n, err
}

func (s *MemoryStore) GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error) {
	return s.read().GetRoomType(ctx, id)
}

func (s *MemoryStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.read().GetReservation(ctx, id)
}

func (s *MemoryStore) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.read().GetReservation(ctx, id)
}

func (s *MemoryStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	return s.read().ListReservations(ctx, f)
}

func (s *MemoryStore) CountReservations(ctx context.Context, f ReservationFilter) (int64, error) {
	return s.read().CountReservations(ctx, f)
}

func (s *MemoryStore) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return s.ExecTx(ctx, func(q Querier) error { return q.InsertReservation(ctx, r) })
}

func (s *MemoryStore) UpdateReservation(ctx context.Context, r *model.Reservation) (n int64, err error) {
	err = s.ExecTx(ctx, func(q Querier) error {
		n, err = q.UpdateReservation(ctx, r)
		return err
	})
	return n, err
}

func (s *MemoryStore) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	return s.read().GetOrder(ctx, id)
}

func (s *MemoryStore) GetOrderForUpdate(ctx context.Context, id uint64) (*model.Order, error) {
	return s.read().GetOrder(ctx, id)
}

func (s *MemoryStore) GetOrderByReservation(ctx context.Context, reservationID uint64) (*model.Order, error) {
	return s.read().GetOrderByReservation(ctx, reservationID)
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	return s.read().ListOrders(ctx, f)
}

func (s *MemoryStore) InsertOrder(ctx context.Context, o *model.Order) error {
	return s.ExecTx(ctx, func(q Querier) error { return q.InsertOrder(ctx, o) })
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, o *model.Order) (n int64, err error) {
	err = s.ExecTx(ctx, func(q Querier) error {
		n, err = q.UpdateOrder(ctx, o)
		return err
	})
	return n, err
}

func (s *MemoryStore) CountOrders(ctx context.Context, f OrderFilter) (int64, error) {
	return s.read().CountOrders(ctx, f)
}

func (s *MemoryStore) SumOrderAmounts(ctx context.Context, f OrderFilter) (decimal.Decimal, error) {
	return s.read().SumOrderAmounts(ctx, f)
}

// memQuerier operates on one snapshot without locking. Inside ExecTx the
// snapshot is private to the transaction.
type memQuerier struct{ d *memData }

func (m *memQuerier) GetRoom(_ context.Context, id uint64) (*model.Room, error) {
	r, ok := m.d.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memQuerier) GetRoomForUpdate(ctx context.Context, id uint64) (*model.Room, error) {
	return m.GetRoom(ctx, id)
}

func (m *memQuerier) ListRooms(_ context.Context, f RoomFilter) ([]model.Room, error) {
	var out []model.Room
	for _, r := range m.d.rooms {
		if f.RoomTypeID != 0 && r.RoomTypeID != f.RoomTypeID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQuerier) UpdateRoomStatus(_ context.Context, id uint64, status model.RoomStatus) (int64, error) {
	r, ok := m.d.rooms[id]
	if !ok {
		return 0, nil
	}
	r.Status = status
	m.d.rooms[id] = r
	return 1, nil
}

func (m *memQuerier) GetRoomType(_ context.Context, id uint64) (*model.RoomType, error) {
	rt, ok := m.d.roomTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rt, nil
}

func (m *memQuerier) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := m.d.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memQuerier) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return m.GetReservation(ctx, id)
}

func (m *memQuerier) ListReservations(_ context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range m.d.reservations {
		if matchReservation(&r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (m *memQuerier) CountReservations(_ context.Context, f ReservationFilter) (int64, error) {
	var n int64
	for _, r := range m.d.reservations {
		if matchReservation(&r, f) {
			n++
		}
	}
	return n, nil
}

func (m *memQuerier) InsertReservation(_ context.Context, r *model.Reservation) error {
	m.d.nextResID++
	r.ID = m.d.nextResID
	m.d.reservations[r.ID] = *r
	return nil
}

func (m *memQuerier) UpdateReservation(_ context.Context, r *model.Reservation) (int64, error) {
	if _, ok := m.d.reservations[r.ID]; !ok {
		return 0, nil
	}
	m.d.reservations[r.ID] = *r
	return 1, nil
}

func (m *memQuerier) GetOrder(_ context.Context, id uint64) (*model.Order, error) {
	o, ok := m.d.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memQuerier) GetOrderForUpdate(ctx context.Context, id uint64) (*model.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memQuerier) GetOrderByReservation(_ context.Context, reservationID uint64) (*model.Order, error) {
	for _, o := range m.d.orders {
		if o.ReservationID == reservationID {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memQuerier) ListOrders(_ context.Context, f OrderFilter) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.d.orders {
		if m.matchOrder(&o, f) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (m *memQuerier) InsertOrder(_ context.Context, o *model.Order) error {
	for _, existing := range m.d.orders {
		if existing.ReservationID == o.ReservationID || (o.OrderNo != "" && existing.OrderNo == o.OrderNo) {
			return ErrDuplicate
		}
	}
	m.d.nextOrderID++
	o.ID = m.d.nextOrderID
	m.d.orders[o.ID] = *o
	return nil
}

func (m *memQuerier) UpdateOrder(_ context.Context, o *model.Order) (int64, error) {
	if _, ok := m.d.orders[o.ID]; !ok {
		return 0, nil
	}
	m.d.orders[o.ID] = *o
	return 1, nil
}

func (m *memQuerier) CountOrders(_ context.Context, f OrderFilter) (int64, error) {
	var n int64
	for _, o := range m.d.orders {
		if m.matchOrder(&o, f) {
			n++
		}
	}
	return n, nil
}

func (m *memQuerier) SumOrderAmounts(_ context.Context, f OrderFilter) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, o := range m.d.orders {
		if m.matchOrder(&o, f) {
			sum = sum.Add(o.Amount)
		}
	}
	return sum, nil
}

func (m *memQuerier) matchOrder(o *model.Order, f OrderFilter) bool {
	if f.UserID != 0 && o.UserID != f.UserID {
		return false
	}
	if f.ReservationID != 0 && o.ReservationID != f.ReservationID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
		return false
	}
	if f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.ReservationStatuses) > 0 || len(f.ReservationPayStatuses) > 0 {
		r, ok := m.d.reservations[o.ReservationID]
		if !ok {
			return false
		}
		if len(f.ReservationStatuses) > 0 && !containsStatus(f.ReservationStatuses, r.Status) {
			return false
		}
		if len(f.ReservationPayStatuses) > 0 && !containsStatus(f.ReservationPayStatuses, r.PayStatus) {
			return false
		}
	}
	return true
}

func matchReservation(r *model.Reservation, f ReservationFilter) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.RoomID != 0 && r.RoomID != f.RoomID {
		return false
	}
	if f.ExcludeID != 0 && r.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if f.Overlap != nil && !r.Overlaps(f.Overlap.Start, f.Overlap.End) {
		return false
	}
	if f.StartDate != nil && !r.StartDate.Equal(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && !r.EndDate.Equal(*f.EndDate) {
		return false
	}
	return true
}

func containsStatus[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Querier = (*memQuerier)(nil)
)
