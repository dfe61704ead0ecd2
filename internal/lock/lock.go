// Package lock provides the keyed lock manager that serializes bookings
// of the same room. The Redis implementation is shared by every server
// instance; the local implementation only covers a single process.
package lock

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotObtained is returned when the lock could not be acquired within
// the configured wait.
var ErrNotObtained = errors.New("lock not obtained")

// ErrLeaseExpired is returned by Release when the lease ran out before
// it was released and another holder may have taken the key.
var ErrLeaseExpired = errors.New("lock lease expired")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires exclusive leases on string keys. Different keys never
// block each other.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Options tunes lease length and acquisition wait.
type Options struct {
	TTL    time.Duration // lease length; the lock frees itself after this
	Wait   time.Duration // maximum time spent waiting for the key
	Retry  time.Duration // pause between attempts
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 5 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 50 * time.Millisecond
	}
	if o.Prefix == "" {
		o.Prefix = "lock"
	}
	return o
}

// RoomKey is the lock key guarding all reservations of one room.
func RoomKey(roomID uint64) string {
	return "room:" + strconv.FormatUint(roomID, 10)
}

// OrderKey is the lock key guarding payment and refund of one order.
func OrderKey(orderID uint64) string {
	return "order:" + strconv.FormatUint(orderID, 10)
}
