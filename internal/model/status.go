package model

import (
	"fmt"
	"strings"
)

// The integer values of every status type match the codes persisted in
// the status columns, so they must never be reordered.

// RoomStatus is the operational state of a physical room.
type RoomStatus int8

const (
	RoomMaintenance RoomStatus = 0
	RoomAvailable   RoomStatus = 1
)

var roomStatusNames = map[RoomStatus]string{
	RoomMaintenance: "MAINTENANCE",
	RoomAvailable:   "AVAILABLE",
}

func (s RoomStatus) String() string { return enumName(roomStatusNames, s) }

func (s RoomStatus) MarshalText() ([]byte, error) { return marshalEnum(roomStatusNames, s) }

func (s *RoomStatus) UnmarshalText(b []byte) error { return unmarshalEnum(roomStatusNames, s, b) }

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus int8

const (
	ReservationPending   ReservationStatus = 0
	ReservationConfirmed ReservationStatus = 1
	ReservationCancelled ReservationStatus = 2
	ReservationCompleted ReservationStatus = 3
)

var reservationStatusNames = map[ReservationStatus]string{
	ReservationPending:   "PENDING",
	ReservationConfirmed: "CONFIRMED",
	ReservationCancelled: "CANCELLED",
	ReservationCompleted: "COMPLETED",
}

// reservationTransitions lists every legal edge. CANCELLED and COMPLETED
// are terminal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCancelled, ReservationCompleted},
}

func (s ReservationStatus) String() string { return enumName(reservationStatusNames, s) }

func (s ReservationStatus) MarshalText() ([]byte, error) {
	return marshalEnum(reservationStatusNames, s)
}

func (s *ReservationStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(reservationStatusNames, s, b)
}

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool { return len(reservationTransitions[s]) == 0 }

// CanTransitionTo reports whether s -> next is a legal edge.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return contains(reservationTransitions[s], next)
}

// Occupying reports whether a reservation in this state blocks its room.
func (s ReservationStatus) Occupying() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// OccupyingStatuses lists the states that block a room.
var OccupyingStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

// PayStatus is the payment state mirrored on a reservation.
type PayStatus int8

const (
	PayUnpaid   PayStatus = 0
	PayPaid     PayStatus = 1
	PayRefunded PayStatus = 2
)

var payStatusNames = map[PayStatus]string{
	PayUnpaid:   "UNPAID",
	PayPaid:     "PAID",
	PayRefunded: "REFUNDED",
}

var payTransitions = map[PayStatus][]PayStatus{
	PayUnpaid: {PayPaid},
	PayPaid:   {PayRefunded},
}

func (s PayStatus) String() string { return enumName(payStatusNames, s) }

func (s PayStatus) MarshalText() ([]byte, error) { return marshalEnum(payStatusNames, s) }

func (s *PayStatus) UnmarshalText(b []byte) error { return unmarshalEnum(payStatusNames, s, b) }

// CanTransitionTo reports whether s -> next is a legal edge.
func (s PayStatus) CanTransitionTo(next PayStatus) bool {
	return contains(payTransitions[s], next)
}

// OrderStatus is the lifecycle state of a payment order.
type OrderStatus int8

const (
	OrderUnpaid    OrderStatus = 0
	OrderPaid      OrderStatus = 1
	OrderCancelled OrderStatus = 2
	OrderRefunded  OrderStatus = 3
)

var orderStatusNames = map[OrderStatus]string{
	OrderUnpaid:    "UNPAID",
	OrderPaid:      "PAID",
	OrderCancelled: "CANCELLED",
	OrderRefunded:  "REFUNDED",
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderUnpaid: {OrderPaid, OrderCancelled},
	OrderPaid:   {OrderRefunded},
}

func (s OrderStatus) String() string { return enumName(orderStatusNames, s) }

func (s OrderStatus) MarshalText() ([]byte, error) { return marshalEnum(orderStatusNames, s) }

func (s *OrderStatus) UnmarshalText(b []byte) error { return unmarshalEnum(orderStatusNames, s, b) }

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool { return len(orderTransitions[s]) == 0 }

// CanTransitionTo reports whether s -> next is a legal edge.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return contains(orderTransitions[s], next)
}

// Open reports whether the order still holds money or a claim on it,
// i.e. it is UNPAID or PAID.
func (s OrderStatus) Open() bool { return s == OrderUnpaid || s == OrderPaid }

func enumName[T ~int8](names map[T]string, v T) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", int8(v))
}

func marshalEnum[T ~int8](names map[T]string, v T) ([]byte, error) {
	n, ok := names[v]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int8(v))
	}
	return []byte(n), nil
}

func unmarshalEnum[T ~int8](names map[T]string, dst *T, b []byte) error {
	want := strings.ToUpper(strings.TrimSpace(string(b)))
	for v, n := range names {
		if n == want {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
