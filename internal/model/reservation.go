package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is a claim on one room for the half-open date interval
// [StartDate, EndDate). Dates are civil dates at midnight UTC.
//
// Only PENDING and CONFIRMED reservations occupy their room.
type Reservation struct {
	ID           uint64            `json:"id"`
	UserID       uint64            `json:"user_id"`
	RoomID       uint64            `json:"room_id"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      time.Time         `json:"end_date"`
	GuestCount   int               `json:"guest_count"`
	GuestName    string            `json:"guest_name"`
	GuestPhone   string            `json:"guest_phone"`
	GuestIDCard  string            `json:"guest_id_card,omitempty"`
	Status       ReservationStatus `json:"status"`
	PayStatus    PayStatus         `json:"pay_status"`
	Price        decimal.Decimal   `json:"price"`
	Notes        string            `json:"notes,omitempty"`
	CheckInTime  *time.Time        `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time        `json:"check_out_time,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Occupies reports whether the reservation blocks its room.
func (r *Reservation) Occupies() bool { return r.Status.Occupying() }

// Overlaps reports whether the reservation's interval intersects
// [start, end). Adjacent intervals do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && start.Before(r.EndDate)
}

// Nights returns the number of billable nights of the stay.
func (r *Reservation) Nights() int { return Nights(r.StartDate, r.EndDate) }

// AppendNote adds a line to the free-form notes.
func (r *Reservation) AppendNote(note string) {
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes += "\n" + note
}

// Nights counts the calendar days between start and end, rounding a
// partial day up. It returns 0 when end is not after start.
func Nights(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}
