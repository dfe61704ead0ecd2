package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the payment record of a reservation. A reservation has at most
// one order.
type Order struct {
	ID            uint64          `json:"id"`
	OrderNo       string          `json:"order_no"`
	UserID        uint64          `json:"user_id"`
	ReservationID uint64          `json:"reservation_id"`
	Amount        decimal.Decimal `json:"amount"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Status        OrderStatus     `json:"status"`
	PayMethod     string          `json:"pay_method,omitempty"`
	PayRef        string          `json:"pay_ref,omitempty"`
	PayTime       *time.Time      `json:"pay_time,omitempty"`
	RefundTime    *time.Time      `json:"refund_time,omitempty"`
	RefundReason  string          `json:"refund_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
