package payment

import "github.com/shopspring/decimal"

var (
	rateFull    = decimal.RequireFromString("1.00")
	rateWeek    = decimal.RequireFromString("0.90")
	rateDays    = decimal.RequireFromString("0.80")
	rateLastDay = decimal.RequireFromString("0.50")
)

// RefundRate returns the share of the amount returned when refunding
// daysUntilStart calendar days before the stay.
func RefundRate(daysUntilStart int) decimal.Decimal {
	switch {
	case daysUntilStart >= 7:
		return rateFull
	case daysUntilStart >= 3:
		return rateWeek
	case daysUntilStart >= 1:
		return rateDays
	default:
		return rateLastDay
	}
}

// RefundAmount applies RefundRate to amount, rounded half-up to cents.
func RefundAmount(amount decimal.Decimal, daysUntilStart int) decimal.Decimal {
	return amount.Mul(RefundRate(daysUntilStart)).Round(2)
}
