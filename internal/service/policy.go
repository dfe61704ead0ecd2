package service

import "time"

// CancellationCutoff is how long before the start of a stay guests may
// still cancel or refund on their own.
const CancellationCutoff = 24 * time.Hour

// MaxExtensionNights caps a single extendStay request.
const MaxExtensionNights = 30

// CheckInWindow is how many days after the start date a guest may still
// check in.
const CheckInWindow = 3

// beforeCutoff reports whether start is still more than
// CancellationCutoff away from now.
func beforeCutoff(start, now time.Time) bool {
	return start.Sub(now) > CancellationCutoff
}
