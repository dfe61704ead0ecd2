// Package repository holds the persistence contract of the booking engine
// and its MySQL and in-memory implementations. The sentinel values below
// let the core distinguish missing rows and uniqueness conflicts without
// depending on a driver.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

// ErrNotFound is returned by Get* methods when no row matches. It wraps
// apperr.ErrNotFound so handlers translate it into an HTTP 404.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// ErrDuplicate is returned when an insert violates a unique key, such as
// a second order for the same reservation.
var ErrDuplicate = errors.New("duplicate record")
