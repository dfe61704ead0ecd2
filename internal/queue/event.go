// Package queue carries compensation tasks from the request path to the
// reconciliation service, over RabbitMQ or an in-process worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

// Task kinds.
const (
	TaskPaymentSucceeded     = "payment_succeeded"
	TaskReservationCancelled = "reservation_cancelled"
)

// DefaultQueue is the RabbitMQ queue compensation tasks are routed to.
const DefaultQueue = "booking.compensation"

// ErrUnknownTask is returned for payloads that cannot be handled.
var ErrUnknownTask = errors.New("unknown compensation task")

// Task asks the reconciler to repair the counterpart of one entity. ID is
// an order id for payment tasks and a reservation id for cancellations.
type Task struct {
	Type        string `json:"type"`
	ID          uint64 `json:"id"`
	ScheduledAt string `json:"scheduled_at"`
}

func newTask(kind string, id uint64) Task {
	return Task{Type: kind, ID: id, ScheduledAt: time.Now().UTC().Format(time.RFC3339)}
}

// Compensator is the reconciliation surface tasks are dispatched to.
type Compensator interface {
	CompensateAfterPayment(ctx context.Context, orderID uint64) error
	CompensateAfterCancellation(ctx context.Context, reservationID uint64) error
}

// Handle runs the repair named by t.
func Handle(ctx context.Context, c Compensator, t Task) error {
	switch t.Type {
	case TaskPaymentSucceeded:
		return c.CompensateAfterPayment(ctx, t.ID)
	case TaskReservationCancelled:
		return c.CompensateAfterCancellation(ctx, t.ID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTask, t.Type)
	}
}

func decode(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrUnknownTask, err)
	}
	if t.ID == 0 {
		return Task{}, fmt.Errorf("%w: missing id", ErrUnknownTask)
	}
	return t, nil
}

// permanent reports whether redelivering the task can never succeed.
func permanent(err error) bool {
	return errors.Is(err, ErrUnknownTask) || errors.Is(err, apperr.ErrNotFound)
}
