package queue

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when the in-process buffer cannot take more
// tasks. The sweep picks up whatever was dropped.
var ErrQueueFull = errors.New("compensation queue full")

// LocalDispatcher runs compensation tasks on in-process workers. It is
// used when no broker is configured and implements service.Dispatcher.
type LocalDispatcher struct {
	c     Compensator
	tasks chan Task
}

// NewLocalDispatcher returns a dispatcher buffering up to size tasks.
func NewLocalDispatcher(c Compensator, size int) *LocalDispatcher {
	if size <= 0 {
		size = 256
	}
	return &LocalDispatcher{c: c, tasks: make(chan Task, size)}
}

func (l *LocalDispatcher) PaymentSucceeded(ctx context.Context, orderID uint64) error {
	return l.enqueue(newTask(TaskPaymentSucceeded, orderID))
}

func (l *LocalDispatcher) ReservationCancelled(ctx context.Context, reservationID uint64) error {
	return l.enqueue(newTask(TaskReservationCancelled, reservationID))
}

func (l *LocalDispatcher) enqueue(t Task) error {
	select {
	case l.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes queued tasks until ctx is cancelled.
func (l *LocalDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-l.tasks:
			if err := Handle(ctx, l.c, t); err != nil {
				log.Error().Err(err).Str("type", t.Type).Uint64("id", t.ID).Msg("compensation-worker: task failed")
			}
		}
	}
}
