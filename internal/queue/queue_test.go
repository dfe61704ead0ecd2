package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

type call struct {
	kind string
	id   uint64
}

type fakeCompensator struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeCompensator) record(kind string, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind, id})
	return f.err
}

func (f *fakeCompensator) CompensateAfterPayment(_ context.Context, id uint64) error {
	return f.record(TaskPaymentSucceeded, id)
}

func (f *fakeCompensator) CompensateAfterCancellation(_ context.Context, id uint64) error {
	return f.record(TaskReservationCancelled, id)
}

func (f *fakeCompensator) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(bool) error {
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(_, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func TestPublishingPayload(t *testing.T) {
	msg, err := publishing(newTask(TaskReservationCancelled, 42))
	require.NoError(t, err)
	require.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, TaskReservationCancelled, msg.Type)

	var got Task
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	require.Equal(t, TaskReservationCancelled, got.Type)
	require.EqualValues(t, 42, got.ID)
	require.NotEmpty(t, got.ScheduledAt)
}

func TestConsumerProcess(t *testing.T) {
	body := func(kind string, id uint64) []byte {
		return []byte(fmt.Sprintf(`{"type":%q,"id":%d}`, kind, id))
	}
	testCases := []struct {
		name   string
		body   []byte
		err    error
		acked  bool
		nacked bool
		calls  int
	}{
		{"payment", body(TaskPaymentSucceeded, 1), nil, true, false, 1},
		{"cancellation", body(TaskReservationCancelled, 2), nil, true, false, 1},
		{"garbage", []byte("{"), nil, true, false, 0},
		{"unknown type", body("refund", 3), nil, true, false, 0},
		{"missing id", body(TaskPaymentSucceeded, 0), nil, true, false, 0},
		{"record gone", body(TaskPaymentSucceeded, 4), fmt.Errorf("order 4: %w", apperr.ErrNotFound), true, false, 1},
		{"repair failed", body(TaskPaymentSucceeded, 5), apperr.ErrConsistencyRepair, false, true, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			comp := &fakeCompensator{err: tc.err}
			c := NewConsumer("amqp://unused", "", comp)
			ack := &fakeAck{}

			c.process(context.Background(), tc.body, ack)
			require.Equal(t, tc.acked, ack.acked)
			require.Equal(t, tc.nacked, ack.nacked)
			require.False(t, ack.requeued)
			require.Len(t, comp.snapshot(), tc.calls)
		})
	}
}

func TestLocalDispatcher(t *testing.T) {
	comp := &fakeCompensator{}
	d := NewLocalDispatcher(comp, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, d.PaymentSucceeded(ctx, 7))
	require.NoError(t, d.ReservationCancelled(ctx, 9))
	require.Eventually(t, func() bool { return len(comp.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []call{{TaskPaymentSucceeded, 7}, {TaskReservationCancelled, 9}}, comp.snapshot())

	cancel()
	require.NoError(t, <-done)
}

func TestLocalDispatcherFull(t *testing.T) {
	d := NewLocalDispatcher(&fakeCompensator{}, 1)
	ctx := context.Background()
	require.NoError(t, d.PaymentSucceeded(ctx, 1))
	require.ErrorIs(t, d.PaymentSucceeded(ctx, 2), ErrQueueFull)
}

func TestLocalDispatcherKeepsRunningAfterFailure(t *testing.T) {
	comp := &fakeCompensator{err: errors.New("db down")}
	d := NewLocalDispatcher(comp, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.NoError(t, d.PaymentSucceeded(ctx, 1))
	require.NoError(t, d.PaymentSucceeded(ctx, 2))
	require.Eventually(t, func() bool { return len(comp.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestHandleUnknown(t *testing.T) {
	err := Handle(context.Background(), &fakeCompensator{}, Task{Type: "bogus", ID: 1})
	require.ErrorIs(t, err, ErrUnknownTask)
}
