// Package payment defines the external payment collaborator used by the
// order state machine: verification of incoming payments and refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway is the payment provider contract. A false result with a nil
// error means the provider rejected the operation.
type Gateway interface {
	Verify(ctx context.Context, method, payRef string, amount decimal.Decimal) (bool, error)
	Refund(ctx context.Context, payRef string, amount decimal.Decimal) (bool, error)
}

// Methods accepted by Verify.
const (
	MethodAlipay = "ALIPAY"
	MethodWechat = "WECHAT"
	MethodCard   = "CARD"
	MethodCash   = "CASH"
)

// FakePrefix marks pay references the simulator rejects.
const FakePrefix = "FAKE_"

// Simulator approves every payment and refund except those whose pay
// reference starts with FakePrefix. It stands in for a real provider in
// development and tests.
type Simulator struct {
	// Latency is slept before answering, honoring ctx.
	Latency time.Duration
}

func (s Simulator) Verify(ctx context.Context, method, payRef string, amount decimal.Decimal) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if method == "" || !amount.IsPositive() {
		return false, nil
	}
	return !strings.HasPrefix(payRef, FakePrefix), nil
}

func (s Simulator) Refund(ctx context.Context, payRef string, amount decimal.Decimal) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if amount.IsNegative() {
		return false, nil
	}
	return !strings.HasPrefix(payRef, FakePrefix), nil
}

func (s Simulator) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrTimeout is returned by a WithTimeout gateway when the provider did
// not answer in time.
var ErrTimeout = errors.New("payment provider timeout")

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every call to g by d. A provider that overruns
// yields ErrTimeout instead of blocking the request.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return &timeoutGateway{next: g, timeout: d}
}

func (t *timeoutGateway) Verify(ctx context.Context, method, payRef string, amount decimal.Decimal) (bool, error) {
	return t.call(ctx, func(ctx context.Context) (bool, error) { return t.next.Verify(ctx, method, payRef, amount) })
}

func (t *timeoutGateway) Refund(ctx context.Context, payRef string, amount decimal.Decimal) (bool, error) {
	return t.call(ctx, func(ctx context.Context) (bool, error) { return t.next.Refund(ctx, payRef, amount) })
}

func (t *timeoutGateway) call(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := fn(ctx)
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return false, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return r.ok, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return false, ctx.Err()
	}
}
