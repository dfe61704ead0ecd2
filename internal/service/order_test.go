package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	mockpay "github.com/iliyamo/hotel-reservation/internal/payment/mock"
	mockservice "github.com/iliyamo/hotel-reservation/internal/service/mock"
)

func TestCreateOrderIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, 1)

	first, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	require.Len(t, first.OrderNo, 22)
	require.Equal(t, "20240520090000", first.OrderNo[:14])
	require.True(t, first.Amount.Equal(res.Price))
	require.Equal(t, model.OrderUnpaid, first.Status)

	again, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	_, err = f.orders.Create(ctx, other, res.ID)
	require.ErrorIs(t, err, apperr.ErrPolicyViolation)
}

func TestCreateOrderForTerminalReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, 1)
	_, err := f.reservations.Cancel(ctx, guest, res.ID)
	require.NoError(t, err)

	_, err = f.orders.Create(ctx, guest, res.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestPay(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mockpay.NewMockGateway(ctrl)
	d := mockservice.NewMockDispatcher(ctrl)
	f := newFixture(t, withGateway(gw), withDispatcher(d))
	ctx := context.Background()

	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)

	gw.EXPECT().Verify(gomock.Any(), payment.MethodAlipay, "AP-1", order.Amount).Return(true, nil)
	d.EXPECT().PaymentSucceeded(gomock.Any(), order.ID).Return(nil)

	got, err := f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: " alipay ", PayRef: "AP-1"})
	require.NoError(t, err)
	require.Equal(t, model.OrderPaid, got.Status)
	require.Equal(t, payment.MethodAlipay, got.PayMethod)
	require.NotNil(t, got.PayTime)

	r := f.reservation(t, res.ID)
	require.Equal(t, model.PayPaid, r.PayStatus)
	require.Equal(t, model.ReservationPending, r.Status, "payment does not confirm")

	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodAlipay, PayRef: "AP-2"})
	require.ErrorIs(t, err, apperr.ErrPolicyViolation)
}

func TestPayFailures(t *testing.T) {
	testCases := []struct {
		name   string
		req    PayRequest
		verify func(gw *mockpay.MockGatewayMockRecorder)
		err    error
	}{
		{
			name: "missing method",
			req:  PayRequest{PayRef: "X"},
			err:  apperr.ErrValidation,
		},
		{
			name: "rejected",
			req:  PayRequest{Method: payment.MethodCard, PayRef: "FAKE_1"},
			verify: func(gw *mockpay.MockGatewayMockRecorder) {
				gw.Verify(gomock.Any(), payment.MethodCard, "FAKE_1", gomock.Any()).Return(false, nil)
			},
			err: apperr.ErrPaymentVerificationFailed,
		},
		{
			name: "gateway timeout",
			req:  PayRequest{Method: payment.MethodCard, PayRef: "T-1"},
			verify: func(gw *mockpay.MockGatewayMockRecorder) {
				gw.Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, payment.ErrTimeout)
			},
			err: apperr.ErrPaymentVerificationFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gw := mockpay.NewMockGateway(ctrl)
			f := newFixture(t, withGateway(gw), withDispatcher(mockservice.NewMockDispatcher(ctrl)))
			ctx := context.Background()
			res := f.book(t, 1)
			order, err := f.orders.Create(ctx, guest, res.ID)
			require.NoError(t, err)
			if tc.verify != nil {
				tc.verify(gw.EXPECT())
			}

			_, err = f.orders.Pay(ctx, guest, order.ID, tc.req)
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, model.OrderUnpaid, f.order(t, order.ID).Status)
			require.Equal(t, model.PayUnpaid, f.reservation(t, res.ID).PayStatus)
		})
	}
}

func TestPayFailureIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mockpay.NewMockGateway(ctrl)
	f := newFixture(t, withGateway(gw))
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)

	gomock.InOrder(
		gw.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("connection reset")),
		gw.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil),
	)
	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodWechat})
	require.True(t, apperr.Retryable(err))

	got, err := f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodWechat})
	require.NoError(t, err)
	require.Equal(t, model.OrderPaid, got.Status)
}

func TestPayExpiredOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, withGateway(mockpay.NewMockGateway(ctrl)))
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "LATE"})
	require.ErrorIs(t, err, apperr.ErrOrderExpired)
	require.Equal(t, model.OrderCancelled, f.order(t, order.ID).Status)
	require.Equal(t, model.ReservationCancelled, f.reservation(t, res.ID).Status)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	_, err = f.store.UpdateRoomStatus(ctx, 101, model.RoomMaintenance)
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, other, order.ID)
	require.ErrorIs(t, err, apperr.ErrPolicyViolation)

	got, err := f.orders.Cancel(ctx, guest, order.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderCancelled, got.Status)

	r := f.reservation(t, res.ID)
	require.Equal(t, model.ReservationCancelled, r.Status)
	require.Equal(t, model.PayUnpaid, r.PayStatus)
	require.Equal(t, model.RoomAvailable, f.room(t, 101).Status)

	_, err = f.orders.Cancel(ctx, guest, order.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestCancelPaidOrderRejected(t *testing.T) {
	f := newFixture(t)
	_, order := f.paid(t, 1)

	_, err := f.orders.Cancel(context.Background(), guest, order.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	require.Equal(t, model.OrderPaid, f.order(t, order.ID).Status)
}

func TestRefundTiers(t *testing.T) {
	testCases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"twelve days ahead", now, "200"},
		{"five days ahead", june(1).AddDate(0, 0, -5), "180"},
		{"two days ahead", june(1).AddDate(0, 0, -2).Add(8 * time.Hour), "160"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			res, order := f.paid(t, 1)

			f.clock.Set(tc.at)
			got, err := f.orders.Refund(context.Background(), guest, order.ID, "")
			require.NoError(t, err)
			require.Equal(t, model.OrderRefunded, got.Status)
			require.True(t, got.RefundAmount.Equal(decimal.RequireFromString(tc.want)), "got %s", got.RefundAmount)
			require.NotEmpty(t, got.RefundReason)

			r := f.reservation(t, res.ID)
			require.Equal(t, model.PayRefunded, r.PayStatus)
			require.Equal(t, model.ReservationCancelled, r.Status)
		})
	}
}

func TestRefundGuestRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, order := f.paid(t, 1)

	f.clock.Set(june(1).Add(-24 * time.Hour))
	_, err := f.orders.Refund(ctx, guest, order.ID, "")
	require.ErrorIs(t, err, apperr.ErrPolicyViolation)

	f.clock.Set(june(1).Add(10 * time.Hour))
	_, err = f.orders.Refund(ctx, guest, order.ID, "")
	require.ErrorIs(t, err, apperr.ErrPolicyViolation)

	// Admins refund on the day of arrival at the lowest tier; the stay has
	// started so the reservation keeps its status.
	got, err := f.orders.Refund(ctx, admin, order.ID, "no show")
	require.NoError(t, err)
	require.True(t, got.RefundAmount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, "no show", got.RefundReason)
	r := f.reservation(t, res.ID)
	require.Equal(t, model.PayRefunded, r.PayStatus)
	require.Equal(t, model.ReservationPending, r.Status)

	_, err = f.orders.Refund(ctx, admin, order.ID, "")
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestRefundGatewayFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mockpay.NewMockGateway(ctrl)
	f := newFixture(t, withGateway(gw))
	ctx := context.Background()

	gw.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	res, order := f.paid(t, 1)

	full := gomock.Cond(func(x any) bool { return x.(decimal.Decimal).Equal(decimal.NewFromInt(200)) })
	gw.EXPECT().Refund(gomock.Any(), "TX-1", full).Return(false, nil)
	_, err := f.orders.Refund(ctx, guest, order.ID, "")
	require.ErrorIs(t, err, apperr.ErrRefundProcessingFailed)
	require.True(t, apperr.Retryable(err))
	require.Equal(t, model.OrderPaid, f.order(t, order.ID).Status)
	require.Equal(t, model.PayPaid, f.reservation(t, res.ID).PayStatus)
}

func TestRoundTripWithInterleavedSweeps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweep := func() {
		_, err := f.rec.Sweep(ctx, "test")
		require.NoError(t, err)
	}

	res := f.book(t, 1)
	sweep()
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	sweep()
	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "TX-9"})
	require.NoError(t, err)
	sweep()
	_, err = f.reservations.Confirm(ctx, admin, res.ID)
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	sweep()
	_, err = f.orders.Refund(ctx, guest, order.ID, "plans changed")
	require.NoError(t, err)
	sweep()
	sweep()

	o := f.order(t, order.ID)
	r := f.reservation(t, res.ID)
	require.Equal(t, model.OrderRefunded, o.Status)
	require.Equal(t, model.PayRefunded, r.PayStatus)
	require.Equal(t, model.RoomAvailable, f.room(t, r.RoomID).Status)
	ok, err := f.rec.ValidateConsistency(ctx, o.ID, r.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

// slowGateway approves everything after a pause and counts calls.
type slowGateway struct {
	mu       sync.Mutex
	verifies int
	refunds  int
}

func (g *slowGateway) Verify(ctx context.Context, method, payRef string, amount decimal.Decimal) (bool, error) {
	time.Sleep(50 * time.Millisecond)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	return true, nil
}

func (g *slowGateway) Refund(ctx context.Context, payRef string, amount decimal.Decimal) (bool, error) {
	time.Sleep(50 * time.Millisecond)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return true, nil
}

// parallel runs fn twice at once and returns both errors.
func parallel(fn func() error) []error {
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

func TestConcurrentRefundsCallGatewayOnce(t *testing.T) {
	gw := &slowGateway{}
	f := newFixture(t, withGateway(gw))
	ctx := context.Background()
	_, order := f.paid(t, 1)

	errs := parallel(func() error {
		_, err := f.orders.Refund(ctx, guest, order.ID, "")
		return err
	})

	require.Equal(t, 1, gw.refunds)
	require.Equal(t, 1, countNil(errs))
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
		}
	}
	o := f.order(t, order.ID)
	require.Equal(t, model.OrderRefunded, o.Status)
	require.True(t, o.RefundAmount.Equal(decimal.NewFromInt(200)))
}

func TestConcurrentPaymentsVerifyOnce(t *testing.T) {
	gw := &slowGateway{}
	f := newFixture(t, withGateway(gw))
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)

	errs := parallel(func() error {
		_, err := f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "TX-1"})
		return err
	})

	require.Equal(t, 1, gw.verifies)
	require.Zero(t, gw.refunds)
	require.Equal(t, 1, countNil(errs))
	require.Equal(t, model.OrderPaid, f.order(t, order.ID).Status)
}

func countNil(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}

func TestPayCancelledReservationRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, withGateway(mockpay.NewMockGateway(ctrl)), withDispatcher(nil))
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)
	_, err = f.reservations.Cancel(ctx, guest, res.ID)
	require.NoError(t, err)

	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "TX-1"})
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	require.Equal(t, model.OrderUnpaid, f.order(t, order.ID).Status)
	require.Equal(t, model.PayUnpaid, f.reservation(t, res.ID).PayStatus)
}

func TestPayVoidedWhenReservationCancelledDuringVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mockpay.NewMockGateway(ctrl)
	f := newFixture(t, withGateway(gw), withDispatcher(nil))
	ctx := context.Background()
	res := f.book(t, 1)
	order, err := f.orders.Create(ctx, guest, res.ID)
	require.NoError(t, err)

	gw.EXPECT().Verify(gomock.Any(), payment.MethodCard, "TX-2", gomock.Any()).
		DoAndReturn(func(ctx context.Context, method, payRef string, amount decimal.Decimal) (bool, error) {
			_, err := f.reservations.Cancel(ctx, admin, res.ID)
			return err == nil, err
		})
	full := gomock.Cond(func(x any) bool { return x.(decimal.Decimal).Equal(decimal.NewFromInt(200)) })
	gw.EXPECT().Refund(gomock.Any(), "TX-2", full).Return(true, nil)

	_, err = f.orders.Pay(ctx, guest, order.ID, PayRequest{Method: payment.MethodCard, PayRef: "TX-2"})
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	require.Equal(t, model.OrderUnpaid, f.order(t, order.ID).Status)
	require.Equal(t, model.ReservationCancelled, f.reservation(t, res.ID).Status)
}
