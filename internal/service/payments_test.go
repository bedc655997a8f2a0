package service

import (
	"context"
	"errors"
	"math"
	"testing"

	apperrors "carrental/internal/errors"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateIntent(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "pay", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	f.provider.On("CreateIntent", mock.Anything, int64(4999), "usd", map[string]string{"bookingId": view.ID}).
		Return(&models.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: "requires_payment_method"}, nil).
		Once()

	resp, err := f.services.Payments.CreateIntent(ctx, view.ID, 49.99)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)

	payment, err := f.repos.Payments.GetByTransactionID(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentUnpaid, payment.PaymentStatus)
	assert.InDelta(t, 49.99, payment.Amount, 1e-9)
	assert.Equal(t, view.ID, payment.BookingID)
}

func TestCreateIntentRejectsBadInput(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := f.services.Payments.CreateIntent(ctx, "b-1", amount)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	}

	_, err := f.services.Payments.CreateIntent(ctx, "missing", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateIntentProviderFailure(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "down", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	f.provider.On("CreateIntent", mock.Anything, int64(1000), "usd", mock.Anything).
		Return(nil, errors.New("stripe unavailable")).Once()

	_, err := f.services.Payments.CreateIntent(ctx, view.ID, 10)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)

	total, err := f.services.Payments.TotalRevenue(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "confirm", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	f.provider.On("CreateIntent", mock.Anything, int64(2500), "usd", mock.Anything).
		Return(&models.PaymentIntent{ID: "pi_2", ClientSecret: "s"}, nil).Once()
	f.provider.On("RetrieveIntent", mock.Anything, "pi_2").
		Return(&models.PaymentIntent{ID: "pi_2", Status: models.PaymentIntentSucceeded, Amount: 2500, Currency: "usd"}, nil).Once()

	_, err := f.services.Payments.CreateIntent(ctx, view.ID, 25)
	require.NoError(t, err)

	result, err := f.services.Payments.Confirm(ctx, "pi_2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, result.BookingPayment.PaymentStatus)
	assert.Equal(t, "pi_2", result.PaymentIntent.ID)

	booking, err := f.repos.Bookings.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, booking.PayStatus)

	total, err := f.services.Payments.TotalRevenue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25, total, 1e-9)
	assert.Contains(t, f.publisher.published(), models.EventPaymentConfirmed)
}

func TestConfirmPaymentNotSucceeded(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()

	_, err := f.services.Payments.Confirm(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrMissingIntentID)

	f.provider.On("RetrieveIntent", mock.Anything, "pi_pending").
		Return(&models.PaymentIntent{ID: "pi_pending", Status: "processing"}, nil).Once()
	_, err = f.services.Payments.Confirm(ctx, "pi_pending")
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotSucceeded)

	f.provider.On("RetrieveIntent", mock.Anything, "pi_unknown").
		Return(&models.PaymentIntent{ID: "pi_unknown", Status: models.PaymentIntentSucceeded}, nil).Once()
	_, err = f.services.Payments.Confirm(ctx, "pi_unknown")
	assert.ErrorIs(t, err, apperrors.ErrPaymentRecordNotFound)
}

// failingPayStatus makes the booking pay-status write fail
type failingPayStatus struct {
	repository.BookingStore
}

func (failingPayStatus) SetPayStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	return false, errors.New("connection reset")
}

// vanishingBooking reports that the pay-status write matched no booking
type vanishingBooking struct {
	repository.BookingStore
}

func (vanishingBooking) SetPayStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	return false, nil
}

func TestConfirmPaymentBookingGoneIsFlagged(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "gone", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	f.provider.On("CreateIntent", mock.Anything, int64(1000), "usd", mock.Anything).
		Return(&models.PaymentIntent{ID: "pi_4", ClientSecret: "s"}, nil).Once()
	f.provider.On("RetrieveIntent", mock.Anything, "pi_4").
		Return(&models.PaymentIntent{ID: "pi_4", Status: models.PaymentIntentSucceeded}, nil).Once()

	_, err := f.services.Payments.CreateIntent(ctx, view.ID, 10)
	require.NoError(t, err)

	broken := NewPaymentService(f.repos.Payments, vanishingBooking{f.repos.Bookings}, f.provider, "usd",
		&notifier{publisher: f.publisher})
	result, err := broken.Confirm(ctx, "pi_4")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, f.publisher.published(), models.EventPaymentReconcile)
}

func TestConfirmPaymentPartialFailureIsReconciled(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "partial", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	f.provider.On("CreateIntent", mock.Anything, int64(1000), "usd", mock.Anything).
		Return(&models.PaymentIntent{ID: "pi_3", ClientSecret: "s"}, nil).Once()
	f.provider.On("RetrieveIntent", mock.Anything, "pi_3").
		Return(&models.PaymentIntent{ID: "pi_3", Status: models.PaymentIntentSucceeded}, nil).Once()

	_, err := f.services.Payments.CreateIntent(ctx, view.ID, 10)
	require.NoError(t, err)

	broken := NewPaymentService(f.repos.Payments, failingPayStatus{f.repos.Bookings}, f.provider, "usd",
		&notifier{publisher: f.publisher})
	_, err = broken.Confirm(ctx, "pi_3")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, f.publisher.published(), models.EventPaymentReconcile)

	booking, _ := f.repos.Bookings.GetByID(ctx, view.ID)
	assert.Equal(t, models.PaymentUnpaid, booking.PayStatus)

	repaired, err := f.services.Payments.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	booking, _ = f.repos.Bookings.GetByID(ctx, view.ID)
	assert.Equal(t, models.PaymentPaid, booking.PayStatus)

	repaired, err = f.services.Payments.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestReconcileBookingMissing(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	err := f.services.Payments.ReconcileBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
