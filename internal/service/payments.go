package service

import (
	"context"
	"errors"
	"math"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/google/uuid"
)

const DefaultCurrency = "usd"

var (
	errNoProvider      = errors.New("payment provider is not configured")
	errBookingVanished = errors.New("booking disappeared before its pay status was written")
)

type PaymentService struct {
	payments repository.PaymentStore
	bookings repository.BookingStore
	provider PaymentProvider
	currency string
	events   *notifier
}

func NewPaymentService(payments repository.PaymentStore, bookings repository.BookingStore, provider PaymentProvider, currency string, events *notifier) *PaymentService {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &PaymentService{
		payments: payments,
		bookings: bookings,
		provider: provider,
		currency: currency,
		events:   events,
	}
}

// CreateIntent opens a provider payment intent for the booking and records an
// unpaid payment keyed by the intent id. Only the client secret is returned.
func (s *PaymentService) CreateIntent(ctx context.Context, bookingID string, amount float64) (*models.CreatePaymentIntentResponse, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperrors.ErrInvalidAmount
	}
	if bookingID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "bookingId is required")
	}
	if !isID(bookingID) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", bookingID)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Upstream("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", bookingID)
	}

	if s.provider == nil {
		return nil, apperrors.Upstream("create payment intent", errNoProvider)
	}
	intent, err := s.provider.CreateIntent(ctx, minorUnits(amount), s.currency, map[string]string{
		"bookingId": bookingID,
	})
	if err != nil {
		metrics.Payments.WithLabelValues("intent_failed").Inc()
		return nil, apperrors.Upstream("create payment intent", err)
	}

	payment := &models.BookingPayment{
		ID:            uuid.New().String(),
		BookingID:     bookingID,
		TransactionID: intent.ID,
		PaymentStatus: models.PaymentUnpaid,
		Amount:        amount,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, apperrors.Upstream("record payment", err)
	}

	metrics.Payments.WithLabelValues("intent_created").Inc()
	logger.WithContext(ctx).Info("Payment intent created",
		"booking_id", bookingID,
		"payment_id", payment.ID,
		"intent_id", intent.ID,
		"amount", amount)

	s.events.publish(ctx, models.EventPaymentIntentCreated, models.PaymentIntentCreatedEvent{
		BookingID: bookingID,
		PaymentID: payment.ID,
		IntentID:  intent.ID,
		Amount:    amount,
		Timestamp: time.Now(),
	})

	return &models.CreatePaymentIntentResponse{ClientSecret: intent.ClientSecret}, nil
}

// Confirm checks the intent with the provider and, when it succeeded, marks the
// payment and then its booking as paid.
func (s *PaymentService) Confirm(ctx context.Context, intentID string) (*models.ConfirmPaymentResult, error) {
	if intentID == "" {
		return nil, apperrors.ErrMissingIntentID
	}

	if s.provider == nil {
		return nil, apperrors.Upstream("retrieve payment intent", errNoProvider)
	}
	intent, err := s.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, apperrors.Upstream("retrieve payment intent", err)
	}
	if intent.Status != models.PaymentIntentSucceeded {
		metrics.Payments.WithLabelValues("not_succeeded").Inc()
		return nil, apperrors.Wrap(apperrors.ErrPaymentNotSucceeded, "intent %s is %s", intentID, intent.Status)
	}

	payment, err := s.payments.MarkPaid(ctx, intentID)
	if err != nil {
		return nil, apperrors.Upstream("mark payment paid", err)
	}
	if payment == nil {
		return nil, apperrors.Wrap(apperrors.ErrPaymentRecordNotFound, "no payment for intent %s", intentID)
	}

	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		s.flagInconsistency(ctx, payment, err)
		return nil, apperrors.Upstream("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", payment.BookingID)
	}

	ok, err := s.bookings.SetPayStatus(ctx, booking.ID, models.PaymentPaid)
	if err != nil {
		s.flagInconsistency(ctx, payment, err)
		return nil, apperrors.Upstream("mark booking paid", err)
	}
	if !ok {
		s.flagInconsistency(ctx, payment, errBookingVanished)
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", booking.ID)
	}

	metrics.Payments.WithLabelValues("confirmed").Inc()
	logger.WithContext(ctx).Info("Payment confirmed",
		"booking_id", booking.ID,
		"payment_id", payment.ID,
		"intent_id", intentID)

	s.events.publish(ctx, models.EventPaymentConfirmed, models.PaymentConfirmedEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		IntentID:  intentID,
		Amount:    payment.Amount,
		Timestamp: time.Now(),
	})

	return &models.ConfirmPaymentResult{
		PaymentIntent:  intent,
		BookingPayment: payment,
	}, nil
}

// flagInconsistency records a paid payment whose booking could not be updated
func (s *PaymentService) flagInconsistency(ctx context.Context, payment *models.BookingPayment, cause error) {
	metrics.Payments.WithLabelValues("inconsistent").Inc()
	logger.WithContext(ctx).Error("Payment recorded as paid but booking pay status not updated",
		"error", cause,
		"booking_id", payment.BookingID,
		"payment_id", payment.ID)

	s.events.publish(ctx, models.EventPaymentReconcile, models.PaymentReconcileEvent{
		BookingID: payment.BookingID,
		PaymentID: payment.ID,
		Reason:    cause.Error(),
		Timestamp: time.Now(),
	})
}

// TotalRevenue sums the amounts of paid payments
func (s *PaymentService) TotalRevenue(ctx context.Context) (float64, error) {
	total, err := s.payments.TotalPaid(ctx)
	if err != nil {
		return 0, apperrors.Upstream("sum paid payments", err)
	}
	return total, nil
}

// Reconcile marks every booking with a paid payment as paid. It returns how many
// bookings were repaired; a failure on one booking does not stop the others.
func (s *PaymentService) Reconcile(ctx context.Context) (int, error) {
	unsynced, err := s.payments.ListUnsynced(ctx)
	if err != nil {
		return 0, apperrors.Upstream("list unsynced payments", err)
	}

	repaired := 0
	var errs []error
	for _, payment := range unsynced {
		if err := s.ReconcileBooking(ctx, payment.BookingID); err != nil {
			errs = append(errs, err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		logger.WithContext(ctx).Info("Reconciled booking pay status", "repaired", repaired)
	}
	return repaired, errors.Join(errs...)
}

// ReconcileBooking sets the booking paid. It is idempotent.
func (s *PaymentService) ReconcileBooking(ctx context.Context, bookingID string) error {
	if !isID(bookingID) {
		return apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", bookingID)
	}
	ok, err := s.bookings.SetPayStatus(ctx, bookingID, models.PaymentPaid)
	if err != nil {
		return apperrors.Upstream("mark booking paid", err)
	}
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", bookingID)
	}
	metrics.Payments.WithLabelValues("reconciled").Inc()
	return nil
}
