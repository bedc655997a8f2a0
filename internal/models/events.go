package models

import "time"

// NATS Event Types
const (
	EventBookingCreated       = "booking.created"
	EventBookingCanceled      = "booking.canceled"
	EventBookingApproved      = "booking.approved"
	EventCarReturned          = "car.returned"
	EventCarChanged           = "car.changed"
	EventPaymentIntentCreated = "payment.intent_created"
	EventPaymentConfirmed     = "payment.confirmed"
	EventPaymentReconcile     = "payment.reconcile"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	CarID     string    `json:"car_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCanceledEvent represents a booking cancellation event
type BookingCanceledEvent struct {
	BookingID   string    `json:"booking_id"`
	CarID       string    `json:"car_id"`
	CarReleased bool      `json:"car_released"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookingApprovedEvent represents an admin approval
type BookingApprovedEvent struct {
	BookingID string    `json:"booking_id"`
	CarID     string    `json:"car_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CarReturnedEvent is published once the car is back and the cost is known
type CarReturnedEvent struct {
	BookingID string    `json:"booking_id"`
	CarID     string    `json:"car_id"`
	EndTime   string    `json:"end_time"`
	TotalCost float64   `json:"total_cost"`
	Timestamp time.Time `json:"timestamp"`
}

// CarChangedEvent signals that a car document must be reindexed
type CarChangedEvent struct {
	CarID     string    `json:"car_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentIntentCreatedEvent represents a payment initiation event
type PaymentIntentCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	IntentID  string    `json:"intent_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentConfirmedEvent represents a successful payment event
type PaymentConfirmedEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	IntentID  string    `json:"intent_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentReconcileEvent asks the consumers to bring a booking's pay status in line
// with a payment that is already recorded as paid
type PaymentReconcileEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
