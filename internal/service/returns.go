package service

import (
	"context"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/repository"
)

type ReturnService struct {
	bookings repository.BookingStore
	mode     DurationMode
	events   *notifier
}

func NewReturnService(bookings repository.BookingStore, mode DurationMode, events *notifier) *ReturnService {
	if mode == "" {
		mode = DurationDecimal
	}
	return &ReturnService{
		bookings: bookings,
		mode:     mode,
		events:   events,
	}
}

func (s *ReturnService) Mode() DurationMode {
	return s.mode
}

// Return closes a rental: it prices the booking from its start time to endTime,
// records the cost and makes the car available again. A canceled booking can be
// closed too, which frees its user to book again; its car was already released.
func (s *ReturnService) Return(ctx context.Context, bookingID, endTime string) (*models.BookingView, error) {
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
	if endTime == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "endTime is required")
	}
	if !booking.Ongoing() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, "booking %s was already returned", bookingID)
	}
	releases := booking.OccupiesCar()

	// soft-deleted cars still price their open bookings
	views, err := s.bookings.Populate(ctx, []models.Booking{*booking}, models.RefCar)
	if err != nil {
		return nil, apperrors.Upstream("load booked car", err)
	}
	car := views[0].Car
	if car == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", booking.CarID)
	}

	hours, err := RentalHours(s.mode, booking.StartTime, endTime)
	if err != nil {
		return nil, err
	}
	cost := TotalCost(hours, car.PricePerHour)

	if err := s.bookings.CompleteReturn(ctx, bookingID, endTime, cost); err != nil {
		return nil, storeErr("complete return", err, apperrors.ErrInvalidTransition)
	}

	metrics.CarReturns.Inc()
	logger.WithContext(ctx).Info("Car returned",
		"booking_id", bookingID,
		"car_id", car.ID,
		"hours", hours,
		"total_cost", cost,
		"car_released", releases)

	s.events.publish(ctx, models.EventCarReturned, models.CarReturnedEvent{
		BookingID: bookingID,
		CarID:     car.ID,
		EndTime:   endTime,
		TotalCost: cost,
		Timestamp: time.Now(),
	})
	if releases {
		s.events.carChanged(ctx, car.ID, "returned")
	}

	updated, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Upstream("get booking", err)
	}
	result, err := s.bookings.Populate(ctx, []models.Booking{*updated}, models.RefUser, models.RefCar)
	if err != nil {
		return nil, apperrors.Upstream("populate booking", err)
	}
	return &result[0], nil
}
