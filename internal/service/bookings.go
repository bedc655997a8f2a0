package service

import (
	"context"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/repository"
	"carrental/internal/validation"

	"github.com/google/uuid"
)

type BookingService struct {
	bookings repository.BookingStore
	cars     repository.CarStore
	events   *notifier
}

func NewBookingService(bookings repository.BookingStore, cars repository.CarStore, events *notifier) *BookingService {
	return &BookingService{
		bookings: bookings,
		cars:     cars,
		events:   events,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrInvalidRequest, "date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

func checkStartTime(s string) error {
	if !validation.IsTime24(s) {
		return apperrors.Wrap(apperrors.ErrInvalidRequest, "startTime must be HH:MM, got %q", s)
	}
	return nil
}

func (s *BookingService) view(ctx context.Context, booking *models.Booking) (*models.BookingView, error) {
	views, err := s.bookings.Populate(ctx, []models.Booking{*booking}, models.RefUser, models.RefCar)
	if err != nil {
		return nil, apperrors.Upstream("populate booking", err)
	}
	return &views[0], nil
}

func (s *BookingService) views(ctx context.Context, bookings []models.Booking) ([]models.BookingView, error) {
	views, err := s.bookings.Populate(ctx, bookings, models.RefUser, models.RefCar)
	if err != nil {
		return nil, apperrors.Upstream("populate bookings", err)
	}
	return views, nil
}

// Create books an available car for the user. The booking starts pending and unpaid;
// end time and cost are only set when the car is returned.
func (s *BookingService) Create(ctx context.Context, userID string, req *models.CreateBookingRequest) (*models.BookingView, error) {
	if (req.EndTime != nil && *req.EndTime != "") || (req.TotalCost != nil && *req.TotalCost != 0) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "endTime and totalCost are set when the car is returned")
	}
	if req.CarID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "carId is required")
	}
	if !isID(req.CarID) {
		return nil, apperrors.Wrap(apperrors.ErrCarUnavailable, "car %s cannot be booked", req.CarID)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := checkStartTime(req.StartTime); err != nil {
		return nil, err
	}

	ongoing, err := s.bookings.FindOngoingByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Upstream("find ongoing booking", err)
	}
	if ongoing != nil {
		return nil, apperrors.Wrap(apperrors.ErrConflictingBooking, "booking %s has not been returned yet", ongoing.ID)
	}

	car, err := s.cars.GetByID(ctx, req.CarID)
	if err != nil {
		return nil, apperrors.Upstream("get car", err)
	}
	if !car.Bookable() {
		return nil, apperrors.Wrap(apperrors.ErrCarUnavailable, "car %s cannot be booked", req.CarID)
	}

	booking := &models.Booking{
		ID:            uuid.New().String(),
		Date:          date,
		StartTime:     req.StartTime,
		UserID:        userID,
		CarID:         req.CarID,
		Status:        models.BookingPending,
		PayStatus:     models.PaymentUnpaid,
		PersonalInfo:  req.PersonalInfo,
		ExtraFeatures: req.ExtraFeatures,
	}

	if err := s.bookings.CreateWithClaim(ctx, booking); err != nil {
		return nil, storeErr("create booking", err, apperrors.ErrCarUnavailable, apperrors.ErrConflictingBooking)
	}

	metrics.BookingTransitions.WithLabelValues(string(models.BookingPending)).Inc()
	logger.WithContext(ctx).Info("Booking created",
		"booking_id", booking.ID,
		"car_id", booking.CarID)

	s.events.publish(ctx, models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID: booking.ID,
		CarID:     booking.CarID,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	s.events.carChanged(ctx, booking.CarID, "booked")

	return s.view(ctx, booking)
}

// Get returns a booking to its owner or to an admin
func (s *BookingService) Get(ctx context.Context, caller models.Principal, id string) (*models.BookingView, error) {
	if !isID(id) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", id)
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", id)
	}
	if !caller.IsAdmin() && booking.UserID != caller.UserID {
		return nil, apperrors.ErrForbidden
	}
	return s.view(ctx, booking)
}

// ListMine returns the user's bookings in the order they were made
func (s *BookingService) ListMine(ctx context.Context, userID string) ([]models.BookingView, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Upstream("list user bookings", err)
	}
	return s.views(ctx, bookings)
}

func (s *BookingService) ListAll(ctx context.Context, filter models.BookingFilter) ([]models.BookingView, error) {
	if filter.CarID != "" && !isID(filter.CarID) {
		return []models.BookingView{}, nil
	}
	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Upstream("list bookings", err)
	}
	return s.views(ctx, bookings)
}

// owned loads a booking for a mutation by its owner. Missing and foreign bookings
// are indistinguishable to the caller.
func (s *BookingService) owned(ctx context.Context, userID, id string) (*models.Booking, error) {
	if !isID(id) {
		return nil, apperrors.ErrNotFoundOrForbidden
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get booking", err)
	}
	if booking == nil || booking.UserID != userID {
		return nil, apperrors.ErrNotFoundOrForbidden
	}
	if booking.Status == models.BookingApproved {
		return nil, apperrors.ErrAlreadyApproved
	}
	return booking, nil
}

func (s *BookingService) Update(ctx context.Context, userID, id string, req *models.UpdateBookingRequest) (*models.BookingView, error) {
	booking, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Date == nil && req.StartTime == nil {
		return nil, apperrors.ErrNoFieldsProvided
	}

	if req.Date != nil {
		if booking.Date, err = parseDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		if err := checkStartTime(*req.StartTime); err != nil {
			return nil, err
		}
		booking.StartTime = *req.StartTime
	}

	ok, err := s.bookings.UpdateSchedule(ctx, booking)
	if err != nil {
		return nil, apperrors.Upstream("update booking", err)
	}
	if !ok {
		// approved between the read and the write
		return nil, apperrors.ErrAlreadyApproved
	}

	logger.WithContext(ctx).Info("Booking updated", "booking_id", id)
	return s.view(ctx, booking)
}

// Cancel cancels a pending booking and frees its car if the car was not returned yet
func (s *BookingService) Cancel(ctx context.Context, userID, id string) (*models.BookingView, error) {
	booking, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(models.BookingCanceled) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, "booking %s is already %s", id, booking.Status)
	}

	released, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, storeErr("cancel booking", err, apperrors.ErrInvalidTransition)
	}
	booking.Status = models.BookingCanceled

	metrics.BookingTransitions.WithLabelValues(string(models.BookingCanceled)).Inc()
	logger.WithContext(ctx).Info("Booking canceled",
		"booking_id", id,
		"car_released", released)

	s.events.publish(ctx, models.EventBookingCanceled, models.BookingCanceledEvent{
		BookingID:   id,
		CarID:       booking.CarID,
		CarReleased: released,
		Timestamp:   time.Now(),
	})
	if released {
		s.events.carChanged(ctx, booking.CarID, "released")
	}

	return s.view(ctx, booking)
}

// Approve moves a pending booking to approved. The car stays rented.
func (s *BookingService) Approve(ctx context.Context, id string) (*models.BookingView, error) {
	if !isID(id) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", id)
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "booking %s not found", id)
	}
	if !booking.Status.CanTransitionTo(models.BookingApproved) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, "only pending bookings can be approved")
	}

	ok, err := s.bookings.Approve(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("approve booking", err)
	}
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, "only pending bookings can be approved")
	}
	booking.Status = models.BookingApproved

	metrics.BookingTransitions.WithLabelValues(string(models.BookingApproved)).Inc()
	logger.WithContext(ctx).Info("Booking approved", "booking_id", id)

	s.events.publish(ctx, models.EventBookingApproved, models.BookingApprovedEvent{
		BookingID: id,
		CarID:     booking.CarID,
		Timestamp: time.Now(),
	})

	return s.view(ctx, booking)
}

func (s *BookingService) Stats(ctx context.Context) (*models.BookingStats, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Upstream("count bookings", err)
	}
	return &models.BookingStats{
		Pending:  counts[models.BookingPending],
		Approved: counts[models.BookingApproved],
	}, nil
}
