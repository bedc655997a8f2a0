package service

import (
	"context"
	"sync"
	"testing"

	apperrors "carrental/internal/errors"
	"carrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingCreateClaimsCar(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "model-3", 20)

	view, err := f.services.Bookings.Create(ctx, "user-1", &models.CreateBookingRequest{
		CarID:         car.ID,
		Date:          "2024-05-01",
		StartTime:     "09:30",
		PersonalInfo:  &models.PersonalInfo{Name: "Ann", DrivingLicense: "DL-1"},
		ExtraFeatures: &models.ExtraFeatures{GPS: true},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingPending, view.Status)
	assert.Equal(t, models.PaymentUnpaid, view.PayStatus)
	assert.Nil(t, view.EndTime)
	assert.Zero(t, view.TotalCost)
	assert.Equal(t, "ann@example.com", view.User.Email)
	assert.Equal(t, models.CarNotAvailable, view.Car.Status)
	assert.True(t, view.ExtraFeatures.GPS)
	assert.Contains(t, f.publisher.published(), models.EventBookingCreated)

	_, err = f.services.Bookings.Create(ctx, "user-2", &models.CreateBookingRequest{
		CarID: car.ID, Date: "2024-05-01", StartTime: "10:00",
	})
	assert.ErrorIs(t, err, apperrors.ErrCarUnavailable)
}

func TestBookingCreateValidation(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "model-y", 20)
	cost := 50.0

	cases := []struct {
		name string
		req  models.CreateBookingRequest
		want error
	}{
		{"end time supplied", models.CreateBookingRequest{CarID: car.ID, Date: "2024-05-01", StartTime: "09:00", EndTime: strPtr("10:00")}, apperrors.ErrInvalidRequest},
		{"total cost supplied", models.CreateBookingRequest{CarID: car.ID, Date: "2024-05-01", StartTime: "09:00", TotalCost: &cost}, apperrors.ErrInvalidRequest},
		{"bad date", models.CreateBookingRequest{CarID: car.ID, Date: "05/01/2024", StartTime: "09:00"}, apperrors.ErrInvalidRequest},
		{"bad start", models.CreateBookingRequest{CarID: car.ID, Date: "2024-05-01", StartTime: "9:00"}, apperrors.ErrInvalidRequest},
		{"missing car", models.CreateBookingRequest{CarID: "nope", Date: "2024-05-01", StartTime: "09:00"}, apperrors.ErrCarUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			_, err := f.services.Bookings.Create(ctx, "user-1", &req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBookingCreateRejectsSecondOngoing(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	first := f.addCar(t, "first", 10)
	second := f.addCar(t, "second", 10)
	f.book(t, "user-1", first.ID, "09:00")

	_, err := f.services.Bookings.Create(ctx, "user-1", &models.CreateBookingRequest{
		CarID: second.ID, Date: "2024-05-02", StartTime: "09:00",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflictingBooking)

	got, err := f.services.Cars.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CarAvailable, got.Status)
}

func TestBookingCanceledStaysOpenUntilReturned(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "again", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	_, err := f.services.Bookings.Cancel(ctx, "user-1", view.ID)
	require.NoError(t, err)

	_, err = f.services.Bookings.Create(ctx, "user-1", &models.CreateBookingRequest{
		CarID: car.ID, Date: "2024-05-01", StartTime: "11:00",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflictingBooking)

	mine, err := f.services.Bookings.ListMine(ctx, "user-1")
	require.NoError(t, err)
	open := 0
	for _, b := range mine {
		if b.EndTime == nil {
			open++
		}
	}
	assert.Equal(t, 1, open)

	// the car was released on cancel, so someone else may take it
	f.book(t, "user-2", car.ID, "10:00")

	_, err = f.services.Returns.Return(ctx, view.ID, "10:00")
	require.NoError(t, err)

	got, err := f.services.Cars.Get(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CarNotAvailable, got.Status, "closing a canceled booking must not free a car held by another booking")

	other := f.addCar(t, "other", 10)
	f.book(t, "user-1", other.ID, "12:00")
}

func TestBookingConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	car := f.addCar(t, "hot", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = f.services.Bookings.Create(context.Background(), user, &models.CreateBookingRequest{
				CarID: car.ID, Date: "2024-05-01", StartTime: "09:00",
			})
		}(i, user)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, apperrors.ErrCarUnavailable)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestBookingGetOwnership(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "mine", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	_, err := f.services.Bookings.Get(ctx, models.Principal{UserID: "user-1", Role: models.RoleUser}, view.ID)
	assert.NoError(t, err)

	_, err = f.services.Bookings.Get(ctx, models.Principal{UserID: "admin-1", Role: models.RoleAdmin}, view.ID)
	assert.NoError(t, err)

	_, err = f.services.Bookings.Get(ctx, models.Principal{UserID: "user-2", Role: models.RoleUser}, view.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.services.Bookings.Get(ctx, models.Principal{UserID: "user-1"}, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBookingUpdate(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "edit", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	updated, err := f.services.Bookings.Update(ctx, "user-1", view.ID, &models.UpdateBookingRequest{
		StartTime: strPtr("10:15"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10:15", updated.StartTime)
	assert.Equal(t, "2024-05-01", updated.Date.Format(models.DateLayout))

	_, err = f.services.Bookings.Update(ctx, "user-1", view.ID, &models.UpdateBookingRequest{})
	assert.ErrorIs(t, err, apperrors.ErrNoFieldsProvided)

	_, err = f.services.Bookings.Update(ctx, "user-2", view.ID, &models.UpdateBookingRequest{StartTime: strPtr("11:00")})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	_, err = f.services.Bookings.Approve(ctx, view.ID)
	require.NoError(t, err)

	_, err = f.services.Bookings.Update(ctx, "user-1", view.ID, &models.UpdateBookingRequest{StartTime: strPtr("11:00")})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyApproved)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestBookingCancel(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "cancel", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	_, err := f.services.Bookings.Cancel(ctx, "user-2", view.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	canceled, err := f.services.Bookings.Cancel(ctx, "user-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCanceled, canceled.Status)
	assert.Equal(t, models.CarAvailable, canceled.Car.Status)

	_, err = f.services.Bookings.Cancel(ctx, "user-1", view.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.services.Bookings.Approve(ctx, view.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestBookingCancelApprovedRejected(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "locked", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	_, err := f.services.Bookings.Approve(ctx, view.ID)
	require.NoError(t, err)

	_, err = f.services.Bookings.Cancel(ctx, "user-1", view.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyApproved)
}

func TestBookingApprove(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	car := f.addCar(t, "approve", 10)
	view := f.book(t, "user-1", car.ID, "09:00")

	approved, err := f.services.Bookings.Approve(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingApproved, approved.Status)
	assert.Equal(t, models.CarNotAvailable, approved.Car.Status)

	_, err = f.services.Bookings.Approve(ctx, view.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.services.Bookings.Approve(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stats, err := f.services.Bookings.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
}

func TestBookingListings(t *testing.T) {
	f := newFixture(t, DurationDecimal)
	ctx := context.Background()
	first := f.addCar(t, "one", 10)
	second := f.addCar(t, "two", 10)

	mine, err := f.services.Bookings.ListMine(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	a := f.book(t, "user-1", first.ID, "09:00")
	_, err = f.services.Returns.Return(ctx, a.ID, "10:00")
	require.NoError(t, err)
	b := f.book(t, "user-1", second.ID, "11:00")
	f.book(t, "user-2", first.ID, "12:00")

	mine, err = f.services.Bookings.ListMine(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, a.ID, mine[0].ID)
	assert.Equal(t, b.ID, mine[1].ID)

	all, err := f.services.Bookings.ListAll(ctx, models.BookingFilter{CarID: first.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all, err = f.services.Bookings.ListAll(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
