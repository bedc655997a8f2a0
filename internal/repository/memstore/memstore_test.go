package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCar(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, (&CarStore{s}).Create(context.Background(), &models.Car{
		ID:           id,
		Name:         "Model " + id,
		PricePerHour: 10,
		Manufacturer: "Tesla",
		VehicleType:  "sedan",
		Status:       models.CarAvailable,
	}))
}

func newBooking(id, userID, carID string) *models.Booking {
	return &models.Booking{
		ID:        id,
		Date:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		UserID:    userID,
		CarID:     carID,
		Status:    models.BookingPending,
		PayStatus: models.PaymentUnpaid,
	}
}

func TestCreateWithClaimSingleWinner(t *testing.T) {
	s := New()
	seedCar(t, s, "car-1")
	bookings := &BookingStore{s}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := newBooking(fmt.Sprintf("b-%d", i), fmt.Sprintf("u-%d", i), "car-1")
			err := bookings.CreateWithClaim(context.Background(), b)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrCarUnavailable)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	car, err := (&CarStore{s}).GetByID(context.Background(), "car-1")
	require.NoError(t, err)
	assert.Equal(t, models.CarNotAvailable, car.Status)
	assert.Equal(t, 1, car.BookingCount)
}

func TestCreateWithClaimRejectsSecondOngoingBooking(t *testing.T) {
	s := New()
	seedCar(t, s, "car-1")
	seedCar(t, s, "car-2")
	bookings := &BookingStore{s}
	ctx := context.Background()

	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-1", "u-1", "car-1")))
	err := bookings.CreateWithClaim(ctx, newBooking("b-2", "u-1", "car-2"))
	assert.ErrorIs(t, err, apperrors.ErrConflictingBooking)

	car, _ := (&CarStore{s}).GetByID(ctx, "car-2")
	assert.Equal(t, models.CarAvailable, car.Status)
}

func TestCancelReleasesCarOnlyWhileHeld(t *testing.T) {
	s := New()
	seedCar(t, s, "car-1")
	bookings := &BookingStore{s}
	cars := &CarStore{s}
	ctx := context.Background()

	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-1", "u-1", "car-1")))
	require.NoError(t, bookings.CompleteReturn(ctx, "b-1", "11:00", 20))

	// a new renter takes the car
	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-2", "u-2", "car-1")))

	released, err := bookings.Cancel(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, released)

	car, _ := cars.GetByID(ctx, "car-1")
	assert.Equal(t, models.CarNotAvailable, car.Status)

	_, err = bookings.Cancel(ctx, "b-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestCanceledBookingBlocksUserUntilReturned(t *testing.T) {
	s := New()
	seedCar(t, s, "car-1")
	seedCar(t, s, "car-2")
	bookings := &BookingStore{s}
	cars := &CarStore{s}
	ctx := context.Background()

	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-1", "u-1", "car-1")))
	released, err := bookings.Cancel(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, released)

	err = bookings.CreateWithClaim(ctx, newBooking("b-2", "u-1", "car-2"))
	assert.ErrorIs(t, err, apperrors.ErrConflictingBooking)

	open, err := bookings.FindOngoingByUser(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "b-1", open.ID)

	// the freed car goes to another renter; closing b-1 must leave it rented
	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-3", "u-2", "car-1")))
	require.NoError(t, bookings.CompleteReturn(ctx, "b-1", "10:00", 10))

	car, _ := cars.GetByID(ctx, "car-1")
	assert.Equal(t, models.CarNotAvailable, car.Status)

	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-2", "u-1", "car-2")))
}

func TestCompleteReturnGuards(t *testing.T) {
	s := New()
	seedCar(t, s, "car-1")
	bookings := &BookingStore{s}
	ctx := context.Background()

	require.NoError(t, bookings.CreateWithClaim(ctx, newBooking("b-1", "u-1", "car-1")))
	require.NoError(t, bookings.CompleteReturn(ctx, "b-1", "11:00", 20))
	assert.ErrorIs(t, bookings.CompleteReturn(ctx, "b-1", "12:00", 30), apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, bookings.CompleteReturn(ctx, "missing", "12:00", 30), apperrors.ErrInvalidTransition)

	b, _ := bookings.GetByID(ctx, "b-1")
	assert.Equal(t, "11:00", *b.EndTime)
	assert.InDelta(t, 20, b.TotalCost, 1e-9)
}

func TestListCarsFiltersAndPages(t *testing.T) {
	s := New()
	cars := &CarStore{s}
	ctx := context.Background()

	for i, tc := range []struct {
		make  string
		kind  string
		price float64
	}{
		{"Tesla", "sedan", 50},
		{"BMW", "suv", 80},
		{"Tesla", "suv", 120},
		{"Audi", "sedan", 30},
	} {
		require.NoError(t, cars.Create(ctx, &models.Car{
			ID: fmt.Sprintf("c-%d", i), Manufacturer: tc.make, VehicleType: tc.kind,
			PricePerHour: tc.price, Status: models.CarAvailable,
		}))
	}
	_, err := cars.SoftDelete(ctx, "c-3")
	require.NoError(t, err)

	list, total, err := cars.List(ctx, models.CarFilter{Manufacturers: []string{"Tesla"}}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "c-0", list[0].ID)

	list, total, err = cars.List(ctx, models.CarFilter{PriceRange: &models.PriceRange{Min: 40, Max: 100}}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)

	list, total, err = cars.List(ctx, models.CarFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "c-2", list[0].ID)
}

func TestListUnsyncedAndPopulate(t *testing.T) {
	s := New()
	repos := s.Repositories()
	ctx := context.Background()
	seedCar(t, s, "car-1")
	require.NoError(t, repos.Users.Create(ctx, &models.User{ID: "u-1", Name: "Ann", Email: "ann@example.com", Role: models.RoleUser}))
	require.NoError(t, repos.Bookings.CreateWithClaim(ctx, newBooking("b-1", "u-1", "car-1")))
	require.NoError(t, repos.Payments.Create(ctx, &models.BookingPayment{
		ID: "p-1", BookingID: "b-1", TransactionID: "pi_1", PaymentStatus: models.PaymentUnpaid, Amount: 42,
	}))

	_, err := repos.Payments.MarkPaid(ctx, "pi_1")
	require.NoError(t, err)

	unsynced, err := repos.Payments.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "b-1", unsynced[0].BookingID)

	booking, _ := repos.Bookings.GetByID(ctx, "b-1")
	views, err := repos.Bookings.Populate(ctx, []models.Booking{*booking}, models.RefUser, models.RefCar)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "ann@example.com", views[0].User.Email)
	assert.Equal(t, "car-1", views[0].Car.ID)

	views, err = repos.Bookings.Populate(ctx, []models.Booking{*booking})
	require.NoError(t, err)
	assert.Nil(t, views[0].User)
	assert.Nil(t, views[0].Car)
}
