package repository

import (
	"context"
	"errors"

	"carrental/internal/database"
	"carrental/internal/models"

	"github.com/lib/pq"
)

// CarStore persists cars. GetByID returns nil, nil for missing or soft-deleted cars.
type CarStore interface {
	Create(ctx context.Context, car *models.Car) error
	GetByID(ctx context.Context, id string) (*models.Car, error)
	List(ctx context.Context, filter models.CarFilter, offset, limit int) ([]models.Car, int, error)
	Update(ctx context.Context, car *models.Car) (bool, error)
	SetStatus(ctx context.Context, id string, status models.CarStatus) error
	SoftDelete(ctx context.Context, id string) (bool, error)
}

// BookingStore persists bookings. The multi-record methods (CreateWithClaim, Cancel,
// CompleteReturn) change the booking and its car atomically.
type BookingStore interface {
	// CreateWithClaim inserts a pending booking and flips its car to not available.
	// It fails with ErrCarUnavailable when the car is not claimable and with
	// ErrConflictingBooking when the user already holds an ongoing booking.
	CreateWithClaim(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	FindOngoingByUser(ctx context.Context, userID string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	// UpdateSchedule writes date and start time unless the booking was approved meanwhile.
	UpdateSchedule(ctx context.Context, booking *models.Booking) (bool, error)
	// Cancel moves a pending booking to canceled and releases its car when the booking
	// still holds it. Reports whether the car was released.
	Cancel(ctx context.Context, id string) (bool, error)
	Approve(ctx context.Context, id string) (bool, error)
	// CompleteReturn records end time and cost of an open booking and releases the
	// car unless the booking was canceled.
	CompleteReturn(ctx context.Context, id, endTime string, totalCost float64) error
	SetPayStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error)
	CountByStatus(ctx context.Context) (map[models.BookingStatus]int, error)
	Populate(ctx context.Context, bookings []models.Booking, refs ...models.Ref) ([]models.BookingView, error)
}

// PaymentStore persists booking payments
type PaymentStore interface {
	Create(ctx context.Context, payment *models.BookingPayment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.BookingPayment, error)
	// MarkPaid returns nil, nil when no payment carries the transaction id
	MarkPaid(ctx context.Context, transactionID string) (*models.BookingPayment, error)
	TotalPaid(ctx context.Context) (float64, error)
	// ListUnsynced returns paid payments whose booking is still unpaid
	ListUnsynced(ctx context.Context) ([]models.BookingPayment, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type Repositories struct {
	Cars     CarStore
	Bookings BookingStore
	Payments PaymentStore
	Users    UserStore
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Cars:     NewCarRepository(db),
		Bookings: NewBookingRepository(db),
		Payments: NewPaymentRepository(db),
		Users:    NewUserRepository(db),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
