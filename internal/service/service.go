package service

import (
	"context"
	"errors"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/google/uuid"
)

// Publisher delivers domain events
type Publisher interface {
	Publish(subject string, data any) error
}

// PaymentProvider is the external processor that owns payment intents.
// Amounts are in the currency's minor unit.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
}

// CarCache is a read-through cache for car detail and listing pages. Lookups
// return the cache generation they observed; a miss is filled under that
// generation so that a fill racing an Invalidate is never served.
type CarCache interface {
	GetCar(ctx context.Context, id string) (*models.Car, int64, bool)
	SetCar(ctx context.Context, gen int64, car *models.Car)
	GetPage(ctx context.Context, filter models.CarFilter, page, pageSize int) (*models.CarPage, int64, bool)
	SetPage(ctx context.Context, gen int64, filter models.CarFilter, page, pageSize int, result *models.CarPage)
	Invalidate(ctx context.Context, carID string)
}

// CarSearcher runs full-text queries over the car catalogue
type CarSearcher interface {
	SearchCars(ctx context.Context, query string, page, pageSize int) ([]models.Car, int, error)
}

type Services struct {
	Cars     *CarService
	Bookings *BookingService
	Returns  *ReturnService
	Payments *PaymentService
}

type Options struct {
	Publisher    Publisher
	Cache        CarCache
	Searcher     CarSearcher
	Provider     PaymentProvider
	Currency     string
	DurationMode DurationMode
}

func NewServices(repos *repository.Repositories, opts Options) *Services {
	n := &notifier{publisher: opts.Publisher, cache: opts.Cache}

	return &Services{
		Cars:     NewCarService(repos.Cars, opts.Cache, opts.Searcher, n),
		Bookings: NewBookingService(repos.Bookings, repos.Cars, n),
		Returns:  NewReturnService(repos.Bookings, opts.DurationMode, n),
		Payments: NewPaymentService(repos.Payments, repos.Bookings, opts.Provider, opts.Currency, n),
	}
}

// notifier fans state changes out to the event bus and the car cache. Both are optional.
type notifier struct {
	publisher Publisher
	cache     CarCache
}

func (n *notifier) publish(ctx context.Context, subject string, data any) {
	if n == nil || n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(subject, data); err != nil {
		metrics.EventPublishFailures.WithLabelValues(subject).Inc()
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

// carChanged drops cached copies of the car and asks consumers to reindex it
func (n *notifier) carChanged(ctx context.Context, carID, reason string) {
	if n == nil {
		return
	}
	if n.cache != nil {
		n.cache.Invalidate(ctx, carID)
	}
	n.publish(ctx, models.EventCarChanged, models.CarChangedEvent{
		CarID:     carID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// storeErr passes the listed domain kinds through and marks everything else as an upstream failure
func storeErr(op string, err error, kinds ...error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperrors.Upstream(op, err)
}

// isID reports whether s is a record id in canonical UUID form. Anything else can
// never match a stored record, so callers answer with their not-found kind.
func isID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
