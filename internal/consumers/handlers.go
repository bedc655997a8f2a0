package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"carrental/internal/logger"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/nats-io/stan.go"
)

const handlerTimeout = 20 * time.Second

// CarIndexer keeps the search index in step with the car table
type CarIndexer interface {
	IndexCar(ctx context.Context, car *models.Car) error
	DeleteCar(ctx context.Context, id string) error
}

// BookingReconciler marks a booking paid after its payment was confirmed
type BookingReconciler interface {
	ReconcileBooking(ctx context.Context, bookingID string) error
}

type Handlers struct {
	cars       repository.CarStore
	indexer    CarIndexer
	reconciler BookingReconciler
}

func NewHandlers(cars repository.CarStore, indexer CarIndexer, reconciler BookingReconciler) *Handlers {
	return &Handlers{
		cars:       cars,
		indexer:    indexer,
		reconciler: reconciler,
	}
}

// errPoison marks a message that can never be processed; it is acked and dropped
type errPoison struct{ err error }

func (e errPoison) Error() string { return e.err.Error() }

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return errPoison{err: err}
	}
	return nil
}

// acking adapts a payload handler to stan. Successful and undecodable messages are
// acked; on any other failure the message is left for redelivery after AckWait.
func acking(subject string, fn func(ctx context.Context, data []byte) error) stan.MsgHandler {
	log := logger.WithFields("subject", subject)

	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		err := fn(ctx, m.Data)
		switch err.(type) {
		case nil:
		case errPoison:
			log.Error("Dropping undecodable message", "sequence", m.Sequence, "error", err)
		default:
			log.Error("Failed to process message, awaiting redelivery",
				"sequence", m.Sequence,
				"error", err)
			return
		}

		if err := m.Ack(); err != nil {
			log.Error("Failed to ack message", "sequence", m.Sequence, "error", err)
		}
	}
}

// reindex writes the current car document, or removes it once the car is gone
func (h *Handlers) reindex(ctx context.Context, carID string) error {
	if carID == "" {
		return errPoison{err: fmt.Errorf("event carries no car id")}
	}

	car, err := h.cars.GetByID(ctx, carID)
	if err != nil {
		return fmt.Errorf("load car %s: %w", carID, err)
	}
	if car == nil {
		slog.Info("Removing car from search index", "car_id", carID)
		return h.indexer.DeleteCar(ctx, carID)
	}

	if err := h.indexer.IndexCar(ctx, car); err != nil {
		return fmt.Errorf("index car %s: %w", carID, err)
	}
	slog.Debug("Car reindexed", "car_id", carID, "status", car.Status)
	return nil
}

func (h *Handlers) HandleCarChanged(ctx context.Context, data []byte) error {
	var event models.CarChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	slog.Info("Processing car changed event", "car_id", event.CarID, "reason", event.Reason)
	return h.reindex(ctx, event.CarID)
}

func (h *Handlers) HandleCarReturned(ctx context.Context, data []byte) error {
	var event models.CarReturnedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	slog.Info("Processing car returned event",
		"booking_id", event.BookingID,
		"car_id", event.CarID,
		"total_cost", event.TotalCost)
	return h.reindex(ctx, event.CarID)
}

func (h *Handlers) HandleBookingCreated(ctx context.Context, data []byte) error {
	var event models.BookingCreatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	slog.Info("Processing booking created event", "booking_id", event.BookingID, "car_id", event.CarID)
	return h.reindex(ctx, event.CarID)
}

func (h *Handlers) HandleBookingCanceled(ctx context.Context, data []byte) error {
	var event models.BookingCanceledEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	slog.Info("Processing booking canceled event", "booking_id", event.BookingID, "car_released", event.CarReleased)
	if !event.CarReleased {
		return nil
	}
	return h.reindex(ctx, event.CarID)
}

func (h *Handlers) HandlePaymentReconcile(ctx context.Context, data []byte) error {
	var event models.PaymentReconcileEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.BookingID == "" {
		return errPoison{err: fmt.Errorf("reconcile event carries no booking id")}
	}

	slog.Warn("Reconciling booking pay status",
		"booking_id", event.BookingID,
		"payment_id", event.PaymentID,
		"reason", event.Reason)
	return h.reconciler.ReconcileBooking(ctx, event.BookingID)
}
