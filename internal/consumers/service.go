package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/messaging"
	"carrental/internal/models"
	"carrental/internal/repository"
	"carrental/internal/search"
	"carrental/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	services *service.Services
	handlers *Handlers
	indexing bool
	subs     []stan.Subscription
}

// NewConsumerService connects to postgres and NATS Streaming. The search index is
// optional; without it only payment reconciliation runs.
func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, service.Options{Currency: cfg.Payment.Currency})

	cs := &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		services: services,
	}

	var indexer CarIndexer
	if esCfg := config.LoadElasticsearchConfig(); esCfg.Enabled {
		es, err := search.NewElasticsearchClient(esCfg)
		if err != nil {
			cs.Shutdown(context.Background())
			return nil, fmt.Errorf("connect to search index: %w", err)
		}
		indexer = es
		cs.indexing = true
	}

	cs.handlers = NewHandlers(repos.Cars, indexer, services.Payments)
	return cs, nil
}

// Payments exposes the payment service to the reconciliation job
func (cs *ConsumerService) Payments() *service.PaymentService {
	return cs.services.Payments
}

func (cs *ConsumerService) subscribe(subject string, fn func(ctx context.Context, data []byte) error) error {
	sub, err := cs.nats.SubscribeQueue(subject, queueGroup, acking(subject, fn))
	if err != nil {
		return err
	}
	cs.subs = append(cs.subs, sub)
	return nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...", "indexing", cs.indexing)

	subjects := map[string]func(context.Context, []byte) error{
		models.EventPaymentReconcile: cs.handlers.HandlePaymentReconcile,
	}
	if cs.indexing {
		subjects[models.EventCarChanged] = cs.handlers.HandleCarChanged
		subjects[models.EventCarReturned] = cs.handlers.HandleCarReturned
		subjects[models.EventBookingCreated] = cs.handlers.HandleBookingCreated
		subjects[models.EventBookingCanceled] = cs.handlers.HandleBookingCanceled
	}

	for subject, fn := range subjects {
		if err := cs.subscribe(subject, fn); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		// Close keeps the durable position, Unsubscribe would drop it
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
