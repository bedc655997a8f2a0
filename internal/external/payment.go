package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"carrental/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// PaymentClient talks to Stripe payment intents
type PaymentClient struct {
	api *client.API
}

type PaymentConfig struct {
	SecretKey string
	Currency  string
	Timeout   time.Duration
	// BaseURL points the client at a stripe-mock or proxy instead of api.stripe.com
	BaseURL string
}

func NewPaymentClient(cfg PaymentConfig) (*PaymentClient, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("payment secret key is not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	backends := stripe.NewBackends(httpClient)
	if cfg.BaseURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BaseURL),
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &PaymentClient{api: api}, nil
}

// CreateIntent opens a card payment intent for amount minor units
func (pc *PaymentClient) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := pc.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return toPaymentIntent(pi), nil
}

func (pc *PaymentClient) RetrieveIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := pc.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", id, err)
	}

	return toPaymentIntent(pi), nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}
