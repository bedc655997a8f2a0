package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"carrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2500", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "b-1", r.PostForm.Get("metadata[bookingId]"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","amount":2500,"currency":"usd",
			"status":"requires_payment_method","client_secret":"pi_123_secret_abc"}`)
	})

	mux.HandleFunc("/v1/payment_intents/pi_123", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","amount":2500,"currency":"usd","status":"succeeded"}`)
	})

	mux.HandleFunc("/v1/payment_intents/pi_missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPaymentClientIntents(t *testing.T) {
	srv := newStripeStub(t)
	pc, err := NewPaymentClient(PaymentConfig{SecretKey: "sk_test_123", BaseURL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	intent, err := pc.CreateIntent(ctx, 2500, "usd", map[string]string{"bookingId": "b-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)

	intent, err = pc.RetrieveIntent(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentSucceeded, intent.Status)
	assert.Equal(t, int64(2500), intent.Amount)

	_, err = pc.RetrieveIntent(ctx, "pi_missing")
	assert.Error(t, err)
}

func TestPaymentClientRequiresKey(t *testing.T) {
	_, err := NewPaymentClient(PaymentConfig{})
	assert.Error(t, err)
}
