package service

import (
	"context"
	"sync"
	"testing"

	"carrental/internal/models"
	"carrental/internal/repository"
	"carrental/internal/repository/memstore"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, amount, currency, metadata)
	if intent, ok := args.Get(0).(*models.PaymentIntent); ok {
		return intent, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) RetrieveIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if intent, ok := args.Get(0).(*models.PaymentIntent); ok {
		return intent, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	repos     *repository.Repositories
	services  *Services
	provider  *mockProvider
	publisher *recordingPublisher
}

func newFixture(t *testing.T, mode DurationMode) *fixture {
	t.Helper()
	repos := memstore.New().Repositories()
	provider := &mockProvider{}
	publisher := &recordingPublisher{}

	services := NewServices(repos, Options{
		Publisher:    publisher,
		Provider:     provider,
		DurationMode: mode,
	})

	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "user-1", Name: "Ann", Email: "ann@example.com", Role: models.RoleUser, Phone: "111"},
		{ID: "user-2", Name: "Bob", Email: "bob@example.com", Role: models.RoleUser},
		{ID: "admin-1", Name: "Root", Email: "root@example.com", Role: models.RoleAdmin},
	} {
		user := u
		require.NoError(t, repos.Users.Create(ctx, &user))
	}

	t.Cleanup(func() { provider.AssertExpectations(t) })
	return &fixture{repos: repos, services: services, provider: provider, publisher: publisher}
}

func (f *fixture) addCar(t *testing.T, name string, price float64) *models.Car {
	t.Helper()
	car, err := f.services.Cars.Create(context.Background(), &models.CreateCarRequest{
		Name:         name,
		Image:        "https://img.example.com/" + name + ".png",
		Description:  "A comfortable car",
		Color:        "black",
		PricePerHour: price,
		Manufacturer: "Tesla",
		VehicleType:  "sedan",
	})
	require.NoError(t, err)
	return car
}

func (f *fixture) book(t *testing.T, userID, carID, start string) *models.BookingView {
	t.Helper()
	view, err := f.services.Bookings.Create(context.Background(), userID, &models.CreateBookingRequest{
		CarID:     carID,
		Date:      "2024-05-01",
		StartTime: start,
	})
	require.NoError(t, err)
	return view
}

func strPtr(s string) *string { return &s }
