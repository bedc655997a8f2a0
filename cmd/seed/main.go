package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/logger"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/google/uuid"
)

var (
	carCount   = flag.Int("cars", 12, "Number of sample cars to insert")
	adminEmail = flag.String("admin", "admin@carrental.local", "Email of the admin account to ensure")
	dryRun     = flag.Bool("dry-run", false, "Show what would be inserted without making changes")
)

var catalogue = []struct {
	manufacturer string
	models       []string
	vehicleType  string
	electric     bool
}{
	{"Tesla", []string{"Model 3", "Model Y", "Model S"}, "sedan", true},
	{"Toyota", []string{"Corolla", "Camry", "RAV4"}, "sedan", false},
	{"BMW", []string{"X3", "X5", "i4"}, "suv", false},
	{"Nissan", []string{"Leaf", "Ariya"}, "hatchback", true},
	{"Ford", []string{"Transit", "Ranger"}, "van", false},
}

var (
	colors   = []string{"black", "white", "silver", "blue", "red"}
	features = []string{"AC", "Bluetooth", "GPS", "Heated seats", "Sunroof", "Cruise control"}
)

// Seeder writes sample users and cars through the repositories
type Seeder struct {
	users  repository.UserStore
	cars   repository.CarStore
	rand   *rand.Rand
	dryRun bool
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")
	slog.Info("Starting seed...", "cars", *carCount, "admin", *adminEmail, "dry_run", *dryRun)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	repos := repository.NewRepositories(db)
	seeder := &Seeder{
		users:  repos.Users,
		cars:   repos.Cars,
		rand:   rand.New(rand.NewSource(rand.Int63())),
		dryRun: *dryRun,
	}

	ctx := context.Background()
	if err := seeder.SeedUsers(ctx, *adminEmail); err != nil {
		logger.Fatal("Failed to seed users", "error", err)
	}
	if err := seeder.SeedCars(ctx, *carCount); err != nil {
		logger.Fatal("Failed to seed cars", "error", err)
	}

	slog.Info("Seed completed successfully!")
}

// SeedUsers ensures the admin and two demo renters exist. Existing emails are left alone.
func (s *Seeder) SeedUsers(ctx context.Context, adminEmail string) error {
	users := []models.User{
		{Name: "Administrator", Email: adminEmail, Role: models.RoleAdmin},
		{Name: "Demo Renter", Email: "renter@carrental.local", Role: models.RoleUser, Phone: "+1-555-0100", Address: "1 Main St"},
		{Name: "Second Renter", Email: "renter2@carrental.local", Role: models.RoleUser, Phone: "+1-555-0101", Address: "2 Main St"},
	}

	for i := range users {
		user := &users[i]
		existing, err := s.users.GetByEmail(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("look up %s: %w", user.Email, err)
		}
		if existing != nil {
			slog.Info("User already exists, skipping", "email", user.Email, "id", existing.ID)
			continue
		}

		user.ID = uuid.New().String()
		if s.dryRun {
			slog.Info("[DRY RUN] Would create user", "email", user.Email, "role", user.Role)
			continue
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create %s: %w", user.Email, err)
		}
		slog.Info("Created user", "email", user.Email, "role", user.Role, "id", user.ID)
	}
	return nil
}

func (s *Seeder) sampleCar() *models.Car {
	entry := catalogue[s.rand.Intn(len(catalogue))]
	name := entry.models[s.rand.Intn(len(entry.models))]

	picked := s.rand.Perm(len(features))[:2+s.rand.Intn(3)]
	carFeatures := make([]string, len(picked))
	for i, idx := range picked {
		carFeatures[i] = features[idx]
	}

	// 10.00 to 99.50 in half-unit steps
	price := float64(20+s.rand.Intn(180)) / 2

	return &models.Car{
		ID:           uuid.New().String(),
		Name:         name,
		Image:        "https://images.carrental.local/" + strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".jpg",
		Description:  fmt.Sprintf("%s %s, well kept and ready to drive.", entry.manufacturer, name),
		Color:        colors[s.rand.Intn(len(colors))],
		IsElectric:   entry.electric,
		Features:     carFeatures,
		PricePerHour: price,
		Manufacturer: entry.manufacturer,
		VehicleType:  entry.vehicleType,
		Status:       models.CarAvailable,
	}
}

func (s *Seeder) SeedCars(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		car := s.sampleCar()
		if s.dryRun {
			slog.Info("[DRY RUN] Would create car", "name", car.Name, "manufacturer", car.Manufacturer, "price_per_hour", car.PricePerHour)
			continue
		}
		if err := s.cars.Create(ctx, car); err != nil {
			return fmt.Errorf("create car %d: %w", i+1, err)
		}
	}
	if !s.dryRun {
		slog.Info("Created cars", "count", n)
	}
	return nil
}
