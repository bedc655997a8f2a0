package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createCarsTable,
		createBookingsTable,
		createBookingPaymentsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    role VARCHAR(10) NOT NULL DEFAULT 'user',
    phone VARCHAR(50) NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (role IN ('user', 'admin'))
);`

const createCarsTable = `
CREATE TABLE IF NOT EXISTS cars (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    image TEXT NOT NULL,
    description TEXT NOT NULL,
    color VARCHAR(50) NOT NULL,
    is_electric BOOLEAN NOT NULL DEFAULT FALSE,
    features TEXT[] NOT NULL DEFAULT '{}',
    price_per_hour DECIMAL(12,2) NOT NULL,
    manufacturer VARCHAR(100) NOT NULL,
    vehicle_type VARCHAR(50) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'available',
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    booking_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('available', 'not available')),
    CHECK (price_per_hour > 0)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    date DATE NOT NULL,
    start_time VARCHAR(5) NOT NULL,
    end_time VARCHAR(5),
    user_id UUID NOT NULL REFERENCES users(id),
    car_id UUID NOT NULL REFERENCES cars(id),
    total_cost DECIMAL(14,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    pay_status VARCHAR(20) NOT NULL DEFAULT 'unpaid',
    personal_info JSONB,
    extra_features JSONB,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'approved', 'canceled')),
    CHECK (pay_status IN ('paid', 'unpaid'))
);`

const createBookingPaymentsTable = `
CREATE TABLE IF NOT EXISTS booking_payments (
    id UUID PRIMARY KEY,
    booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
    transaction_id VARCHAR(255) UNIQUE NOT NULL,
    payment_status VARCHAR(20) NOT NULL DEFAULT 'unpaid',
    amount DECIMAL(14,2) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (payment_status IN ('paid', 'unpaid'))
);`

// At most one unreturned booking per user and one occupying booking per car.
const createIndexes = `
DROP INDEX IF EXISTS bookings_one_ongoing_per_user_idx;
CREATE UNIQUE INDEX IF NOT EXISTS bookings_one_open_per_user_idx
    ON bookings (user_id) WHERE end_time IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS bookings_one_occupying_per_car_idx
    ON bookings (car_id) WHERE end_time IS NULL AND status <> 'canceled';
CREATE INDEX IF NOT EXISTS bookings_user_created_idx ON bookings (user_id, created_at);
CREATE INDEX IF NOT EXISTS cars_listing_idx ON cars (is_deleted, manufacturer, vehicle_type);
CREATE INDEX IF NOT EXISTS booking_payments_status_idx ON booking_payments (payment_status);`
