package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"carrental/internal/database"
	"carrental/internal/models"

	"github.com/lib/pq"
)

const carColumns = `id, name, image, description, color, is_electric, features, price_per_hour,
	manufacturer, vehicle_type, status, is_deleted, booking_count, created_at, updated_at`

type CarRepository struct {
	db *database.DB
}

func NewCarRepository(db *database.DB) *CarRepository {
	return &CarRepository{db: db}
}

func scanCar(row rowScanner) (*models.Car, error) {
	car := &models.Car{}
	err := row.Scan(
		&car.ID,
		&car.Name,
		&car.Image,
		&car.Description,
		&car.Color,
		&car.IsElectric,
		pq.Array(&car.Features),
		&car.PricePerHour,
		&car.Manufacturer,
		&car.VehicleType,
		&car.Status,
		&car.IsDeleted,
		&car.BookingCount,
		&car.CreatedAt,
		&car.UpdatedAt,
	)
	return car, err
}

func (r *CarRepository) Create(ctx context.Context, car *models.Car) error {
	query := `
		INSERT INTO cars (id, name, image, description, color, is_electric, features, price_per_hour,
		                  manufacturer, vehicle_type, status, is_deleted, booking_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		car.ID,
		car.Name,
		car.Image,
		car.Description,
		car.Color,
		car.IsElectric,
		pq.Array(car.Features),
		car.PricePerHour,
		car.Manufacturer,
		car.VehicleType,
		car.Status,
		car.IsDeleted,
		car.BookingCount,
	).Scan(&car.CreatedAt, &car.UpdatedAt)
}

func (r *CarRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1 AND is_deleted = FALSE`

	car, err := scanCar(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return car, nil
}

// carFilterClause renders the filter as a WHERE clause with positional arguments
func carFilterClause(filter models.CarFilter) (string, []any) {
	conditions := []string{"is_deleted = FALSE"}
	var args []any

	if len(filter.Manufacturers) > 0 {
		args = append(args, pq.Array(filter.Manufacturers))
		conditions = append(conditions, fmt.Sprintf("manufacturer = ANY($%d)", len(args)))
	}
	if len(filter.VehicleTypes) > 0 {
		args = append(args, pq.Array(filter.VehicleTypes))
		conditions = append(conditions, fmt.Sprintf("vehicle_type = ANY($%d)", len(args)))
	}
	if filter.PriceRange != nil {
		args = append(args, filter.PriceRange.Min, filter.PriceRange.Max)
		conditions = append(conditions, fmt.Sprintf("price_per_hour BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *CarRepository) List(ctx context.Context, filter models.CarFilter, offset, limit int) ([]models.Car, int, error) {
	where, args := carFilterClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + carColumns + ` FROM cars` + where +
		fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cars := []models.Car{}
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, 0, err
		}
		cars = append(cars, *car)
	}

	return cars, total, rows.Err()
}

func (r *CarRepository) Update(ctx context.Context, car *models.Car) (bool, error) {
	query := `
		UPDATE cars
		SET name = $1, image = $2, description = $3, color = $4, is_electric = $5, features = $6,
		    price_per_hour = $7, manufacturer = $8, vehicle_type = $9, updated_at = NOW()
		WHERE id = $10 AND is_deleted = FALSE
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		car.Name,
		car.Image,
		car.Description,
		car.Color,
		car.IsElectric,
		pq.Array(car.Features),
		car.PricePerHour,
		car.Manufacturer,
		car.VehicleType,
		car.ID,
	).Scan(&car.UpdatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *CarRepository) SetStatus(ctx context.Context, id string, status models.CarStatus) error {
	query := `UPDATE cars SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *CarRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	query := `UPDATE cars SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// getByIDs loads cars regardless of the soft-delete flag, keyed by id
func (r *CarRepository) getByIDs(ctx context.Context, ids []string) (map[string]*models.Car, error) {
	cars := make(map[string]*models.Car, len(ids))
	if len(ids) == 0 {
		return cars, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars[car.ID] = car
	}
	return cars, rows.Err()
}
