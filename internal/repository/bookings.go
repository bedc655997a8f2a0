package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"carrental/internal/database"
	apperrors "carrental/internal/errors"
	"carrental/internal/models"

	"github.com/lib/pq"
)

const bookingColumns = `id, date, start_time, end_time, user_id, car_id, total_cost, status, pay_status,
	personal_info, extra_features, created_at, updated_at`

type BookingRepository struct {
	db   *database.DB
	cars *CarRepository
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db, cars: NewCarRepository(db)}
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var endTime sql.NullString
	var personalInfo, extraFeatures []byte

	err := row.Scan(
		&booking.ID,
		&booking.Date,
		&booking.StartTime,
		&endTime,
		&booking.UserID,
		&booking.CarID,
		&booking.TotalCost,
		&booking.Status,
		&booking.PayStatus,
		&personalInfo,
		&extraFeatures,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		booking.EndTime = &endTime.String
	}
	if len(personalInfo) > 0 {
		booking.PersonalInfo = &models.PersonalInfo{}
		if err := json.Unmarshal(personalInfo, booking.PersonalInfo); err != nil {
			return nil, fmt.Errorf("failed to decode personal info: %w", err)
		}
	}
	if len(extraFeatures) > 0 {
		booking.ExtraFeatures = &models.ExtraFeatures{}
		if err := json.Unmarshal(extraFeatures, booking.ExtraFeatures); err != nil {
			return nil, fmt.Errorf("failed to decode extra features: %w", err)
		}
	}

	return booking, nil
}

// jsonb encodes an optional sub-record, nil stays SQL NULL
func jsonb(v any) (any, error) {
	switch t := v.(type) {
	case *models.PersonalInfo:
		if t == nil {
			return nil, nil
		}
	case *models.ExtraFeatures:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}

func (r *BookingRepository) CreateWithClaim(ctx context.Context, booking *models.Booking) error {
	personalInfo, err := jsonb(booking.PersonalInfo)
	if err != nil {
		return err
	}
	extraFeatures, err := jsonb(booking.ExtraFeatures)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		claim, err := tx.ExecContext(ctx, `
			UPDATE cars
			SET status = $1, booking_count = booking_count + 1, updated_at = NOW()
			WHERE id = $2 AND status = $3 AND is_deleted = FALSE`,
			models.CarNotAvailable, booking.CarID, models.CarAvailable)
		if err != nil {
			return err
		}
		if n, err := claim.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperrors.ErrCarUnavailable
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO bookings (id, date, start_time, end_time, user_id, car_id, total_cost, status, pay_status,
			                      personal_info, extra_features)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at`,
			booking.ID,
			booking.Date,
			booking.StartTime,
			booking.EndTime,
			booking.UserID,
			booking.CarID,
			booking.TotalCost,
			booking.Status,
			booking.PayStatus,
			personalInfo,
			extraFeatures,
		).Scan(&booking.CreatedAt, &booking.UpdatedAt)

		if isUniqueViolation(err) {
			return apperrors.ErrConflictingBooking
		}
		return err
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

func (r *BookingRepository) FindOngoingByUser(ctx context.Context, userID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE user_id = $1 AND end_time IS NULL
		LIMIT 1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at, id`
	return r.queryBookings(ctx, query, userID)
}

func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var conditions []string
	var args []any

	if filter.CarID != "" {
		args = append(args, filter.CarID)
		conditions = append(conditions, fmt.Sprintf("car_id = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	return r.queryBookings(ctx, query, args...)
}

func (r *BookingRepository) UpdateSchedule(ctx context.Context, booking *models.Booking) (bool, error) {
	query := `
		UPDATE bookings
		SET date = $1, start_time = $2, updated_at = NOW()
		WHERE id = $3 AND status <> $4
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		booking.Date, booking.StartTime, booking.ID, models.BookingApproved,
	).Scan(&booking.UpdatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *BookingRepository) Cancel(ctx context.Context, id string) (bool, error) {
	released := false

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var carID string
		var endTime sql.NullString

		err := tx.QueryRowContext(ctx, `
			UPDATE bookings SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
			RETURNING car_id, end_time`,
			models.BookingCanceled, id, models.BookingPending,
		).Scan(&carID, &endTime)
		if err == sql.ErrNoRows {
			return apperrors.ErrInvalidTransition
		}
		if err != nil {
			return err
		}

		if endTime.Valid {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE cars SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.CarAvailable, carID); err != nil {
			return err
		}
		released = true
		return nil
	})

	return released, err
}

func (r *BookingRepository) Approve(ctx context.Context, id string) (bool, error) {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, models.BookingApproved, id, models.BookingPending)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *BookingRepository) CompleteReturn(ctx context.Context, id, endTime string, totalCost float64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var carID string
		var status models.BookingStatus

		err := tx.QueryRowContext(ctx, `
			UPDATE bookings SET end_time = $1, total_cost = $2, updated_at = NOW()
			WHERE id = $3 AND end_time IS NULL
			RETURNING car_id, status`,
			endTime, totalCost, id,
		).Scan(&carID, &status)
		if err == sql.ErrNoRows {
			return apperrors.ErrInvalidTransition
		}
		if err != nil {
			return err
		}

		// a canceled booking already gave its car back
		if status == models.BookingCanceled {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE cars SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.CarAvailable, carID)
		return err
	})
}

func (r *BookingRepository) SetPayStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	query := `UPDATE bookings SET pay_status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *BookingRepository) CountByStatus(ctx context.Context) (map[models.BookingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.BookingStatus]int)
	for rows.Next() {
		var status models.BookingStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *BookingRepository) Populate(ctx context.Context, bookings []models.Booking, refs ...models.Ref) ([]models.BookingView, error) {
	var userIDs, carIDs []string
	for _, b := range bookings {
		userIDs = append(userIDs, b.UserID)
		carIDs = append(carIDs, b.CarID)
	}

	var users map[string]*models.User
	var cars map[string]*models.Car
	var err error

	for _, ref := range refs {
		switch ref {
		case models.RefUser:
			users, err = r.usersByIDs(ctx, userIDs)
		case models.RefCar:
			cars, err = r.cars.getByIDs(ctx, carIDs)
		default:
			err = fmt.Errorf("unknown booking reference %q", ref)
		}
		if err != nil {
			return nil, err
		}
	}

	return assembleViews(bookings, users, cars), nil
}

func (r *BookingRepository) usersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

// assembleViews attaches the loaded references. A nil map means the reference was not requested.
func assembleViews(bookings []models.Booking, users map[string]*models.User, cars map[string]*models.Car) []models.BookingView {
	views := make([]models.BookingView, len(bookings))
	for i, b := range bookings {
		views[i] = models.BookingView{Booking: b}
		if user, ok := users[b.UserID]; ok {
			views[i].User = user.Summary()
		}
		if car, ok := cars[b.CarID]; ok {
			views[i].Car = car
		}
	}
	return views
}
