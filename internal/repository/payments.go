package repository

import (
	"context"
	"database/sql"

	"carrental/internal/database"
	"carrental/internal/models"
)

const paymentColumns = `id, booking_id, transaction_id, payment_status, amount, created_at, updated_at`

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row rowScanner) (*models.BookingPayment, error) {
	payment := &models.BookingPayment{}
	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.TransactionID,
		&payment.PaymentStatus,
		&payment.Amount,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	return payment, err
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.BookingPayment) error {
	query := `
		INSERT INTO booking_payments (id, booking_id, transaction_id, payment_status, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.TransactionID,
		payment.PaymentStatus,
		payment.Amount,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.BookingPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM booking_payments WHERE transaction_id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) MarkPaid(ctx context.Context, transactionID string) (*models.BookingPayment, error) {
	query := `
		UPDATE booking_payments SET payment_status = $1, updated_at = NOW()
		WHERE transaction_id = $2
		RETURNING ` + paymentColumns

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, models.PaymentPaid, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) TotalPaid(ctx context.Context) (float64, error) {
	var total float64
	query := `SELECT COALESCE(SUM(amount), 0) FROM booking_payments WHERE payment_status = $1`
	err := r.db.QueryRowContext(ctx, query, models.PaymentPaid).Scan(&total)
	return total, err
}

func (r *PaymentRepository) ListUnsynced(ctx context.Context) ([]models.BookingPayment, error) {
	query := `
		SELECT p.id, p.booking_id, p.transaction_id, p.payment_status, p.amount, p.created_at, p.updated_at
		FROM booking_payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.payment_status = $1 AND b.pay_status <> $1
		ORDER BY p.updated_at`

	rows, err := r.db.QueryContext(ctx, query, models.PaymentPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.BookingPayment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}
