package repository

import (
	"context"
	"database/sql"

	"carrental/internal/database"
	"carrental/internal/models"
)

const userColumns = `id, name, email, role, phone, address, image, created_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Phone,
		&user.Address,
		&user.Image,
		&user.CreatedAt,
	)
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, role, phone, address, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.Role, user.Phone, user.Address, user.Image,
	).Scan(&user.CreatedAt)

	// existing email, keep the stored row
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
