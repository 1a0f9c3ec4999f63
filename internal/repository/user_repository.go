package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/suar-net/apios/internal/model"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) IUserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (int, error) {
	query := `
		INSERT INTO users (full_name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`

	var userID int
	err := r.db.QueryRowContext(ctx, query, user.FullName, user.Email, user.PasswordHash).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, full_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	query := `
		SELECT id, full_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) scanOne(row *sql.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
