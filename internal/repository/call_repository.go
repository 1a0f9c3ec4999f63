package repository

import (
	"context"
	"database/sql"

	"github.com/suar-net/apios/internal/model"
)

// callRepository is the implementation of ICallRepository.
type callRepository struct {
	db *sql.DB
}

// NewCallRepository is the constructor for callRepository.
func NewCallRepository(db *sql.DB) ICallRepository {
	return &callRepository{db: db}
}

// Create inserts a call record into the history.
func (r *callRepository) Create(ctx context.Context, call *model.CallRecord) error {
	query := `
		INSERT INTO call_history (id, user_id, provider_id, method, path, status, duration_ms, error_kind, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		call.ID,
		call.UserID,
		call.ProviderID,
		call.Method,
		call.Path,
		call.Status,
		call.DurationMs,
		call.ErrorKind,
		call.Error,
		call.CreatedAt,
	)
	return err
}

// ListByUser returns the most recent calls of a user, newest first.
func (r *callRepository) ListByUser(ctx context.Context, userID int, limit int) ([]*model.CallRecord, error) {
	query := `
		SELECT id, user_id, provider_id, method, path, status, duration_ms, error_kind, error, created_at
		FROM call_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calls := []*model.CallRecord{}
	for rows.Next() {
		var call model.CallRecord
		if err := rows.Scan(
			&call.ID,
			&call.UserID,
			&call.ProviderID,
			&call.Method,
			&call.Path,
			&call.Status,
			&call.DurationMs,
			&call.ErrorKind,
			&call.Error,
			&call.CreatedAt,
		); err != nil {
			return nil, err
		}
		calls = append(calls, &call)
	}

	return calls, rows.Err()
}
