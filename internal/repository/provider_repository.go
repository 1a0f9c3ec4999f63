package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/suar-net/apios/internal/model"
)

type providerRepository struct {
	db *sql.DB
}

func NewProviderRepository(db *sql.DB) IProviderRepository {
	return &providerRepository{db: db}
}

const providerColumns = `id, user_id, name, preset_id, base_url, auth_type, auth_header, credential,
		timeout_ms, default_headers, default_path, mapping, created_at, updated_at`

func (r *providerRepository) Create(ctx context.Context, p *model.Provider) (int, error) {
	headers, err := encodeHeaders(p.DefaultHeaders)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO providers (user_id, name, preset_id, base_url, auth_type, auth_header, credential,
			timeout_ms, default_headers, default_path, mapping)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.UserID,
		p.Name,
		p.PresetID,
		p.BaseURL,
		p.AuthType,
		p.AuthHeader,
		p.Credential,
		p.TimeoutMs,
		headers,
		p.DefaultPath,
		nullableJSON(p.Mapping),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (r *providerRepository) GetByID(ctx context.Context, userID, id int) (*model.Provider, error) {
	query := `SELECT ` + providerColumns + `
		FROM providers
		WHERE id = $1 AND user_id = $2`

	p, err := scanProvider(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *providerRepository) ListByUser(ctx context.Context, userID int) ([]*model.Provider, error) {
	query := `SELECT ` + providerColumns + `
		FROM providers
		WHERE user_id = $1
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	providers := []*model.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *providerRepository) Update(ctx context.Context, p *model.Provider) (bool, error) {
	headers, err := encodeHeaders(p.DefaultHeaders)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE providers
		SET name = $1, preset_id = $2, base_url = $3, auth_type = $4, auth_header = $5, credential = $6,
			timeout_ms = $7, default_headers = $8, default_path = $9, mapping = $10, updated_at = NOW()
		WHERE id = $11 AND user_id = $12
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.Name,
		p.PresetID,
		p.BaseURL,
		p.AuthType,
		p.AuthHeader,
		p.Credential,
		p.TimeoutMs,
		headers,
		p.DefaultPath,
		nullableJSON(p.Mapping),
		p.ID,
		p.UserID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *providerRepository) Delete(ctx context.Context, userID, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM providers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(row scanner) (*model.Provider, error) {
	var (
		p       model.Provider
		headers []byte
		mapping []byte
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.PresetID,
		&p.BaseURL,
		&p.AuthType,
		&p.AuthHeader,
		&p.Credential,
		&p.TimeoutMs,
		&headers,
		&p.DefaultPath,
		&mapping,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &p.DefaultHeaders); err != nil {
			return nil, fmt.Errorf("provider %d: invalid default_headers: %w", p.ID, err)
		}
	}
	if len(mapping) > 0 {
		p.Mapping = json.RawMessage(mapping)
	}
	return &p, nil
}

func encodeHeaders(h map[string]string) (string, error) {
	if h == nil {
		h = map[string]string{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode default_headers: %w", err)
	}
	return string(b), nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
