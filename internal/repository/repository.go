package repository

import (
	"context"
	"database/sql"

	"github.com/suar-net/apios/internal/model"
)

// Lookups return (nil, nil) when no row matches.

type IUserRepository interface {
	Create(ctx context.Context, user *model.User) (int, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
}

// Create and Update fill in the generated id and timestamps on the passed provider.
type IProviderRepository interface {
	Create(ctx context.Context, provider *model.Provider) (int, error)
	GetByID(ctx context.Context, userID, id int) (*model.Provider, error)
	ListByUser(ctx context.Context, userID int) ([]*model.Provider, error)
	Update(ctx context.Context, provider *model.Provider) (bool, error)
	Delete(ctx context.Context, userID, id int) (bool, error)
}

type ICallRepository interface {
	Create(ctx context.Context, call *model.CallRecord) error
	ListByUser(ctx context.Context, userID int, limit int) ([]*model.CallRecord, error)
}

type IRepository interface {
	User() IUserRepository
	Provider() IProviderRepository
	Call() ICallRepository
}

type Repository struct {
	user     IUserRepository
	provider IProviderRepository
	call     ICallRepository
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		user:     NewUserRepository(db),
		provider: NewProviderRepository(db),
		call:     NewCallRepository(db),
	}
}

func (r *Repository) User() IUserRepository {
	return r.user
}

func (r *Repository) Provider() IProviderRepository {
	return r.provider
}

func (r *Repository) Call() ICallRepository {
	return r.call
}
