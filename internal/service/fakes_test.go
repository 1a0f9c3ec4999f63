package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suar-net/apios/internal/model"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := *user
	u.ID = r.nextID
	r.users[u.ID] = &u
	return u.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

type fakeProviderRepo struct {
	mu        sync.Mutex
	providers map[int]*model.Provider
	nextID    int
	createErr error
}

func newFakeProviderRepo() *fakeProviderRepo {
	return &fakeProviderRepo{providers: map[int]*model.Provider{}}
}

func (r *fakeProviderRepo) Create(_ context.Context, p *model.Provider) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	c := *p
	r.providers[c.ID] = &c
	return c.ID, nil
}

func (r *fakeProviderRepo) GetByID(_ context.Context, userID, id int) (*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *fakeProviderRepo) ListByUser(_ context.Context, userID int) ([]*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Provider{}
	for _, p := range r.providers {
		if p.UserID == userID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeProviderRepo) Update(_ context.Context, p *model.Provider) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.providers[p.ID]
	if !ok || cur.UserID != p.UserID {
		return false, nil
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now()
	c := *p
	r.providers[p.ID] = &c
	return true, nil
}

func (r *fakeProviderRepo) Delete(_ context.Context, userID, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(r.providers, id)
	return true, nil
}

type fakeCallRepo struct {
	mu    sync.Mutex
	calls []*model.CallRecord
}

func (r *fakeCallRepo) Create(ctx context.Context, call *model.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *call
	r.calls = append(r.calls, &c)
	return nil
}

func (r *fakeCallRepo) ListByUser(_ context.Context, userID int, limit int) ([]*model.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.CallRecord{}
	for i := len(r.calls) - 1; i >= 0 && len(out) < limit; i-- {
		if r.calls[i].UserID == userID {
			out = append(out, r.calls[i])
		}
	}
	return out, nil
}

func (r *fakeCallRepo) all() []*model.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.CallRecord(nil), r.calls...)
}
