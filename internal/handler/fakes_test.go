package handler

import (
	"context"
	"errors"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/config"
	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/service"
)

const (
	goodToken    = "good-token"
	expiredToken = "expired-token"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type fakeAuthService struct {
	registerErr error
	loginErr    error
}

func (f *fakeAuthService) Register(_ context.Context, req *model.DTOUserRegisterRequest) (*model.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &model.User{ID: 1, FullName: req.FullName, Email: req.Email, PasswordHash: "hash"}, nil
}

func (f *fakeAuthService) Login(context.Context, *model.DTOLoginRequest) (*model.DTOLoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &model.DTOLoginResponse{AccessToken: goodToken, TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (f *fakeAuthService) ValidateToken(_ context.Context, token string) (*model.Claims, error) {
	switch token {
	case goodToken:
		return &model.Claims{ID: 7, Email: "ana@example.com"}, nil
	case expiredToken:
		return nil, service.ErrTokenExpired
	}
	return nil, service.ErrTokenInvalid
}

type fakeProviderService struct {
	providers map[int]*model.Provider
	createErr error
	gotUserID int
}

func newFakeProviderService() *fakeProviderService {
	return &fakeProviderService{providers: map[int]*model.Provider{
		1: {ID: 1, UserID: 7, Name: "zhipu", BaseURL: "https://open.bigmodel.cn/api/paas/v4", AuthType: "zhipu", Credential: "id.secret"},
	}}
}

func (f *fakeProviderService) Presets() []config.Preset {
	return []config.Preset{{ID: "zhipu", Name: "Zhipu GLM"}}
}

func (f *fakeProviderService) Create(_ context.Context, userID int, req *model.DTOProviderRequest) (*model.Provider, error) {
	f.gotUserID = userID
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := &model.Provider{ID: 2, UserID: userID, Name: req.Name, BaseURL: req.BaseURL, AuthType: req.AuthType, Credential: req.Credential}
	f.providers[p.ID] = p
	return p, nil
}

func (f *fakeProviderService) Get(_ context.Context, userID, id int) (*model.Provider, error) {
	p, ok := f.providers[id]
	if !ok || p.UserID != userID {
		return nil, service.ErrNotFound
	}
	return p, nil
}

func (f *fakeProviderService) List(_ context.Context, userID int) ([]*model.Provider, error) {
	var out []*model.Provider
	for _, p := range f.providers {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProviderService) Update(ctx context.Context, userID, id int, req *model.DTOProviderRequest) (*model.Provider, error) {
	p, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p.Name = req.Name
	return p, nil
}

func (f *fakeProviderService) Delete(ctx context.Context, userID, id int) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(f.providers, id)
	return nil
}

func (f *fakeProviderService) ClientFor(*model.Provider) (*client.Client, error) {
	return nil, errors.New("not used")
}

type fakeInvokeService struct {
	resp    *model.DTOInvokeResponse
	err     error
	gotReq  *model.DTOInvokeRequest
	history []*model.CallRecord
}

func (f *fakeInvokeService) Invoke(_ context.Context, _, _ int, req *model.DTOInvokeRequest) (*model.DTOInvokeResponse, error) {
	f.gotReq = req
	return f.resp, f.err
}

func (f *fakeInvokeService) History(context.Context, int) ([]*model.CallRecord, error) {
	return f.history, nil
}
