package service

import (
	"context"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/config"
	"github.com/suar-net/apios/internal/model"
)

type IAuthService interface {
	Register(ctx context.Context, userReg *model.DTOUserRegisterRequest) (*model.User, error)
	Login(ctx context.Context, userLog *model.DTOLoginRequest) (*model.DTOLoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*model.Claims, error)
}

type IProviderService interface {
	Presets() []config.Preset
	Create(ctx context.Context, userID int, req *model.DTOProviderRequest) (*model.Provider, error)
	Get(ctx context.Context, userID, id int) (*model.Provider, error)
	List(ctx context.Context, userID int) ([]*model.Provider, error)
	Update(ctx context.Context, userID, id int, req *model.DTOProviderRequest) (*model.Provider, error)
	Delete(ctx context.Context, userID, id int) error
	ClientFor(p *model.Provider) (*client.Client, error)
}

type IInvokeService interface {
	Invoke(ctx context.Context, userID, providerID int, req *model.DTOInvokeRequest) (*model.DTOInvokeResponse, error)
	History(ctx context.Context, userID int) ([]*model.CallRecord, error)
}

// Predictor estimates provider behaviour, e.g. expected latency or failure
// probability, from recorded history. No implementation ships with the
// gateway; callers that need one inject it.
type Predictor interface {
	Predict(ctx context.Context, providerID int, history []*model.CallRecord) (Prediction, error)
}

type Prediction struct {
	ExpectedLatencyMs float64 `json:"expected_latency_ms"`
	FailureRate       float64 `json:"failure_rate"`
}
