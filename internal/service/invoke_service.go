package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/mapping"
	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/repository"
	"github.com/suar-net/apios/internal/resilient"
)

// Headers callers may not forward to providers.
var blockedHeaders = map[string]bool{
	"Cookie":              true,
	"Proxy-Authorization": true,
	"X-Forwarded-For":     true,
	"Host":                true,
}

// InvokeConfig tunes the invoke pipeline.
type InvokeConfig struct {
	HistoryLimit int
	// CacheTTL enables the GET response cache when positive.
	CacheTTL time.Duration
	// RateLimit is the per-provider call rate. Zero disables throttling.
	RateLimit float64
	RateBurst int
}

type invokeService struct {
	providers IProviderService
	calls     repository.ICallRepository
	logger    zerolog.Logger
	cfg       InvokeConfig
	cache     *resilient.ResponseCache

	mu       sync.Mutex
	limiters map[int]*rate.Limiter
}

func NewInvokeService(providers IProviderService, calls repository.ICallRepository, logger zerolog.Logger, cfg InvokeConfig) IInvokeService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	s := &invokeService{
		providers: providers,
		calls:     calls,
		logger:    logger,
		cfg:       cfg,
		limiters:  make(map[int]*rate.Limiter),
	}
	if cfg.CacheTTL > 0 {
		s.cache = resilient.NewResponseCache(cfg.CacheTTL)
	}
	return s
}

func (s *invokeService) Invoke(ctx context.Context, userID, providerID int, req *model.DTOInvokeRequest) (*model.DTOInvokeResponse, error) {
	p, err := s.providers.Get(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}

	spec, err := resolveMapping(p, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c, err := s.providers.ClientFor(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	callReq := buildRequest(p, req, spec)
	caller := s.pipeline(c, p, req.Retries)

	start := time.Now()
	resp, err := caller.Do(ctx, callReq)
	elapsed := time.Since(start)

	record := &model.CallRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ProviderID: p.ID,
		Method:     callReq.Method,
		Path:       callReq.Path,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	if err != nil {
		record.ErrorKind = ErrorKind(err)
		record.Error = err.Error()
		if status := client.StatusOf(err); status != 0 {
			record.Status = &status
		}
	} else {
		record.Status = &resp.Status
	}
	s.record(ctx, record)

	log := s.logger.With().
		Str("call_id", record.ID.String()).
		Int("provider_id", p.ID).
		Str("method", callReq.Method).
		Str("path", callReq.Path).
		Dur("duration", elapsed).
		Logger()
	if err != nil {
		log.Warn().Err(err).Str("error_kind", record.ErrorKind).Msg("provider call failed")
		return nil, err
	}
	log.Info().Int("status", resp.Status).Msg("provider call completed")

	return &model.DTOInvokeResponse{
		CallID:     record.ID.String(),
		Status:     resp.Status,
		Headers:    resp.Headers,
		Data:       resp.Data,
		Duration:   elapsed,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

func (s *invokeService) History(ctx context.Context, userID int) ([]*model.CallRecord, error) {
	calls, err := s.calls.ListByUser(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return calls, nil
}

// pipeline layers the optional decorators: cache, then retry, then throttle.
// Throttle sits innermost so every retry attempt waits for a token.
func (s *invokeService) pipeline(c *client.Client, p *model.Provider, retries int) resilient.Caller {
	var caller resilient.Caller = c
	if limiter := s.limiter(p.ID); limiter != nil {
		caller = resilient.Throttle(caller, limiter)
	}
	if retries > 0 {
		caller = resilient.Retry(caller, resilient.RetryConfig{
			MaxAttempts: retries + 1,
			Logger:      s.logger,
		})
	}
	if s.cache != nil {
		scope := strconv.Itoa(p.ID) + "@" + strconv.FormatInt(p.UpdatedAt.UnixNano(), 10)
		caller = s.cache.Wrap(caller, scope)
	}
	return caller
}

func (s *invokeService) limiter(providerID int) *rate.Limiter {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[providerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
		s.limiters[providerID] = l
	}
	return l
}

// record persists a call without the request's cancellation, so aborted
// calls still show up in the history.
func (s *invokeService) record(ctx context.Context, rec *model.CallRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.calls.Create(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("call_id", rec.ID.String()).Msg("failed to record call")
	}
}

func resolveMapping(p *model.Provider, req *model.DTOInvokeRequest) (mapping.Spec, error) {
	switch {
	case req.Raw:
		return nil, nil
	case len(req.Mapping) > 0 && string(req.Mapping) != "null":
		return mapping.ParseSpecJSON(req.Mapping)
	case strings.TrimSpace(req.MappingYAML) != "":
		return mapping.ParseSpecYAML([]byte(req.MappingYAML))
	case len(p.Mapping) > 0:
		return mapping.ParseSpecJSON(p.Mapping)
	}
	return nil, nil
}

func buildRequest(p *model.Provider, req *model.DTOInvokeRequest, spec mapping.Spec) *client.Request {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
		if len(req.Body) > 0 {
			method = http.MethodPost
		}
	}
	path := req.Path
	if path == "" {
		path = p.DefaultPath
	}

	callReq := &client.Request{
		Method: method,
		Path:   path,
		Options: client.Options{
			Mapping:           spec,
			Timeout:           time.Duration(req.TimeoutMs) * time.Millisecond,
			AcceptErrorStatus: req.AcceptErrorStatus,
		},
	}
	if len(req.Body) > 0 {
		callReq.Body = json.RawMessage(req.Body)
	}
	for _, q := range req.Query {
		callReq.Query = append(callReq.Query, client.QueryParam{Key: q.Key, Value: q.Value})
	}
	if len(req.Headers) > 0 {
		callReq.Headers = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			if !blockedHeaders[http.CanonicalHeaderKey(k)] {
				callReq.Headers[k] = v
			}
		}
	}
	return callReq
}

// ErrorKind classifies err for the call history.
func ErrorKind(err error) string {
	var (
		apiErr     *client.ApiError
		mappingErr *client.MappingError
	)
	switch {
	case err == nil:
		return model.CallErrorNone
	case client.IsTimeout(err):
		return model.CallErrorTimeout
	case client.IsNetwork(err):
		return model.CallErrorNetwork
	case errors.As(err, &apiErr):
		return model.CallErrorAPI
	case errors.As(err, &mappingErr):
		return model.CallErrorMapping
	case errors.Is(err, client.ErrInvalidRequest), errors.Is(err, ErrInvalidInput):
		return model.CallErrorInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.CallErrorCanceled
	}
	return model.CallErrorInternal
}
