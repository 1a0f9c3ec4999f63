package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/config"
	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/mapping"
	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/repository"
)

const pgUniqueViolation = "23505"

type providerService struct {
	repo         repository.IProviderRepository
	presets      []config.Preset
	presetByID   map[string]config.Preset
	exec         client.Executor
	logger       zerolog.Logger
	allowPrivate bool
	lookupIP     func(host string) ([]net.IP, error)
}

// NewProviderService builds the provider registry. exec is shared by every
// client the service hands out.
func NewProviderService(repo repository.IProviderRepository, presets []config.Preset, exec client.Executor, logger zerolog.Logger, allowPrivate bool) IProviderService {
	byID := make(map[string]config.Preset, len(presets))
	for _, p := range presets {
		byID[p.ID] = p
	}
	return &providerService{
		repo:         repo,
		presets:      presets,
		presetByID:   byID,
		exec:         exec,
		logger:       logger,
		allowPrivate: allowPrivate,
		lookupIP:     net.LookupIP,
	}
}

func (s *providerService) Presets() []config.Preset {
	return s.presets
}

func (s *providerService) Create(ctx context.Context, userID int, req *model.DTOProviderRequest) (*model.Provider, error) {
	p, err := s.build(req)
	if err != nil {
		return nil, err
	}
	p.UserID = userID

	id, err := s.repo.Create(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: provider %q", ErrConflict, p.Name)
		}
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	p.ID = id

	s.logger.Info().Int("user_id", userID).Int("provider_id", id).Str("preset", p.PresetID).Msg("provider created")
	return p, nil
}

func (s *providerService) Get(ctx context.Context, userID, id int) (*model.Provider, error) {
	p, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: provider %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *providerService) List(ctx context.Context, userID int) ([]*model.Provider, error) {
	providers, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

// Update replaces a provider. An empty credential keeps the stored one.
func (s *providerService) Update(ctx context.Context, userID, id int, req *model.DTOProviderRequest) (*model.Provider, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Credential == "" {
		withCredential := *req
		withCredential.Credential = current.Credential
		req = &withCredential
	}

	p, err := s.build(req)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.UserID = userID
	p.CreatedAt = current.CreatedAt

	ok, err := s.repo.Update(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: provider %q", ErrConflict, p.Name)
		}
		return nil, fmt.Errorf("failed to update provider: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: provider %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *providerService) Delete(ctx context.Context, userID, id int) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: provider %d", ErrNotFound, id)
	}
	return nil
}

// ClientFor builds a client from the stored configuration. Clients are
// cheap; a new one is built for every call so updates apply immediately.
func (s *providerService) ClientFor(p *model.Provider) (*client.Client, error) {
	return client.New(clientConfig(p),
		client.WithExecutor(s.exec),
		client.WithLogger(s.logger.With().Int("provider_id", p.ID).Logger()),
	)
}

// build merges req over its preset and validates the result.
func (s *providerService) build(req *model.DTOProviderRequest) (*model.Provider, error) {
	p := &model.Provider{
		Name:           strings.TrimSpace(req.Name),
		PresetID:       req.PresetID,
		DefaultHeaders: map[string]string{},
	}

	if req.PresetID != "" {
		preset, ok := s.presetByID[req.PresetID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidInput, req.PresetID)
		}
		p.BaseURL = preset.BaseURL
		p.AuthType = string(preset.AuthType)
		p.AuthHeader = preset.AuthHeader
		p.TimeoutMs = int(preset.Timeout / time.Millisecond)
		p.DefaultPath = preset.Path
		for k, v := range preset.DefaultHeaders {
			p.DefaultHeaders[k] = v
		}
		if preset.Mapping != nil {
			doc, err := json.Marshal(preset.Mapping)
			if err != nil {
				return nil, fmt.Errorf("preset %q: failed to encode mapping: %w", preset.ID, err)
			}
			p.Mapping = doc
		}
	}

	if req.BaseURL != "" {
		p.BaseURL = req.BaseURL
	}
	if req.AuthType != "" {
		p.AuthType = req.AuthType
	}
	if p.AuthType == "" {
		p.AuthType = string(client.AuthNone)
	}
	if req.AuthHeader != "" {
		p.AuthHeader = req.AuthHeader
	}
	if req.TimeoutMs > 0 {
		p.TimeoutMs = req.TimeoutMs
	}
	if req.DefaultPath != "" {
		p.DefaultPath = req.DefaultPath
	}
	for k, v := range req.DefaultHeaders {
		p.DefaultHeaders[k] = v
	}
	if len(req.Mapping) > 0 && string(req.Mapping) != "null" {
		p.Mapping = req.Mapping
	}
	p.Credential = req.Credential

	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	cfg := clientConfig(p)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(p.Mapping) > 0 {
		if _, err := mapping.ParseSpecJSON(p.Mapping); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if err := s.checkTarget(p.BaseURL); err != nil {
		return nil, err
	}
	return p, nil
}

// checkTarget rejects base URLs that resolve to private addresses when the
// provider is saved. The executor repeats the check on every dial.
func (s *providerService) checkTarget(baseURL string) error {
	if s.allowPrivate {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: failed to parse base_url: %v", ErrInvalidInput, err)
	}
	host := u.Hostname()
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		ips, err = s.lookupIP(host)
		if err != nil {
			return fmt.Errorf("%w: could not resolve hostname: %v", ErrInvalidInput, err)
		}
	}
	for _, ip := range ips {
		if executor.IsPrivateIP(ip) {
			return fmt.Errorf("%w: providers on private IP addresses are not allowed", ErrInvalidInput)
		}
	}
	return nil
}

func clientConfig(p *model.Provider) client.Config {
	cfg := client.Config{
		BaseURL:        p.BaseURL,
		Timeout:        time.Duration(p.TimeoutMs) * time.Millisecond,
		DefaultHeaders: p.DefaultHeaders,
		Auth:           client.Auth{Type: client.AuthType(p.AuthType)},
	}
	switch cfg.Auth.Type {
	case client.AuthBearer:
		cfg.Auth.Token = p.Credential
	case client.AuthAPIKey:
		cfg.Auth.Key = p.Credential
		cfg.Auth.HeaderName = p.AuthHeader
	case client.AuthZhipu:
		cfg.Auth.Key = p.Credential
	}
	return cfg
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
