package resilient

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/client"
)

var retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "apios_resilient",
	Name:      "retries_total",
	Help:      "Provider calls repeated after a retryable failure.",
})

// RetryConfig controls Retry. Zero values fall back to the defaults below.
type RetryConfig struct {
	// MaxAttempts counts the first call. 1 disables retrying.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          zerolog.Logger
}

const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

type retrier struct {
	next Caller
	cfg  RetryConfig
}

// Retry repeats calls that fail with a retryable error (timeouts, network
// failures, 408, 429 and 5xx) using exponential backoff. Other errors and
// context cancellation end the loop immediately.
func Retry(next Caller, cfg RetryConfig) Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	return &retrier{next: next, cfg: cfg}
}

func (r *retrier) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.cfg.InitialInterval
	exp.Multiplier = 2
	exp.MaxInterval = r.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.cfg.MaxAttempts-1)), ctx)

	var resp *client.Response
	attempt := 0
	op := func() error {
		attempt++
		res, err := r.next.Do(ctx, req)
		if err == nil {
			resp = res
			return nil
		}
		if !client.IsRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.Inc()
		r.cfg.Logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying provider call")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}
