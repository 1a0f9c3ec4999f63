package resilient

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/suar-net/apios/internal/client"
)

type throttled struct {
	next    Caller
	limiter *rate.Limiter
}

// Throttle waits for limiter before every call. A nil limiter disables it.
func Throttle(next Caller, limiter *rate.Limiter) Caller {
	if limiter == nil {
		return next
	}
	return &throttled{next: next, limiter: limiter}
}

func (t *throttled) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Do(ctx, req)
}
