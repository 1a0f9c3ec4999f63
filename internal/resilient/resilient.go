// Package resilient holds optional decorators around a provider client:
// retry with exponential backoff, client-side rate limiting and a TTL cache
// for GET responses. The client itself never retries.
package resilient

import (
	"context"

	"github.com/suar-net/apios/internal/client"
)

// Caller performs one request. *client.Client satisfies it, as does every
// decorator in this package, so they compose.
type Caller interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, req *client.Request) (*client.Response, error)

func (f CallerFunc) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	return f(ctx, req)
}
