package resilient

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/mapping"
)

// ResponseCache keeps successful GET responses for a fixed TTL. Entries are
// stored before the mapping is applied and every hit is mapped again, so
// calls with different mappings share one entry and never alias each
// other's data.
type ResponseCache struct {
	store *cache.Cache
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: cache.New(ttl, 2*ttl)}
}

// Wrap returns a Caller backed by the cache. scope separates callers that
// share the store, e.g. one per provider configuration.
func (rc *ResponseCache) Wrap(next Caller, scope string) Caller {
	return &cached{next: next, store: rc.store, scope: scope}
}

// Len reports the number of entries, including expired ones not yet purged.
func (rc *ResponseCache) Len() int {
	return rc.store.ItemCount()
}

// Cache wraps next with a private ResponseCache. A non-positive ttl disables it.
func Cache(next Caller, ttl time.Duration) Caller {
	if ttl <= 0 {
		return next
	}
	return NewResponseCache(ttl).Wrap(next, "")
}

type cached struct {
	next  Caller
	store *cache.Cache
	scope string
}

func (c *cached) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	if !strings.EqualFold(req.Method, http.MethodGet) {
		return c.next.Do(ctx, req)
	}

	key := c.scope + "\x00" + cacheKey(req)
	if v, ok := c.store.Get(key); ok {
		return present(v.(*client.Response), req.Mapping)
	}

	raw := *req
	raw.Mapping = nil
	resp, err := c.next.Do(ctx, &raw)
	if err != nil {
		return nil, err
	}
	if resp.Status >= http.StatusBadRequest {
		return resp, nil
	}
	c.store.SetDefault(key, resp)
	return present(resp, req.Mapping)
}

// present returns a copy of resp with spec applied to its body.
func present(resp *client.Response, spec mapping.Spec) (*client.Response, error) {
	data, err := mapping.Map(resp.Data, spec)
	if err != nil {
		return nil, err
	}
	out := *resp
	out.Data = data
	out.Headers = make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		out.Headers[k] = v
	}
	return &out, nil
}

func cacheKey(req *client.Request) string {
	var b strings.Builder
	b.WriteString(http.MethodGet)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	for _, q := range req.Query {
		b.WriteString("\x00q:")
		b.WriteString(q.Key)
		b.WriteByte('=')
		b.WriteString(q.Value)
	}
	names := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteString("\x00h:")
		b.WriteString(http.CanonicalHeaderKey(k))
		b.WriteByte('=')
		b.WriteString(req.Headers[k])
	}
	return b.String()
}
