package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ipEcho is the JSON document returned by the reference service.
type ipEcho struct {
	IP             string `json:"ip"`
	Country        string `json:"country"`
	ASOrganization string `json:"asOrganization"`
}

// decodeEcho parses a reference service body.
func decodeEcho(body []byte) (ipEcho, error) {
	var echo ipEcho
	if err := json.Unmarshal(body, &echo); err != nil {
		return ipEcho{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return echo, nil
}

// resolveKey is the single-flight key for the own-IP lookup.
const resolveKey = "own-ip"

// Resolver obtains the caller's own public IP from the reference service
// and memoizes it for the lifetime of the Resolver (one run).
//
// Concurrent callers that arrive before the first lookup completes share
// that lookup. A failed lookup is not cached: the next caller tries again.
type Resolver struct {
	// client performs the direct exchange.
	client *Client

	// address is the reference service "host:port" dialed directly.
	address string

	// onResolve is called once with the resolved IP.
	onResolve func(ip string)

	// logger is used for debug output.
	logger *slog.Logger

	group singleflight.Group

	mu sync.RWMutex
	ip string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOnResolve registers a callback invoked once the IP is known.
func WithOnResolve(fn func(ip string)) ResolverOption {
	return func(r *Resolver) {
		r.onResolve = fn
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver that fetches from address directly.
func NewResolver(client *Client, address string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:  client,
		address: address,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Cached returns the memoized IP, if any.
func (r *Resolver) Cached() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ip, r.ip != ""
}

// Resolve returns the caller's own IP, fetching it at most once per
// successful resolution. Errors wrap ErrReferenceIP.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if ip, ok := r.Cached(); ok {
		return ip, nil
	}

	v, err, _ := r.group.Do(resolveKey, func() (any, error) {
		if ip, ok := r.Cached(); ok {
			return ip, nil
		}
		return r.fetch(ctx)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil //nolint:forcetypeassert // Only strings are returned above
}

// fetch performs the lookup and stores the result.
func (r *Resolver) fetch(ctx context.Context) (string, error) {
	r.logger.Debug("resolving own ip", "address", r.address)

	body, err := r.client.Fetch(ctx, r.address)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReferenceIP, err)
	}

	echo, err := decodeEcho(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReferenceIP, err)
	}
	if echo.IP == "" {
		return "", fmt.Errorf("%w: response has no ip field", ErrReferenceIP)
	}

	r.mu.Lock()
	r.ip = echo.IP
	r.mu.Unlock()

	if r.onResolve != nil {
		r.onResolve(echo.IP)
	}
	r.logger.Debug("own ip resolved", "own_ip", echo.IP)

	return echo.IP, nil
}
