package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
)

// CountryLocator looks up the country code of an IP address.
// It is used only when the reference service omits the country.
type CountryLocator interface {
	Country(ip string) (string, error)
}

// Prober classifies candidates as validated relays or not.
type Prober struct {
	// client performs the proxied exchange.
	client *Client

	// resolver provides the caller's own IP.
	resolver *Resolver

	// locator fills in missing countries; may be nil.
	locator CountryLocator

	// logger is used for per-probe debug output.
	logger *slog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithLocator sets the fallback country locator.
func WithLocator(locator CountryLocator) ProberOption {
	return func(p *Prober) {
		p.locator = locator
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a Prober.
func NewProber(client *Client, resolver *Resolver, opts ...ProberOption) *Prober {
	p := &Prober{
		client:   client,
		resolver: resolver,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Probe routes one request to the reference service through the candidate
// and compares the origin IP the service observed with the caller's own IP.
// The own-IP lookup runs concurrently with the proxied exchange.
//
// Probe never returns an error; failures are recorded in the outcome.
func (p *Prober) Probe(ctx context.Context, c model.Candidate) model.ProbeOutcome {
	var (
		wg       sync.WaitGroup
		body     []byte
		delay    time.Duration
		fetchErr error
		ownIP    string
		ownErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		body, fetchErr = p.client.Fetch(ctx, c.HostPort())
		delay = time.Since(start)
	}()
	go func() {
		defer wg.Done()
		ownIP, ownErr = p.resolver.Resolve(ctx)
	}()
	wg.Wait()

	if fetchErr != nil {
		return p.fail(c, fetchErr)
	}
	if ownErr != nil {
		return p.fail(c, ownErr)
	}

	echo, err := decodeEcho(body)
	if err != nil {
		return p.fail(c, err)
	}

	if echo.IP == "" || echo.IP == ownIP {
		return p.fail(c, ErrNotProxy)
	}

	country := echo.Country
	if country == "" && p.locator != nil {
		if cc, err := p.locator.Country(echo.IP); err == nil {
			country = cc
		} else {
			p.logger.Debug("country lookup failed", "ip", echo.IP, "error", err)
		}
	}

	p.logger.Debug("proxy validated",
		"proxy", c.Key(),
		"country", country,
		"delay", delay,
	)

	return model.Success(c, model.ProxyResult{
		Proxy:          c.Address,
		Port:           c.Port,
		IP:             echo.IP,
		Delay:          delay,
		DelayMillis:    delay.Milliseconds(),
		Country:        country,
		ASOrganization: echo.ASOrganization,
	})
}

// fail logs and builds a failed outcome.
func (p *Prober) fail(c model.Candidate, err error) model.ProbeOutcome {
	p.logger.Debug("probe failed",
		"proxy", c.Key(),
		"kind", Classify(err),
		"error", err,
	)
	return model.Failure(c, err)
}
