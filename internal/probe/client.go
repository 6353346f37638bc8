package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Client defaults.
const (
	defaultTimeout     = 5 * time.Second
	defaultUserAgent   = "Mozilla"
	defaultPath        = "/"
	defaultMaxBodySize = 1024 * 1024
)

// headerTerminator separates the HTTP header block from the body.
var headerTerminator = []byte("\r\n\r\n")

// DialFunc opens the transport connection for an exchange.
// It has the signature of net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client performs single-shot HTTP/1.1 GET exchanges with the reference
// service over TLS. The TCP endpoint is chosen per call, while the TLS
// server name and Host header always name the reference host.
type Client struct {
	// host is the ASCII reference hostname.
	host string

	// path is the request path.
	path string

	// userAgent is sent in the User-Agent header.
	userAgent string

	// timeout caps dial, handshake, write and read of one exchange.
	timeout time.Duration

	// maxBodySize limits the buffered response size.
	maxBodySize int64

	// rootCAs overrides the system roots when set.
	rootCAs *x509.CertPool

	// dial opens TCP connections.
	dial DialFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPath sets the request path.
func WithPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-exchange deadline.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxBodySize sets the maximum number of response bytes buffered.
func WithMaxBodySize(size int64) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithRootCAs sets the certificate pool used to verify the reference host.
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(c *Client) {
		c.rootCAs = pool
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) ClientOption {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// NewClient creates a Client for the given reference host.
// The host must already be in ASCII form.
func NewClient(host string, opts ...ClientOption) *Client {
	c := &Client{
		host:        host,
		path:        defaultPath,
		userAgent:   defaultUserAgent,
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
		dial:        (&net.Dialer{}).DialContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch connects to address, performs the TLS handshake against the
// reference host, sends the request and returns the response body.
//
// Errors wrap ErrTimeout, ErrConnection or ErrDecode. A response without
// a header/body separator yields an empty body and a nil error; the caller
// detects that when decoding.
func (c *Client) Fetch(ctx context.Context, address string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.dial(ctx, "tcp", address)
	if err != nil {
		return nil, transportError("dial "+address, err)
	}
	defer raw.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := raw.SetDeadline(deadline); err != nil {
			return nil, transportError("set deadline", err)
		}
	}

	conn := tls.Client(raw, c.tlsConfig())
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, transportError("tls handshake via "+address, err)
	}

	if _, err := io.WriteString(conn, c.request()); err != nil {
		return nil, transportError("write request", err)
	}

	response, err := c.readResponse(conn)
	if err != nil {
		return nil, err
	}

	return extractBody(response), nil
}

// tlsConfig returns the client TLS configuration for one connection.
func (c *Client) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName: c.host,
		RootCAs:    c.rootCAs,
		MinVersion: tls.VersionTLS12,
	}
}

// request returns the raw HTTP/1.1 request.
func (c *Client) request() string {
	return fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nUser-Agent: %s\r\nConnection: close\r\n\r\n",
		c.path, c.host, c.userAgent)
}

// readResponse reads until the peer closes the stream.
func (c *Client) readResponse(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, c.maxBodySize+1)
	response, err := io.ReadAll(limited)
	if err != nil {
		// A peer that drops TCP without close_notify after a complete
		// response still counts as a finished exchange.
		if !(errors.Is(err, io.ErrUnexpectedEOF) && len(response) > 0) {
			return nil, transportError("read response", err)
		}
	}

	if int64(len(response)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrDecode, c.maxBodySize)
	}

	return response, nil
}

// extractBody returns everything after the first blank line, or nil when
// the response has no header terminator.
func extractBody(response []byte) []byte {
	_, body, found := bytes.Cut(response, headerTerminator)
	if !found {
		return nil
	}
	return body
}

// transportError wraps err as ErrTimeout or ErrConnection.
func transportError(op string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}
