package probe

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/proxyscan/internal/model"
)

// testReferenceHost is a name covered by the httptest server certificate.
const testReferenceHost = "example.com"

// newEchoServer starts a TLS server that answers every request with body.
func newEchoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// certPool returns a pool trusting the httptest certificate.
func certPool(srv *httptest.Server) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return pool
}

// routingDialer dials reference for "example.com:443" and address as-is otherwise.
func routingDialer(reference string) DialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if address == net.JoinHostPort(testReferenceHost, "443") {
			address = reference
		}
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}
}

// newTestClient creates a Client trusting srv and routing the reference
// host to reference.
func newTestClient(srv *httptest.Server, reference string, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithRootCAs(certPool(srv)),
		WithDialer(routingDialer(reference)),
		WithTimeout(2 * time.Second),
	}
	return NewClient(testReferenceHost, append(base, opts...)...)
}

// candidateFor returns a candidate pointing at srv.
func candidateFor(t *testing.T, srv *httptest.Server, country string) model.Candidate {
	t.Helper()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split listener address: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	return model.Candidate{Address: host, Port: uint16(port), Country: country, Org: "Test+Org"}
}

// closedAddress returns an address with nothing listening on it.
func closedAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// silentListener accepts connections and never writes to them.
func silentListener(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	return l.Addr().String()
}
