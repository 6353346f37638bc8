package probe

import (
	"context"
	"errors"
	"net"

	"github.com/nao1215/proxyscan/internal/model"
)

// Probe failures. Every failure is scoped to a single candidate.
var (
	// ErrConnection is returned when the TCP connection or TLS handshake fails.
	// A candidate that is not a valid relay typically fails here.
	ErrConnection = errors.New("connection failed")

	// ErrTimeout is returned when the exchange exceeds the configured deadline.
	ErrTimeout = errors.New("timeout")

	// ErrDecode is returned when a response body is not a JSON object.
	ErrDecode = errors.New("malformed response body")

	// ErrNotProxy is the negative classification: the relay answered, but
	// the reference service saw no IP or the caller's own IP.
	ErrNotProxy = model.ErrNotProxy

	// ErrReferenceIP is returned when the caller's own IP could not be resolved.
	ErrReferenceIP = errors.New("reference ip resolution failed")
)

// Classify maps a probe error to a failure kind for statistics.
func Classify(err error) model.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReferenceIP):
		return model.FailureReference
	case errors.Is(err, ErrTimeout):
		return model.FailureTimeout
	case errors.Is(err, ErrConnection):
		return model.FailureConnection
	case errors.Is(err, ErrDecode):
		return model.FailureDecode
	case errors.Is(err, ErrNotProxy):
		return model.FailureNegative
	default:
		return model.FailureUnknown
	}
}

// isTimeout reports whether err is a deadline expiry from the context or
// from a connection deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
