package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// sensitiveKeys contains attribute keys that should always be sanitized.
var sensitiveKeys = map[string]bool{
	"own_ip":              true,
	"ownip":               true,
	"my_ip":               true,
	"reference_ip":        true,
	"caller_ip":           true,
	"authorization":       true,
	"proxy-authorization": true,
	"password":            true,
	"token":               true,
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// Redactor holds values that must never appear in log output.
// It is safe for concurrent use; values can be added after the logger
// has been created.
type Redactor struct {
	mu     sync.RWMutex
	values []string
}

// NewRedactor creates an empty Redactor.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Add registers a value to be masked. Empty and duplicate values are ignored.
func (r *Redactor) Add(value string) {
	if r == nil || value == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.values {
		if v == value {
			return
		}
	}
	r.values = append(r.values, value)
}

// Redact replaces every registered value in s with MaskValue.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.values {
		if strings.Contains(s, v) {
			s = strings.ReplaceAll(s, v, MaskValue)
		}
	}
	return s
}

// SecureHandler wraps an slog.Handler to sanitize sensitive information.
// It masks attributes by key name and by registered value before passing
// records to the underlying handler.
type SecureHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler

	// redactor holds runtime-registered values; may be nil.
	redactor *Redactor
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler, redactor *Redactor) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler, redactor: redactor}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.redactor.Redact(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs), redactor: h.redactor}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), redactor: h.redactor}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); h.redactor.Redact(s) != s {
			return slog.String(a.Key, h.redactor.Redact(s))
		}
	case slog.KindAny:
		// Errors frequently embed addresses (e.g. "dial tcp 1.2.3.4:443: ...").
		if err, ok := a.Value.Any().(error); ok {
			if s := err.Error(); h.redactor.Redact(s) != s {
				return slog.String(a.Key, h.redactor.Redact(s))
			}
		}
	}

	return a
}

// NewSecureLogger creates a new text slog.Logger with secure handling.
// verbose selects Debug level; otherwise only warnings and errors are logged.
// redactor may be nil.
func NewSecureLogger(w io.Writer, verbose bool, redactor *Redactor) *slog.Logger {
	textHandler := slog.NewTextHandler(w, handlerOptions(verbose))
	return slog.New(NewSecureHandler(textHandler, redactor))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool, redactor *Redactor) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, handlerOptions(verbose))
	return slog.New(NewSecureHandler(jsonHandler, redactor))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
