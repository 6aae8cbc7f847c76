// Package log provides structured logging (slog) for the toolkit.
//
// The handler produced here redacts credential material: probe code logs
// usernames and attempt counters freely, but passwords and encoded auth
// payloads never reach the log stream.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// redactedKeys are attribute keys whose values are replaced before a record
// is written. Keep this list in sync with the attribute names used by the
// smtp prober.
var redactedKeys = map[string]bool{
	"password": true,
	"payload":  true,
	"secret":   true,
}

// redactedValue replaces the value of any redacted attribute.
const redactedValue = "[redacted]"

// HandlerOption configures the handler built by NewHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	out       io.Writer
	level     slog.Level
	addSource bool
	json      bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		out:   os.Stderr,
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithOutput sets the destination writer. Default is stderr.
func WithOutput(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// WithJSON switches the output encoding from text to JSON.
func WithJSON(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.json = enabled
	}
}

// NewHandler creates a redacting slog.Handler with the given options.
func NewHandler(opts ...HandlerOption) slog.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{
		Level:       cfg.level,
		AddSource:   cfg.addSource,
		ReplaceAttr: redactAttr,
	}

	var inner slog.Handler
	if cfg.json {
		inner = slog.NewJSONHandler(cfg.out, hopts)
	} else {
		inner = slog.NewTextHandler(cfg.out, hopts)
	}
	return &redactingHandler{inner: inner}
}

// NewLogger creates a *slog.Logger backed by NewHandler.
func NewLogger(opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[a.Key] {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// redactingHandler also scrubs attributes attached via Logger.With, which
// bypass ReplaceAttr resolution order in some handler implementations.
type redactingHandler struct {
	inner slog.Handler
}

// Enabled reports whether the handler handles records at the given level.
func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle passes the record through to the encoding handler.
func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.inner.Handle(ctx, record)
}

// WithAttrs returns a new handler with the given (scrubbed) attributes.
func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if redactedKeys[a.Key] {
			a = slog.String(a.Key, redactedValue)
		}
		scrubbed = append(scrubbed, a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(scrubbed)}
}

// WithGroup returns a new handler with the given group name.
func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name)}
}
