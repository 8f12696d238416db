package logger

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	output     io.Writer
	level      slog.Leveler
	extractors []ContextExtractor
	sentry     *SentryConfig
}

// Option configures the logger built by New.
type Option func(*config)

// WithLevel sets the minimum level emitted. Default: slog.LevelInfo.
func WithLevel(level slog.Leveler) Option {
	return func(c *config) { c.level = level }
}

// WithOutput redirects log output. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithExtractors registers context extractors applied to every record.
func WithExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) { c.extractors = append(c.extractors, extractors...) }
}

// WithSentry mirrors warnings and errors to Sentry in addition to the
// primary output. A config with an empty DSN is ignored, so the same
// call site works in development without a Sentry project.
func WithSentry(cfg SentryConfig) Option {
	return func(c *config) { c.sentry = &cfg }
}

// New creates a JSON logger writing to stdout, decorated with any
// configured context extractors and Sentry mirroring.
func New(opts ...Option) *slog.Logger {
	cfg := &config{output: os.Stdout, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(cfg)
	}

	var handler slog.Handler = slog.NewJSONHandler(cfg.output, &slog.HandlerOptions{
		Level: cfg.level,
	})

	if cfg.sentry != nil {
		if sh, ok := newSentryHandler(*cfg.sentry); ok {
			handler = newMultiHandler(handler, sh)
		}
	}

	return slog.New(NewLogHandlerDecorator(handler, cfg.extractors...))
}

// NewNope creates a logger that discards everything. Useful as a default
// when a component's logger is optional.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
