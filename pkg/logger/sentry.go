package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig configures the optional Sentry mirror attached by
// WithSentry.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// ErrorsOnly restricts the mirrored log stream to errors; by default
	// warnings are mirrored too. Errors always create Sentry issues.
	ErrorsOnly bool
}

// newSentryHandler initializes the Sentry SDK and returns a handler that
// mirrors records to it. Returns ok=false when the DSN is empty or the
// SDK fails to initialize, in which case the caller keeps its primary
// handler alone.
func newSentryHandler(cfg SentryConfig) (slog.Handler, bool) {
	if cfg.DSN == "" {
		return nil, false
	}

	env := cfg.Environment
	if env == "" {
		env = "production"
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: env,
		EnableLogs:  true,
	}); err != nil {
		slog.Error("logger: sentry init failed, continuing without it", slog.String("error", err.Error()))
		return nil, false
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.ErrorsOnly {
		logLevel = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background()), true
}
