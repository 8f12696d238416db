// Package logger builds the log/slog loggers the rest of the module
// shares: JSON records, context-extracted attributes, and an optional
// Sentry mirror for warnings and errors.
//
// # Usage
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithExtractors(pgadapter.RequestIDExtractor()),
//		logger.WithSentry(logger.SentryConfig{DSN: os.Getenv("SENTRY_DSN")}),
//	)
//
//	log.InfoContext(ctx, "plan applied", slog.Int("steps", len(plan.Steps)))
//
// Extractors run per log call, so request-scoped values like the id
// pgadapter.Middleware attaches appear on every record made under that
// request's context. With an empty Sentry DSN the logger degrades to
// stdout only, so the same construction works in development.
package logger
