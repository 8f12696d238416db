package pgadapter

import (
	"context"
	"log/slog"

	"github.com/quasar-media/kirameki/pkg/logger"
)

// RequestIDExtractor adapts the correlation id Middleware attaches to
// each request into a logger attribute, so every record logged under a
// request's context carries its id.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := RequestID(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}
