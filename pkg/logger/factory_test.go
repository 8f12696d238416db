package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/logger"
)

type ctxKey struct{}

func TestNew_ExtractorInjectsContextAttr(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithExtractors(func(ctx context.Context) (slog.Attr, bool) {
			if id, ok := ctx.Value(ctxKey{}).(string); ok {
				return slog.String("request_id", id), true
			}
			return slog.Attr{}, false
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "abc-123")
	log.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "abc-123", record["request_id"])
}

func TestNew_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNew_EmptySentryDSNFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithSentry(logger.SentryConfig{DSN: ""}),
	)

	log.Error("still works")
	assert.Contains(t, buf.String(), "still works")
}

func TestNewNope_Discards(t *testing.T) {
	assert.NotPanics(t, func() { logger.NewNope().Error("dropped") })
}
