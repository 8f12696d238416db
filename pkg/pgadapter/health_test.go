package pgadapter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/pgadapter"
	"github.com/quasar-media/kirameki/pkg/pgpool"
)

func TestHealthRouter_LivenessNeedsNoDatabase(t *testing.T) {
	p := pgpool.New(func(ctx context.Context) (*pgx.Conn, error) {
		return nil, errors.New("no database in unit tests")
	})
	t.Cleanup(func() { _ = p.Close() })

	r := pgadapter.HealthRouter(p)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRequestIDExtractor(t *testing.T) {
	ex := pgadapter.RequestIDExtractor()

	_, ok := ex(context.Background())
	assert.False(t, ok, "no attribute outside a request")

	var attrValue string
	handler := pgadapter.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		attr, ok := ex(req.Context())
		require.True(t, ok)
		attrValue = attr.Value.String()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, attrValue)
}
