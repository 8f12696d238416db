package pgadapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/pgadapter"
)

func TestFromContext_WithoutMiddleware(t *testing.T) {
	_, err := pgadapter.FromContext(context.Background())
	require.ErrorIs(t, err, pgadapter.ErrNoConnection)
}

func TestRequestID_WithoutMiddleware(t *testing.T) {
	assert.Equal(t, "", pgadapter.RequestID(context.Background()))
}

func TestMiddleware_AttachesRequestID(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(pgadapter.Middleware(nil))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		seen = pgadapter.RequestID(req.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
}

func TestMiddleware_NoConnectionLeasedUntilFirstUse(t *testing.T) {
	// A handler that never calls FromContext should never touch the
	// (nil) pool, proving the lease is lazy.
	r := chi.NewRouter()
	r.Use(pgadapter.Middleware(nil))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotPanics(t, func() { r.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
