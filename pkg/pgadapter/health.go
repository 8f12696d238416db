package pgadapter

import (
	"github.com/go-chi/chi/v5"

	"github.com/quasar-media/kirameki/pkg/health"
	"github.com/quasar-media/kirameki/pkg/pgpool"
)

// HealthRouter returns a router exposing the pool's probe endpoints:
// GET /live always answers OK, GET /ready borrows a connection from pool
// and pings the database through it.
//
// Mount it wherever the application serves operational endpoints:
//
//	r.Mount("/health", pgadapter.HealthRouter(pool))
func HealthRouter(pool *pgpool.Pool, opts ...health.Option) chi.Router {
	r := chi.NewRouter()
	r.Get("/live", health.LivenessHandler())
	r.Get("/ready", health.ReadinessHandler(health.Checks{
		"postgres": pool.Healthcheck(),
	}, opts...))
	return r
}
