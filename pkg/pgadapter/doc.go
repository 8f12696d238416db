// Package pgadapter wires a pgpool.Pool into an HTTP request lifecycle.
//
// Middleware lends a single connection to each request on first use and
// returns it to the pool when the handler finishes. A connection is
// discarded rather than recycled if the handler panics, the same way
// pgpool.Pool already discards connections left mid-transaction.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Use(pgadapter.Middleware(pool))
//	r.Get("/widgets", func(w http.ResponseWriter, r *http.Request) {
//		conn, err := pgadapter.FromContext(r.Context())
//		...
//	})
package pgadapter
