// Package pgtest provisions throwaway PostgreSQL databases for tests.
//
// Given a DSN for an admin connection, it creates a uniquely-named
// database, hands back connection config for it, and drops it again at
// the end of the test.
package pgtest
