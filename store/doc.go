// Package store persists personas and session records. The sqlite-backed DB
// is the production path; Memory serves tests and zero-configuration runs.
// Query helpers are package-level functions over narrow Querier/Execer
// interfaces so they work against both *sql.DB and *sql.Tx.
package store
