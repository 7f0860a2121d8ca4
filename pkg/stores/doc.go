// Package stores persists cook history for cookbridge.
// It provides a SQLite store with WAL mode and embedded migrations that records
// every cook of an asset instance and every asset state transition.
package stores
