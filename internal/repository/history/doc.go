// Package history keeps an append-only log of panel state changes in SQLite.
package history
