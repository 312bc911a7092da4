// Package database opens the SQLite database shared by the state repository
// and the event history, applying pragmas and the schema.
package database
