package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/wire"
)

// DefaultLimit is used by List when the caller passes a non-positive limit.
const DefaultLimit = 50

// Record is a stored event with its identifier.
type Record struct {
	ID    string
	Event notify.Event
}

// Store appends events to the events table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps a database opened with database.Open.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: time.Now,
	}
}

// Append stores the event and returns its generated identifier.
func (s *Store) Append(ctx context.Context, event notify.Event) (string, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	id := uuid.NewString()

	payload, err := protojson.Marshal(wire.EventToStruct(id, event))
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (id, kind, payload, created_at) VALUES (?, ?, ?, ?)",
		id, string(event.Kind), string(payload), event.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	return id, nil
}

// List returns up to limit most recent events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM events ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]Record, 0, limit)

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		var doc structpb.Struct
		if err = protojson.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		id, event, err := wire.EventFromStruct(&doc)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		records = append(records, Record{ID: id, Event: event})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return records, nil
}

// Observer returns an engine observer that appends every change.
// Failures are logged; the engine never sees them.
func (s *Store) Observer(ctx context.Context) notify.Observer {
	return notify.Sink(func(event notify.Event) {
		if _, err := s.Append(ctx, event); err != nil {
			logger.ErrorKV(ctx, "Failed to record event", "kind", event.Kind, "error", err)
		}
	})
}
