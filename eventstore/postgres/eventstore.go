// Package postgres implements the event store contract on top of a single
// cross-stream "events" table, grounded on the teacher's
// driver/sql/postgres.EventStore (prepared insert placeholder caching,
// logger field usage) adapted from goengine's one-table-per-aggregate-type
// layout to the spec's single table keyed by stream_id with a global
// BIGSERIAL position.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore/codec"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint
// violation, used to map a race on (stream_id, version) to
// *eventstore.ConcurrencyConflict even when the pre-check below raced.
const uniqueViolation = "23505"

var _ eventstore.EventStore = &EventStore{}

// EventStore is the Postgres-backed implementation of eventstore.EventStore.
type EventStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// NewEventStore returns a new Postgres EventStore. logger may be nil, in
// which case a discarding logger is used.
func NewEventStore(db *sql.DB, logger logrus.FieldLogger) *EventStore {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &EventStore{db: db, logger: logger}
}

// Load returns all events for streamID in ascending per-stream version.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]eventstore.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT global_position, event_id, stream_id, version, event_type, event_data, metadata, occurred_on, recorded_at
		FROM events
		WHERE stream_id = $1
		ORDER BY version ASC`,
		streamID,
	)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "load", Err: err}
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	return events, nil
}

// LoadSince returns events with GlobalPosition > position across all
// streams, in ascending global order, bounded by limit.
func (s *EventStore) LoadSince(ctx context.Context, position int64, limit int) ([]eventstore.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT global_position, event_id, stream_id, version, event_type, event_data, metadata, occurred_on, recorded_at
		FROM events
		WHERE global_position > $1
		ORDER BY global_position ASC
		LIMIT $2`,
		position, limit,
	)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "load since", Err: err}
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LatestPosition returns the highest global_position ever assigned, or 0 if
// the events table is empty.
func (s *EventStore) LatestPosition(ctx context.Context) (int64, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(global_position) FROM events`).Scan(&latest); err != nil {
		return 0, &eventstore.StorageError{Op: "latest position", Err: err}
	}

	if !latest.Valid {
		return 0, nil
	}

	return latest.Int64, nil
}

// Append inserts events onto streamID inside a serializable transaction,
// asserting that the stream's current version equals expectedVersion.
func (s *EventStore) Append(ctx context.Context, streamID string, expectedVersion int, events []eventstore.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return &eventstore.StorageError{Op: "append: begin tx", Err: err}
	}

	actualVersion, err := currentVersion(ctx, tx, streamID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if actualVersion != expectedVersion {
		_ = tx.Rollback()
		return &eventstore.ConcurrencyConflict{StreamID: streamID, Expected: expectedVersion, Actual: actualVersion}
	}

	if err := insertEvents(ctx, tx, streamID, expectedVersion, events); err != nil {
		_ = tx.Rollback()

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &eventstore.ConcurrencyConflict{StreamID: streamID, Expected: expectedVersion, Actual: actualVersion}
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return &eventstore.StorageError{Op: "append: commit", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"stream_id": streamID,
		"count":     len(events),
	}).Debug("appended events to stream")

	return nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, streamID string) (int, error) {
	var actual sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM events WHERE stream_id = $1`, streamID).Scan(&actual); err != nil {
		return 0, &eventstore.StorageError{Op: "append: read current version", Err: err}
	}

	if !actual.Valid {
		return -1, nil
	}

	return int(actual.Int64), nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, streamID string, expectedVersion int, events []eventstore.Event) error {
	query, args, err := buildInsert(streamID, expectedVersion, events)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return &eventstore.StorageError{Op: "append: insert", Err: err}
	}

	return nil
}

const columnsPerRow = 7

func buildInsert(streamID string, expectedVersion int, events []eventstore.Event) (string, []interface{}, error) {
	var placeholders bytes.Buffer
	args := make([]interface{}, 0, len(events)*columnsPerRow)

	for i, event := range events {
		tag, data, err := codec.Encode(event.Payload)
		if err != nil {
			return "", nil, err
		}

		metadata := event.Metadata
		if len(metadata) == 0 {
			metadata = []byte(`{}`)
		}

		if i > 0 {
			placeholders.WriteByte(',')
		}

		base := i * columnsPerRow
		placeholders.WriteByte('(')
		for c := 0; c < columnsPerRow; c++ {
			if c > 0 {
				placeholders.WriteByte(',')
			}
			placeholders.WriteByte('$')
			placeholders.WriteString(strconv.Itoa(base + c + 1))
		}
		placeholders.WriteByte(')')

		args = append(args,
			event.ID,
			streamID,
			expectedVersion+1+i,
			tag,
			data,
			[]byte(metadata),
			event.OccurredOn,
		)
	}

	query := `INSERT INTO events (event_id, stream_id, version, event_type, event_data, metadata, occurred_on) VALUES ` + placeholders.String()

	return query, args, nil
}

type scanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanEvents(rows scanner) ([]eventstore.Event, error) {
	var events []eventstore.Event

	for rows.Next() {
		var (
			globalPosition int64
			eventID        uuid.UUID
			streamID       uuid.UUID
			version        int
			eventType      string
			rawPayload     []byte
			rawMetadata    []byte
			occurredOn     sql.NullTime
			recordedAt     sql.NullTime
		)

		if err := rows.Scan(&globalPosition, &eventID, &streamID, &version, &eventType, &rawPayload, &rawMetadata, &occurredOn, &recordedAt); err != nil {
			return nil, &eventstore.StorageError{Op: "scan event row", Err: err}
		}

		payload, err := codec.Decode(eventType, rawPayload)
		if err != nil {
			return nil, err
		}

		events = append(events, eventstore.Event{
			ID:             eventID,
			StreamID:       streamID,
			Version:        version,
			Type:           eventType,
			Payload:        payload,
			OccurredOn:     occurredOn.Time,
			Metadata:       rawMetadata,
			RecordedAt:     recordedAt.Time,
			GlobalPosition: globalPosition,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, &eventstore.StorageError{Op: "iterate event rows", Err: err}
	}

	return events, nil
}
