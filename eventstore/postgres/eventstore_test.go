// +build unit

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore/postgres"
	"github.com/AbdalrahmanBashir/EventSourcedBank/internal/test"
)

var eventColumns = []string{"global_position", "event_id", "stream_id", "version", "event_type", "event_data", "metadata", "occurred_on", "recorded_at"}

func TestEventStore_Load(t *testing.T) {
	test.RunWithMockDB(t, "returns events ordered by version", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()
		occurredOn := time.Now().UTC()

		rows := sqlmock.NewRows(eventColumns).
			AddRow(int64(1), uuid.New(), streamID, 0, domain.AccountClosedType, []byte(`{}`), []byte(`{}`), occurredOn, occurredOn)

		dbMock.ExpectQuery(`SELECT (.+) FROM events WHERE stream_id = \$1 ORDER BY version ASC`).
			WithArgs(streamID.String()).
			WillReturnRows(rows)

		store := postgres.NewEventStore(db, nil)

		events, err := store.Load(context.Background(), streamID.String())

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.AccountClosed{}, events[0].Payload)
		assert.Equal(t, int64(1), events[0].GlobalPosition)
	})

	test.RunWithMockDB(t, "propagates a storage error", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()

		dbMock.ExpectQuery(`SELECT (.+) FROM events WHERE stream_id = \$1 ORDER BY version ASC`).
			WithArgs(streamID.String()).
			WillReturnError(errors.New("connection reset"))

		store := postgres.NewEventStore(db, nil)

		_, err := store.Load(context.Background(), streamID.String())

		require.Error(t, err)
		var storageErr *eventstore.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})
}

func TestEventStore_LoadSince(t *testing.T) {
	test.RunWithMockDB(t, "returns events in global order", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()
		occurredOn := time.Now().UTC()

		rows := sqlmock.NewRows(eventColumns).
			AddRow(int64(5), uuid.New(), streamID, 0, domain.AccountFrozenType, []byte(`{}`), []byte(`{}`), occurredOn, occurredOn)

		dbMock.ExpectQuery(`SELECT (.+) FROM events WHERE global_position > \$1 ORDER BY global_position ASC LIMIT \$2`).
			WithArgs(int64(4), 100).
			WillReturnRows(rows)

		store := postgres.NewEventStore(db, nil)

		events, err := store.LoadSince(context.Background(), 4, 100)

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, int64(5), events[0].GlobalPosition)
	})
}

func TestEventStore_LatestPosition(t *testing.T) {
	test.RunWithMockDB(t, "returns the highest global position", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		dbMock.ExpectQuery(`SELECT MAX\(global_position\) FROM events`).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(12)))

		store := postgres.NewEventStore(db, nil)

		latest, err := store.LatestPosition(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(12), latest)
	})

	test.RunWithMockDB(t, "returns zero for an empty store", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		dbMock.ExpectQuery(`SELECT MAX\(global_position\) FROM events`).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		store := postgres.NewEventStore(db, nil)

		latest, err := store.LatestPosition(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(0), latest)
	})

	test.RunWithMockDB(t, "propagates a storage error", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		dbMock.ExpectQuery(`SELECT MAX\(global_position\) FROM events`).
			WillReturnError(errors.New("connection reset"))

		store := postgres.NewEventStore(db, nil)

		_, err := store.LatestPosition(context.Background())

		require.Error(t, err)
		var storageErr *eventstore.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})
}

func TestEventStore_Append(t *testing.T) {
	test.RunWithMockDB(t, "inserts events when expected version matches", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
			WithArgs(streamID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
		dbMock.ExpectExec(`INSERT INTO events \(event_id, stream_id, version, event_type, event_data, metadata, occurred_on\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		store := postgres.NewEventStore(db, nil)

		events := []eventstore.Event{{
			ID:         uuid.New(),
			StreamID:   streamID,
			Version:    0,
			Type:       domain.AccountFrozenType,
			Payload:    domain.AccountFrozen{},
			OccurredOn: time.Now().UTC(),
		}}

		err := store.Append(context.Background(), streamID.String(), -1, events)

		require.NoError(t, err)
	})

	test.RunWithMockDB(t, "no-op for an empty event slice", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		store := postgres.NewEventStore(db, nil)

		err := store.Append(context.Background(), uuid.New().String(), -1, nil)

		require.NoError(t, err)
	})

	test.RunWithMockDB(t, "returns a concurrency conflict when the expected version is stale", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
			WithArgs(streamID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
		dbMock.ExpectRollback()

		store := postgres.NewEventStore(db, nil)

		events := []eventstore.Event{{
			ID:         uuid.New(),
			StreamID:   streamID,
			Version:    0,
			Type:       domain.AccountFrozenType,
			Payload:    domain.AccountFrozen{},
			OccurredOn: time.Now().UTC(),
		}}

		err := store.Append(context.Background(), streamID.String(), -1, events)

		require.Error(t, err)
		var conflict *eventstore.ConcurrencyConflict
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, -1, conflict.Expected)
		assert.Equal(t, 3, conflict.Actual)
	})

	test.RunWithMockDB(t, "maps a unique violation raced at insert time to a concurrency conflict", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		streamID := uuid.New()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
			WithArgs(streamID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
		dbMock.ExpectExec(`INSERT INTO events`).
			WillReturnError(&pq.Error{Code: "23505"})
		dbMock.ExpectRollback()

		store := postgres.NewEventStore(db, nil)

		events := []eventstore.Event{{
			ID:         uuid.New(),
			StreamID:   streamID,
			Version:    0,
			Type:       domain.AccountFrozenType,
			Payload:    domain.AccountFrozen{},
			OccurredOn: time.Now().UTC(),
		}}

		err := store.Append(context.Background(), streamID.String(), -1, events)

		require.Error(t, err)
		var conflict *eventstore.ConcurrencyConflict
		assert.ErrorAs(t, err, &conflict)
	})
}
