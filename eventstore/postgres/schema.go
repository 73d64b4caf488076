package postgres

import (
	"context"
	"database/sql"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

// schemaLockKey is the fixed advisory lock key used to serialize concurrent
// schema initialization across multiple instances racing to create the
// events table on cold start.
const schemaLockKey = 8823501

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
	global_position BIGSERIAL PRIMARY KEY,
	event_id UUID NOT NULL UNIQUE,
	stream_id UUID NOT NULL,
	version INT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSON NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	occurred_on TIMESTAMP WITH TIME ZONE NOT NULL,
	recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	UNIQUE (stream_id, version)
);`

const createStreamIndexSQL = `CREATE INDEX IF NOT EXISTS events_stream_id_idx ON events (stream_id);`

const createPositionIndexSQL = `CREATE INDEX IF NOT EXISTS events_global_position_idx ON events (global_position);`

// EnsureSchema creates the events table and its indexes if they do not
// already exist, serialized across instances by a Postgres advisory lock
// keyed by a fixed integer.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return &eventstore.StorageError{Op: "ensure schema: acquire connection", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, schemaLockKey); err != nil {
		return &eventstore.StorageError{Op: "ensure schema: acquire advisory lock", Err: err}
	}
	defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, schemaLockKey)

	for _, stmt := range []string{createTableSQL, createStreamIndexSQL, createPositionIndexSQL} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return &eventstore.StorageError{Op: "ensure schema: create table/index", Err: err}
		}
	}

	return nil
}
