package postgres

import (
	"context"
	"database/sql"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

const createAccountBalanceSQL = `
CREATE TABLE IF NOT EXISTS account_balance (
	account_id UUID PRIMARY KEY,
	holder_name TEXT NOT NULL,
	status TEXT NOT NULL,
	balance_amount NUMERIC(18,2) NOT NULL,
	balance_currency TEXT NOT NULL,
	overdraft_limit NUMERIC(18,2) NOT NULL,
	available_to_withdraw NUMERIC(18,2) NOT NULL,
	version INT NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);`

const createAccountEntriesSQL = `
CREATE TABLE IF NOT EXISTS account_entries (
	account_id UUID NOT NULL,
	event_id UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	amount NUMERIC(18,2) NOT NULL,
	currency TEXT NOT NULL,
	balance_after NUMERIC(18,2) NOT NULL,
	occurred_on TIMESTAMP WITH TIME ZONE NOT NULL
);`

const createAccountEntriesIndexSQL = `CREATE INDEX IF NOT EXISTS account_entries_account_id_idx ON account_entries (account_id);`

const createCheckpointsSQL = `
CREATE TABLE IF NOT EXISTS projector_checkpoints (
	projector_name TEXT PRIMARY KEY,
	position BIGINT NOT NULL
);`

// readModelSchemaLockKey mirrors the event store's advisory-lock-keyed
// schema init (spec §5, "Schema initialization uses a store-level advisory
// lock keyed by a fixed integer"), using a distinct key so the two stores
// (which may share a database) never contend on the same lock.
const readModelSchemaLockKey = 8823502

// EnsureSchema creates the read model tables if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return &eventstore.StorageError{Op: "ensure read model schema: acquire connection", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, readModelSchemaLockKey); err != nil {
		return &eventstore.StorageError{Op: "ensure read model schema: acquire advisory lock", Err: err}
	}
	defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, readModelSchemaLockKey)

	for _, stmt := range []string{createAccountBalanceSQL, createAccountEntriesSQL, createAccountEntriesIndexSQL, createCheckpointsSQL} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return &eventstore.StorageError{Op: "ensure read model schema: create table/index", Err: err}
		}
	}

	return nil
}
