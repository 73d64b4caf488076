// Package postgres implements the read model store the projector mutates
// and the query surface reads. Every mutation is idempotent, guarded by
// the row's own "version < incoming version" check, grounded on the
// teacher's projector_aggregate_storage.go UPSERT-with-version-guard
// pattern for a projection-owned table.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/projection"
)

// Store is the Postgres-backed read model store.
type Store struct {
	db *sql.DB
}

// NewStore returns a new read model Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying *sql.DB so the projector can manage its own
// per-batch transaction.
func (s *Store) DB() *sql.DB { return s.db }

// EnsureCheckpoint inserts a zero-position checkpoint row for name if one
// does not already exist.
func (s *Store) EnsureCheckpoint(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projector_checkpoints (projector_name, position)
		VALUES ($1, 0)
		ON CONFLICT (projector_name) DO NOTHING`,
		name,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "ensure checkpoint", Err: err}
	}

	return nil
}

// ReadCheckpoint returns the last durably applied global position for name.
func (s *Store) ReadCheckpoint(ctx context.Context, name string) (int64, error) {
	var position int64
	if err := s.db.QueryRowContext(ctx, `SELECT position FROM projector_checkpoints WHERE projector_name = $1`, name).Scan(&position); err != nil {
		return 0, &eventstore.StorageError{Op: "read checkpoint", Err: err}
	}

	return position, nil
}

// WriteCheckpoint advances name's checkpoint to position.
func (s *Store) WriteCheckpoint(ctx context.Context, name string, position int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projector_checkpoints SET position = $2 WHERE projector_name = $1`, name, position)
	if err != nil {
		return &eventstore.StorageError{Op: "write checkpoint", Err: err}
	}

	return nil
}

// BeginBatch starts the transaction a single projector batch is applied
// under.
func (s *Store) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &eventstore.StorageError{Op: "begin projection batch", Err: err}
	}

	return tx, nil
}

// UpsertOpened inserts the initial row for accountID, or — if a row already
// exists because this batch is being replayed — updates it only when the
// stored version is behind the incoming one. "New" is never the status
// written here: BankAccountOpened always establishes Open.
func UpsertOpened(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, holderName string, balanceAmount decimal.Decimal, balanceCurrency string, overdraftLimit decimal.Decimal, version int, updatedAt time.Time) error {
	available := balanceAmount.Add(overdraftLimit)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_balance (account_id, holder_name, status, balance_amount, balance_currency, overdraft_limit, available_to_withdraw, version, updated_at)
		VALUES ($1, $2, 'Open', $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			holder_name = CASE WHEN account_balance.version < $7 THEN EXCLUDED.holder_name ELSE account_balance.holder_name END,
			status = CASE WHEN account_balance.version < $7 THEN EXCLUDED.status ELSE account_balance.status END,
			balance_amount = CASE WHEN account_balance.version < $7 THEN EXCLUDED.balance_amount ELSE account_balance.balance_amount END,
			balance_currency = CASE WHEN account_balance.version < $7 THEN EXCLUDED.balance_currency ELSE account_balance.balance_currency END,
			overdraft_limit = CASE WHEN account_balance.version < $7 THEN EXCLUDED.overdraft_limit ELSE account_balance.overdraft_limit END,
			available_to_withdraw = CASE WHEN account_balance.version < $7 THEN EXCLUDED.available_to_withdraw ELSE account_balance.available_to_withdraw END,
			version = GREATEST(account_balance.version, EXCLUDED.version),
			updated_at = CASE WHEN account_balance.version < $7 THEN EXCLUDED.updated_at ELSE account_balance.updated_at END`,
		accountID, holderName, balanceAmount, balanceCurrency, overdraftLimit, available, version, updatedAt,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "upsert opened account", Err: err}
	}

	return nil
}

// ApplyBalanceDelta adjusts balance_amount and available_to_withdraw by
// delta (positive for deposits/credits, negative for withdrawals/fees),
// guarded so a replayed event is a no-op.
func ApplyBalanceDelta(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, delta decimal.Decimal, version int, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE account_balance
		SET balance_amount = balance_amount + $2,
		    available_to_withdraw = (balance_amount + $2) + overdraft_limit,
		    version = $3,
		    updated_at = $4
		WHERE account_id = $1 AND version < $3`,
		accountID, delta, version, updatedAt,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "apply balance delta", Err: err}
	}

	return nil
}

// ApplyStatus sets the canonical status string, guarded the same way.
func ApplyStatus(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, status string, version int, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE account_balance
		SET status = $2, version = $3, updated_at = $4
		WHERE account_id = $1 AND version < $3`,
		accountID, status, version, updatedAt,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "apply status", Err: err}
	}

	return nil
}

// ApplyOverdraftLimit updates overdraft_limit and recomputes
// available_to_withdraw, guarded the same way.
func ApplyOverdraftLimit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, newLimit decimal.Decimal, version int, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE account_balance
		SET overdraft_limit = $2,
		    available_to_withdraw = balance_amount + $2,
		    version = $3,
		    updated_at = $4
		WHERE account_id = $1 AND version < $3`,
		accountID, newLimit, version, updatedAt,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "apply overdraft limit", Err: err}
	}

	return nil
}

// ApplyHolderName updates holder_name, guarded the same way.
func ApplyHolderName(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, newName string, version int, updatedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE account_balance
		SET holder_name = $2, version = $3, updated_at = $4
		WHERE account_id = $1 AND version < $3`,
		accountID, newName, version, updatedAt,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "apply holder name", Err: err}
	}

	return nil
}

// InsertEntry appends an audit row. Idempotent on (event_id) so replaying
// a batch never duplicates an entry.
func InsertEntry(ctx context.Context, tx *sql.Tx, entry projection.AccountEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_entries (account_id, event_id, event_type, amount, currency, balance_after, occurred_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.AccountID, entry.EventID, entry.EventType, entry.Amount, entry.Currency, entry.BalanceAfter, entry.OccurredOn,
	)
	if err != nil {
		return &eventstore.StorageError{Op: "insert account entry", Err: err}
	}

	return nil
}

// BalanceAfter returns the current balance_amount for accountID, used by
// the projector to compute AccountEntry.BalanceAfter after applying a
// delta within the same transaction.
func BalanceAfter(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	var amount decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT balance_amount FROM account_balance WHERE account_id = $1`, accountID).Scan(&amount); err != nil {
		return decimal.Zero, &eventstore.StorageError{Op: "read balance after", Err: err}
	}

	return amount, nil
}
