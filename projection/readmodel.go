// Package projection defines the query-optimized read model that the
// projector maintains and that the query surface reads: a per-account
// balance row, an append-only entry audit trail, and the projector's
// durable checkpoint.
package projection

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountBalance is the per-account read model row. version is the
// highest aggregate version reflected in the row; availableToWithdraw is
// balanceAmount + overdraftLimit.
type AccountBalance struct {
	AccountID           uuid.UUID
	HolderName          string
	Status              string
	BalanceAmount       decimal.Decimal
	BalanceCurrency     string
	OverdraftLimit      decimal.Decimal
	AvailableToWithdraw decimal.Decimal
	Version             int
	UpdatedAt           time.Time
}

// AccountEntry is an append-only audit row recording one balance-affecting
// event against an account. It is pure read-side enrichment: it does not
// participate in optimistic concurrency or replay, and exists solely so
// operators can inspect history without replaying the event store. The
// query package does not read it.
type AccountEntry struct {
	AccountID    uuid.UUID
	EventID      uuid.UUID
	EventType    string
	Amount       decimal.Decimal
	Currency     string
	BalanceAfter decimal.Decimal
	OccurredOn   time.Time
}

// Checkpoint is a projector's durable bookmark: the highest global
// position it has applied.
type Checkpoint struct {
	ProjectorName string
	Position      int64
}
