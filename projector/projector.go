// Package projector implements the checkpointed, at-least-once background
// consumer (spec §4.H): poll the event store's global feed, apply each
// batch to the read model inside one transaction under idempotent,
// version-guarded updates, then advance the checkpoint. Grounded on the
// teacher's driver/sql/postgres/projector_aggregate.go loop shape and
// advisory_lock.go-style single-writer discipline, simplified to a plain
// poll/sleep loop per SPEC_FULL.md §4.H since the spec's batch size and
// interval make goengine's LISTEN/NOTIFY background processor unnecessary.
package projector

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/metrics"
	"github.com/AbdalrahmanBashir/EventSourcedBank/projection"
	pgread "github.com/AbdalrahmanBashir/EventSourcedBank/projection/postgres"
)

const (
	// batchSize is spec.md §4.H step 3's "100 is adequate".
	batchSize = 100
	// emptyBatchSleep is step 4's "~400 ms".
	emptyBatchSleep = 400 * time.Millisecond
	// errorBackoff is step 7's "~2 s".
	errorBackoff = 2 * time.Second
	// DefaultName is the projector identity used unless overridden (spec §6).
	DefaultName = "account_balance_projector_v1"
)

// Projector runs the loop described above against one store/read-model pair.
type Projector struct {
	name    string
	store   eventstore.EventStore
	reads   *pgread.Store
	logger  logrus.FieldLogger
	metrics metrics.Recorder
}

// New returns a Projector named name (DefaultName if empty).
func New(name string, store eventstore.EventStore, reads *pgread.Store, logger logrus.FieldLogger, recorder metrics.Recorder) *Projector {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = logrus.New()
	}
	if recorder == nil {
		recorder = metrics.Nop
	}

	return &Projector{name: name, store: store, reads: reads, logger: logger, metrics: recorder}
}

// Run blocks, applying batches until ctx is cancelled. It ensures the
// checkpoint row exists before entering the loop. Cancellation is honored
// at batch boundaries: a batch already in flight finishes (commit or
// rollback) before Run returns.
func (p *Projector) Run(ctx context.Context) error {
	if err := p.reads.EnsureCheckpoint(ctx, p.name); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		applied, err := p.runOnce(ctx)
		if err != nil {
			p.metrics.ObserveError()
			p.logger.WithError(err).WithField("projector", p.name).Error("projector batch failed, backing off")

			if !sleepOrDone(ctx, errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if applied == 0 {
			p.metrics.ObserveEmptyBatch()
			if !sleepOrDone(ctx, emptyBatchSleep) {
				return ctx.Err()
			}
		}
	}
}

// runOnce executes steps 2-6 of the loop once and returns the number of
// events applied (0 for an empty batch).
func (p *Projector) runOnce(ctx context.Context) (int, error) {
	lastPos, err := p.reads.ReadCheckpoint(ctx, p.name)
	if err != nil {
		return 0, err
	}

	batch, err := p.store.LoadSince(ctx, lastPos, batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := p.reads.BeginBatch(ctx)
	if err != nil {
		return 0, err
	}

	maxPos := lastPos
	for _, event := range batch {
		if err := apply(ctx, tx, event); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		maxPos = event.GlobalPosition
	}

	if err := tx.Commit(); err != nil {
		return 0, &eventstore.StorageError{Op: "projector: commit batch", Err: err}
	}

	if err := p.reads.WriteCheckpoint(ctx, p.name, maxPos); err != nil {
		return 0, err
	}

	p.metrics.ObserveBatch(len(batch), time.Since(start))
	p.recordCheckpointLag(ctx, maxPos)

	p.logger.WithFields(logrus.Fields{
		"projector": p.name,
		"count":     len(batch),
		"position":  maxPos,
	}).Debug("applied projector batch")

	return len(batch), nil
}

// recordCheckpointLag reports the gap between the store's highest known
// global position and the checkpoint just written. It is best-effort: a
// failure to read the latest position only skips the gauge update, since
// the batch itself already committed successfully.
func (p *Projector) recordCheckpointLag(ctx context.Context, checkpoint int64) {
	latest, err := p.store.LatestPosition(ctx)
	if err != nil {
		p.logger.WithError(err).WithField("projector", p.name).Warn("failed to read latest global position for checkpoint lag")
		return
	}

	p.metrics.SetCheckpointLag(latest - checkpoint)
}

// sleepOrDone waits for d or ctx's cancellation, whichever comes first,
// returning false if ctx was cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// apply dispatches on event.Payload's concrete type (mirroring the event
// type tags of domain package) and issues the matching idempotent update,
// plus the account_entries audit row for balance-affecting events.
func apply(ctx context.Context, tx *sql.Tx, event eventstore.Event) error {
	accountID := event.StreamID

	switch payload := event.Payload.(type) {
	case domain.BankAccountOpened:
		return pgread.UpsertOpened(ctx, tx, accountID, payload.AccountHolder, payload.InitialBalance.Amount, payload.InitialBalance.Currency, payload.OverdraftLimit, event.Version, event.OccurredOn)

	case domain.MoneyDeposited:
		return applyBalanceChange(ctx, tx, accountID, event, payload.Amount.Amount, payload.Amount.Currency)

	case domain.MoneyWithdrawn:
		return applyBalanceChange(ctx, tx, accountID, event, payload.Amount.Amount.Neg(), payload.Amount.Currency)

	case domain.FeeApplied:
		return applyBalanceChange(ctx, tx, accountID, event, payload.FeeAmount.Amount.Neg(), payload.FeeAmount.Currency)

	case domain.AccountFrozen:
		return pgread.ApplyStatus(ctx, tx, accountID, string(domain.StatusFrozen), event.Version, event.OccurredOn)

	case domain.AccountUnfrozen:
		return pgread.ApplyStatus(ctx, tx, accountID, string(domain.StatusOpen), event.Version, event.OccurredOn)

	case domain.AccountClosed:
		return pgread.ApplyStatus(ctx, tx, accountID, string(domain.StatusClosed), event.Version, event.OccurredOn)

	case domain.OverdraftLimitChanged:
		return pgread.ApplyOverdraftLimit(ctx, tx, accountID, payload.NewOverdraftLimit, event.Version, event.OccurredOn)

	case domain.AccountHolderNameChanged:
		return pgread.ApplyHolderName(ctx, tx, accountID, payload.NewAccountHolderName, event.Version, event.OccurredOn)

	default:
		return &domain.UnknownEventError{Type: event.Type}
	}
}

// applyBalanceChange applies a signed delta, then reads the resulting
// balance back within the same transaction and appends the corresponding
// account_entries audit row (SPEC_FULL.md §3.1's supplemented entry
// ledger). A replayed event still guards the balance update via version,
// but the entry insert is independently idempotent on event_id.
func applyBalanceChange(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, event eventstore.Event, delta decimal.Decimal, currency string) error {
	if err := pgread.ApplyBalanceDelta(ctx, tx, accountID, delta, event.Version, event.OccurredOn); err != nil {
		return err
	}

	balanceAfter, err := pgread.BalanceAfter(ctx, tx, accountID)
	if err != nil {
		return err
	}

	return pgread.InsertEntry(ctx, tx, projection.AccountEntry{
		AccountID:    accountID,
		EventID:      event.ID,
		EventType:    event.Type,
		Amount:       delta,
		Currency:     currency,
		BalanceAfter: balanceAfter,
		OccurredOn:   event.OccurredOn,
	})
}
