// Package repository adapts the event store to the Account aggregate:
// load a stream's history and rehydrate it, or drain an aggregate's
// uncommitted events and append them. Grounded on the teacher's
// aggregate.Repository (GetAggregateRoot/SaveAggregateRoot), generalized
// from goengine's metadata-matcher stream lookup (one physical table
// shared by many aggregate types) to a direct stream_id-keyed Load since
// this core has exactly one aggregate type.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

// AccountRepository loads and saves Account aggregates against an
// EventStore.
type AccountRepository struct {
	store eventstore.EventStore
}

// NewAccountRepository returns a new AccountRepository backed by store.
func NewAccountRepository(store eventstore.EventStore) *AccountRepository {
	return &AccountRepository{store: store}
}

// Get loads the history for id and rehydrates the aggregate. Returns nil,
// nil if the stream does not exist.
func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	events, err := r.store.Load(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, nil
	}

	return domain.FromHistory(events)
}

// Save drains the aggregate's uncommitted events and appends them to the
// store with the expected version computed from the aggregate's current
// version and the number of pending events. A no-op when there is nothing
// to save. *eventstore.ConcurrencyConflict propagates unchanged; the
// caller's retry policy (reload, replay command, re-save) is external.
func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	events := account.PopUncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	expectedVersion := account.Version() - len(events)

	return r.store.Append(ctx, account.ID().String(), expectedVersion, events)
}
