// Package domain implements the bank account aggregate: a deterministic
// state machine whose state is the fold of its event history, with business
// invariants enforced at command time. It is pure — no I/O, no clock calls
// beyond an injectable "now" — so that FromHistory(events) is always a
// referentially transparent replay of Open/Deposit/Withdraw/...
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/money"
)

// AccountStatus is the closed set of states an Account can be in.
type AccountStatus string

const (
	// StatusNew is the pre-opening state. No event ever establishes it and
	// it is never projected to the read model.
	StatusNew AccountStatus = "New"
	// StatusOpen is the only state permitting withdrawals.
	StatusOpen AccountStatus = "Open"
	// StatusFrozen permits deposits and fees but blocks withdrawals, limit
	// changes and closing.
	StatusFrozen AccountStatus = "Frozen"
	// StatusClosed is terminal except for a no-op re-close.
	StatusClosed AccountStatus = "Closed"
)

// Account is the bank account aggregate.
type Account struct {
	id             uuid.UUID
	holderName     string
	status         AccountStatus
	balance        money.Money
	overdraftLimit decimal.Decimal

	// version is the count of events applied minus 1; -1 before any event
	// has been applied.
	version int

	uncommittedEvents []eventstore.Event
}

// ID returns the account's identity.
func (a *Account) ID() uuid.UUID { return a.id }

// HolderName returns the current account holder name.
func (a *Account) HolderName() string { return a.holderName }

// Status returns the account's current status.
func (a *Account) Status() AccountStatus { return a.status }

// Balance returns the account's current balance.
func (a *Account) Balance() money.Money { return a.balance }

// OverdraftLimit returns the account's current overdraft limit.
func (a *Account) OverdraftLimit() decimal.Decimal { return a.overdraftLimit }

// Version returns the aggregate's version: the count of events applied
// minus 1, or -1 if no event has been applied yet.
func (a *Account) Version() int { return a.version }

// AvailableToWithdraw is balance + overdraftLimit.
func (a *Account) AvailableToWithdraw() decimal.Decimal {
	return a.balance.Amount.Add(a.overdraftLimit)
}

// UncommittedEvents returns the events raised by commands since the last
// call to PopUncommittedEvents, without draining them.
func (a *Account) UncommittedEvents() []eventstore.Event {
	return a.uncommittedEvents
}

// PopUncommittedEvents drains and returns the pending events raised since
// the aggregate was loaded or created.
func (a *Account) PopUncommittedEvents() []eventstore.Event {
	pending := a.uncommittedEvents
	a.uncommittedEvents = nil
	return pending
}

// Open creates a fresh Account whose first event is BankAccountOpened.
// occurredOn defaults to time.Now().UTC() when zero.
func Open(id uuid.UUID, holderName string, overdraftLimit decimal.Decimal, initialBalance money.Money, occurredOn time.Time) (*Account, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("id", "must not be nil")
	}
	if holderName == "" {
		return nil, invalidArgument("holderName", "must not be empty")
	}
	if overdraftLimit.IsNegative() {
		return nil, invalidArgument("overdraftLimit", "must be non-negative")
	}
	if initialBalance.Amount.IsNegative() {
		return nil, invalidArgument("initialBalance", "must be non-negative")
	}

	account := &Account{id: id, version: -1}

	if err := account.recordThat(id, BankAccountOpenedType, BankAccountOpened{
		AccountHolder:  holderName,
		OverdraftLimit: overdraftLimit,
		InitialBalance: initialBalance,
	}, occurredOn); err != nil {
		return nil, err
	}

	return account, nil
}

// FromHistory rebuilds an Account's state by applying each event in order,
// asserting per-stream version contiguity. Unknown event types are fatal:
// they signal store/schema drift.
func FromHistory(events []eventstore.Event) (*Account, error) {
	account := &Account{version: -1}

	for _, event := range events {
		if event.Version != account.version+1 {
			return nil, invalidState("non-contiguous event history")
		}
		if err := account.apply(event); err != nil {
			return nil, err
		}
	}

	return account, nil
}

// Deposit credits the account. Allowed when Open or Frozen.
func (a *Account) Deposit(amount money.Money, occurredOn time.Time) error {
	if a.status != StatusOpen && a.status != StatusFrozen {
		return invalidState("deposit requires the account to be open or frozen")
	}
	if !amount.Amount.IsPositive() {
		return invalidArgument("amount", "must be positive")
	}
	if amount.Currency != a.balance.Currency {
		return currencyMismatch(a.balance.Currency, amount.Currency)
	}

	return a.recordThat(a.id, MoneyDepositedType, MoneyDeposited{Amount: amount}, occurredOn)
}

// Withdraw debits the account. Allowed only when Open, and only while
// balance + overdraftLimit stays non-negative.
func (a *Account) Withdraw(amount money.Money, occurredOn time.Time) error {
	if a.status != StatusOpen {
		return invalidState("withdraw requires the account to be open")
	}
	if !amount.Amount.IsPositive() {
		return invalidArgument("amount", "must be positive")
	}
	if amount.Currency != a.balance.Currency {
		return currencyMismatch(a.balance.Currency, amount.Currency)
	}
	if a.AvailableToWithdraw().LessThan(amount.Amount) {
		return invalidState("withdrawal exceeds balance plus overdraft limit")
	}

	return a.recordThat(a.id, MoneyWithdrawnType, MoneyWithdrawn{Amount: amount}, occurredOn)
}

// Freeze moves an Open account to Frozen.
func (a *Account) Freeze(occurredOn time.Time) error {
	if a.status != StatusOpen {
		return invalidState("freeze requires the account to be open")
	}

	return a.recordThat(a.id, AccountFrozenType, AccountFrozen{}, occurredOn)
}

// Unfreeze moves a Frozen account back to Open.
func (a *Account) Unfreeze(occurredOn time.Time) error {
	if a.status != StatusFrozen {
		return invalidState("unfreeze requires the account to be frozen")
	}

	return a.recordThat(a.id, AccountUnfrozenType, AccountUnfrozen{}, occurredOn)
}

// Close terminates the account. Frozen accounts must be unfrozen first.
// Closing an already-closed account is an idempotent no-op. The balance
// must be exactly zero.
func (a *Account) Close(occurredOn time.Time) error {
	switch a.status {
	case StatusClosed:
		return nil
	case StatusFrozen:
		return invalidState("unfreeze first")
	case StatusOpen:
		if !a.balance.Amount.IsZero() {
			return invalidState("balance must be zero to close the account")
		}
		return a.recordThat(a.id, AccountClosedType, AccountClosed{}, occurredOn)
	default:
		return invalidState("close requires the account to be open")
	}
}

// ChangeOverdraftLimit sets a new overdraft limit. A no-op if unchanged.
func (a *Account) ChangeOverdraftLimit(newLimit decimal.Decimal, occurredOn time.Time) error {
	if a.status != StatusOpen {
		return invalidState("overdraft limit can only change while open")
	}
	if newLimit.IsNegative() {
		return invalidArgument("newLimit", "must be non-negative")
	}
	if a.balance.Amount.IsNegative() && newLimit.LessThan(a.balance.Amount.Abs()) {
		return invalidState("new overdraft limit would be smaller than the current overdrawn amount")
	}
	if newLimit.Equal(a.overdraftLimit) {
		return nil
	}

	return a.recordThat(a.id, OverdraftLimitChangedType, OverdraftLimitChanged{NewOverdraftLimit: newLimit}, occurredOn)
}

// ChangeAccountHolderName renames the account holder. A no-op if unchanged.
// Disallowed only once the account is closed.
func (a *Account) ChangeAccountHolderName(newName string, occurredOn time.Time) error {
	if a.status == StatusClosed {
		return invalidState("cannot rename a closed account")
	}
	if newName == "" {
		return invalidArgument("newName", "must not be empty")
	}
	if newName == a.holderName {
		return nil
	}

	return a.recordThat(a.id, AccountHolderNameChangedType, AccountHolderNameChanged{NewAccountHolderName: newName}, occurredOn)
}

// ApplyFee debits a fee from the account. Disallowed only once closed.
func (a *Account) ApplyFee(amount money.Money, reason string, occurredOn time.Time) error {
	if a.status == StatusClosed {
		return invalidState("cannot apply a fee to a closed account")
	}
	if !amount.Amount.IsPositive() {
		return invalidArgument("amount", "must be positive")
	}
	if amount.Currency != a.balance.Currency {
		return currencyMismatch(a.balance.Currency, amount.Currency)
	}

	return a.recordThat(a.id, FeeAppliedType, FeeApplied{FeeAmount: amount, Reason: reason}, occurredOn)
}

// recordThat appends a new event to the pending-uncommitted buffer, applies
// it to advance state, and advances the version. This mirrors the
// teacher's aggregate.BaseRoot.recordThat: validation has already happened
// in the calling command method, so apply here cannot fail.
func (a *Account) recordThat(streamID uuid.UUID, eventType string, payload interface{}, occurredOn time.Time) error {
	if occurredOn.IsZero() {
		occurredOn = time.Now().UTC()
	}

	event := eventstore.Event{
		ID:         uuid.New(),
		StreamID:   streamID,
		Version:    a.version + 1,
		Type:       eventType,
		Payload:    payload,
		OccurredOn: occurredOn,
	}

	if err := a.apply(event); err != nil {
		return err
	}

	a.uncommittedEvents = append(a.uncommittedEvents, event)

	return nil
}

// apply is the total function over the closed set of event types. It is
// used both for newly raised events and during replay; both paths always
// increment version by exactly one.
func (a *Account) apply(event eventstore.Event) error {
	switch payload := event.Payload.(type) {
	case BankAccountOpened:
		a.id = event.StreamID
		a.holderName = payload.AccountHolder
		a.overdraftLimit = payload.OverdraftLimit
		a.balance = payload.InitialBalance
		a.status = StatusOpen
	case MoneyDeposited:
		balance, err := a.balance.Add(payload.Amount)
		if err != nil {
			return err
		}
		a.balance = balance
	case MoneyWithdrawn:
		balance, err := a.balance.Subtract(payload.Amount)
		if err != nil {
			return err
		}
		a.balance = balance
	case FeeApplied:
		balance, err := a.balance.Subtract(payload.FeeAmount)
		if err != nil {
			return err
		}
		a.balance = balance
	case AccountFrozen:
		a.status = StatusFrozen
	case AccountUnfrozen:
		a.status = StatusOpen
	case AccountClosed:
		a.status = StatusClosed
	case OverdraftLimitChanged:
		a.overdraftLimit = payload.NewOverdraftLimit
	case AccountHolderNameChanged:
		a.holderName = payload.NewAccountHolderName
	default:
		return &UnknownEventError{Type: event.Type}
	}

	a.version++

	return nil
}
