// Package money provides a currency-tagged decimal value used throughout the
// event-sourcing core for balances, overdraft limits and event payloads.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch occurs when an arithmetic operation is attempted
// between two Money values of different currencies.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is an (amount, currency) pair. Amount is a decimal.Decimal, so
// arithmetic never goes through binary floating point. Currency is an
// opaque token (e.g. an ISO 4217 code); the core does not validate it
// against any registry.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New creates a Money value from a decimal amount and currency.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero-valued Money in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Negative reports whether the amount is below zero.
func (m Money) Negative() bool {
	return m.Amount.Sign() < 0
}

// Abs returns the absolute value of the amount, preserving currency.
func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Currency: m.Currency}
}

// Add returns m + other. Fails with ErrCurrencyMismatch if the currencies
// differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}

	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Subtract returns m - other. Fails with ErrCurrencyMismatch if the
// currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}

	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Equal reports structural equality: same amount (numeric value) and
// currency.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// GreaterThanOrEqual reports whether m >= other. Only the amounts are
// compared: the currencies are not checked, so callers must already know
// that both values share a currency (e.g. via Add, or by construction).
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.Amount.GreaterThanOrEqual(other.Amount)
}

// String renders the money value as "<amount> <currency>", rounded to two
// fractional digits as is standard for persistence.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
