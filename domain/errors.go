package domain

import "fmt"

// InvalidArgumentError indicates that a caller passed a malformed argument
// to a command (e.g. a negative amount, an empty holder name).
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("domain: invalid argument %q: %s", e.Argument, e.Reason)
}

func invalidArgument(argument, reason string) error {
	return &InvalidArgumentError{Argument: argument, Reason: reason}
}

// InvalidStateError indicates that a command is not allowed given the
// account's current status, or would violate an account invariant.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("domain: invalid state: %s", e.Reason)
}

func invalidState(reason string) error {
	return &InvalidStateError{Reason: reason}
}

// CurrencyMismatchError indicates a command's Money argument does not share
// the account's balance currency. Distinct from InvalidArgumentError per
// spec §7's error taxonomy, since callers may want to handle a currency
// mismatch (e.g. route to a conversion flow) differently from a generic
// malformed argument.
type CurrencyMismatchError struct {
	Expected string
	Actual   string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("domain: currency mismatch: expected %q, got %q", e.Expected, e.Actual)
}

func currencyMismatch(expected, actual string) error {
	return &CurrencyMismatchError{Expected: expected, Actual: actual}
}

// UnknownEventError occurs when FromHistory encounters an event type tag
// outside the closed set during replay. It signals store/schema drift and
// is always fatal.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("domain: unknown event type %q during replay", e.Type)
}
