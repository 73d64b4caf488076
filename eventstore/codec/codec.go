// Package codec implements the bidirectional, closed-set registry mapping
// each of the nine bank account event types to its canonical on-wire tag
// and JSON schema. It is the single source of truth used by both the event
// store and the projector; changing a tag or a field here is a schema
// migration.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

// Encode marshals an event's payload to JSON and resolves its canonical
// type tag. It fails with *eventstore.CodecError if the payload's type is
// not part of the closed set.
func Encode(payload interface{}) (tag string, data []byte, err error) {
	tag, err = TagFor(payload)
	if err != nil {
		return "", nil, err
	}

	data, err = json.Marshal(payload)
	if err != nil {
		return "", nil, &eventstore.CodecError{Tag: tag, Err: err}
	}

	return tag, data, nil
}

// TagFor resolves the canonical tag for a payload value. It never accepts
// pointer types: aggregates always raise value payloads.
func TagFor(payload interface{}) (string, error) {
	switch payload.(type) {
	case domain.BankAccountOpened:
		return domain.BankAccountOpenedType, nil
	case domain.MoneyDeposited:
		return domain.MoneyDepositedType, nil
	case domain.MoneyWithdrawn:
		return domain.MoneyWithdrawnType, nil
	case domain.AccountFrozen:
		return domain.AccountFrozenType, nil
	case domain.AccountUnfrozen:
		return domain.AccountUnfrozenType, nil
	case domain.AccountClosed:
		return domain.AccountClosedType, nil
	case domain.OverdraftLimitChanged:
		return domain.OverdraftLimitChangedType, nil
	case domain.AccountHolderNameChanged:
		return domain.AccountHolderNameChangedType, nil
	case domain.FeeApplied:
		return domain.FeeAppliedType, nil
	default:
		return "", &eventstore.CodecError{Tag: fmt.Sprintf("%T", payload)}
	}
}

// Decode reconstructs a payload value from its canonical tag and raw JSON.
// Decoding is strict on tag membership (unknown tags fail) and relies on
// encoding/json's case-insensitive key matching for the payload fields.
func Decode(tag string, data []byte) (interface{}, error) {
	var (
		payload interface{}
		err     error
	)

	switch tag {
	case domain.BankAccountOpenedType:
		var p domain.BankAccountOpened
		err = json.Unmarshal(data, &p)
		payload = p
	case domain.MoneyDepositedType:
		var p domain.MoneyDeposited
		err = json.Unmarshal(data, &p)
		payload = p
	case domain.MoneyWithdrawnType:
		var p domain.MoneyWithdrawn
		err = json.Unmarshal(data, &p)
		payload = p
	case domain.AccountFrozenType:
		payload = domain.AccountFrozen{}
	case domain.AccountUnfrozenType:
		payload = domain.AccountUnfrozen{}
	case domain.AccountClosedType:
		payload = domain.AccountClosed{}
	case domain.OverdraftLimitChangedType:
		var p domain.OverdraftLimitChanged
		err = json.Unmarshal(data, &p)
		payload = p
	case domain.AccountHolderNameChangedType:
		var p domain.AccountHolderNameChanged
		err = json.Unmarshal(data, &p)
		payload = p
	case domain.FeeAppliedType:
		var p domain.FeeApplied
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		return nil, &eventstore.CodecError{Tag: tag}
	}

	if err != nil {
		return nil, &eventstore.CodecError{Tag: tag, Err: err}
	}

	return payload, nil
}

// DecodeEvent returns a copy of ev whose Payload is decoded from raw (the
// JSON bytes as produced by the SQL driver), using ev.Type as the canonical
// tag. ev itself is not modified.
func DecodeEvent(ev eventstore.Event, raw []byte) (eventstore.Event, error) {
	payload, err := Decode(ev.Type, raw)
	if err != nil {
		return eventstore.Event{}, err
	}

	ev.Payload = payload

	return ev, nil
}
