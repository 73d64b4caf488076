package codec_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore/codec"
	"github.com/AbdalrahmanBashir/EventSourcedBank/money"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload interface{}
	}{
		{"BankAccountOpened", domain.BankAccountOpened{
			AccountHolder:  "Alice",
			OverdraftLimit: decimal.NewFromInt(100),
			InitialBalance: money.New(decimal.NewFromInt(1000), "USD"),
		}},
		{"MoneyDeposited", domain.MoneyDeposited{Amount: money.New(decimal.NewFromInt(50), "USD")}},
		{"MoneyWithdrawn", domain.MoneyWithdrawn{Amount: money.New(decimal.NewFromInt(25), "USD")}},
		{"AccountFrozen", domain.AccountFrozen{}},
		{"AccountUnfrozen", domain.AccountUnfrozen{}},
		{"AccountClosed", domain.AccountClosed{}},
		{"OverdraftLimitChanged", domain.OverdraftLimitChanged{NewOverdraftLimit: decimal.NewFromInt(200)}},
		{"AccountHolderNameChanged", domain.AccountHolderNameChanged{NewAccountHolderName: "Bob"}},
		{"FeeApplied", domain.FeeApplied{FeeAmount: money.New(decimal.NewFromInt(5), "USD"), Reason: "maintenance"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tag, data, err := codec.Encode(tc.payload)
			require.NoError(t, err)
			assert.NotEmpty(t, tag)
			assert.NotEmpty(t, data)

			decoded, err := codec.Decode(tag, data)
			require.NoError(t, err)
			assert.Equal(t, tc.payload, decoded)
		})
	}
}

func TestTagFor_UnknownPayload(t *testing.T) {
	_, err := codec.TagFor(struct{ X int }{X: 1})

	require.Error(t, err)
	var codecErr *eventstore.CodecError
	assert.ErrorAs(t, err, &codecErr)
}

func TestEncode_UnknownPayload(t *testing.T) {
	_, _, err := codec.Encode(42)

	require.Error(t, err)
	var codecErr *eventstore.CodecError
	assert.ErrorAs(t, err, &codecErr)
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := codec.Decode("SomethingUnknown", []byte(`{}`))

	require.Error(t, err)
	var codecErr *eventstore.CodecError
	assert.ErrorAs(t, err, &codecErr)
	assert.Equal(t, "SomethingUnknown", codecErr.Tag)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := codec.Decode(domain.MoneyDepositedType, []byte(`{"amount": not-json}`))

	require.Error(t, err)
	var codecErr *eventstore.CodecError
	assert.ErrorAs(t, err, &codecErr)
	assert.Error(t, codecErr.Unwrap())
}

func TestDecodeEvent_PopulatesPayload(t *testing.T) {
	ev := eventstore.Event{Type: domain.AccountClosedType}

	decoded, err := codec.DecodeEvent(ev, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, domain.AccountClosed{}, decoded.Payload)
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	ev := eventstore.Event{Type: "NotARealType"}

	_, err := codec.DecodeEvent(ev, []byte(`{}`))

	require.Error(t, err)
	var codecErr *eventstore.CodecError
	assert.ErrorAs(t, err, &codecErr)
}

// Case-insensitive key matching: encoding/json decodes regardless of key
// casing, so payloads are resilient to producers that don't match the
// canonical camelCase schema exactly.
func TestDecode_CaseInsensitiveKeys(t *testing.T) {
	decoded, err := codec.Decode(domain.AccountHolderNameChangedType, []byte(`{"NEWACCOUNTHOLDERNAME":"Zoe"}`))

	require.NoError(t, err)
	assert.Equal(t, domain.AccountHolderNameChanged{NewAccountHolderName: "Zoe"}, decoded)
}
