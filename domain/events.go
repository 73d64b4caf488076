package domain

import (
	"github.com/shopspring/decimal"

	"github.com/AbdalrahmanBashir/EventSourcedBank/money"
)

// Event type tags. These are the canonical, on-wire names of the closed
// set of nine bank account events; the codec is the only place that maps
// between these tags and the payload structs below.
const (
	BankAccountOpenedType        = "BankAccountOpened"
	MoneyDepositedType           = "MoneyDeposited"
	MoneyWithdrawnType           = "MoneyWithdrawn"
	AccountFrozenType            = "AccountFrozen"
	AccountUnfrozenType          = "AccountUnfrozen"
	AccountClosedType            = "AccountClosed"
	OverdraftLimitChangedType    = "OverdraftLimitChanged"
	AccountHolderNameChangedType = "AccountHolderNameChanged"
	FeeAppliedType               = "FeeApplied"
)

type (
	// BankAccountOpened is raised when a new account is opened.
	BankAccountOpened struct {
		AccountHolder  string          `json:"accountHolder"`
		OverdraftLimit decimal.Decimal `json:"overdraftLimit"`
		InitialBalance money.Money     `json:"initialBalance"`
	}

	// MoneyDeposited is raised when funds are credited to the account.
	MoneyDeposited struct {
		Amount money.Money `json:"amount"`
	}

	// MoneyWithdrawn is raised when funds are debited from the account.
	MoneyWithdrawn struct {
		Amount money.Money `json:"amount"`
	}

	// AccountFrozen is raised when the account is frozen.
	AccountFrozen struct{}

	// AccountUnfrozen is raised when the account is unfrozen.
	AccountUnfrozen struct{}

	// AccountClosed is raised when the account is closed. The balance must
	// be exactly zero at this point.
	AccountClosed struct{}

	// OverdraftLimitChanged is raised when the overdraft limit changes.
	OverdraftLimitChanged struct {
		NewOverdraftLimit decimal.Decimal `json:"newOverdraftLimit"`
	}

	// AccountHolderNameChanged is raised when the holder name changes.
	AccountHolderNameChanged struct {
		NewAccountHolderName string `json:"newAccountHolderName"`
	}

	// FeeApplied is raised when a fee is deducted from the account.
	FeeApplied struct {
		FeeAmount money.Money `json:"feeAmount"`
		Reason    string      `json:"reason"`
	}
)
