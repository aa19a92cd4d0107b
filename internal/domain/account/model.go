package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType represents the type of an account
type AccountType string

const (
	// Checking represents a checking account
	Checking AccountType = "checking"
	// Savings represents a savings account
	Savings AccountType = "savings"
	// Cash represents a cash account
	Cash AccountType = "cash"
	// Credit represents a credit card account
	Credit AccountType = "credit"
)

// KnownAccountTypes lists every valid account type.
var KnownAccountTypes = []string{
	string(Checking), string(Savings), string(Cash), string(Credit),
}

// Account represents a single-owner money account. Its balance is mutated
// only through the ledger, never directly, and always satisfies
//
//	balance == openingBalance + sum of signed effects of live transactions
//
// that reference the account as source or recipient.
type Account struct {
	OwnerID        string          `json:"ownerId"`
	AccountID      string          `json:"accountId"`
	Name           string          `json:"name"`
	AccountType    AccountType     `json:"accountType"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Balance        decimal.Decimal `json:"balance"`

	// Version is the optimistic-concurrency counter; every balance write is
	// conditioned on it and bumps it.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateAccountRequest represents the request to create a new account
type CreateAccountRequest struct {
	Name           string          `json:"name"`
	AccountType    AccountType     `json:"accountType"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}
