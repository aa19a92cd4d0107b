package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind represents the kind of a transaction
type Kind string

const (
	// Deposit credits the source account
	Deposit Kind = "deposit"
	// Withdrawal debits the source account
	Withdrawal Kind = "withdrawal"
	// Transfer debits the source account and credits the recipient
	Transfer Kind = "transfer"
	// Payment debits the source account
	Payment Kind = "payment"
	// Income credits the source account; used for settled income obligations
	Income Kind = "income"
	// Expense debits the source account; used for settled budget items
	Expense Kind = "expense"
)

// KnownKinds lists every valid transaction kind.
var KnownKinds = []string{
	string(Deposit), string(Withdrawal), string(Transfer),
	string(Payment), string(Income), string(Expense),
}

// SettlementKind discriminates the settlement tagged union.
type SettlementKind string

const (
	// SettlementNone marks a transaction with no linked obligation
	SettlementNone SettlementKind = ""
	// SettlementIncome links the transaction to an income obligation
	SettlementIncome SettlementKind = "income"
	// SettlementExpense links the transaction to an expense obligation
	SettlementExpense SettlementKind = "expense"
)

// Settlement is the tagged union linking a transaction to the recurring
// obligation it settles. The zero value means "not a settlement".
type Settlement struct {
	Kind         SettlementKind `json:"kind,omitempty"`
	ObligationID string         `json:"obligationId,omitempty"`
}

// None reports whether the transaction settles no obligation.
func (s Settlement) None() bool {
	return s.Kind == SettlementNone
}

// Matches reports whether two settlement references point at the same
// obligation.
func (s Settlement) Matches(other Settlement) bool {
	return s.Kind == other.Kind && s.ObligationID == other.ObligationID
}

// Transaction represents a balance-affecting ledger entry. Amount is always
// positive; the kind determines the sign of the effect. Amount and account
// references are immutable after creation — reconciling an edited amount
// against the already-applied balance effect is destroy+recreate territory.
type Transaction struct {
	TransactionID      string          `json:"transactionId"`
	OwnerID            string          `json:"ownerId"`
	AccountID          string          `json:"accountId"`
	RecipientAccountID string          `json:"recipientAccountId,omitempty"` // transfers only
	Amount             decimal.Decimal `json:"amount"`
	Kind               Kind            `json:"kind"`
	Description        string          `json:"description,omitempty"`
	ExecutedAt         time.Time       `json:"executedAt"`
	Settlement         Settlement      `json:"settlement,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// AccountIDs returns the account IDs the transaction touches.
func (t *Transaction) AccountIDs() []string {
	if t.Kind == Transfer {
		return []string{t.AccountID, t.RecipientAccountID}
	}
	return []string{t.AccountID}
}

// CreateParams represents the data needed to create a transaction
type CreateParams struct {
	AccountID          string          `json:"accountId"`
	RecipientAccountID string          `json:"recipientAccountId,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Kind               Kind            `json:"kind"`
	Description        string          `json:"description,omitempty"`
	ExecutedAt         time.Time       `json:"executedAt"`
	Settlement         Settlement      `json:"settlement,omitempty"`
}

// UpdateParams represents a request to update a transaction. Only descriptive
// fields may change; amount, kind and account references are rejected.
type UpdateParams struct {
	Description *string          `json:"description,omitempty"`
	ExecutedAt  *time.Time       `json:"executedAt,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Kind        *Kind            `json:"kind,omitempty"`
	AccountID   *string          `json:"accountId,omitempty"`
	RecipientID *string          `json:"recipientAccountId,omitempty"`
}
