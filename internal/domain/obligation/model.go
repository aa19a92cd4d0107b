package obligation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
)

// Kind represents the kind of a recurring obligation
type Kind string

const (
	// Income is money expected to arrive each cycle (salary, rent received)
	Income Kind = "income"
	// Expense is a budget item expected to be paid each cycle
	Expense Kind = "expense"
)

// KnownKinds lists every valid obligation kind.
var KnownKinds = []string{string(Income), string(Expense)}

// Frequency represents the settlement cycle of an obligation
type Frequency string

const (
	// Monthly obligations settle once per calendar month
	Monthly Frequency = "monthly"
)

// KnownFrequencies lists every valid frequency.
var KnownFrequencies = []string{string(Monthly)}

// State is the derived settlement state of an obligation
type State string

const (
	// Pending means the obligation has not been settled this month
	Pending State = "pending"
	// SettledThisMonth means lastSettledAt falls inside the current month
	SettledThisMonth State = "settled"
)

// RecurringObligation is a recurring income source or budget item. Its
// Pending/Settled state is never stored: it is derived from LastSettledAt
// against a reference clock, so the state can never drift from the timestamp
// it reflects.
type RecurringObligation struct {
	ObligationID  string          `json:"obligationId"`
	OwnerID       string          `json:"ownerId"`
	Name          string          `json:"name"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Frequency     Frequency       `json:"frequency"`
	AccountID     string          `json:"accountId"`
	LastSettledAt *time.Time      `json:"lastSettledAt,omitempty"`

	// Version is the optimistic-concurrency counter for LastSettledAt writes.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State derives the settlement state at the given instant.
func (o *RecurringObligation) State(now time.Time) State {
	if o.LastSettledAt == nil {
		return Pending
	}
	start, end := clock.MonthWindow(now)
	ts := o.LastSettledAt.UTC()
	if !ts.Before(start) && ts.Before(end) {
		return SettledThisMonth
	}
	return Pending
}

// CreateObligationRequest represents the request to create an obligation
type CreateObligationRequest struct {
	Name      string          `json:"name"`
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency Frequency       `json:"frequency"`
	AccountID string          `json:"accountId"`
}
