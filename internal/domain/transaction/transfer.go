package transaction

import (
	"context"

	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	"github.com/gaboluque/monthly-budget-sub000/pkg/validator"
)

// Transfer coordination. A transfer debits the source and credits the
// recipient; both legs live in one effect set, so either both apply or
// neither does. There is no independent persistence path for a single leg.

// validateTransfer adds the transfer-specific field checks: the recipient
// must be present and distinct from the source.
func validateTransfer(errs validator.Errors, params *CreateParams) {
	if params.RecipientAccountID == "" {
		errs.Add("recipientAccountId", "is required for transfers")
		return
	}
	if params.RecipientAccountID == params.AccountID {
		errs.Add("recipientAccountId", "must differ from the source account")
	}
}

// transferMutations resolves both account aggregates and builds the paired
// debit/credit. With reverse set, it builds the inverse pair (credit source,
// debit recipient) used to undo a destroyed transfer; in that case missing
// accounts are invariant violations rather than validation errors.
func (l *Ledger) transferMutations(ctx context.Context, ownerID string, params *CreateParams, reverse bool) ([]AccountMutation, error) {
	resolve := l.resolveForCreate
	if reverse {
		resolve = l.resolveForReversal
	}

	source, err := resolve(ctx, ownerID, params.AccountID, "accountId")
	if err != nil {
		return nil, err
	}
	recipient, err := resolve(ctx, ownerID, params.RecipientAccountID, "recipientAccountId")
	if err != nil {
		return nil, err
	}

	debit, credit := params.Amount.Neg(), params.Amount
	if reverse {
		debit, credit = credit, debit
	}

	return []AccountMutation{
		{Account: source, Balance: source.Balance.Add(debit)},
		{Account: recipient, Balance: recipient.Balance.Add(credit)},
	}, nil
}

func (l *Ledger) resolveForCreate(ctx context.Context, ownerID, accountID, field string) (*account.Account, error) {
	return l.resolveAccount(ctx, ownerID, accountID, field)
}

func (l *Ledger) resolveForReversal(ctx context.Context, ownerID, accountID, _ string) (*account.Account, error) {
	return l.reversalAccount(ctx, ownerID, accountID)
}
