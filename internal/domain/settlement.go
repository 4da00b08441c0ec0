package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	NarrativeRemoveExcess = "Remove Excess"
	NarrativeSupplement   = "Supplement"
)

// Settlement is the outcome of settling one bucket for one period.
type Settlement struct {
	// Transactions holds the proposed transactions followed by the compensation, if any.
	Transactions []Transaction
	Balance      decimal.Decimal
	// Compensation is the synthesized transaction, nil when none was needed.
	Compensation *Transaction
}

// Settle decides a bucket's new balance from its prior closing balance and the
// period's proposed transactions.
//
// A batch without a budget credit accumulates freely: the balance moves by the sum of
// the batch and nothing is added. A batch with a budget credit G settles the bucket to
// max(opening, G) by appending one Remove Excess or Supplement transaction dated
// reconciliationDate, unless the closing balance already equals the target.
//
// Settle does not modify proposed. newID supplies the ID of a synthesized transaction.
func Settle(opening decimal.Decimal, proposed []Transaction, reconciliationDate time.Time, newID func() string) Settlement {
	txns := cloneTransactions(proposed)
	closing := opening.Add(SumAmounts(txns))

	budget, hasBudgetLine := budgetCredit(txns)
	if !hasBudgetLine {
		return Settlement{Transactions: txns, Balance: closing}
	}

	target := decimal.Max(opening, budget)
	diff := target.Sub(closing)

	var comp *Transaction
	switch diff.Sign() {
	case -1:
		t := NewTransaction(newID(), KindRemoveExcess, diff, NarrativeRemoveExcess, reconciliationDate)
		comp = &t
	case 1:
		t := NewTransaction(newID(), KindSupplement, diff, NarrativeSupplement, reconciliationDate)
		comp = &t
	default:
		return Settlement{Transactions: txns, Balance: closing}
	}

	txns = append(txns, *comp)
	return Settlement{Transactions: txns, Balance: target, Compensation: comp}
}

// SettleStrict is Settle with the batch validated first: every transaction must be
// well formed, there may be at most one budget credit and no pre-made compensations.
func SettleStrict(opening decimal.Decimal, proposed []Transaction, reconciliationDate time.Time, newID func() string) (Settlement, error) {
	if err := ValidateProposed(proposed); err != nil {
		return Settlement{}, err
	}
	return Settle(opening, proposed, reconciliationDate, newID), nil
}

// ValidateProposed checks a caller-supplied batch for one bucket.
func ValidateProposed(proposed []Transaction) error {
	budgetLines := 0
	for _, t := range proposed {
		if err := t.Validate(); err != nil {
			return err
		}
		switch {
		case t.Kind == KindBudgetCredit:
			budgetLines++
		case t.Kind.IsCompensation():
			return newValidationError(nil, "transactions", "compensating transactions are synthesized by reconciliation and cannot be supplied")
		case t.Kind == KindBalanceAdjustment:
			return newValidationError(nil, "transactions", "balance adjustments belong to the reconciliation line, not a bucket")
		}
	}
	if budgetLines > 1 {
		return newValidationError(nil, "transactions", "at most one budget credit per bucket")
	}
	return nil
}

func budgetCredit(txns []Transaction) (decimal.Decimal, bool) {
	for _, t := range txns {
		if t.Kind == KindBudgetCredit {
			return t.Amount, true
		}
	}
	return decimal.Zero, false
}
