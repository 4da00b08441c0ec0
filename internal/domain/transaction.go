package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger transaction.
type TransactionKind string

const (
	KindBudgetCredit      TransactionKind = "budget_credit"
	KindActualCredit      TransactionKind = "actual_credit"
	KindActualDebit       TransactionKind = "actual_debit"
	KindSupplement        TransactionKind = "supplement"
	KindRemoveExcess      TransactionKind = "remove_excess"
	KindBalanceAdjustment TransactionKind = "balance_adjustment"
)

var validKinds = map[TransactionKind]bool{
	KindBudgetCredit:      true,
	KindActualCredit:      true,
	KindActualDebit:       true,
	KindSupplement:        true,
	KindRemoveExcess:      true,
	KindBalanceAdjustment: true,
}

// IsValid checks if the kind is known.
func (k TransactionKind) IsValid() bool {
	return validKinds[k]
}

// IsCompensation reports whether the kind is only ever synthesized by settlement.
func (k TransactionKind) IsCompensation() bool {
	return k == KindSupplement || k == KindRemoveExcess
}

// ParseTransactionKind parses a kind name, case-insensitively.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, s)
	}
	return k, nil
}

// Transaction is a credit (positive amount) or debit (negative amount) within a period.
type Transaction struct {
	Date                  time.Time
	ID                    string
	Narrative             string
	AutoMatchingReference string
	Kind                  TransactionKind
	Amount                decimal.Decimal
}

// NewTransaction builds a transaction; kind defaults from the sign of amount when empty.
func NewTransaction(id string, kind TransactionKind, amount decimal.Decimal, narrative string, date time.Time) Transaction {
	if kind == "" {
		kind = KindActualCredit
		if amount.IsNegative() {
			kind = KindActualDebit
		}
	}
	return Transaction{
		ID:        id,
		Kind:      kind,
		Amount:    amount,
		Narrative: narrative,
		Date:      date,
	}
}

// IsCredit reports whether the transaction increases a balance.
func (t Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// Validate checks the transaction's shape.
func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return newValidationError(nil, "kind", fmt.Sprintf("must be a known transaction kind, got %q", t.Kind))
	}
	if t.Date.IsZero() {
		return newValidationError(nil, "date", "is required")
	}
	return nil
}

// SumAmounts totals the amounts of txns.
func SumAmounts(txns []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total
}

func cloneTransactions(txns []Transaction) []Transaction {
	if len(txns) == 0 {
		return nil
	}
	out := make([]Transaction, len(txns))
	copy(out, txns)
	return out
}
