package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Entry is one bucket's state for one reconciliation period.
type Entry struct {
	Bucket         Bucket
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	transactions   []Transaction
}

// NewEntry builds an entry whose closing balance follows from its transactions.
func NewEntry(bucket Bucket, opening decimal.Decimal, txns []Transaction) Entry {
	txns = cloneTransactions(txns)
	return Entry{
		Bucket:         bucket,
		OpeningBalance: opening,
		ClosingBalance: opening.Add(SumAmounts(txns)),
		transactions:   txns,
	}
}

// Transactions returns a copy of the entry's transactions.
func (e Entry) Transactions() []Transaction {
	return cloneTransactions(e.transactions)
}

// NetAmount is the total movement for the period.
func (e Entry) NetAmount() decimal.Decimal {
	return SumAmounts(e.transactions)
}

// Validate checks closing == opening + sum(transactions).
func (e Entry) Validate() error {
	want := e.OpeningBalance.Add(e.NetAmount())
	if !want.Equal(e.ClosingBalance) {
		return fmt.Errorf("%w: entry %s closing balance %s does not equal opening %s plus transactions %s",
			ErrCorruptedLedger, e.Bucket.Code, e.ClosingBalance, e.OpeningBalance, e.NetAmount())
	}
	for _, t := range e.transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("entry %s transaction %s: %w", e.Bucket.Code, t.ID, err)
		}
	}
	return nil
}
