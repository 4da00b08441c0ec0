package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankBalance is the statement balance of one bank account on a reconciliation date.
type BankBalance struct {
	Account string
	Balance decimal.Decimal
}

// EntryLine is one dated reconciliation event. Once a newer line exists it is sealed;
// only Remarks may change.
type EntryLine struct {
	Date         time.Time
	Remarks      string
	bankBalances []BankBalance
	adjustments  []Transaction
	entries      []Entry
}

// NewEntryLine assembles a line from already settled entries.
func NewEntryLine(date time.Time, balances []BankBalance, adjustments []Transaction, entries []Entry, remarks string) EntryLine {
	b := make([]BankBalance, len(balances))
	copy(b, balances)
	e := make([]Entry, len(entries))
	copy(e, entries)
	return EntryLine{
		Date:         date,
		Remarks:      remarks,
		bankBalances: b,
		adjustments:  cloneTransactions(adjustments),
		entries:      e,
	}
}

// BankBalances returns a copy of the line's bank balances.
func (l EntryLine) BankBalances() []BankBalance {
	out := make([]BankBalance, len(l.bankBalances))
	copy(out, l.bankBalances)
	return out
}

// Adjustments returns a copy of the line's balance adjustments.
func (l EntryLine) Adjustments() []Transaction {
	return cloneTransactions(l.adjustments)
}

// Entries returns a copy of the line's entries.
func (l EntryLine) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Entry looks up the entry for a bucket code.
func (l EntryLine) Entry(code string) (Entry, bool) {
	code = NormalizeBucketCode(code)
	for _, e := range l.entries {
		if e.Bucket.Code == code {
			return e, true
		}
	}
	return Entry{}, false
}

// TotalBankBalance sums every bank balance on the line.
func (l EntryLine) TotalBankBalance() decimal.Decimal {
	total := decimal.Zero
	for _, b := range l.bankBalances {
		total = total.Add(b.Balance)
	}
	return total
}

// TotalAdjustments sums the balance adjustments.
func (l EntryLine) TotalAdjustments() decimal.Decimal {
	return SumAmounts(l.adjustments)
}

// LedgerBalance is the adjusted bank balance.
func (l EntryLine) LedgerBalance() decimal.Decimal {
	return l.TotalBankBalance().Add(l.TotalAdjustments())
}

// TotalClosingBalances sums the closing balance of every entry.
func (l EntryLine) TotalClosingBalances() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.entries {
		total = total.Add(e.ClosingBalance)
	}
	return total
}

// CalculatedSurplus is bank funds not allocated to any bucket.
func (l EntryLine) CalculatedSurplus() decimal.Decimal {
	return l.LedgerBalance().Sub(l.TotalClosingBalances())
}

// Validate checks every entry invariant on the line.
func (l EntryLine) Validate() error {
	if l.Date.IsZero() {
		return newValidationError(nil, "date", "is required")
	}
	for _, e := range l.entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}
