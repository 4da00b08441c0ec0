package document

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/domain"
)

// Checksum sums every bank balance, balance adjustment and entry balance in the document.
func Checksum(doc *Book) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range doc.Lines {
		for _, bal := range l.BankBalances {
			sum = sum.Add(bal.Balance)
		}
		for _, adj := range l.BalanceAdjustments {
			sum = sum.Add(adj.Amount)
		}
		for _, e := range l.Entries {
			sum = sum.Add(e.Balance)
		}
	}
	return sum
}

// Seal stores the document's current checksum.
func Seal(doc *Book) {
	sum := Checksum(doc).String()
	doc.Checksum = &sum
}

// Verify compares the stored checksum with the document's contents. Documents without a
// stored checksum are accepted.
func Verify(doc *Book) error {
	if doc.Checksum == nil {
		return nil
	}

	stored, err := decimal.NewFromString(*doc.Checksum)
	if err != nil {
		return corrupt("checksum %q: %v", *doc.Checksum, err)
	}

	if actual := Checksum(doc); !actual.Equal(stored) {
		return fmt.Errorf("%w: stored checksum %s, contents sum to %s", domain.ErrTamperedData, stored, actual)
	}
	return nil
}
