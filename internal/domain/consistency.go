package domain

import "github.com/shopspring/decimal"

// ConsistencyCheck guards a reconciliation: adding a line must not change the surplus
// of any line recorded before it.
type ConsistencyCheck struct {
	book   *Book
	before decimal.Decimal
	lines  int
}

// BeginConsistencyCheck records the surplus sum of every existing line.
func BeginConsistencyCheck(book *Book) *ConsistencyCheck {
	return &ConsistencyCheck{
		book:   book,
		before: book.SurplusSum(),
		lines:  len(book.lines),
	}
}

// Verify recomputes the surplus sum excluding the newest line and compares it with the
// sum recorded at Begin. A mismatch is a *CorruptedLedgerError.
func (c *ConsistencyCheck) Verify() error {
	after := c.book.SurplusSum()
	if latest, ok := c.book.LatestLine(); ok && len(c.book.lines) > c.lines {
		after = after.Sub(latest.CalculatedSurplus())
	}
	if !after.Equal(c.before) {
		return &CorruptedLedgerError{Expected: c.before, Actual: after}
	}
	return nil
}

// WithConsistencyCheck runs mutate between Begin and Verify. An error from mutate is
// returned as is; otherwise the result of Verify is returned.
func WithConsistencyCheck(book *Book, mutate func() error) error {
	check := BeginConsistencyCheck(book)
	if err := mutate(); err != nil {
		return err
	}
	return check.Verify()
}
