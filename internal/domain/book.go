package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Book is the ledger book aggregate: the tracked buckets plus an append-only,
// oldest-first sequence of reconciliation lines.
//
// A Book is not safe for concurrent use; usecase.LedgerUseCase serializes access.
type Book struct {
	Modified   time.Time
	Name       string
	StorageKey string
	buckets    []Bucket
	lines      []EntryLine
}

// NewBook creates an empty ledger book.
func NewBook(name, storageKey string, now time.Time) (*Book, error) {
	if err := ValidateBookName(name); err != nil {
		return nil, err
	}
	if err := ValidateStorageKey(storageKey); err != nil {
		return nil, err
	}
	return &Book{
		Name:       strings.TrimSpace(name),
		StorageKey: storageKey,
		Modified:   now.UTC(),
	}, nil
}

// RestoreBook rehydrates a book from storage without running reconciliation.
// Callers should Validate the result.
func RestoreBook(name, storageKey string, modified time.Time, buckets []Bucket, lines []EntryLine) *Book {
	b := &Book{
		Name:       name,
		StorageKey: storageKey,
		Modified:   modified,
		buckets:    append([]Bucket(nil), buckets...),
		lines:      append([]EntryLine(nil), lines...),
	}
	sortBuckets(b.buckets)
	return b
}

// Buckets returns the tracked buckets ordered by code.
func (b *Book) Buckets() []Bucket {
	return append([]Bucket(nil), b.buckets...)
}

// Bucket looks up a tracked bucket by code.
func (b *Book) Bucket(code string) (Bucket, bool) {
	code = NormalizeBucketCode(code)
	for _, bucket := range b.buckets {
		if bucket.Code == code {
			return bucket, true
		}
	}
	return Bucket{}, false
}

// Lines returns the reconciliation lines, oldest first.
func (b *Book) Lines() []EntryLine {
	return append([]EntryLine(nil), b.lines...)
}

// LatestLine returns the most recent reconciliation line.
func (b *Book) LatestLine() (EntryLine, bool) {
	if len(b.lines) == 0 {
		return EntryLine{}, false
	}
	return b.lines[len(b.lines)-1], true
}

// Line finds the line reconciled on date.
func (b *Book) Line(date time.Time) (EntryLine, bool) {
	date = DateOnly(date)
	for _, l := range b.lines {
		if l.Date.Equal(date) {
			return l, true
		}
	}
	return EntryLine{}, false
}

// ClosingBalance is the bucket's balance after the latest reconciliation, zero if it
// has never been reconciled.
func (b *Book) ClosingBalance(code string) decimal.Decimal {
	latest, ok := b.LatestLine()
	if !ok {
		return decimal.Zero
	}
	if e, ok := latest.Entry(code); ok {
		return e.ClosingBalance
	}
	return decimal.Zero
}

// SurplusSum totals the calculated surplus of every line.
func (b *Book) SurplusSum() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lines {
		total = total.Add(l.CalculatedSurplus())
	}
	return total
}

// TrackBucket starts tracking a bucket. It gets an entry from the next reconciliation on.
func (b *Book) TrackBucket(code, account string, now time.Time) (Bucket, error) {
	bucket, err := NewBucket(code, account)
	if err != nil {
		return Bucket{}, err
	}
	if _, exists := b.Bucket(bucket.Code); exists {
		return Bucket{}, fmt.Errorf("%w: %s", ErrDuplicateBucket, bucket.Code)
	}
	b.buckets = append(b.buckets, bucket)
	sortBuckets(b.buckets)
	b.Modified = now.UTC()
	return bucket, nil
}

// SetBucketAccount moves a bucket's funds to another account for future reconciliations.
// Entries already recorded keep the account they were reconciled against.
func (b *Book) SetBucketAccount(code, account string, now time.Time) error {
	code = NormalizeBucketCode(code)
	account = strings.TrimSpace(account)
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	for i := range b.buckets {
		if b.buckets[i].Code == code {
			b.buckets[i].StoredInAccount = account
			b.Modified = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrBucketNotFound, code)
}

// Rename changes the book's display name.
func (b *Book) Rename(name string, now time.Time) error {
	if err := ValidateBookName(name); err != nil {
		return err
	}
	b.Name = strings.TrimSpace(name)
	b.Modified = now.UTC()
	return nil
}

// UpdateRemarks replaces the remarks of the line reconciled on date.
func (b *Book) UpdateRemarks(date time.Time, remarks string, now time.Time) error {
	if len(remarks) > MaxRemarksLength {
		return newValidationError(nil, "remarks", fmt.Sprintf("must not exceed %d characters", MaxRemarksLength))
	}
	date = DateOnly(date)
	for i := range b.lines {
		if b.lines[i].Date.Equal(date) {
			b.lines[i].Remarks = remarks
			b.Modified = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLineNotFound, date.Format(DateLayout))
}

// RemoveLine removes the line reconciled on date. Only the most recent line may be removed.
func (b *Book) RemoveLine(date time.Time, now time.Time) error {
	date = DateOnly(date)
	latest, ok := b.LatestLine()
	if !ok {
		return fmt.Errorf("%w: %s", ErrLineNotFound, date.Format(DateLayout))
	}
	if !latest.Date.Equal(date) {
		if _, exists := b.Line(date); exists {
			return fmt.Errorf("%w: only the most recent reconciliation (%s) can be removed",
				ErrInvalidOperation, latest.Date.Format(DateLayout))
		}
		return fmt.Errorf("%w: %s", ErrLineNotFound, date.Format(DateLayout))
	}
	b.lines = b.lines[:len(b.lines)-1]
	b.Modified = now.UTC()
	return nil
}

// ReconcileInput is everything a caller supplies for one reconciliation.
type ReconcileInput struct {
	Date         time.Time
	Remarks      string
	BankBalances []BankBalance
	Adjustments  []Transaction
	// Transactions holds the proposed transactions keyed by bucket code. Buckets
	// without an item settle with an empty batch.
	Transactions map[string][]Transaction
}

// Reconcile settles every tracked bucket and appends a new line. On error the book is
// unchanged. newID supplies IDs for synthesized and ID-less transactions.
func (b *Book) Reconcile(input ReconcileInput, now time.Time, newID func() string) (*EntryLine, error) {
	date := DateOnly(input.Date)
	if input.Date.IsZero() {
		return nil, newValidationError(nil, "date", "is required")
	}
	if latest, ok := b.LatestLine(); ok && !date.After(latest.Date) {
		return nil, newValidationError(ErrDuplicateDate, "date",
			fmt.Sprintf("must be after %s, got %s", latest.Date.Format(DateLayout), date.Format(DateLayout)))
	}

	balances, err := normalizeBankBalances(input.BankBalances)
	if err != nil {
		return nil, err
	}

	adjustments := make([]Transaction, 0, len(input.Adjustments))
	for _, t := range input.Adjustments {
		t = withDefaults(t, KindBalanceAdjustment, date, newID)
		if t.Kind != KindBalanceAdjustment {
			return nil, newValidationError(nil, "balance_adjustments", "must be balance adjustment transactions")
		}
		adjustments = append(adjustments, t)
	}

	codes := make([]string, 0, len(input.Transactions))
	for code := range input.Transactions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	proposed := make(map[string][]Transaction, len(input.Transactions))
	for _, raw := range codes {
		txns := input.Transactions[raw]
		code := NormalizeBucketCode(raw)
		if _, ok := b.Bucket(code); !ok {
			return nil, newValidationError(ErrUnknownBucket, "transactions", fmt.Sprintf("bucket %q is not tracked", code))
		}
		batch := proposed[code]
		for _, t := range txns {
			batch = append(batch, withDefaults(t, "", date, newID))
		}
		if err := ValidateProposed(batch); err != nil {
			return nil, fmt.Errorf("bucket %s: %w", code, err)
		}
		proposed[code] = batch
	}

	entries := make([]Entry, 0, len(b.buckets))
	for _, bucket := range b.buckets {
		opening := b.ClosingBalance(bucket.Code)
		s := Settle(opening, proposed[bucket.Code], date, newID)
		entries = append(entries, NewEntry(bucket, opening, s.Transactions))
	}

	line := NewEntryLine(date, balances, adjustments, entries, input.Remarks)
	if err := line.Validate(); err != nil {
		return nil, err
	}

	b.lines = append(b.lines, line)
	b.Modified = now.UTC()
	return &line, nil
}

// Validate checks the whole book: line ordering, entry invariants and that every
// opening balance carries over from the previous line.
func (b *Book) Validate() error {
	var errs []error
	if err := ValidateBookName(b.Name); err != nil {
		errs = append(errs, err)
	}

	previous := map[string]decimal.Decimal{}
	for i, l := range b.lines {
		if i > 0 && !l.Date.After(b.lines[i-1].Date) {
			errs = append(errs, newValidationError(ErrDuplicateDate, "lines",
				fmt.Sprintf("line %s is not after %s", l.Date.Format(DateLayout), b.lines[i-1].Date.Format(DateLayout))))
		}
		if err := l.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("line %s: %w", l.Date.Format(DateLayout), err))
		}
		current := make(map[string]decimal.Decimal, len(l.entries))
		for _, e := range l.entries {
			if _, ok := b.Bucket(e.Bucket.Code); !ok {
				errs = append(errs, fmt.Errorf("line %s: %w: %s", l.Date.Format(DateLayout), ErrUnknownBucket, e.Bucket.Code))
			}
			if want := previous[e.Bucket.Code]; !want.Equal(e.OpeningBalance) {
				errs = append(errs, fmt.Errorf("line %s: %w: bucket %s opens at %s, previous close was %s",
					l.Date.Format(DateLayout), ErrCorruptedLedger, e.Bucket.Code, e.OpeningBalance, want))
			}
			current[e.Bucket.Code] = e.ClosingBalance
		}
		previous = current
	}
	return errors.Join(errs...)
}

func normalizeBankBalances(in []BankBalance) ([]BankBalance, error) {
	if len(in) == 0 {
		return nil, newValidationError(nil, "bank_balances", "at least one bank balance is required")
	}
	seen := make(map[string]bool, len(in))
	out := make([]BankBalance, 0, len(in))
	for _, bal := range in {
		bal.Account = strings.TrimSpace(bal.Account)
		if err := ValidateAccountName(bal.Account); err != nil {
			return nil, newValidationError(err, "bank_balances", "account name is required")
		}
		if seen[bal.Account] {
			return nil, newValidationError(nil, "bank_balances", fmt.Sprintf("account %q listed more than once", bal.Account))
		}
		seen[bal.Account] = true
		out = append(out, bal)
	}
	return out, nil
}

func withDefaults(t Transaction, kind TransactionKind, date time.Time, newID func() string) Transaction {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Date.IsZero() {
		t.Date = date
	}
	if t.Kind == "" {
		t.Kind = kind
	}
	if t.Kind == "" {
		t.Kind = KindActualCredit
		if t.Amount.IsNegative() {
			t.Kind = KindActualDebit
		}
	}
	return t
}
