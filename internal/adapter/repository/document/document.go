// Package document maps ledger books to and from their persisted JSON form and guards
// them with a checksum.
package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/domain"
)

// Book is the persisted form of a ledger book.
type Book struct {
	Name       string    `json:"name"`
	StorageKey string    `json:"storage_key"`
	Modified   time.Time `json:"modified"`
	Checksum   *string   `json:"checksum,omitempty"`
	Buckets    []Bucket  `json:"buckets"`
	Lines      []Line    `json:"lines"`
}

// Bucket is a tracked bucket and the account currently holding its funds.
type Bucket struct {
	Code    string `json:"code"`
	Account string `json:"account"`
}

// Line is one reconciliation.
type Line struct {
	Date               string        `json:"date"`
	Remarks            string        `json:"remarks,omitempty"`
	BankBalances       []BankBalance `json:"bank_balances"`
	BalanceAdjustments []Transaction `json:"balance_adjustments,omitempty"`
	Entries            []Entry       `json:"entries"`
}

// BankBalance is a statement balance.
type BankBalance struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// Entry stores a bucket's closing balance. The opening balance is not persisted; it is
// the closing balance of the same bucket on the previous line.
type Entry struct {
	BucketCode   string          `json:"bucket_code"`
	Account      string          `json:"account"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
}

// Transaction is a persisted money transaction.
type Transaction struct {
	ID                 string          `json:"id"`
	Amount             decimal.Decimal `json:"amount"`
	Narrative          string          `json:"narrative,omitempty"`
	Date               string          `json:"date"`
	Kind               string          `json:"kind"`
	AutoMatchReference string          `json:"auto_match_reference,omitempty"`
}

// FromDomain converts a ledger book into its persisted form and seals it with a checksum.
func FromDomain(book *domain.Book) *Book {
	doc := &Book{
		Name:       book.Name,
		StorageKey: book.StorageKey,
		Modified:   book.Modified.UTC(),
		Buckets:    []Bucket{},
		Lines:      []Line{},
	}

	for _, b := range book.Buckets() {
		doc.Buckets = append(doc.Buckets, Bucket{Code: b.Code, Account: b.StoredInAccount})
	}

	for _, l := range book.Lines() {
		line := Line{
			Date:         l.Date.Format(domain.DateLayout),
			Remarks:      l.Remarks,
			BankBalances: []BankBalance{},
			Entries:      []Entry{},
		}
		for _, bal := range l.BankBalances() {
			line.BankBalances = append(line.BankBalances, BankBalance{Account: bal.Account, Balance: bal.Balance})
		}
		for _, adj := range l.Adjustments() {
			line.BalanceAdjustments = append(line.BalanceAdjustments, transactionFromDomain(adj))
		}
		for _, e := range l.Entries() {
			entry := Entry{
				BucketCode:   e.Bucket.Code,
				Account:      e.Bucket.StoredInAccount,
				Balance:      e.ClosingBalance,
				Transactions: []Transaction{},
			}
			for _, t := range e.Transactions() {
				entry.Transactions = append(entry.Transactions, transactionFromDomain(t))
			}
			line.Entries = append(line.Entries, entry)
		}
		doc.Lines = append(doc.Lines, line)
	}

	Seal(doc)
	return doc
}

func transactionFromDomain(t domain.Transaction) Transaction {
	return Transaction{
		ID:                 t.ID,
		Amount:             t.Amount,
		Narrative:          t.Narrative,
		Date:               t.Date.Format(domain.DateLayout),
		Kind:               string(t.Kind),
		AutoMatchReference: t.AutoMatchingReference,
	}
}

// ToDomain rebuilds a ledger book. It does not check the checksum; call Verify first.
func ToDomain(doc *Book) (*domain.Book, error) {
	buckets := make([]domain.Bucket, 0, len(doc.Buckets))
	known := make(map[string]bool, len(doc.Buckets))
	for _, b := range doc.Buckets {
		bucket, err := domain.NewBucket(b.Code, b.Account)
		if err != nil {
			return nil, corrupt("bucket %q: %v", b.Code, err)
		}
		if known[bucket.Code] {
			return nil, corrupt("bucket %q listed more than once", bucket.Code)
		}
		known[bucket.Code] = true
		buckets = append(buckets, bucket)
	}

	lines := make([]domain.EntryLine, 0, len(doc.Lines))
	previous := map[string]decimal.Decimal{}
	var lastDate time.Time
	for i, l := range doc.Lines {
		date, err := time.Parse(domain.DateLayout, l.Date)
		if err != nil {
			return nil, corrupt("line date %q: %v", l.Date, err)
		}
		if i > 0 && !date.After(lastDate) {
			return nil, corrupt("line %s is not after %s", l.Date, lastDate.Format(domain.DateLayout))
		}
		lastDate = date

		balances := make([]domain.BankBalance, 0, len(l.BankBalances))
		for _, bal := range l.BankBalances {
			balances = append(balances, domain.BankBalance{Account: bal.Account, Balance: bal.Balance})
		}

		adjustments, err := transactionsToDomain(l.BalanceAdjustments)
		if err != nil {
			return nil, corrupt("line %s adjustments: %v", l.Date, err)
		}

		entries := make([]domain.Entry, 0, len(l.Entries))
		current := make(map[string]decimal.Decimal, len(l.Entries))
		for _, e := range l.Entries {
			if !known[e.BucketCode] {
				return nil, corrupt("line %s: entry for untracked bucket %q", l.Date, e.BucketCode)
			}
			txns, err := transactionsToDomain(e.Transactions)
			if err != nil {
				return nil, corrupt("line %s bucket %s: %v", l.Date, e.BucketCode, err)
			}
			entry := domain.NewEntry(domain.Bucket{Code: e.BucketCode, StoredInAccount: e.Account}, previous[e.BucketCode], txns)
			if !entry.ClosingBalance.Equal(e.Balance) {
				return nil, corrupt("line %s bucket %s: balance %s does not follow from its transactions (%s)",
					l.Date, e.BucketCode, e.Balance, entry.ClosingBalance)
			}
			current[e.BucketCode] = entry.ClosingBalance
			entries = append(entries, entry)
		}
		previous = current

		lines = append(lines, domain.NewEntryLine(date, balances, adjustments, entries, l.Remarks))
	}

	return domain.RestoreBook(doc.Name, doc.StorageKey, doc.Modified, buckets, lines), nil
}

func transactionsToDomain(in []Transaction) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(in))
	for _, t := range in {
		kind, err := domain.ParseTransactionKind(t.Kind)
		if err != nil {
			return nil, err
		}
		date, err := time.Parse(domain.DateLayout, t.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %s date %q: %w", t.ID, t.Date, err)
		}
		txn := domain.NewTransaction(t.ID, kind, t.Amount, t.Narrative, date)
		txn.AutoMatchingReference = t.AutoMatchReference
		out = append(out, txn)
	}
	return out, nil
}

// Marshal encodes a ledger book as a sealed JSON document.
func Marshal(book *domain.Book) ([]byte, error) {
	return json.MarshalIndent(FromDomain(book), "", "  ")
}

// Unmarshal decodes a JSON document, verifies its checksum and rebuilds the book.
func Unmarshal(data []byte) (*domain.Book, error) {
	var doc Book
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, corrupt("%v", err)
	}
	if err := Verify(&doc); err != nil {
		return nil, err
	}
	return ToDomain(&doc)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrCorruptFormat, fmt.Sprintf(format, args...))
}
