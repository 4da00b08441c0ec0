package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/usecase"
)

// BucketResponse represents a tracked bucket in API responses.
type BucketResponse struct {
	Code    string `json:"code"`
	Account string `json:"account"`
}

// BucketFromDomain converts a domain bucket to response.
func BucketFromDomain(b domain.Bucket) BucketResponse {
	return BucketResponse{Code: b.Code, Account: b.StoredInAccount}
}

// TransactionResponse represents a settled transaction in API responses.
type TransactionResponse struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	Kind               string          `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	Narrative          string          `json:"narrative,omitempty"`
	AutoMatchReference string          `json:"auto_match_reference,omitempty"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                 t.ID,
		Date:               t.Date.Format(domain.DateLayout),
		Kind:               string(t.Kind),
		Amount:             t.Amount,
		Narrative:          t.Narrative,
		AutoMatchReference: t.AutoMatchingReference,
	}
}

func transactionsFromDomain(txns []domain.Transaction) []TransactionResponse {
	result := make([]TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// EntryResponse represents one bucket's settlement on a line.
type EntryResponse struct {
	BucketCode     string                `json:"bucket_code"`
	Account        string                `json:"account"`
	OpeningBalance decimal.Decimal       `json:"opening_balance"`
	ClosingBalance decimal.Decimal       `json:"closing_balance"`
	Transactions   []TransactionResponse `json:"transactions"`
}

// BankBalanceResponse is a statement balance.
type BankBalanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// LineResponse represents a reconciliation line in API responses.
type LineResponse struct {
	Date               string                `json:"date"`
	Remarks            string                `json:"remarks,omitempty"`
	BankBalances       []BankBalanceResponse `json:"bank_balances"`
	BalanceAdjustments []TransactionResponse `json:"balance_adjustments"`
	Entries            []EntryResponse       `json:"entries"`
	TotalBankBalance   decimal.Decimal       `json:"total_bank_balance"`
	LedgerBalance      decimal.Decimal       `json:"ledger_balance"`
	CalculatedSurplus  decimal.Decimal       `json:"calculated_surplus"`
}

// LineFromDomain converts a domain entry line to response.
func LineFromDomain(l *domain.EntryLine) *LineResponse {
	resp := &LineResponse{
		Date:               l.Date.Format(domain.DateLayout),
		Remarks:            l.Remarks,
		BankBalances:       make([]BankBalanceResponse, 0, len(l.BankBalances())),
		BalanceAdjustments: transactionsFromDomain(l.Adjustments()),
		Entries:            make([]EntryResponse, 0, len(l.Entries())),
		TotalBankBalance:   l.TotalBankBalance(),
		LedgerBalance:      l.LedgerBalance(),
		CalculatedSurplus:  l.CalculatedSurplus(),
	}
	for _, b := range l.BankBalances() {
		resp.BankBalances = append(resp.BankBalances, BankBalanceResponse{Account: b.Account, Balance: b.Balance})
	}
	for _, e := range l.Entries() {
		resp.Entries = append(resp.Entries, EntryResponse{
			BucketCode:     e.Bucket.Code,
			Account:        e.Bucket.StoredInAccount,
			OpeningBalance: e.OpeningBalance,
			ClosingBalance: e.ClosingBalance,
			Transactions:   transactionsFromDomain(e.Transactions()),
		})
	}
	return resp
}

// BookResponse represents a ledger book in API responses.
type BookResponse struct {
	StorageKey string           `json:"storage_key"`
	Name       string           `json:"name"`
	Modified   time.Time        `json:"modified"`
	SurplusSum decimal.Decimal  `json:"surplus_sum"`
	Buckets    []BucketResponse `json:"buckets"`
	Lines      []*LineResponse  `json:"lines"`
	TotalLines int              `json:"total_lines"`
}

// BookFromDomain converts a domain book to response. A positive limit keeps only the
// most recent lines.
func BookFromDomain(b *domain.Book, limit int) *BookResponse {
	lines := b.Lines()
	resp := &BookResponse{
		StorageKey: b.StorageKey,
		Name:       b.Name,
		Modified:   b.Modified,
		SurplusSum: b.SurplusSum(),
		Buckets:    make([]BucketResponse, 0, len(b.Buckets())),
		TotalLines: len(lines),
	}
	for _, bucket := range b.Buckets() {
		resp.Buckets = append(resp.Buckets, BucketFromDomain(bucket))
	}
	if limit > 0 && limit < len(lines) {
		lines = lines[len(lines)-limit:]
	}
	resp.Lines = make([]*LineResponse, len(lines))
	for i := range lines {
		resp.Lines[i] = LineFromDomain(&lines[i])
	}
	return resp
}

// VerifyResponse represents the outcome of an integrity check.
type VerifyResponse struct {
	StorageKey string          `json:"storage_key"`
	Valid      bool            `json:"valid"`
	Lines      int             `json:"lines"`
	Buckets    int             `json:"buckets"`
	SurplusSum decimal.Decimal `json:"surplus_sum"`
	Problems   []string        `json:"problems,omitempty"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// VerifyFromReport converts a verify report to response.
func VerifyFromReport(r *usecase.VerifyReport) *VerifyResponse {
	return &VerifyResponse{
		StorageKey: r.StorageKey,
		Valid:      r.Valid,
		Lines:      r.Lines,
		Buckets:    r.Buckets,
		SurplusSum: r.SurplusSum,
		Problems:   r.Problems,
		CheckedAt:  r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
