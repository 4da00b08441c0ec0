package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/usecase"
)

// BucketRequest names a bucket and the account holding its funds.
type BucketRequest struct {
	Code    string `json:"code"    validate:"required,max=20"`
	Account string `json:"account" validate:"required,max=100"`
}

// CreateBookRequest represents a request to create a ledger book.
type CreateBookRequest struct {
	Name       string          `json:"name"                  validate:"required,max=255"`
	StorageKey string          `json:"storage_key,omitempty" validate:"omitempty,max=128"`
	Buckets    []BucketRequest `json:"buckets,omitempty"     validate:"dive"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateBookRequest) ToUseCaseInput() usecase.CreateBookInput {
	buckets := make([]usecase.BucketInput, len(r.Buckets))
	for i, b := range r.Buckets {
		buckets[i] = b.ToUseCaseInput()
	}
	return usecase.CreateBookInput{
		Name:       r.Name,
		StorageKey: r.StorageKey,
		Buckets:    buckets,
	}
}

// ToUseCaseInput converts to use case input.
func (r *BucketRequest) ToUseCaseInput() usecase.BucketInput {
	return usecase.BucketInput{Code: r.Code, Account: r.Account}
}

// BankBalanceRequest is a statement balance.
type BankBalanceRequest struct {
	Account string          `json:"account" validate:"required,max=100"`
	Balance decimal.Decimal `json:"balance"`
}

// TransactionRequest is a proposed transaction. Kind defaults from the sign of Amount
// and Date from the reconciliation date.
type TransactionRequest struct {
	ID                 string          `json:"id,omitempty"                   validate:"omitempty,max=64"`
	Amount             decimal.Decimal `json:"amount"`
	Narrative          string          `json:"narrative,omitempty"            validate:"max=255"`
	Kind               string          `json:"kind,omitempty"`
	Date               string          `json:"date,omitempty"                 validate:"omitempty,datetime=2006-01-02"`
	AutoMatchReference string          `json:"auto_match_reference,omitempty" validate:"max=255"`
}

// ToDomain converts to a domain transaction.
func (r *TransactionRequest) ToDomain() (domain.Transaction, error) {
	t := domain.Transaction{
		ID:                    r.ID,
		Amount:                r.Amount,
		Narrative:             r.Narrative,
		AutoMatchingReference: r.AutoMatchReference,
	}
	if r.Kind != "" {
		kind, err := domain.ParseTransactionKind(r.Kind)
		if err != nil {
			return domain.Transaction{}, err
		}
		t.Kind = kind
	}
	if r.Date != "" {
		date, err := domain.ParseDate(r.Date)
		if err != nil {
			return domain.Transaction{}, err
		}
		t.Date = date
	}
	return t, nil
}

// ReconcileRequest represents a request to record a reconciliation.
type ReconcileRequest struct {
	Date               string                          `json:"date"                          validate:"required,datetime=2006-01-02"`
	Remarks            string                          `json:"remarks,omitempty"             validate:"max=1024"`
	BankBalances       []BankBalanceRequest            `json:"bank_balances"                 validate:"required,min=1,dive"`
	BalanceAdjustments []TransactionRequest            `json:"balance_adjustments,omitempty" validate:"dive"`
	Transactions       map[string][]TransactionRequest `json:"transactions,omitempty"        validate:"dive,keys,required,max=20,endkeys,dive"`
}

// ToDomain converts to domain reconciliation input.
func (r *ReconcileRequest) ToDomain() (domain.ReconcileInput, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return domain.ReconcileInput{}, err
	}

	input := domain.ReconcileInput{
		Date:         date,
		Remarks:      r.Remarks,
		BankBalances: make([]domain.BankBalance, len(r.BankBalances)),
		Transactions: make(map[string][]domain.Transaction, len(r.Transactions)),
	}
	for i, b := range r.BankBalances {
		input.BankBalances[i] = domain.BankBalance{Account: b.Account, Balance: b.Balance}
	}
	for _, adj := range r.BalanceAdjustments {
		t, err := adj.ToDomain()
		if err != nil {
			return domain.ReconcileInput{}, err
		}
		input.Adjustments = append(input.Adjustments, t)
	}
	for code, txns := range r.Transactions {
		batch := make([]domain.Transaction, 0, len(txns))
		for _, txn := range txns {
			t, err := txn.ToDomain()
			if err != nil {
				return domain.ReconcileInput{}, err
			}
			batch = append(batch, t)
		}
		input.Transactions[code] = batch
	}
	return input, nil
}

// RenameBookRequest represents a request to rename a ledger book.
type RenameBookRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// UpdateRemarksRequest represents a request to replace a line's remarks.
type UpdateRemarksRequest struct {
	Remarks string `json:"remarks" validate:"max=1024"`
}

// MoveBucketRequest represents a request to store a bucket's funds in another account.
type MoveBucketRequest struct {
	Account string `json:"account" validate:"required,max=100"`
}
