package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Reconciliation errors
	ErrDuplicateDate    = errors.New("reconciliation date must be after the most recent reconciliation")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnknownBucket    = errors.New("bucket is not tracked by this ledger book")
	ErrValidation       = errors.New("validation failed")

	// Bucket errors
	ErrBucketNotFound  = errors.New("bucket not found")
	ErrDuplicateBucket = errors.New("bucket is already tracked")

	// Integrity errors
	ErrCorruptedLedger = errors.New("ledger book is corrupt: previously reconciled lines changed")
	ErrTamperedData    = errors.New("ledger book has been tampered with")
	ErrCorruptFormat   = errors.New("ledger book document is not in a recognised format")

	// Storage errors
	ErrBookNotFound    = errors.New("ledger book not found")
	ErrStorage         = errors.New("ledger book storage failure")
	ErrLockNotObtained = errors.New("ledger book is locked by another writer")
	ErrLineNotFound    = errors.New("reconciliation line not found")
	ErrEmptyStorageKey = fmt.Errorf("%w: storage key cannot be empty", ErrValidation)
	ErrBookExists      = errors.New("ledger book already exists")
)

// ValidationError reports recoverable bad input with enough context to correct it.
type ValidationError struct {
	Field      string
	Constraint string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Unwrap(), e.Field, e.Constraint)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidation
	}
	return e.Err
}

// Is lets every ValidationError match ErrValidation as well as its cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(err error, field, constraint string) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Constraint: constraint, Err: err}
}

// CorruptedLedgerError is returned when sealed reconciliation lines changed during a mutation.
// It indicates a programming defect and must never be persisted.
type CorruptedLedgerError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *CorruptedLedgerError) Error() string {
	return fmt.Sprintf("%s (expected surplus sum %s, got %s)", ErrCorruptedLedger, e.Expected, e.Actual)
}

func (e *CorruptedLedgerError) Unwrap() error { return ErrCorruptedLedger }

// StorageError wraps transport failures while loading or saving a book.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
