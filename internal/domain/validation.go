package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidAccountName = fmt.Errorf("%w: invalid account name", ErrValidation)
	ErrInvalidBucketCode  = fmt.Errorf("%w: invalid bucket code", ErrValidation)
	ErrInvalidBookName    = fmt.Errorf("%w: invalid ledger book name", ErrValidation)
	ErrInvalidStorageKey  = fmt.Errorf("%w: invalid storage key", ErrValidation)
)

// Validation constants
const (
	MaxAccountNameLength = 100
	MaxBookNameLength    = 255
	MaxRemarksLength     = 1024
	MaxStorageKeyLength  = 128
)

var (
	bucketCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{0,19}$`)
	storageKeyRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-.]*$`)
)

// ValidateBucketCode validates an already normalized bucket code.
func ValidateBucketCode(code string) error {
	if !bucketCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q must be 1-20 upper-case letters, digits, '-' or '_'", ErrInvalidBucketCode, code)
	}
	return nil
}

// ValidateAccountName validates the name of a bank account.
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateBookName validates a ledger book name.
func ValidateBookName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidBookName)
	}

	if len(name) > MaxBookNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidBookName, MaxBookNameLength)
	}

	return nil
}

// ValidateStorageKey validates a storage key. Keys double as file names, so path
// separators and leading dots are rejected.
func ValidateStorageKey(key string) error {
	if key == "" {
		return ErrEmptyStorageKey
	}

	if len(key) > MaxStorageKeyLength {
		return fmt.Errorf("%w: key exceeds %d characters", ErrInvalidStorageKey, MaxStorageKeyLength)
	}

	if !storageKeyRegex.MatchString(key) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidStorageKey, key)
	}

	return nil
}
