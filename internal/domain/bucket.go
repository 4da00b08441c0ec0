package domain

import (
	"sort"
	"strings"
)

// Bucket pairs a budget category code with the bank account its funds are held in.
// Identity is the code alone.
type Bucket struct {
	Code            string
	StoredInAccount string
}

// NewBucket normalizes and validates a bucket.
func NewBucket(code, account string) (Bucket, error) {
	code = NormalizeBucketCode(code)
	if err := ValidateBucketCode(code); err != nil {
		return Bucket{}, err
	}
	account = strings.TrimSpace(account)
	if err := ValidateAccountName(account); err != nil {
		return Bucket{}, err
	}
	return Bucket{Code: code, StoredInAccount: account}, nil
}

// NormalizeBucketCode trims and upper-cases a bucket code.
func NormalizeBucketCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SameBucket reports whether both buckets have the same code, regardless of account.
func (b Bucket) SameBucket(other Bucket) bool {
	return b.Code == other.Code
}

func (b Bucket) String() string {
	return b.Code + " (" + b.StoredInAccount + ")"
}

func sortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Code < buckets[j].Code
	})
}
