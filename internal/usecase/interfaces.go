package usecase

import (
	"context"
	"time"

	"github.com/iho/envelopes/internal/domain"
)

// BookRepository loads and saves ledger books by storage key.
type BookRepository interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Load returns domain.ErrBookNotFound, domain.ErrCorruptFormat or domain.ErrTamperedData
	// for missing, malformed or tampered documents.
	Load(ctx context.Context, key string) (*domain.Book, error)
	// Save stores the book under key together with a fresh checksum. It is all or nothing.
	Save(ctx context.Context, book *domain.Book, key string) error
}

// BookLocker serializes writers of a single ledger book.
type BookLocker interface {
	// Lock takes the exclusive lock for key.
	Lock(ctx context.Context, key string) (release func(), err error)
	// RLock takes a shared lock for key.
	RLock(ctx context.Context, key string) (release func(), err error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Recorder receives operational events for metrics.
type Recorder interface {
	ReconciliationRecorded(key string, line domain.EntryLine)
	LineRemoved(key string)
	IntegrityFailure(reason string)
	StorageOperation(op string, duration time.Duration, err error)
}

// Cache defines caching operations.
type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
