// Package file stores ledger books as JSON documents in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/envelopes/internal/adapter/repository/document"
	"github.com/iho/envelopes/internal/domain"
)

const fileExt = ".json"

// BookRepository implements usecase.BookRepository on the local filesystem.
type BookRepository struct {
	dir    string
	logger zerolog.Logger

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewBookRepository creates a new BookRepository rooted at dir, creating it if needed.
func NewBookRepository(dir string, logger zerolog.Logger) (*BookRepository, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &domain.StorageError{Op: "init", Key: dir, Err: err}
	}
	return &BookRepository{
		dir:             dir,
		logger:          logger,
		maxRetries:      3,
		initialInterval: 20 * time.Millisecond,
		maxInterval:     500 * time.Millisecond,
	}, nil
}

// Path returns the file a book with key is stored in.
func (r *BookRepository) Path(key string) string {
	return filepath.Join(r.dir, key+fileExt)
}

// Exists reports whether a book is stored under key.
func (r *BookRepository) Exists(ctx context.Context, key string) (bool, error) {
	if err := domain.ValidateStorageKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(r.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &domain.StorageError{Op: "stat", Key: key, Err: err}
	}
}

// Load reads, verifies and decodes the book stored under key.
func (r *BookRepository) Load(ctx context.Context, key string) (*domain.Book, error) {
	if err := domain.ValidateStorageKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.StorageError{Op: "load", Key: key, Err: err}
	}

	data, err := os.ReadFile(r.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, key)
		}
		return nil, &domain.StorageError{Op: "load", Key: key, Err: err}
	}

	book, err := document.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return book, nil
}

// Save writes the book under key. The previous file is replaced atomically, so a failed
// or cancelled save leaves it intact.
func (r *BookRepository) Save(ctx context.Context, book *domain.Book, key string) error {
	if err := domain.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := document.Marshal(book)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval

	attempt := 0
	err = backoff.Retry(func() error {
		err := r.write(ctx, key, data)
		if err == nil {
			return nil
		}
		if !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}

		attempt++
		if attempt > r.maxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().Err(err).Str("storage_key", key).Int("retry", attempt).Msg("ledger book write failed, retrying")
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return &domain.StorageError{Op: "save", Key: key, Err: err}
	}
	return nil
}

func (r *BookRepository) write(ctx context.Context, key string, data []byte) (err error) {
	tmp, err := os.CreateTemp(r.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	// last point at which the caller can still abandon the save
	if err = ctx.Err(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), r.Path(key))
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, fs.ErrPermission) && !errors.Is(err, fs.ErrNotExist)
}
