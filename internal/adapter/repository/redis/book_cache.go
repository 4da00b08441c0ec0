package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/envelopes/internal/adapter/repository/document"
	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/usecase"
)

// CachedRepository caches sealed book documents in front of another repository.
// Cached documents are verified on every read, and a save invalidates the entry.
type CachedRepository struct {
	next   usecase.BookRepository
	cache  usecase.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepository creates a new CachedRepository.
func NewCachedRepository(next usecase.BookRepository, cache usecase.Cache, ttl time.Duration, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Exists reports whether a book is stored under key.
func (r *CachedRepository) Exists(ctx context.Context, key string) (bool, error) {
	if data, err := r.cache.Get(ctx, key); err == nil && data != nil {
		return true, nil
	}
	return r.next.Exists(ctx, key)
}

// Load returns the cached book when present and intact, and falls back to the
// underlying repository otherwise.
func (r *CachedRepository) Load(ctx context.Context, key string) (*domain.Book, error) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("storage_key", key).Msg("book cache read failed")
	}
	if data != nil {
		book, err := document.Unmarshal(data)
		if err == nil {
			return book, nil
		}
		r.logger.Warn().Err(err).Str("storage_key", key).Msg("discarding unreadable cached book")
		r.invalidate(ctx, key)
	}

	book, err := r.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	if data, err := document.Marshal(book); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("storage_key", key).Msg("book cache write failed")
		}
	}
	return book, nil
}

// Save saves through to the underlying repository and drops the cached copy.
func (r *CachedRepository) Save(ctx context.Context, book *domain.Book, key string) error {
	r.invalidate(ctx, key)
	if err := r.next.Save(ctx, book, key); err != nil {
		return err
	}
	r.invalidate(ctx, key)
	return nil
}

func (r *CachedRepository) invalidate(ctx context.Context, key string) {
	if err := r.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Warn().Err(err).Str("storage_key", key).Msg("book cache invalidation failed")
	}
}
