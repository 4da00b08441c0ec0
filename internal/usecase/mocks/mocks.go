package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/iho/envelopes/internal/domain"
)

// MemoryBookRepository is an in-memory implementation of usecase.BookRepository.
// Books are stored by pointer, so tests can inspect what was saved.
type MemoryBookRepository struct {
	mu    sync.RWMutex
	books map[string]*domain.Book
	saves int

	LoadFunc func(ctx context.Context, key string) (*domain.Book, error)
	SaveFunc func(ctx context.Context, book *domain.Book, key string) error
}

func NewMemoryBookRepository() *MemoryBookRepository {
	return &MemoryBookRepository{
		books: make(map[string]*domain.Book),
	}
}

func (m *MemoryBookRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.books[key]
	return ok, nil
}

func (m *MemoryBookRepository) Load(ctx context.Context, key string) (*domain.Book, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, key)
	}
	// hand out a copy so an aborted mutation never leaks into the stored book
	return domain.RestoreBook(book.Name, book.StorageKey, book.Modified, book.Buckets(), book.Lines()), nil
}

func (m *MemoryBookRepository) Save(ctx context.Context, book *domain.Book, key string) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, book, key)
	}
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "save", Key: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[key] = book
	m.saves++
	return nil
}

// Stored returns the last saved book for key.
func (m *MemoryBookRepository) Stored(key string) *domain.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[key]
}

// Saves counts successful saves.
func (m *MemoryBookRepository) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// SequenceIDGenerator hands out prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.Prefix, g.n)
}
