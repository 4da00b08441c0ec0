package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/envelopes/internal/adapter/repository/document"
	"github.com/iho/envelopes/internal/domain"
)

const (
	existsBookSQL = `SELECT EXISTS (SELECT 1 FROM ledger_books WHERE storage_key = $1)`

	loadBookSQL = `SELECT document FROM ledger_books WHERE storage_key = $1`

	upsertBookSQL = `INSERT INTO ledger_books (storage_key, name, checksum, document, modified_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (storage_key) DO UPDATE SET
    name = EXCLUDED.name,
    checksum = EXCLUDED.checksum,
    document = EXCLUDED.document,
    modified_at = EXCLUDED.modified_at`
)

// BookRepository implements usecase.BookRepository with one JSONB row per book.
type BookRepository struct {
	pool    pgxPool
	tx      *TxManager
	retrier *Retrier
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(pool *pgxpool.Pool, retrier *Retrier) *BookRepository {
	return newBookRepositoryWithPool(pool, retrier)
}

func newBookRepositoryWithPool(pool pgxPool, retrier *Retrier) *BookRepository {
	return &BookRepository{
		pool:    pool,
		tx:      newTxManagerWithPool(pool),
		retrier: retrier,
	}
}

// Exists reports whether a book is stored under key.
func (r *BookRepository) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsBookSQL, key).Scan(&exists); err != nil {
		return false, &domain.StorageError{Op: "exists", Key: key, Err: err}
	}
	return exists, nil
}

// Load reads, verifies and decodes the book stored under key.
func (r *BookRepository) Load(ctx context.Context, key string) (*domain.Book, error) {
	var data []byte
	if err := r.pool.QueryRow(ctx, loadBookSQL, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

// Save upserts the book under key in a transaction.
func (r *BookRepository) Save(ctx context.Context, book *domain.Book, key string) error {
	doc := document.FromDomain(book)
	data, err := json.Marshal(doc)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}

	err = r.retrier.Retry(ctx, func() error {
		return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, upsertBookSQL, key, book.Name, doc.Checksum, data, book.Modified)
			return err
		})
	})
	if err != nil {
		return &domain.StorageError{Op: "save", Key: key, Err: err}
	}
	return nil
}
