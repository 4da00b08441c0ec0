package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/adapter/repository/document"
	"github.com/iho/envelopes/internal/domain"
)

func newTestBook(t *testing.T) *domain.Book {
	t.Helper()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	book, err := domain.NewBook("Household", "household", now)
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	if _, err := book.TrackBucket("POWER", "Cheque", now); err != nil {
		t.Fatalf("track bucket: %v", err)
	}
	ids := 0
	_, err = book.Reconcile(domain.ReconcileInput{
		Date:         time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		BankBalances: []domain.BankBalance{{Account: "Cheque", Balance: decimal.NewFromInt(250)}},
		Transactions: map[string][]domain.Transaction{
			"POWER": {{Kind: domain.KindBudgetCredit, Amount: decimal.NewFromInt(100)}},
		},
	}, now, func() string {
		ids++
		return fmt.Sprintf("txn-%d", ids)
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	return book
}

func newTestRepository(t *testing.T) (*BookRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mockPool := newMockPool(t)
	retrier := NewRetrier(zerolog.Nop())
	retrier.initialInterval = time.Millisecond
	retrier.maxInterval = time.Millisecond
	return newBookRepositoryWithPool(mockPool, retrier), mockPool
}

func TestBookRepositoryExists(t *testing.T) {
	repo, mockPool := newTestRepository(t)
	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("household").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "household")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatalf("expected book to exist")
	}

	assertExpectations(t, mockPool)
}

func TestBookRepositoryLoad(t *testing.T) {
	repo, mockPool := newTestRepository(t)
	book := newTestBook(t)

	data, err := document.Marshal(book)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mockPool.ExpectQuery("SELECT document FROM ledger_books").
		WithArgs("household").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(data))

	loaded, err := repo.Load(context.Background(), "household")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Name != "Household" || len(loaded.Lines()) != 1 {
		t.Fatalf("unexpected book %q with %d lines", loaded.Name, len(loaded.Lines()))
	}

	assertExpectations(t, mockPool)
}

func TestBookRepositoryLoadNotFound(t *testing.T) {
	repo, mockPool := newTestRepository(t)
	mockPool.ExpectQuery("SELECT document FROM ledger_books").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Load(context.Background(), "missing")
	if !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestBookRepositoryLoadTampered(t *testing.T) {
	repo, mockPool := newTestRepository(t)

	doc := document.FromDomain(newTestBook(t))
	doc.Lines[0].BankBalances[0].Balance = decimal.NewFromInt(1)
	data := mustJSON(t, doc)

	mockPool.ExpectQuery("SELECT document FROM ledger_books").
		WithArgs("household").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(data))

	_, err := repo.Load(context.Background(), "household")
	if !errors.Is(err, domain.ErrTamperedData) {
		t.Fatalf("expected ErrTamperedData, got %v", err)
	}
}

func TestBookRepositorySaveUpserts(t *testing.T) {
	repo, mockPool := newTestRepository(t)
	book := newTestBook(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO ledger_books").
		WithArgs("household", "Household", pgxmock.AnyArg(), pgxmock.AnyArg(), book.Modified).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	if err := repo.Save(context.Background(), book, "household"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestBookRepositorySaveRetriesSerializationFailure(t *testing.T) {
	repo, mockPool := newTestRepository(t)
	book := newTestBook(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO ledger_books").
		WithArgs("household", "Household", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrSerializationFailure})
	mockPool.ExpectRollback()
	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO ledger_books").
		WithArgs("household", "Household", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	if err := repo.Save(context.Background(), book, "household"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestBookRepositorySaveFailure(t *testing.T) {
	repo, mockPool := newTestRepository(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO ledger_books").
		WithArgs("household", "Household", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mockPool.ExpectRollback()

	err := repo.Save(context.Background(), newTestBook(t), "household")
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
