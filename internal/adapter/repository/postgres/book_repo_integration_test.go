package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/envelopes/internal/adapter/idgen"
	"github.com/iho/envelopes/internal/domain"
	infrapostgres "github.com/iho/envelopes/internal/infrastructure/postgres"
	"github.com/iho/envelopes/internal/usecase"
)

const migrationsPath = "../../../infrastructure/postgres/migrations"

// newIntegrationPool connects to DATABASE_URL, skipping when it is unset.
func newIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	require.NoError(t, infrapostgres.RunMigrations(dbURL, migrationsPath))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infrapostgres.NewPool(ctx, dbURL, 10, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE ledger_books")
	require.NoError(t, err)

	return pool
}

func TestBookRepositoryIntegration_SaveLoad(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewBookRepository(pool, NewRetrier(zerolog.Nop()))
	ctx := context.Background()

	book := newTestBook(t)
	require.NoError(t, repo.Save(ctx, book, "household"))

	exists, err := repo.Exists(ctx, "household")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := repo.Load(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, book.Name, loaded.Name)
	assert.True(t, loaded.SurplusSum().Equal(book.SurplusSum()))

	require.NoError(t, loaded.Rename("Family", time.Now()))
	require.NoError(t, repo.Save(ctx, loaded, "household"))

	var name, checksum string
	err = pool.QueryRow(ctx, "SELECT name, checksum FROM ledger_books WHERE storage_key = $1", "household").Scan(&name, &checksum)
	require.NoError(t, err)
	assert.Equal(t, "Family", name)
	// bank 250 + POWER 100
	assert.True(t, decimal.RequireFromString(checksum).Equal(decimal.NewFromInt(350)))
}

func TestBookRepositoryIntegration_ConcurrentMutations(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewBookRepository(pool, NewRetrier(zerolog.Nop()))
	ctx := context.Background()

	ledger := usecase.NewLedgerUseCase(
		repo,
		usecase.NewLocalLocker(),
		idgen.NewUUIDGenerator(),
		idgen.NewULIDGenerator(),
		nil,
		zerolog.Nop(),
	)

	_, err := ledger.CreateBook(ctx, usecase.CreateBookInput{Name: "Household", StorageKey: "household"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.TrackBucket(ctx, "household", usecase.BucketInput{Code: fmt.Sprintf("B%02d", i), Account: "Cheque"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	book, err := repo.Load(ctx, "household")
	require.NoError(t, err)
	assert.Len(t, book.Buckets(), n, "every tracked bucket should survive concurrent saves")
}

func TestBookRepositoryIntegration_LoadMissing(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewBookRepository(pool, NewRetrier(zerolog.Nop()))

	_, err := repo.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}
