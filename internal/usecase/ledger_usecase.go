package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/envelopes/internal/domain"
)

// LedgerUseCase is the single point of mutation for ledger books. Every mutation runs
// under the book's exclusive lock as load, mutate, save.
type LedgerUseCase struct {
	repo        BookRepository
	locker      BookLocker
	txnIDs      IDGenerator
	keyIDs      IDGenerator
	recorder    Recorder
	logger      zerolog.Logger
	now         func() time.Time
	saveTimeout time.Duration
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	repo BookRepository,
	locker BookLocker,
	txnIDs IDGenerator,
	keyIDs IDGenerator,
	recorder Recorder,
	logger zerolog.Logger,
) *LedgerUseCase {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &LedgerUseCase{
		repo:        repo,
		locker:      locker,
		txnIDs:      txnIDs,
		keyIDs:      keyIDs,
		recorder:    recorder,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		saveTimeout: DefaultSaveTimeout,
	}
}

// WithClock replaces the time source. Intended for tests.
func (uc *LedgerUseCase) WithClock(now func() time.Time) *LedgerUseCase {
	uc.now = now
	return uc
}

// WithSaveTimeout overrides DefaultSaveTimeout.
func (uc *LedgerUseCase) WithSaveTimeout(d time.Duration) *LedgerUseCase {
	if d > 0 {
		uc.saveTimeout = d
	}
	return uc
}

// BucketInput names a bucket and the account holding its funds.
type BucketInput struct {
	Code    string
	Account string
}

// CreateBookInput represents input for creating a ledger book.
type CreateBookInput struct {
	Name string
	// StorageKey is generated when empty.
	StorageKey string
	Buckets    []BucketInput
}

// CreateBook creates and saves an empty ledger book.
func (uc *LedgerUseCase) CreateBook(ctx context.Context, input CreateBookInput) (*domain.Book, error) {
	key := input.StorageKey
	if key == "" {
		key = uc.keyIDs.Generate()
	}

	book, err := domain.NewBook(input.Name, key, uc.now())
	if err != nil {
		return nil, err
	}
	for _, b := range input.Buckets {
		if _, err := book.TrackBucket(b.Code, b.Account, uc.now()); err != nil {
			return nil, err
		}
	}

	release, err := uc.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := uc.repo.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookExists, key)
	}

	if err := uc.save(ctx, book, key); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("storage_key", key).Str("name", book.Name).Msg("ledger book created")
	return book, nil
}

// GetBook loads a ledger book.
func (uc *LedgerUseCase) GetBook(ctx context.Context, key string) (*domain.Book, error) {
	release, err := uc.locker.RLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	return uc.load(ctx, key)
}

// Reconcile settles every bucket of the book for a new reconciliation date and saves
// the result. Previously recorded lines are verified unchanged before saving.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, key string, input domain.ReconcileInput) (*domain.EntryLine, error) {
	var line *domain.EntryLine

	book, err := uc.mutate(ctx, key, "reconcile", func(book *domain.Book) error {
		return domain.WithConsistencyCheck(book, func() error {
			var err error
			line, err = book.Reconcile(input, uc.now(), uc.txnIDs.Generate)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	uc.recorder.ReconciliationRecorded(key, *line)
	uc.logger.Info().
		Str("storage_key", key).
		Str("date", line.Date.Format(domain.DateLayout)).
		Str("surplus", line.CalculatedSurplus().String()).
		Int("lines", len(book.Lines())).
		Msg("reconciliation recorded")

	return line, nil
}

// RemoveLatestLine undoes the most recent reconciliation. date must match it.
func (uc *LedgerUseCase) RemoveLatestLine(ctx context.Context, key string, date time.Time) error {
	_, err := uc.mutate(ctx, key, "remove_line", func(book *domain.Book) error {
		return book.RemoveLine(date, uc.now())
	})
	if err != nil {
		return err
	}

	uc.recorder.LineRemoved(key)
	uc.logger.Info().
		Str("storage_key", key).
		Str("date", domain.DateOnly(date).Format(domain.DateLayout)).
		Msg("reconciliation removed")
	return nil
}

// TrackBucket adds a bucket to the book.
func (uc *LedgerUseCase) TrackBucket(ctx context.Context, key string, input BucketInput) (domain.Bucket, error) {
	var bucket domain.Bucket
	_, err := uc.mutate(ctx, key, "track_bucket", func(book *domain.Book) error {
		var err error
		bucket, err = book.TrackBucket(input.Code, input.Account, uc.now())
		return err
	})
	if err != nil {
		return domain.Bucket{}, err
	}

	uc.logger.Info().Str("storage_key", key).Str("bucket", bucket.Code).Str("account", bucket.StoredInAccount).Msg("bucket tracked")
	return bucket, nil
}

// MoveBucketToAccount stores a bucket's funds in another account from the next
// reconciliation on.
func (uc *LedgerUseCase) MoveBucketToAccount(ctx context.Context, key, code, account string) error {
	_, err := uc.mutate(ctx, key, "move_bucket", func(book *domain.Book) error {
		return book.SetBucketAccount(code, account, uc.now())
	})
	if err != nil {
		return err
	}

	uc.logger.Info().
		Str("storage_key", key).
		Str("bucket", domain.NormalizeBucketCode(code)).
		Str("account", account).
		Msg("bucket moved to account")
	return nil
}

// RenameBook changes the book's name.
func (uc *LedgerUseCase) RenameBook(ctx context.Context, key, name string) error {
	_, err := uc.mutate(ctx, key, "rename", func(book *domain.Book) error {
		return book.Rename(name, uc.now())
	})
	return err
}

// UpdateRemarks replaces the remarks on a reconciliation line.
func (uc *LedgerUseCase) UpdateRemarks(ctx context.Context, key string, date time.Time, remarks string) error {
	_, err := uc.mutate(ctx, key, "update_remarks", func(book *domain.Book) error {
		return book.UpdateRemarks(date, remarks, uc.now())
	})
	return err
}

// VerifyReport summarizes an integrity check of a stored book.
type VerifyReport struct {
	StorageKey string
	Lines      int
	Buckets    int
	SurplusSum decimal.Decimal
	Valid      bool
	Problems   []string
	CheckedAt  time.Time
}

// Verify loads a book (which checks its checksum) and validates every invariant.
// Checksum and format failures are returned as errors; invariant violations are
// reported in the VerifyReport.
func (uc *LedgerUseCase) Verify(ctx context.Context, key string) (*VerifyReport, error) {
	book, err := uc.GetBook(ctx, key)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{
		StorageKey: key,
		Lines:      len(book.Lines()),
		Buckets:    len(book.Buckets()),
		SurplusSum: book.SurplusSum(),
		Valid:      true,
		CheckedAt:  uc.now(),
	}

	if err := book.Validate(); err != nil {
		report.Valid = false
		report.Problems = unjoin(err)
		uc.recorder.IntegrityFailure(IntegrityValidationFailed)
		uc.logger.Warn().Str("storage_key", key).Err(err).Msg("ledger book failed validation")
	}

	return report, nil
}

func (uc *LedgerUseCase) mutate(ctx context.Context, key, op string, fn func(*domain.Book) error) (*domain.Book, error) {
	release, err := uc.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	book, err := uc.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := fn(book); err != nil {
		var corrupt *domain.CorruptedLedgerError
		if errors.As(err, &corrupt) {
			uc.recorder.IntegrityFailure(IntegrityCorruptedLedger)
			uc.logger.Error().Str("storage_key", key).Str("op", op).Err(err).Msg("ledger book corrupted during mutation, not saving")
		} else {
			uc.logger.Debug().Str("storage_key", key).Str("op", op).Err(err).Msg("ledger book mutation rejected")
		}
		return nil, err
	}

	if err := book.Validate(); err != nil {
		uc.recorder.IntegrityFailure(IntegrityValidationFailed)
		uc.logger.Error().Str("storage_key", key).Str("op", op).Err(err).Msg("ledger book failed validation, not saving")
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptedLedger, err)
	}

	if err := uc.save(ctx, book, key); err != nil {
		return nil, err
	}
	return book, nil
}

func (uc *LedgerUseCase) load(ctx context.Context, key string) (*domain.Book, error) {
	start := time.Now()
	book, err := uc.repo.Load(ctx, key)
	uc.recorder.StorageOperation("load", time.Since(start), err)

	switch {
	case err == nil:
		return book, nil
	case errors.Is(err, domain.ErrTamperedData):
		uc.recorder.IntegrityFailure(IntegrityTampered)
		uc.logger.Error().Str("storage_key", key).Err(err).Msg("ledger book checksum mismatch")
	case errors.Is(err, domain.ErrCorruptFormat):
		uc.recorder.IntegrityFailure(IntegrityCorruptFormat)
		uc.logger.Error().Str("storage_key", key).Err(err).Msg("ledger book document unreadable")
	}
	return nil, err
}

func (uc *LedgerUseCase) save(ctx context.Context, book *domain.Book, key string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.saveTimeout)
	defer cancel()

	start := time.Now()
	err := uc.repo.Save(ctx, book, key)
	uc.recorder.StorageOperation("save", time.Since(start), err)
	if err != nil {
		uc.logger.Error().Str("storage_key", key).Err(err).Msg("failed to save ledger book")
	}
	return err
}

func unjoin(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
