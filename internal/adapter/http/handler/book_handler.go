package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/envelopes/internal/adapter/http/dto"
	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/usecase"
)

// LedgerService defines the behavior needed by BookHandler.
type LedgerService interface {
	CreateBook(ctx context.Context, input usecase.CreateBookInput) (*domain.Book, error)
	GetBook(ctx context.Context, key string) (*domain.Book, error)
	Reconcile(ctx context.Context, key string, input domain.ReconcileInput) (*domain.EntryLine, error)
	RemoveLatestLine(ctx context.Context, key string, date time.Time) error
	TrackBucket(ctx context.Context, key string, input usecase.BucketInput) (domain.Bucket, error)
	MoveBucketToAccount(ctx context.Context, key, code, account string) error
	RenameBook(ctx context.Context, key, name string) error
	UpdateRemarks(ctx context.Context, key string, date time.Time, remarks string) error
	Verify(ctx context.Context, key string) (*usecase.VerifyReport, error)
}

// BookHandler handles ledger book HTTP requests.
type BookHandler struct {
	ledgerUC LedgerService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(ledgerUC LedgerService) *BookHandler {
	return &BookHandler{ledgerUC: ledgerUC}
}

// Create creates a new ledger book.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	book, err := h.ledgerUC.CreateBook(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BookFromDomain(book, 0))
}

// Get retrieves a ledger book. The lines query parameter limits the response to the
// most recent lines.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	limit := parseIntQuery(r, "lines", 0)

	book, err := h.ledgerUC.GetBook(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BookFromDomain(book, limit))
}

// Verify checks a stored book's checksum and invariants.
func (h *BookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.Verify(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.VerifyFromReport(report))
}

// Reconcile records a new reconciliation line.
func (h *BookHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input, err := req.ToDomain()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	line, err := h.ledgerUC.Reconcile(r.Context(), chi.URLParam(r, "key"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LineFromDomain(line))
}

// RemoveLine removes the most recent reconciliation line.
func (h *BookHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.ledgerUC.RemoveLatestLine(r.Context(), chi.URLParam(r, "key"), date); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateRemarks replaces the remarks of a line.
func (h *BookHandler) UpdateRemarks(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req dto.UpdateRemarksRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.ledgerUC.UpdateRemarks(r.Context(), chi.URLParam(r, "key"), date, req.Remarks); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TrackBucket starts tracking a bucket.
func (h *BookHandler) TrackBucket(w http.ResponseWriter, r *http.Request) {
	var req dto.BucketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	bucket, err := h.ledgerUC.TrackBucket(r.Context(), chi.URLParam(r, "key"), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BucketFromDomain(bucket))
}

// MoveBucket changes the account a bucket's funds are stored in.
func (h *BookHandler) MoveBucket(w http.ResponseWriter, r *http.Request) {
	var req dto.MoveBucketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.ledgerUC.MoveBucketToAccount(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "code"), req.Account)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rename changes a book's display name.
func (h *BookHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req dto.RenameBookRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.ledgerUC.RenameBook(r.Context(), chi.URLParam(r, "key"), req.Name); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
