package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/envelopes/internal/adapter/http/dto"
	"github.com/iho/envelopes/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status mapDomainError picks for it.
func writeDomainError(w http.ResponseWriter, err error) {
	status := mapDomainError(err)
	message := http.StatusText(status)
	details := err.Error()
	if status == http.StatusInternalServerError {
		details = ""
	}
	writeError(w, status, message, details)
}

// writeValidationError writes a 400 listing the request fields that failed validation.
func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "validation failed",
		Message: err.Error(),
		Fields:  dto.ValidationDetails(err),
	})
}

// decodeAndValidate decodes a JSON body into req and checks its validate tags.
// It writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := dto.Validate(req); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	// a duplicate date is also a validation error; it conflicts with stored state
	case errors.Is(err, domain.ErrDuplicateDate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBookNotFound),
		errors.Is(err, domain.ErrBucketNotFound),
		errors.Is(err, domain.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrDuplicateBucket),
		errors.Is(err, domain.ErrBookExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownBucket):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTamperedData),
		errors.Is(err, domain.ErrCorruptFormat),
		errors.Is(err, domain.ErrCorruptedLedger):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLockNotObtained):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
