package usecase

import "time"

const (
	// DefaultSaveTimeout bounds a single save so a stuck backend cannot hold the book lock.
	DefaultSaveTimeout = 10 * time.Second

	// Integrity failure reasons reported to the Recorder.
	IntegrityTampered         = "tampered"
	IntegrityCorruptFormat    = "corrupt_format"
	IntegrityCorruptedLedger  = "corrupted_ledger"
	IntegrityValidationFailed = "validation_failed"
)
