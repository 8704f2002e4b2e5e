package domain

import "errors"

// Common domain errors. Services and adapters wrap these with context
// so callers can match on the underlying cause with errors.Is.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the caller supplied invalid data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingAPIKey indicates no inference API key is configured.
	ErrMissingAPIKey = errors.New("inference API key not configured")

	// ErrScanFailed indicates a source scan exhausted its retries.
	ErrScanFailed = errors.New("source scan failed")

	// ErrUploadFailed indicates a batch input upload exhausted its retries.
	ErrUploadFailed = errors.New("batch input upload failed")

	// ErrSubmitFailed indicates batch creation exhausted its retries.
	ErrSubmitFailed = errors.New("batch submission failed")

	// ErrJobNotFound indicates a batch job ID is unknown to the provider.
	ErrJobNotFound = errors.New("batch job not found")

	// ErrBatchUnsupported indicates the provider exposes no usable
	// batch endpoint under either known API namespace.
	ErrBatchUnsupported = errors.New("batch endpoint unsupported")
)
