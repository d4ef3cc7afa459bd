package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Typed boundary outcomes. These are the errors the synchronous API
// operations return; handlers map them to HTTP status codes.
var (
	// ErrJobNotFound indicates the requested job id is not in the registry.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotReady indicates a download was requested before the job completed.
	ErrJobNotReady = errors.New("job is not ready for download")

	// ErrUnsupportedFormat indicates the requested output format is not in the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrInvalidSource indicates the submitted source could not be resolved to
	// a usable media input (malformed URL, unreadable upload, no streams).
	ErrInvalidSource = errors.New("invalid source")

	// ErrNoRenditionAvailable indicates the rendition selector found no
	// candidate satisfying the request after all fallbacks.
	ErrNoRenditionAvailable = errors.New("no rendition available")

	// ErrArtifactMissing indicates a completed job's output file is gone from
	// disk, most likely already swept.
	ErrArtifactMissing = errors.New("artifact missing from storage")

	// ErrJobTerminal indicates an update was attempted against a job already
	// in a terminal state.
	ErrJobTerminal = errors.New("job is in a terminal state")
)

// Common validation errors for models.
var (
	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrFormatRequired indicates a required output format field is empty.
	ErrFormatRequired = errors.New("format is required")

	// ErrInvalidQuality indicates an unknown quality tier.
	ErrInvalidQuality = errors.New("invalid quality: must be 'low', 'medium', 'high' or 'lossless'")

	// ErrJobKindRequired indicates a required job kind field is empty.
	ErrJobKindRequired = errors.New("job kind is required")

	// ErrSourceRequired indicates a job has neither a source path nor a source URL.
	ErrSourceRequired = errors.New("source is required")
)
