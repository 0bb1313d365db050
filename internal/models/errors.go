package models

import "errors"

// Sentinel errors shared across packages. Handlers map each to an HTTP
// status and error category with errors.Is.
var (
	// ErrValidation marks a request the caller can fix (bad filename,
	// oversized upload, empty question).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an operation on a document that is not indexed.
	ErrNotFound = errors.New("document not found")

	// ErrUnprocessable marks a well-formed upload whose content cannot be
	// used, such as a PDF with no extractable text.
	ErrUnprocessable = errors.New("unprocessable document")

	// ErrUpstream marks a failure in an external service (embeddings or
	// chat completion API).
	ErrUpstream = errors.New("upstream service error")
)
