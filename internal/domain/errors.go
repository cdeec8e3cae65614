package domain

import "errors"

// Failure conditions surfaced to the user. Callers wrap them with context and
// test with errors.Is.
var (
	// ErrMissingCredential halts startup.
	ErrMissingCredential = errors.New("missing API credential")

	ErrMissingSourceDirectory = errors.New("source directory not found")
	ErrNoDocumentsFound       = errors.New("no documents found")
	ErrExtraction             = errors.New("text extraction failed")

	// ErrPersistence leaves the in-memory index usable for the current process.
	ErrPersistence = errors.New("index persistence failed")

	ErrLifecycle        = errors.New("index lifecycle failed")
	ErrIndexUnavailable = errors.New("no index available")
)
