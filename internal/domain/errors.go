package domain

import "errors"

var (
	// ErrNotConfigured signals a missing or unreadable settings source.
	// Recovery is a deployment fix, not a retry.
	ErrNotConfigured = errors.New("not configured")
	// ErrMalformedQuery signals a query the index rejects; retrying cannot help.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrIndexUnavailable signals a transient index failure worth retrying.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrBatchNotFound signals a missing batch search.
	ErrBatchNotFound = errors.New("batch search not found")
	// ErrBatchExists signals a batch identity already saved in a terminal state.
	ErrBatchExists = errors.New("batch search already exists")
)
