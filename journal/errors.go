package journal

import "errors"

var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("journal entry not found")
)
