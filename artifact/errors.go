package artifact

import "fmt"

var (
	// ErrNotFound is returned when no artifact exists for the given message id.
	ErrNotFound = fmt.Errorf("artifact not found")
)
