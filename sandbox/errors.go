package sandbox

import "errors"

var (
	// ErrOutsideRoot is returned for paths that resolve outside the sandbox root.
	ErrOutsideRoot = errors.New("path escapes sandbox root")
	// ErrInvalidPath is returned for empty file paths.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNoCommand is returned by Spawn when no command was given.
	ErrNoCommand = errors.New("no command")
)
