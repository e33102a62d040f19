package core

import "context"

// SpawnOptions tunes a single process spawn.
type SpawnOptions struct {
	// Env holds extra environment variables merged over the sandbox defaults.
	Env map[string]string
	// Dir is a working directory relative to the sandbox root. Empty means root.
	Dir string
}

// Process is a running sandbox process.
//
// Output delivers decoded output chunks (stdout and stderr interleaved) and is
// closed once the process has exited and all output was delivered. Wait blocks
// until exit and returns the exit code; the error is reserved for failures of
// the wait itself, a non-zero exit is not an error. Kill requests termination
// and is safe to call more than once and after exit.
type Process interface {
	Output() <-chan string
	Wait() (int, error)
	Kill() error
}

// FileSystem is the subset of filesystem access actions need. Paths are
// relative to the sandbox root and slash separated.
type FileSystem interface {
	MkdirAll(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, content []byte) error
}

// Sandbox is the injected execution capability. A single instance is shared by
// every action of a runner and is not assumed to support concurrent commands.
type Sandbox interface {
	Spawn(ctx context.Context, command string, args []string, opts SpawnOptions) (Process, error)
	FS() FileSystem
}
