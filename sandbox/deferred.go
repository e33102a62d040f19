package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/actionmesh/core"
)

// Deferred is a core.Sandbox that obtains its backing sandbox on first use.
// A successful resolution is cached; a failed one is retried on the next call.
type Deferred struct {
	resolve func(ctx context.Context) (core.Sandbox, error)

	mu sync.Mutex
	sb core.Sandbox
}

var _ core.Sandbox = (*Deferred)(nil)

// NewDeferred wraps resolve.
func NewDeferred(resolve func(ctx context.Context) (core.Sandbox, error)) *Deferred {
	return &Deferred{resolve: resolve}
}

// Get returns the backing sandbox, resolving it if needed.
func (d *Deferred) Get(ctx context.Context) (core.Sandbox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sb != nil {
		return d.sb, nil
	}
	sb, err := d.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox: %w", err)
	}
	d.sb = sb
	return sb, nil
}

// Spawn resolves the backing sandbox and spawns on it.
func (d *Deferred) Spawn(ctx context.Context, command string, args []string, opts core.SpawnOptions) (core.Process, error) {
	sb, err := d.Get(ctx)
	if err != nil {
		return nil, err
	}
	return sb.Spawn(ctx, command, args, opts)
}

// FS returns a filesystem that resolves the backing sandbox per call.
func (d *Deferred) FS() core.FileSystem { return deferredFS{d} }

type deferredFS struct{ d *Deferred }

func (fs deferredFS) MkdirAll(ctx context.Context, path string) error {
	sb, err := fs.d.Get(ctx)
	if err != nil {
		return err
	}
	return sb.FS().MkdirAll(ctx, path)
}

func (fs deferredFS) WriteFile(ctx context.Context, path string, content []byte) error {
	sb, err := fs.d.Get(ctx)
	if err != nil {
		return err
	}
	return sb.FS().WriteFile(ctx, path, content)
}
