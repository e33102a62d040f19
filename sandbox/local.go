package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/logging"
)

// LocalOptions configures a Local sandbox.
type LocalOptions struct {
	// BaseEnv is the environment every process starts from. Nil inherits the
	// host environment.
	BaseEnv []string
	// OutputBufferSize sets channel buffering for process output.
	OutputBufferSize int
	// DrainTimeout bounds how long output is still read after the process
	// exited. Background children keep the output pipe open; once the
	// timeout elapses their output is dropped and Output is closed.
	DrainTimeout time.Duration
	Logger       logging.Logger
}

// Local executes commands on the host inside a root directory.
type Local struct {
	root   string
	opts   LocalOptions
	logger logging.Logger
}

var _ core.Sandbox = (*Local)(nil)

// NewLocal creates a Local sandbox rooted at root, which must be an existing
// directory.
func NewLocal(root string, optFns ...func(o *LocalOptions)) (*Local, error) {
	opts := LocalOptions{
		OutputBufferSize: 64,
		DrainTimeout:     100 * time.Millisecond,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = os.Environ()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %s is not a directory", abs)
	}

	return &Local{
		root:   abs,
		opts:   opts,
		logger: logging.Scoped(opts.Logger, "LocalSandbox"),
	}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(p string) (string, error) {
	rel, err := cleanRel(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(rel)), nil
}

// Spawn starts command with args. The process is not bound to ctx; callers
// terminate it through Kill.
func (l *Local) Spawn(ctx context.Context, command string, args []string, opts core.SpawnOptions) (core.Process, error) {
	if command == "" {
		return nil, ErrNoCommand
	}

	dir, err := l.resolve(opts.Dir)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(l.opts.BaseEnv, opts.Env)
	setupProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", command, err)
	}
	pw.Close()

	l.logger.Debug("Process started", "command", command, "pid", cmd.Process.Pid, "dir", dir)

	p := &localProcess{
		cmd:    cmd,
		out:    make(chan string, l.opts.OutputBufferSize),
		done:   make(chan struct{}),
		drain:  l.opts.DrainTimeout,
		logger: l.logger,
	}

	go p.wait()
	go p.read(pr)

	return p, nil
}

// FS returns the root-confined filesystem.
func (l *Local) FS() core.FileSystem { return localFS{l} }

type localFS struct{ l *Local }

func (fs localFS) MkdirAll(_ context.Context, p string) error {
	full, err := fs.l.resolve(p)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

func (fs localFS) WriteFile(_ context.Context, p string, content []byte) error {
	rel, err := cleanFile(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(fs.l.root, filepath.FromSlash(rel)), content, 0o644)
}

type localProcess struct {
	cmd    *exec.Cmd
	out    chan string
	done   chan struct{}
	drain  time.Duration
	logger logging.Logger

	code    int
	waitErr error

	killMu sync.Mutex
}

func (p *localProcess) wait() {
	defer close(p.done)

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.code = 0
	case errors.As(err, &exitErr):
		p.code = exitErr.ExitCode()
	default:
		p.code = -1
		p.waitErr = err
	}
}

func (p *localProcess) read(r *os.File) {
	defer close(p.out)
	defer r.Close()

	stop := make(chan struct{})
	defer close(stop)
	go p.bound(r, stop)

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := validPrefix(pending)
			if cut > 0 {
				p.out <- string(pending[:cut])
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("Output read failed", "pid", p.cmd.Process.Pid, "error", err)
			}
			break
		}
	}
	if len(pending) > 0 {
		p.out <- string(pending)
	}
	<-p.done
}

// bound unblocks read once the process exited and the drain timeout elapsed,
// even if a background child still holds the write end of the pipe.
func (p *localProcess) bound(r *os.File, stop <-chan struct{}) {
	select {
	case <-p.done:
	case <-stop:
		return
	}

	timer := time.NewTimer(p.drain)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
		return
	}

	p.logger.Debug("Output still open after exit, closing", "pid", p.cmd.Process.Pid)
	if err := r.SetReadDeadline(time.Now()); err != nil {
		_ = r.Close()
	}
}

// validPrefix returns the length of b without a trailing incomplete rune.
func validPrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

func (p *localProcess) Output() <-chan string { return p.out }

func (p *localProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.waitErr
}

func (p *localProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.killMu.Lock()
	defer p.killMu.Unlock()

	if err := killProcessGroup(p.cmd); err != nil {
		select {
		case <-p.done:
			return nil
		default:
			return fmt.Errorf("kill pid %d: %w", p.cmd.Process.Pid, err)
		}
	}
	return nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
