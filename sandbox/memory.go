package sandbox

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/actionmesh/core"
)

// KilledExitCode is the exit code reported by Memory processes that were killed.
const KilledExitCode = -1

// Script describes how a Memory process behaves.
type Script struct {
	// Output chunks are delivered in order.
	Output []string
	// ExitCode is reported by Wait.
	ExitCode int
	// WaitErr is returned by Wait instead of an exit code.
	WaitErr error
	// SpawnErr makes Spawn fail.
	SpawnErr error
	// Delay is slept before the process exits.
	Delay time.Duration
	// Block keeps the process alive until it is killed.
	Block bool
}

// SpawnCall is one recorded Spawn invocation.
type SpawnCall struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
}

// Memory is an in-process core.Sandbox. Commands are matched against scripts by
// the final argument (the shell command line); unmatched commands run the
// default script, which exits 0 without output.
type Memory struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	mkdirs   []string
	scripts  map[string]Script
	fallback Script
	spawns   []SpawnCall
	live     map[*memoryProcess]struct{}

	mkdirErr map[string]error
	writeErr map[string]error
}

var _ core.Sandbox = (*Memory)(nil)

// NewMemory returns an empty Memory sandbox.
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string][]byte),
		dirs:     make(map[string]bool),
		scripts:  make(map[string]Script),
		live:     make(map[*memoryProcess]struct{}),
		mkdirErr: make(map[string]error),
		writeErr: make(map[string]error),
	}
}

// Handle registers the script for a command line (chainable).
func (m *Memory) Handle(command string, s Script) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[strings.TrimSpace(command)] = s
	return m
}

// HandleDefault sets the script for unmatched commands (chainable).
func (m *Memory) HandleDefault(s Script) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = s
	return m
}

// FailMkdir makes MkdirAll fail for dir (chainable).
func (m *Memory) FailMkdir(dir string, err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirErr[dir] = err
	return m
}

// FailWrite makes WriteFile fail for path (chainable).
func (m *Memory) FailWrite(path string, err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr[path] = err
	return m
}

// Spawn starts a scripted process.
func (m *Memory) Spawn(_ context.Context, command string, args []string, opts core.SpawnOptions) (core.Process, error) {
	if command == "" {
		return nil, ErrNoCommand
	}

	line := command
	if len(args) > 0 {
		line = args[len(args)-1]
	}

	env := make(map[string]string, len(opts.Env))
	for k, v := range opts.Env {
		env[k] = v
	}

	m.mu.Lock()
	m.spawns = append(m.spawns, SpawnCall{
		Command: command,
		Args:    append([]string(nil), args...),
		Env:     env,
		Dir:     opts.Dir,
	})
	script, ok := m.scripts[strings.TrimSpace(line)]
	if !ok {
		script = m.fallback
	}
	if script.SpawnErr != nil {
		m.mu.Unlock()
		return nil, script.SpawnErr
	}

	p := &memoryProcess{
		script: script,
		out:    make(chan string, len(script.Output)),
		done:   make(chan struct{}),
		killed: make(chan struct{}),
	}
	m.live[p] = struct{}{}
	m.mu.Unlock()

	go func() {
		p.run()
		m.mu.Lock()
		delete(m.live, p)
		m.mu.Unlock()
	}()

	return p, nil
}

// FS returns the map filesystem.
func (m *Memory) FS() core.FileSystem { return memoryFS{m} }

// File returns a copy of the content stored at path.
func (m *Memory) File(path string) ([]byte, bool) {
	rel, err := cleanFile(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[rel]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Files returns the sorted paths of every stored file.
func (m *Memory) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MkdirCalls returns the directories passed to MkdirAll, in call order.
func (m *Memory) MkdirCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mkdirs...)
}

// Spawns returns the recorded Spawn calls.
func (m *Memory) Spawns() []SpawnCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SpawnCall(nil), m.spawns...)
}

// Running returns the number of processes that have not exited.
func (m *Memory) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

type memoryFS struct{ m *Memory }

func (fs memoryFS) MkdirAll(_ context.Context, path string) error {
	rel, err := cleanRel(path)
	if err != nil {
		return err
	}

	fs.m.mu.Lock()
	defer fs.m.mu.Unlock()
	fs.m.mkdirs = append(fs.m.mkdirs, rel)
	if err := fs.m.mkdirErr[rel]; err != nil {
		return err
	}
	for d := rel; d != "." && d != ""; d = parent(d) {
		fs.m.dirs[d] = true
	}
	return nil
}

func (fs memoryFS) WriteFile(_ context.Context, path string, content []byte) error {
	rel, err := cleanFile(path)
	if err != nil {
		return err
	}

	fs.m.mu.Lock()
	defer fs.m.mu.Unlock()
	if err := fs.m.writeErr[rel]; err != nil {
		return err
	}
	fs.m.files[rel] = append([]byte(nil), content...)
	return nil
}

func parent(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return "."
}

type memoryProcess struct {
	script Script
	out    chan string
	done   chan struct{}

	killOnce sync.Once
	killed   chan struct{}

	code int
	err  error
}

func (p *memoryProcess) run() {
	defer close(p.done)
	defer close(p.out)

	for _, chunk := range p.script.Output {
		p.out <- chunk
	}

	switch {
	case p.script.Block:
		<-p.killed
		p.code = KilledExitCode
		return
	case p.script.Delay > 0:
		timer := time.NewTimer(p.script.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-p.killed:
			p.code = KilledExitCode
			return
		}
	}

	select {
	case <-p.killed:
		p.code = KilledExitCode
		return
	default:
	}

	if p.script.WaitErr != nil {
		p.code = -1
		p.err = p.script.WaitErr
		return
	}
	p.code = p.script.ExitCode
}

func (p *memoryProcess) Output() <-chan string { return p.out }

func (p *memoryProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

func (p *memoryProcess) Kill() error {
	p.killOnce.Do(func() { close(p.killed) })
	return nil
}
