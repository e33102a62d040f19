package runner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/logging"
)

var (
	// ErrActionNotFound is returned for operations on an unregistered action id.
	ErrActionNotFound = errors.New("action not found")
	// ErrUnsupportedAction is the cause logged for actions of an unknown kind.
	ErrUnsupportedAction = errors.New("unsupported action type")
)

// failureMessage is the only error text stored on a failed record; causes are
// logged.
const failureMessage = "Action failed"

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Shell and ShellArgs form the spawn prefix: Shell ShellArgs... command.
	Shell     string
	ShellArgs []string
	// Env is passed to every spawned process.
	Env map[string]string
	// GracePeriod is how long a long-running command runs before its unit
	// completes.
	GracePeriod time.Duration
	// LongRunningPatterns overrides DefaultLongRunningPatterns when non-nil.
	LongRunningPatterns []string
	// Queue serializes execution units. Nil allocates a private queue.
	Queue *Queue
	// OnChange receives a snapshot after every state update. It must not call
	// back into mutating runner methods.
	OnChange func(state core.ActionState)
	// OnSettled is invoked from the queue once an action's unit settled.
	OnSettled func(data core.ActionCallbackData, state core.ActionState)
	// Logging services.
	Logger logging.Logger
}

type record struct {
	data   core.ActionCallbackData
	state  core.ActionState
	output strings.Builder

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *record) snapshot() core.ActionState {
	s := r.state
	if s.ExitCode != nil {
		code := *s.ExitCode
		s.ExitCode = &code
	}
	return s
}

// ActionRunner tracks the actions of one artifact stream and executes them in
// discovery order. Public methods are safe for concurrent use.
type ActionRunner struct {
	sandbox    core.Sandbox
	opts       Options
	classifier *Classifier
	queue      *Queue
	logger     logging.Logger

	notifyMu sync.Mutex // orders listener calls
	mu       sync.Mutex
	actions  map[string]*record
	order    []string

	bg sync.WaitGroup // output readers and exit watchers
}

// New constructs an ActionRunner with optional overrides.
func New(sandbox core.Sandbox, optFns ...func(o *Options)) *ActionRunner {
	opts := Options{
		Shell:       "sh",
		ShellArgs:   []string{"-c"},
		Env:         map[string]string{"npm_config_yes": "true"},
		GracePeriod: 2 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.Scoped(opts.Logger, "ActionRunner")

	queue := opts.Queue
	if queue == nil {
		queue = NewQueue(func(o *QueueOptions) { o.Logger = opts.Logger })
	}

	return &ActionRunner{
		sandbox:    sandbox,
		opts:       opts,
		classifier: NewClassifier(opts.LongRunningPatterns),
		queue:      queue,
		logger:     logger,
		actions:    make(map[string]*record),
	}
}

// Register records a pending action and schedules its transition to running
// behind the work already queued. Registering a known id is a no-op.
func (r *ActionRunner) Register(data core.ActionCallbackData) {
	r.notifyMu.Lock()
	r.mu.Lock()
	if _, exists := r.actions[data.ActionID]; exists {
		r.mu.Unlock()
		r.notifyMu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := &record{
		data: data,
		state: core.ActionState{
			Action:    data.Action,
			ID:        data.ActionID,
			Status:    core.StatusPending,
			UpdatedAt: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	r.actions[data.ActionID] = rec
	r.order = append(r.order, data.ActionID)
	snap := rec.snapshot()
	r.mu.Unlock()

	r.emit(snap)
	r.notifyMu.Unlock()

	id := data.ActionID
	r.queue.Enqueue("mark-running:"+id, func() error {
		r.transition(id, core.StatusRunning, "")
		return nil
	})
}

// Execute marks the action executed with its final content and appends its side
// effect to the queue. Repeated calls for the same id are no-ops. Executing an
// id that was never registered is a programming error and panics.
func (r *ActionRunner) Execute(data core.ActionCallbackData) {
	if !r.markExecuted(data) {
		return
	}

	id := data.ActionID
	r.queue.Enqueue("execute:"+id, func() error {
		return r.run(id)
	})
}

// Skip marks the action executed and complete without running it, for actions
// known to have run before. It follows the same rules as Execute.
func (r *ActionRunner) Skip(data core.ActionCallbackData) {
	if !r.markExecuted(data) {
		return
	}
	r.logger.Debug("Skipping previously executed action", "action_id", data.ActionID)
	r.transition(data.ActionID, core.StatusComplete, "")
}

func (r *ActionRunner) markExecuted(data core.ActionCallbackData) bool {
	id := data.ActionID

	r.notifyMu.Lock()
	r.mu.Lock()
	rec, ok := r.actions[id]
	if !ok {
		r.mu.Unlock()
		r.notifyMu.Unlock()
		unreachable("action %q not registered", id)
	}
	if rec.state.Executed {
		r.mu.Unlock()
		r.notifyMu.Unlock()
		return false
	}

	rec.state.Executed = true
	rec.state.Content = data.Action.Content
	if data.Action.FilePath != "" {
		rec.state.FilePath = data.Action.FilePath
	}
	rec.data = data
	rec.data.Action = rec.state.Action
	rec.state.UpdatedAt = time.Now()
	snap := rec.snapshot()
	r.mu.Unlock()

	r.emit(snap)
	r.notifyMu.Unlock()

	return true
}

// Abort cancels the action: its process is killed and the record is marked
// aborted unless it already reached a terminal state.
func (r *ActionRunner) Abort(actionID string) error {
	r.mu.Lock()
	rec, ok := r.actions[actionID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}

	rec.cancel()
	r.transition(actionID, core.StatusAborted, "")

	return nil
}

// Actions returns a snapshot of every record keyed by action id.
func (r *ActionRunner) Actions() map[string]core.ActionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]core.ActionState, len(r.actions))
	for id, rec := range r.actions {
		out[id] = rec.snapshot()
	}
	return out
}

// Action returns the snapshot of one record.
func (r *ActionRunner) Action(actionID string) (core.ActionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.actions[actionID]
	if !ok {
		return core.ActionState{}, false
	}
	return rec.snapshot(), true
}

// Ordered returns snapshots in registration order.
func (r *ActionRunner) Ordered() []core.ActionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.ActionState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.actions[id].snapshot())
	}
	return out
}

// Wait blocks until every unit queued before the call settled.
func (r *ActionRunner) Wait(ctx context.Context) error {
	return r.queue.Wait(ctx)
}

// Close aborts every non-terminal action, terminates processes left running
// by long-running commands and waits for outstanding work.
func (r *ActionRunner) Close() {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Abort(id)
	}

	_ = r.queue.Wait(context.Background())
	r.bg.Wait()
}

func (r *ActionRunner) run(id string) error {
	r.mu.Lock()
	rec := r.actions[id]
	action := rec.state.Action
	ctx := rec.ctx
	r.mu.Unlock()

	r.transition(id, core.StatusRunning, "")

	var err error
	switch action.Kind {
	case core.ActionKindFile:
		err = r.runFile(ctx, id, action)
	case core.ActionKindShell:
		err = r.runShell(ctx, id, action)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedAction, action.Kind)
	}

	if err != nil {
		r.logger.Error("Action failed", "action_id", id, "kind", string(action.Kind), "error", err)
		r.transition(id, core.StatusFailed, failureMessage)
	} else if ctx.Err() != nil {
		r.transition(id, core.StatusAborted, "")
	} else {
		r.transition(id, core.StatusComplete, "")
	}

	if r.opts.OnSettled != nil {
		r.mu.Lock()
		data, snap := rec.data, rec.snapshot()
		r.mu.Unlock()
		r.opts.OnSettled(data, snap)
	}

	return err
}

func (r *ActionRunner) runFile(ctx context.Context, id string, action core.Action) error {
	fs := r.sandbox.FS()

	dir := strings.TrimRight(path.Dir(action.FilePath), "/")
	if dir != "" && dir != "." {
		if err := fs.MkdirAll(ctx, dir); err != nil {
			r.logger.Error("Failed to create folder", "action_id", id, "dir", dir, "error", err)
		} else {
			r.logger.Debug("Created folder", "action_id", id, "dir", dir)
		}
	}

	if err := fs.WriteFile(ctx, action.FilePath, []byte(action.Content)); err != nil {
		return fmt.Errorf("write %s: %w", action.FilePath, err)
	}

	r.logger.Debug("File written", "action_id", id, "path", action.FilePath)

	return nil
}

func (r *ActionRunner) runShell(ctx context.Context, id string, action core.Action) error {
	command := strings.TrimSpace(action.Content)
	longRunning := r.classifier.IsLongRunning(command)

	r.update(id, func(rec *record) bool {
		rec.state.LongRunning = longRunning
		return true
	})

	args := make([]string, 0, len(r.opts.ShellArgs)+1)
	args = append(args, r.opts.ShellArgs...)
	args = append(args, command)

	proc, err := r.sandbox.Spawn(ctx, r.opts.Shell, args, core.SpawnOptions{Env: r.opts.Env})
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	stopKill := context.AfterFunc(ctx, func() {
		if err := proc.Kill(); err != nil {
			r.logger.Warn("Failed to kill process", "action_id", id, "error", err)
		}
	})

	outputDone := make(chan struct{})
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer close(outputDone)
		for chunk := range proc.Output() {
			r.appendOutput(id, chunk)
		}
	}()

	if !longRunning {
		code, err := proc.Wait()
		stopKill()
		<-outputDone
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait: %w", err)
		}
		r.logger.Debug("Process exited", "action_id", id, "exit_code", code)
		r.setExitCode(id, code)
		return nil
	}

	exited := make(chan struct{})
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer close(exited)
		code, err := proc.Wait()
		stopKill()
		if err != nil {
			r.logger.Warn("Process wait failed", "action_id", id, "error", err)
			return
		}
		r.logger.Debug("Process exited", "action_id", id, "exit_code", code)
		r.setExitCode(id, code)
	}()

	timer := time.NewTimer(r.opts.GracePeriod)
	defer timer.Stop()

	select {
	case <-timer.C:
		r.logger.Debug("Long-running command left in background", "action_id", id, "command", command)
	case <-exited:
	case <-ctx.Done():
	}

	return nil
}

func (r *ActionRunner) appendOutput(id, chunk string) {
	clean := ansi.Strip(chunk)
	if clean == "" {
		return
	}
	r.update(id, func(rec *record) bool {
		rec.output.WriteString(clean)
		rec.state.Output = strings.TrimSpace(rec.output.String())
		return true
	})
}

func (r *ActionRunner) setExitCode(id string, code int) {
	r.update(id, func(rec *record) bool {
		rec.state.ExitCode = &code
		return true
	})
}

func (r *ActionRunner) transition(id string, next core.ActionStatus, errMsg string) {
	r.update(id, func(rec *record) bool {
		if !rec.state.Status.CanTransition(next) || rec.state.Status == next {
			return false
		}
		rec.state.Status = next
		rec.state.Error = errMsg
		return true
	})
}

// update applies fn under the state lock and notifies the listener outside of
// it when fn reports a change.
func (r *ActionRunner) update(id string, fn func(rec *record) bool) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	rec, ok := r.actions[id]
	if !ok || !fn(rec) {
		r.mu.Unlock()
		return
	}
	rec.state.UpdatedAt = time.Now()
	snap := rec.snapshot()
	r.mu.Unlock()

	r.emit(snap)
}

func (r *ActionRunner) emit(state core.ActionState) {
	if r.opts.OnChange != nil {
		r.opts.OnChange(state)
	}
}

func unreachable(format string, args ...any) {
	panic("unreachable: " + fmt.Sprintf(format, args...))
}
