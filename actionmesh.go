// Package actionmesh provides a high-level façade that turns streamed model
// replies into executed side effects. A Workbench wires the streaming
// directive parser to one action runner per message:
//  1. Create a Workbench via New() with a sandbox (optionally overriding the
//     default in‑memory artifact store, journal and logger)
//  2. Feed the accumulated reply text of each message to Parse as it grows
//  3. Observe action state through the Listener option or Actions()
//
// Artifact and file actions are registered when their opening tag is parsed;
// shell actions when their closing tag is parsed, so a command is never seen
// before it is complete. Every action is executed once its closing tag was
// parsed. All runners share one serialized queue unless IsolatedQueues is set,
// so the sandbox runs one action at a time.
package actionmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/actionmesh/artifact"
	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/logging"
	"github.com/hupe1980/actionmesh/parser"
	"github.com/hupe1980/actionmesh/runner"
)

// ErrUnknownMessage is returned for operations on a message without artifact.
var ErrUnknownMessage = errors.New("unknown message")

// Options configures the Workbench instance.
type Options struct {
	// ChatID scopes journal entries to a conversation.
	ChatID string

	// ArtifactStore records artifact state (defaults to in-memory).
	ArtifactStore core.ArtifactStore

	// Journal receives an execution record once each action settled. Nil
	// disables recording.
	Journal core.ExecutionJournal

	// Record toggles journal delivery. Disable it while replaying history
	// that must not be recorded again.
	Record bool

	// SkipExecuted consults the journal before executing an action and marks
	// actions it already knows as complete without running them.
	SkipExecuted bool

	// IsolatedQueues gives every message its own execution queue instead of
	// serializing all messages on one queue.
	IsolatedQueues bool

	// ArtifactElement renders the display placeholder for an artifact.
	ArtifactElement func(messageID string) string

	// Listener receives every action state change.
	Listener func(messageID string, state core.ActionState)

	// RunnerOptions are applied to every runner after the workbench wiring.
	RunnerOptions []func(o *runner.Options)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Workbench is the façade aggregating parser, runners and stores. Public
// methods are safe for concurrent use.
type Workbench struct {
	opts      Options
	sandbox   core.Sandbox
	parser    *parser.StreamingParser
	artifacts core.ArtifactStore
	queue     *runner.Queue
	logger    logging.Logger

	mu      sync.Mutex
	runners map[string]*runner.ActionRunner
	order   []string

	reports sync.WaitGroup
}

// New creates a new Workbench executing actions in sb.
func New(sb core.Sandbox, optFns ...func(o *Options)) *Workbench {
	opts := Options{
		ArtifactStore: artifact.NewInMemoryStore(),
		Record:        true,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	w := &Workbench{
		opts:      opts,
		sandbox:   sb,
		artifacts: opts.ArtifactStore,
		queue:     runner.NewQueue(func(o *runner.QueueOptions) { o.Logger = opts.Logger }),
		logger:    logging.Scoped(opts.Logger, "Workbench"),
		runners:   make(map[string]*runner.ActionRunner),
	}

	w.parser = parser.New(func(o *parser.Options) {
		o.Logger = opts.Logger
		o.ArtifactElement = opts.ArtifactElement
		o.Callbacks = parser.Callbacks{
			OnArtifactOpen:  w.onArtifactOpen,
			OnArtifactClose: w.onArtifactClose,
			OnActionOpen:    w.onActionOpen,
			OnActionClose:   w.onActionClose,
		}
	})

	return w
}

// Parse feeds the full text accumulated so far for messageID and returns its
// display text.
func (w *Workbench) Parse(messageID, text string) string {
	return w.parser.Parse(messageID, text)
}

// Finish feeds the final text of messageID once its stream ended and returns
// the display text including any trailing text Parse kept buffered.
func (w *Workbench) Finish(messageID, text string) string {
	return w.parser.Finish(messageID, text)
}

// Reset discards the parse state of every message. Artifacts and runners are
// kept, so re-parsing a message neither registers nor executes its actions
// again.
func (w *Workbench) Reset() {
	w.parser.Reset()
}

// ResetMessage discards the parse state of one message.
func (w *Workbench) ResetMessage(messageID string) {
	w.parser.ResetStream(messageID)
}

// Artifacts returns every artifact in open order.
func (w *Workbench) Artifacts() []core.ArtifactState {
	list, err := w.artifacts.List()
	if err != nil {
		w.logger.Error("Failed to list artifacts", "error", err)
		return nil
	}
	return list
}

// Actions returns the action states of messageID in discovery order.
func (w *Workbench) Actions(messageID string) []core.ActionState {
	r, ok := w.runner(messageID)
	if !ok {
		return nil
	}
	return r.Ordered()
}

// Abort aborts one action of messageID.
func (w *Workbench) Abort(messageID, actionID string) error {
	r, ok := w.runner(messageID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	return r.Abort(actionID)
}

// Wait blocks until every queued action settled and its record was delivered.
func (w *Workbench) Wait(ctx context.Context) error {
	if w.opts.IsolatedQueues {
		for _, r := range w.allRunners() {
			if err := r.Wait(ctx); err != nil {
				return err
			}
		}
	} else if err := w.queue.Wait(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		w.reports.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts outstanding actions, terminates background processes and
// waits for pending journal deliveries.
func (w *Workbench) Close() {
	for _, r := range w.allRunners() {
		r.Close()
	}
	w.reports.Wait()
}

// Failed reports whether any action of any message ended failed.
func (w *Workbench) Failed() bool {
	for _, r := range w.allRunners() {
		for _, s := range r.Ordered() {
			if s.Failed() {
				return true
			}
		}
	}
	return false
}

func (w *Workbench) onArtifactOpen(data core.ArtifactData) {
	if err := w.artifacts.Open(data); err != nil {
		w.logger.Error("Failed to store artifact", "message_id", data.MessageID, "error", err)
	}
	w.runnerFor(data.MessageID)
}

func (w *Workbench) onArtifactClose(data core.ArtifactData) {
	if err := w.artifacts.Close(data.MessageID); err != nil {
		w.logger.Error("Failed to close artifact", "message_id", data.MessageID, "error", err)
	}
}

func (w *Workbench) onActionOpen(data core.ActionCallbackData) {
	if err := w.artifacts.AddAction(data.MessageID, data.ActionID); err != nil {
		w.logger.Error("Failed to add action", "message_id", data.MessageID, "action_id", data.ActionID, "error", err)
	}
	if data.Action.Kind != core.ActionKindShell {
		w.runnerFor(data.MessageID).Register(data)
	}
}

func (w *Workbench) onActionClose(data core.ActionCallbackData) {
	r := w.runnerFor(data.MessageID)
	if data.Action.Kind == core.ActionKindShell {
		r.Register(data)
	}

	if w.alreadyExecuted(data) {
		r.Skip(data)
		return
	}
	r.Execute(data)
}

func (w *Workbench) alreadyExecuted(data core.ActionCallbackData) bool {
	if !w.opts.SkipExecuted || w.opts.Journal == nil {
		return false
	}
	key := core.JournalKey{ActionID: data.ActionID, MessageID: data.MessageID, ChatID: w.opts.ChatID}
	executed, err := w.opts.Journal.Executed(context.Background(), key)
	if err != nil {
		w.logger.Warn("Failed to check action state", "message_id", data.MessageID, "action_id", data.ActionID, "error", err)
		return false
	}
	return executed
}

// report delivers the execution record asynchronously. Failures are logged
// and never affect the action.
func (w *Workbench) report(data core.ActionCallbackData, state core.ActionState) {
	if w.opts.Journal == nil || !w.opts.Record {
		return
	}

	rec := core.NewExecutionRecord(w.opts.ChatID, data, state)

	w.reports.Add(1)
	go func() {
		defer w.reports.Done()
		if err := w.opts.Journal.Record(context.Background(), rec); err != nil {
			w.logger.Warn("Failed to mark action executed", "message_id", rec.MessageID, "action_id", rec.ActionID, "error", err)
		}
	}()
}

func (w *Workbench) runner(messageID string) (*runner.ActionRunner, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.runners[messageID]
	return r, ok
}

func (w *Workbench) allRunners() []*runner.ActionRunner {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*runner.ActionRunner, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.runners[id])
	}
	return out
}

// runnerFor returns the runner of messageID, creating it on first use.
func (w *Workbench) runnerFor(messageID string) *runner.ActionRunner {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r, ok := w.runners[messageID]; ok {
		return r
	}

	r := runner.New(w.sandbox, append([]func(o *runner.Options){func(o *runner.Options) {
		o.Logger = logging.With(w.opts.Logger, "message_id", messageID)
		if !w.opts.IsolatedQueues {
			o.Queue = w.queue
		}
		o.OnChange = func(s core.ActionState) {
			if w.opts.Listener != nil {
				w.opts.Listener(messageID, s)
			}
		}
		o.OnSettled = w.report
	}}, w.opts.RunnerOptions...)...)

	w.runners[messageID] = r
	w.order = append(w.order, messageID)

	return r
}
