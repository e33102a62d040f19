package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hupe1980/actionmesh"
	"github.com/hupe1980/actionmesh/config"
	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/journal"
	"github.com/hupe1980/actionmesh/logging"
	"github.com/hupe1980/actionmesh/model"
	"github.com/hupe1980/actionmesh/model/anthropic"
	"github.com/hupe1980/actionmesh/model/openai"
	"github.com/hupe1980/actionmesh/sandbox"
)

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if provider != "" && provider != c.Model.Provider {
		c.Model.Provider = provider
		c.Model.APIKey = ""
		c.ApplyEnv()
	}
	if modelName != "" {
		c.Model.Name = modelName
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if rootDir != "" {
		c.Sandbox.Root = rootDir
	}
	if journalDSN != "" {
		c.Journal.Driver = config.JournalSQLite
		c.Journal.DSN = journalDSN
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return c, nil
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func buildLogger(c *config.Config) (*zap.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewZapLogger(level, c.Log.Format)
}

// session bundles the sandbox, journal and workbench of one command run.
type session struct {
	wb      *actionmesh.Workbench
	memory  *sandbox.Memory
	journal *journal.SQLiteStore

	// keepAlive holds finish open while long-running processes are alive.
	keepAlive bool
}

// liveCheckInterval is how often finish checks for exited background
// processes.
var liveCheckInterval = 500 * time.Millisecond

func newSession() (*session, error) {
	lg := logging.NewZapAdapter(logger)
	s := &session{keepAlive: !dryRun}

	var sb core.Sandbox
	if dryRun {
		s.memory = sandbox.NewMemory()
		sb = s.memory
	} else {
		root := cfg.Sandbox.Root
		// The root directory is only created once the first action runs.
		sb = sandbox.NewDeferred(func(context.Context) (core.Sandbox, error) {
			if err := os.MkdirAll(root, 0o755); err != nil {
				return nil, fmt.Errorf("create sandbox root: %w", err)
			}
			l, err := sandbox.NewLocal(root, func(o *sandbox.LocalOptions) { o.Logger = lg })
			if err != nil {
				return nil, err
			}
			return l, nil
		})
	}

	var j core.ExecutionJournal
	switch cfg.Journal.Driver {
	case config.JournalMemory:
		j = journal.NewInMemoryStore()
	case config.JournalSQLite:
		store, err := journal.NewSQLiteStore(cfg.Journal.DSN, func(o *journal.SQLiteOptions) { o.Logger = lg })
		if err != nil {
			return nil, err
		}
		s.journal = store
		j = store
	}

	s.wb = actionmesh.New(sb, func(o *actionmesh.Options) {
		o.ChatID = cfg.Journal.ChatID
		o.Journal = j
		o.SkipExecuted = cfg.Journal.SkipExecuted
		o.IsolatedQueues = cfg.Runner.IsolatedQueues
		o.RunnerOptions = append(o.RunnerOptions, cfg.RunnerOptions)
		o.Listener = func(messageID string, state core.ActionState) {
			logger.Debug("Action state changed",
				zap.String("message_id", messageID),
				zap.String("action_id", state.ID),
				zap.String("status", string(state.Status)))
		}
		o.Logger = lg
	})

	return s, nil
}

// finish waits for the queued actions, prints the status table and reports
// failed actions as errActionsFailed. With keepAlive, it then blocks until
// every long-running process exited or ctx is cancelled.
func (s *session) finish(ctx context.Context, w io.Writer) error {
	if err := s.wb.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintln(w)
	running := printStatus(w, s.wb)

	if running > 0 && s.keepAlive && ctx.Err() == nil {
		logger.Info("Long-running processes active, interrupt to stop", zap.Int("count", running))
		s.awaitBackground(ctx)
	}

	if s.wb.Failed() {
		return errActionsFailed
	}
	return nil
}

func (s *session) awaitBackground(ctx context.Context) {
	ticker := time.NewTicker(liveCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if backgroundCount(s.wb) == 0 {
				logger.Info("All long-running processes exited")
				return
			}
		}
	}
}

func (s *session) Close() {
	s.wb.Close()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
}

func newModel(c config.ModelConfig) (model.Model, error) {
	switch c.Provider {
	case "anthropic":
		if c.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured (set ANTHROPIC_API_KEY)")
		}
		return anthropic.NewModel(func(o *anthropic.Options) {
			if c.Name != "" {
				o.Model = anthropicsdk.Model(c.Name)
			}
			if c.MaxTokens > 0 {
				o.MaxTokens = c.MaxTokens
			}
			o.Temperature = c.Temperature
			o.APIKey = c.APIKey
		}), nil
	case "openai":
		if c.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured (set OPENAI_API_KEY)")
		}
		return openai.NewModel(func(o *openai.Options) {
			if c.Name != "" {
				o.Model = c.Name
			}
			if c.MaxTokens > 0 {
				o.MaxCompletionTokens = c.MaxTokens
			}
			o.Temperature = c.Temperature
			o.APIKey = c.APIKey
		}), nil
	case "mock":
		m := model.NewMockModel("mock", "mock")
		m.SetChunkSize(8)
		if mockReply != "" {
			data, err := os.ReadFile(mockReply)
			if err != nil {
				return nil, fmt.Errorf("read mock reply: %w", err)
			}
			m.AddResponse(prompt, string(data))
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", c.Provider)
	}
}
