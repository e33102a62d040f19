// Command actionmesh executes the artifacts embedded in streamed model replies.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hupe1980/actionmesh/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	rootDir    string
	dryRun     bool
	journalDSN string

	// replay / watch
	chunkSize int
	messageID string
	idle      time.Duration

	// generate
	prompt    string
	provider  string
	modelName string
	mockReply string

	cfg    *config.Config
	logger *zap.Logger
)

// errActionsFailed makes the process exit non-zero after the status table
// was printed.
var errActionsFailed = errors.New("one or more actions failed")

var rootCmd = &cobra.Command{
	Use:   "actionmesh",
	Short: "Execute the artifacts embedded in model replies",
	Long: `actionmesh parses <boltArtifact>/<boltAction> directives out of a model
reply while it streams, writes the files and runs the shell commands they
describe, and prints the reply text with the directives removed.

Actions run one at a time in document order. Dev servers (npm run dev, vite,
...) are left running until the command exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		logger, err = buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Feed a saved reply through the workbench",
	Long: `Reads a reply transcript and feeds it to the parser in --chunk sized
increments, the way a streaming model would deliver it.

Example:
  actionmesh replay reply.txt --chunk 16 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Follow a growing reply file",
	Long: `Watches a reply file and re-parses it on every write until interrupted
or --idle elapses without a change.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Stream a model reply into the workbench",
	Long: `Sends --prompt to the configured model and executes the actions of the
reply while it streams.

Example:
  actionmesh generate --prompt "Create a vite app" --provider anthropic`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [command...]",
	Short: "Report whether a command is treated as long-running",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "actionmesh.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Sandbox root directory")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Execute against an in-memory sandbox")
	rootCmd.PersistentFlags().StringVar(&journalDSN, "journal", "", "SQLite journal path (enables the sqlite journal)")

	replayCmd.Flags().IntVar(&chunkSize, "chunk", 32, "Bytes delivered per parse step (0 for all at once)")
	replayCmd.Flags().StringVar(&messageID, "message", "", "Message id (default: file name)")

	watchCmd.Flags().DurationVar(&idle, "idle", 0, "Stop after this long without a write (0 waits for interrupt)")
	watchCmd.Flags().StringVar(&messageID, "message", "", "Message id (default: file name)")

	generateCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt sent to the model (required)")
	generateCmd.Flags().StringVar(&provider, "provider", "", "Model provider (anthropic, openai, mock)")
	generateCmd.Flags().StringVar(&modelName, "model", "", "Model name")
	generateCmd.Flags().StringVar(&mockReply, "mock-reply", "", "Reply file streamed by the mock provider")
	_ = generateCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
