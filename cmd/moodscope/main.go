// moodscope scores text sentiment through a local model server, falling back
// to a deterministic keyword scorer when the model path fails. Transport
// failures feed an advisory, file-backed circuit breaker per priority bucket.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"moodscope/internal/config"
	"moodscope/internal/fallback"
	"moodscope/internal/history"
	"moodscope/internal/llm"
	"moodscope/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger

	// Composed at startup, shared by subcommands.
	cfg    *config.Config
	policy *fallback.Policy
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "moodscope",
	Short: "moodscope - local-LLM sentiment scoring with an advisory circuit breaker",
	Long: `moodscope scores text sentiment against a local model server (Ollama
generate API) and falls back to a deterministic keyword scorer whenever the
model path fails, so scoring itself never errors.

Transport failures are counted per priority bucket in a persisted quota
tracker; once a bucket crosses its threshold the breaker opens and stays open
until reset. The breaker is advisory: it produces an audit trail, it does not
block calls.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("categorized logging unavailable", zap.Error(err))
		}

		path := configPath
		if path == "" {
			path = filepath.Join(workspace, ".moodscope", "config.yaml")
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		policy = fallback.Load(fallback.Paths{
			ConfigPath:        resolvePath(cfg.Fallback.ConfigPath),
			TrackerPath:       resolvePath(cfg.Fallback.TrackerPath),
			EscalationLogPath: resolvePath(cfg.Fallback.EscalationLogPath),
		})

		logger.Debug("configured",
			zap.String("base_url", cfg.LLM.BaseURL),
			zap.String("model", cfg.LLM.Model),
			zap.Bool("fallback_policy", policy.Enabled()))

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// resolvePath anchors relative config paths at the workspace.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// newLLMClient builds the transport client wired to the fallback policy.
func newLLMClient() *llm.Client {
	return llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	}, policy)
}

// openHistory returns the history store, or nil when disabled or unavailable.
func openHistory() *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(resolvePath(cfg.History.DatabasePath))
	if err != nil {
		logger.Warn("history store unavailable", zap.Error(err))
		return nil
	}
	return store
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.moodscope/config.yaml)")

	generateCmd.Flags().Float64Var(&genTemperature, "temperature", 0.7, "Sampling temperature")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Override the configured model")
	generateCmd.Flags().StringSliceVar(&genImages, "image", nil, "Image file to attach (repeatable)")
	generateCmd.Flags().StringVar(&genPriority, "priority", "", "Failure priority bucket: low, medium, high")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 2*time.Minute, "Call timeout")

	scoreCmd.Flags().BoolVar(&scoreKeywordOnly, "keyword-only", false, "Skip the model path entirely")
	scoreCmd.Flags().DurationVar(&scoreTimeout, "timeout", 2*time.Minute, "Per-call timeout")

	breakerStatusCmd.Flags().BoolVar(&breakerWatch, "watch", false, "Follow quota tracker changes")
	breakerCmd.AddCommand(breakerStatusCmd)
	breakerCmd.AddCommand(breakerResetCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(breakerCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
