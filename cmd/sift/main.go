package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sift/internal/config"
	"sift/internal/history"
	"sift/internal/logging"
	"sift/internal/provider"
	"sift/internal/session"
	"sift/internal/template"
)

var (
	// Global flags
	verbose bool
	dataDir string
	timeout time.Duration

	// Shared state, built in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "sift - multi-phase session capture and extraction",
	Long: `sift structures working sessions as templates of ordered phases.

Each phase moves through a capture pipeline: record audio or attach a
document, transcribe it, then extract structured data with an LLM.
Imported documents can be routed across phases automatically.

Start with:
  sift template list
  sift session create <name> --template <template>`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		home := dataDir
		if home == "" {
			home = config.DefaultHome()
		}
		cfg, err = config.Load(home)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Initialize(home); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $SIFT_HOME or ~/.sift)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Provider operation timeout")

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(phaseCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore returns the session store under the data directory.
func openStore() *session.Store {
	return session.NewStore(cfg.SessionsDir())
}

// openLibrary returns the template library under the data directory.
func openLibrary() *template.Library {
	return template.NewLibrary(cfg.TemplatesDir())
}

// newChat builds the configured chat provider. A provider that cannot
// be built is reported but not fatal: capture and review work offline.
func newChat() provider.Chat {
	chat, err := provider.FromConfig(cfg)
	if err != nil {
		logger.Warn("chat provider unavailable", zap.Error(err))
		return nil
	}
	return chat
}

// newLifecycle builds the phase lifecycle engine.
func newLifecycle(chat provider.Chat) *session.Lifecycle {
	return session.NewLifecycle(chat, cfg.Provider.MaxTokens)
}

// recordHistory appends to the activity log, best effort.
func recordHistory(sessionName, phase, action, detail string) {
	log, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		logging.History("history unavailable: %v", err)
		return
	}
	defer log.Close()
	if err := log.Record(sessionName, phase, action, detail); err != nil {
		logging.History("record failed: %v", err)
	}
}
