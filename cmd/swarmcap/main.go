package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swarmcap/internal/artifact"
	"swarmcap/internal/config"
	"swarmcap/internal/logging"
	"swarmcap/internal/telemetry"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	traceTo    string

	// Logger
	logger *zap.Logger

	// Flushes exported spans; set by loadConfig
	shutdownTracing telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "swarmcap",
	Short: "swarmcap - LLM-generated swarm robot controllers",
	Long: `swarmcap asks a language model for a Go controller that makes a robot
swarm perform a task, then recursively asks it for every helper function the
controller calls but nobody defined. Helpers are compiled in a sandbox bound
to the robot capabilities of the task, and the assembled program is written
to the workspace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := shutdownTracing(ctx); err != nil && logger != nil {
				logger.Warn("trace export failed", zap.Error(err))
			}
			cancel()
			shutdownTracing = nil
		}
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "swarmcap.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (overrides workspace.root)")
	rootCmd.PersistentFlags().StringVar(&traceTo, "trace", "", "Span exporter: none, stdout, otlphttp (overrides tracing.exporter)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(apisCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies the workspace and trace flags,
// starts the categorized file loggers and installs the span exporter.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		cfg.Workspace.Root = workspace
		cfg.Workspace.LedgerPath = filepath.Join(workspace, "runs.db")
	}
	if err := logging.Initialize(cfg.Workspace.Root, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("config loaded from %s (provider=%s, workspace=%s)", configPath, cfg.LLM.Provider, cfg.Workspace.Root)

	if traceTo != "" {
		cfg.Tracing.Exporter = traceTo
	}
	shutdown, err := telemetry.Setup(context.Background(), cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}
	shutdownTracing = shutdown
	return cfg, nil
}

// openLedger opens the run ledger, or returns nil when none is configured.
func openLedger(cfg *config.Config) (*artifact.Ledger, error) {
	if cfg.Workspace.LedgerPath == "" {
		return nil, nil
	}
	return artifact.OpenLedger(cfg.Workspace.LedgerPath, cfg.Workspace.LedgerDriver)
}

// commandContext is cancelled on SIGINT/SIGTERM and after timeout (0 = none).
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}
