// Package cli provides the command-line interface for cortexdesk
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/internal/logger"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app holds what every command shares: the resolved config, the optional
// config file manager and the process logger.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	mgr    *config.Manager
	logger *zap.Logger
	out    io.Writer

	// openEngine is replaced in tests to avoid real model clients.
	openEngine func(a *app) (*engine, error)
}

// Run starts the CLI application
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{openEngine: openEngine})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cortexdesk",
		Short: "cortexdesk - a multi-agent LLM trading committee",
		Long: `cortexdesk runs a committee of LLM agents over one ticker and trade date:
four analysts, a bull/bear debate judged by a research manager, a trader,
and a risky/safe/neutral risk debate judged by a risk manager. The outcome
is reduced to BUY, SELL or HOLD and every run is kept for later reflection.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return a.runInteractive(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file path (JSON)")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newBatchCmd(a),
		newReflectCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newDataCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// load resolves the config: the --config file when given, otherwise
// defaults with .env and environment overrides.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	if a.configPath != "" {
		mgr, err := config.NewManager(config.WithConfigPath(a.configPath), config.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("load config %s: %w", a.configPath, err)
		}
		cfg := mgr.Get()
		a.mgr = mgr
		a.cfg = cfg.Clone()
	} else {
		a.cfg = config.DefaultConfig()
	}
	if a.debug {
		a.cfg.Debug = true
	}

	if a.logger == nil {
		l, err := logger.New(a.cfg.Debug)
		if err != nil {
			return err
		}
		a.logger = l
	}
	return nil
}
