package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/argonauts/internal/config"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/spf13/cobra"
)

// cli carries global flags and the configuration they resolve to.
type cli struct {
	configPath string
	outputDir  string
	logLevel   string

	logOut io.Writer
	cfg    *config.Config
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&cli{logOut: os.Stderr})
	err := root.ExecuteContext(ctx)
	if syncErr := logger.Sync(); syncErr != nil {
		os.Stderr.WriteString("argonauts: flush logs: " + syncErr.Error() + "\n")
	}
	if err != nil {
		os.Stderr.WriteString("argonauts: " + err.Error() + "\n")
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "argonauts",
		Short: "Synthetic ASV demonstration pipeline",
		Long: `argonauts fabricates synthetic DNA barcode reads, projects them to 2D with
TF-IDF and t-SNE, clusters the projection with DBSCAN and writes a fabricated
taxonomic report. None of it is biologically meaningful.

Stages hand data to each other through files in the output directory, so each
one can be run on its own once its input exists.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file (default $ARGONAUTS_CONFIG)")
	flags.StringVar(&c.outputDir, "output-dir", "", "directory for stage outputs (overrides output_dir)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")

	root.AddCommand(
		newRunCmd(c),
		newGenerateCmd(c),
		newEmbedCmd(c),
		newClusterCmd(c),
		newReportCmd(c),
		newServeCmd(c),
	)
	return root
}

// setup loads configuration (defaults -> optional file -> env -> flags) and
// initializes logging.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return err
	}
	if c.outputDir != "" {
		cfg.OutputDir = c.outputDir
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Init(logger.WithWriter(c.logOut), logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}
