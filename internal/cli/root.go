// Package cli is the ticketbot command line: one-shot classification, the
// terminal UI, and the Slack bot.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticketbot/internal/config"
	"ticketbot/internal/logging"
)

const defaultTUILogFile = "ticketbot-tui.log"

type root struct {
	verbose bool
	logFile string

	cfg    config.Config
	logger *zap.Logger
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	r := &root{}
	cmd := &cobra.Command{
		Use:   "ticketbot",
		Short: "Classify IT tickets and teach the classifier from your answers",
		Long: `ticketbot sends an IT issue description to the ticket classifier, shows
the predicted department, and reports back whether the prediction was right.

Every answer becomes feedback for the classifier. Use the slack command to
serve a team, tui for an interactive terminal session, or classify for a
single prediction.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: r.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if r.logger != nil {
				_ = r.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&r.logFile, "log-file", "", "write logs to this file instead of stderr")

	cmd.AddCommand(
		r.classifyCommand(),
		r.labelsCommand(),
		r.statsCommand(),
		r.tuiCommand(),
		r.slackCommand(),
	)
	return cmd
}

func (r *root) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	r.cfg = cfg

	logFile := r.logFile
	if logFile == "" && cmd.Name() == "tui" {
		logFile = defaultTUILogFile
	}
	r.logger, err = logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Verbose:    r.verbose,
		OutputPath: logFile,
	})
	return err
}

// Execute runs the command line until it finishes or the process is
// interrupted, and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
