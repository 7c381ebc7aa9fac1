package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dvloznov/ledgersync/internal/logger"
	"github.com/dvloznov/ledgersync/internal/pipeline"
	"github.com/dvloznov/ledgersync/internal/reconcile"
)

// NewRunCommand creates the run command, the main entry point of the
// tool. If an interrupted earlier run left a checkpoint behind, run
// resumes it instead of starting over.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile all configured sources and commit to the sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, pipeline.Run)
		},
	}
}

// NewResumeCommand creates the resume command. Unlike run it fails when
// there is nothing to resume, so it is safe to use in scripts that must
// not start a fresh ingestion.
func NewResumeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Retry the commit of a checkpointed run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, pipeline.Resume)
		},
	}
}

type runFunc func(ctx context.Context, state *pipeline.State) (pipeline.Summary, error)

func runPipeline(cmd *cobra.Command, opts *RootOptions, run runFunc) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	deps, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	state := &pipeline.State{Config: cfg, Deps: deps}
	sum, err := run(ctx, state)
	if err != nil {
		var oerr *reconcile.OverlapError
		if errors.As(err, &oerr) {
			log.Error().Err(err).
				Msg("historical and native data overlap beyond the configured tolerance, adjust the source cutoff dates")
		}
		printSummary(cmd, sum)
		return err
	}

	printSummary(cmd, sum)
	return nil
}
