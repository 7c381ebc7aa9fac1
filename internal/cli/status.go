package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/ledgersync/internal/checkpoint"
	"github.com/dvloznov/ledgersync/internal/pipeline"
)

// NewStatusCommand creates the status command, which reports whether a
// checkpoint is waiting for a resume. It never touches the sink.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of any pending checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(opts)
			if err != nil {
				return err
			}

			state := &pipeline.State{
				Config: cfg,
				Deps: pipeline.Deps{
					Store: checkpoint.NewStore(cfg.Checkpoint.Dir),
					Log:   log,
				},
			}
			st, err := pipeline.Inspect(state)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !st.HasCheckpoint {
				fmt.Fprintln(out, "No pending checkpoint.")
				return nil
			}
			fmt.Fprintf(out, "Checkpoint: %s\n", st.Path)
			fmt.Fprintf(out, "Run:        %s\n", st.RunID)
			fmt.Fprintf(out, "Stage:      %s\n", st.Stage)
			fmt.Fprintf(out, "Records:    %d\n", st.Records)
			return nil
		},
	}
}
