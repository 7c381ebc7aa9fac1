package cli

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/sheets/v4"

	"github.com/dvloznov/ledgersync/internal/categorize"
	"github.com/dvloznov/ledgersync/internal/checkpoint"
	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/logger"
	"github.com/dvloznov/ledgersync/internal/pipeline"
	"github.com/dvloznov/ledgersync/internal/sink"
	"github.com/dvloznov/ledgersync/internal/sourcefile"
	"github.com/dvloznov/ledgersync/internal/watermark"
)

// setup loads the configuration and builds the logger every subcommand
// starts from.
func setup(opts *RootOptions) (*config.Config, zerolog.Logger, error) {
	log := logger.New()
	if opts.Verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

// buildDeps constructs the external collaborators for a full run. The
// returned cleanup closes whatever clients were opened.
func buildDeps(ctx context.Context, cfg *config.Config, log zerolog.Logger) (pipeline.Deps, func(), error) {
	deps := pipeline.Deps{
		Loader: sourcefile.Load,
		Store:  checkpoint.NewStore(cfg.Checkpoint.Dir),
		Log:    log,
	}
	cleanup := func() {}

	switch cfg.Sink.Kind {
	case "bigquery":
		client, err := bigquery.NewClient(ctx, cfg.Project.GCPProject)
		if err != nil {
			return deps, cleanup, fmt.Errorf("buildDeps: creating BigQuery client: %w", err)
		}
		cleanup = func() { client.Close() }
		deps.Sink = sink.WithRetry(sink.NewBigQuerySink(client, cfg.Project), cfg.Sink.MaxRetries)
		deps.Resolver = watermark.NewBigQueryResolver(client, cfg.Project)
	case "sheets":
		svc, err := sheets.NewService(ctx)
		if err != nil {
			return deps, cleanup, fmt.Errorf("buildDeps: creating Sheets service: %w", err)
		}
		ss := sink.NewSheetsSink(svc, cfg.Sink.SpreadsheetID, cfg.Sink.SheetName)
		ss.DisplayName = cfg.DisplayName
		sr := watermark.NewSheetsResolver(svc, cfg.Sink.SpreadsheetID, cfg.Sink.SheetName)
		sr.DisplayName = cfg.DisplayName
		deps.Sink = sink.WithRetry(ss, cfg.Sink.MaxRetries)
		deps.Resolver = sr
	default:
		return deps, cleanup, fmt.Errorf("buildDeps: unknown sink kind %q", cfg.Sink.Kind)
	}

	cat, err := categorize.NewGeminiCategorizer(ctx, cfg.Categorize.Model, cfg.Categorize.Categories)
	if err != nil {
		cleanup()
		return deps, func() {}, fmt.Errorf("buildDeps: creating categorizer: %w", err)
	}
	deps.Categorizer = cat

	return deps, cleanup, nil
}

// printSummary writes the end-of-run report to stdout.
func printSummary(cmd *cobra.Command, sum pipeline.Summary) {
	out := cmd.OutOrStdout()
	if sum.Resumed {
		fmt.Fprintln(out, "Resumed from checkpoint.")
	}
	fmt.Fprintf(out, "Parsed:                   %d\n", sum.Parsed)
	fmt.Fprintf(out, "Skipped rows:             %d\n", sum.SkippedRows)
	fmt.Fprintf(out, "Failed sources:           %d\n", sum.FailedSources)
	fmt.Fprintf(out, "Already in sink:          %d\n", sum.WatermarkDropped)
	fmt.Fprintf(out, "Transfer pairs:           %d\n", sum.TransferPairs)
	fmt.Fprintf(out, "Duplicates dropped:       %d\n", sum.DuplicatesDropped)
	fmt.Fprintf(out, "Flagged for review:       %d\n", sum.ReviewCollisions)
	fmt.Fprintf(out, "Categorization fallbacks: %d\n", sum.CategorizationFallbacks)
	fmt.Fprintf(out, "Committed:                %d\n", sum.Committed)
	if sum.Failed > 0 {
		fmt.Fprintf(out, "Failed:                   %d (run 'ledgersync resume' to retry)\n", sum.Failed)
	}
}
