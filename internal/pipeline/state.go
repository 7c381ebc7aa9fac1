// Package pipeline orchestrates one reconciliation run: parse the
// configured sources, filter against the sink watermarks, merge,
// categorize, checkpoint, commit. Each phase is a Step sharing a State,
// and the checkpoint makes the tail of the pipeline resumable.
package pipeline

import (
	"context"

	"github.com/dvloznov/ledgersync/internal/categorize"
	"github.com/dvloznov/ledgersync/internal/checkpoint"
	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/dvloznov/ledgersync/internal/reconcile"
	"github.com/dvloznov/ledgersync/internal/sink"
	"github.com/dvloznov/ledgersync/internal/sources"
	"github.com/dvloznov/ledgersync/internal/watermark"
	"github.com/rs/zerolog"
)

// Loader fetches and decodes one raw source file.
type Loader func(ctx context.Context, pathOrURI string) (sources.RawInput, error)

// Deps are the external collaborators of a run. Everything the pipeline
// touches outside its own process goes through one of these, which keeps
// the whole run testable without GCP credentials.
type Deps struct {
	Loader      Loader
	Resolver    watermark.Resolver
	Categorizer categorize.Categorizer
	Sink        sink.Sink
	Store       *checkpoint.Store
	Log         zerolog.Logger
}

// Summary is the end-of-run report.
type Summary struct {
	Parsed                  int
	SkippedRows             int
	FailedSources           int
	WatermarkDropped        int
	TransferPairs           int
	DuplicatesDropped       int
	ReviewCollisions        int
	CategorizationFallbacks int
	Committed               int
	Failed                  int
	Resumed                 bool
}

// State is the shared state all steps read and write.
type State struct {
	RunID  string
	Config *config.Config
	Deps   Deps

	Batches     []reconcile.SourceBatch
	Merged      []domain.Record
	Categorized []domain.CategorizedRecord

	// marks caches each account's watermark for the duration of the run,
	// so transfer pairs minted during the merge can be re-checked without
	// a second sink query.
	marks map[string]watermark.Watermark

	// cp is this run's live checkpoint. The categorize, checkpoint and
	// commit steps advance it through the stage machine; a resume sets it
	// from disk.
	cp *checkpoint.Checkpoint

	// pending indexes the records in Categorized that still await a
	// category. Empty once categorization completes.
	pending []int

	Summary Summary
}

// Step is one phase of the run.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes steps in order, stopping at the first error.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		state.Deps.Log.Info().Str("step", step.Name()).Msg("starting step")
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
