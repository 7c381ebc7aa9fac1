package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/ledgersync/internal/categorize"
	"github.com/dvloznov/ledgersync/internal/checkpoint"
	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/dvloznov/ledgersync/internal/reconcile"
	"github.com/dvloznov/ledgersync/internal/sink"
	"github.com/dvloznov/ledgersync/internal/sources"
	"github.com/dvloznov/ledgersync/internal/watermark"
)

// ParseSourcesStep loads and parses every configured source. A structural
// parse failure is fatal to that source's file only; the other sources
// continue and the failure is counted in the summary.
type ParseSourcesStep struct{}

func (s *ParseSourcesStep) Name() string { return "parse-sources" }

func (s *ParseSourcesStep) Execute(ctx context.Context, state *State) error {
	log := state.Deps.Log
	for _, src := range state.Config.Sources {
		adapter, err := sources.New(src)
		if err != nil {
			return fmt.Errorf("ParseSourcesStep: %w", err)
		}

		input, err := state.Deps.Loader(ctx, src.File)
		if err != nil {
			log.Error().Str("account", src.Account).Str("file", src.File).Err(err).
				Msg("loading source failed, skipping this source")
			state.Summary.FailedSources++
			continue
		}

		res, err := adapter.Parse(input)
		if err != nil {
			var perr *sources.ParseError
			if errors.As(err, &perr) {
				log.Error().Str("account", src.Account).Err(err).
					Msg("source file is structurally invalid, skipping this source")
				state.Summary.FailedSources++
				continue
			}
			return fmt.Errorf("ParseSourcesStep: %s: %w", src.Account, err)
		}

		for _, skip := range res.Skipped {
			log.Warn().Str("account", src.Account).Int("line", skip.Line).Err(skip.Err).
				Msg("row excluded by validation")
		}
		state.Summary.SkippedRows += len(res.Skipped)
		state.Summary.Parsed += len(res.Records)

		state.Batches = append(state.Batches, reconcile.SourceBatch{
			Account:  src.Account,
			Kind:     src.Kind,
			Priority: src.EffectivePriority(),
			Records:  res.Records,
		})
	}
	return nil
}

// WatermarkFilterStep reads each account's watermark once and drops
// candidates the sink has already accepted.
type WatermarkFilterStep struct{}

func (s *WatermarkFilterStep) Name() string { return "watermark-filter" }

func (s *WatermarkFilterStep) Execute(ctx context.Context, state *State) error {
	for i := range state.Batches {
		b := &state.Batches[i]
		w, err := markFor(ctx, state, b.Account)
		if err != nil {
			return fmt.Errorf("WatermarkFilterStep: %s: %w", b.Account, err)
		}

		kept, dropped := watermark.Filter(b.Records, w)
		b.Records = kept
		state.Summary.WatermarkDropped += dropped
		if dropped > 0 {
			state.Deps.Log.Info().Str("account", b.Account).Int("dropped", dropped).
				Msg("filtered records already present in sink")
		}
	}
	return nil
}

// markFor returns the account's watermark, querying the resolver at most
// once per account per run.
func markFor(ctx context.Context, state *State, account string) (watermark.Watermark, error) {
	if w, ok := state.marks[account]; ok {
		return w, nil
	}
	w, err := state.Deps.Resolver.Watermark(ctx, account)
	if err != nil {
		return watermark.Watermark{}, err
	}
	if state.marks == nil {
		state.marks = make(map[string]watermark.Watermark)
	}
	state.marks[account] = w
	return w, nil
}

// MergeStep runs the reconciliation engine. After this step the batch is
// STAGED: no merge logic runs again for this run.
type MergeStep struct{}

func (s *MergeStep) Name() string { return "merge" }

func (s *MergeStep) Execute(ctx context.Context, state *State) error {
	engine := reconcile.New(state.Config, state.Deps.Log)
	merged, stats, err := engine.Merge(state.Batches)
	if err != nil {
		return err
	}
	state.Summary.TransferPairs = stats.TransferPairs
	state.Summary.DuplicatesDropped = stats.DuplicatesDropped
	state.Summary.ReviewCollisions = stats.ReviewCollisions

	// Transfer pairs minted by the merge carry business keys the pre-merge
	// filter never saw, so a second pass against the cached watermarks is
	// needed to keep re-runs append-free.
	state.Merged = state.Merged[:0]
	for _, r := range merged {
		w, err := markFor(ctx, state, r.SourceID)
		if err != nil {
			return fmt.Errorf("MergeStep: %s: %w", r.SourceID, err)
		}
		if w.HasDate && !r.Date.After(w.Date) && w.Contains(r.BusinessKey) {
			state.Summary.WatermarkDropped++
			continue
		}
		state.Merged = append(state.Merged, r)
	}
	return nil
}

// CategorizeStep fans out to the categorization collaborator with the
// configured bound and timeout, restoring merge order in the result. The
// checkpoint is staged before the first model call and rewritten as each
// record's category lands, so an interrupt mid-phase loses at most the
// calls still in flight; every record is categorized at most once even
// across process restarts.
type CategorizeStep struct{}

func (s *CategorizeStep) Name() string { return "categorize" }

func (s *CategorizeStep) Execute(ctx context.Context, state *State) error {
	if state.cp == nil || state.cp.Stage != checkpoint.StageCategorizing {
		if err := stageForCategorization(state); err != nil {
			return fmt.Errorf("CategorizeStep: %w", err)
		}
	}

	recs := make([]domain.Record, 0, len(state.pending))
	for _, i := range state.pending {
		recs = append(recs, state.Categorized[i].Record)
	}

	var mu sync.Mutex
	opts := categorize.Options{
		Workers: state.Config.Categorize.Workers,
		Timeout: state.Config.Categorize.Timeout.Std(),
		Progress: func(j int, rec domain.CategorizedRecord) {
			i := state.pending[j]
			mu.Lock()
			defer mu.Unlock()
			state.Categorized[i] = rec
			state.cp.Records[i].Category = rec.Category
			state.cp.Records[i].Summary = rec.Summary
			state.cp.Records[i].Stage = checkpoint.StageCheckpointed
			if err := state.Deps.Store.Save(state.cp); err != nil {
				state.Deps.Log.Warn().Err(err).Msg("could not persist categorization progress")
			}
		},
	}

	out, fallbacks, err := categorize.Batch(ctx, state.Deps.Categorizer, recs, opts, state.Deps.Log)
	if err != nil {
		return fmt.Errorf("CategorizeStep: %w", err)
	}
	for j, i := range state.pending {
		state.Categorized[i] = out[j]
	}
	state.Summary.CategorizationFallbacks = fallbacks
	state.pending = nil
	return nil
}

// stageForCategorization snapshots the merged batch into the checkpoint
// with every record pending, keeping the run id and creation time of the
// initial checkpoint when one exists.
func stageForCategorization(state *State) error {
	cats := make([]domain.CategorizedRecord, len(state.Merged))
	state.pending = state.pending[:0]
	for i, r := range state.Merged {
		cats[i] = domain.CategorizedRecord{Record: r}
		state.pending = append(state.pending, i)
	}
	state.Categorized = cats

	cp := &checkpoint.Checkpoint{
		RunID:     state.RunID,
		CreatedAt: time.Now().UTC(),
		Stage:     checkpoint.StageCategorizing,
		Records:   checkpoint.FromCategorized(cats, checkpoint.StageStaged),
	}
	if state.cp != nil {
		cp.CreatedAt = state.cp.CreatedAt
	}
	state.cp = cp
	return state.Deps.Store.Save(cp)
}

// CheckpointStep seals the fully categorized batch before any sink write.
type CheckpointStep struct{}

func (s *CheckpointStep) Name() string { return "checkpoint" }

func (s *CheckpointStep) Execute(ctx context.Context, state *State) error {
	cp := state.cp
	if cp == nil {
		cp = &checkpoint.Checkpoint{RunID: state.RunID, CreatedAt: time.Now().UTC()}
		state.cp = cp
	}
	cp.Stage = checkpoint.StageCheckpointed
	cp.Records = checkpoint.FromCategorized(state.Categorized, checkpoint.StageCheckpointed)
	if err := state.Deps.Store.Save(cp); err != nil {
		return fmt.Errorf("CheckpointStep: %w", err)
	}
	return nil
}

// CommitStep appends the batch to the sink and clears the checkpoint only
// after confirmed success. Cancellation is honored up to the moment the
// commit starts; after that the attempt runs to its own timeout so an
// interrupt can never leave the sink state unknown alongside a deleted
// checkpoint.
type CommitStep struct{}

func (s *CommitStep) Name() string { return "commit" }

func (s *CommitStep) Execute(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(state.Categorized) == 0 {
		state.Deps.Log.Info().Msg("nothing to commit")
		return state.Deps.Store.Clear()
	}

	if err := setStage(state, checkpoint.StageCommitting); err != nil {
		return fmt.Errorf("CommitStep: %w", err)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), state.Config.Sink.Timeout.Std())
	defer cancel()

	if err := state.Deps.Sink.CommitBatch(commitCtx, state.Categorized); err != nil {
		state.Summary.Failed = len(state.Categorized)
		if serr := setStage(state, checkpoint.StageFailed); serr != nil {
			state.Deps.Log.Error().Err(serr).Msg("could not mark checkpoint as failed")
		}
		var cerr *sink.CommitError
		if !errors.As(err, &cerr) {
			err = &sink.CommitError{Err: err}
		}
		return err
	}

	state.Summary.Committed = len(state.Categorized)
	if err := state.Deps.Store.Clear(); err != nil {
		return fmt.Errorf("CommitStep: clearing checkpoint after commit: %w", err)
	}
	return nil
}

// setStage rewrites the checkpoint header in place, preserving the
// record snapshot for resume.
func setStage(state *State, stage checkpoint.Stage) error {
	cp, err := state.Deps.Store.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}
	cp.Stage = stage
	return state.Deps.Store.Save(cp)
}
