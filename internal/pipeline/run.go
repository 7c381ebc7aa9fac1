package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/ledgersync/internal/checkpoint"
	"github.com/dvloznov/ledgersync/internal/logger"
	"github.com/google/uuid"
)

// Run executes a full reconciliation: if a prior run left a usable
// checkpoint behind, it resumes from the interrupted phase instead of
// re-reading the sources. Otherwise it runs the whole pipeline.
func Run(ctx context.Context, state *State) (Summary, error) {
	cp, err := state.Deps.Store.Load()
	if err != nil {
		return state.Summary, fmt.Errorf("Run: reading checkpoint: %w", err)
	}
	if cp != nil && resumable(cp.Stage) {
		return resume(ctx, state, cp)
	}
	if cp != nil {
		// A DONE or pre-categorization stage has no record snapshot
		// to resume from.
		state.Deps.Log.Warn().Str("run_id", cp.RunID).Str("stage", string(cp.Stage)).
			Msg("discarding stale checkpoint")
		if err := state.Deps.Store.Clear(); err != nil {
			return state.Summary, fmt.Errorf("Run: clearing stale checkpoint: %w", err)
		}
	}

	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	state.Deps.Log = logger.ForRun(state.Deps.Log, state.RunID)

	state.cp = &checkpoint.Checkpoint{
		RunID:     state.RunID,
		CreatedAt: time.Now().UTC(),
		Stage:     checkpoint.StageInit,
	}
	if err := state.Deps.Store.Save(state.cp); err != nil {
		return state.Summary, fmt.Errorf("Run: writing initial checkpoint: %w", err)
	}

	p := NewPipeline(
		&ParseSourcesStep{},
		&WatermarkFilterStep{},
		&MergeStep{},
		&CategorizeStep{},
		&CheckpointStep{},
		&CommitStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		return state.Summary, err
	}
	return state.Summary, nil
}

// Resume picks an existing checkpoint back up, finishing categorization
// first if it was interrupted. It fails when no resumable checkpoint
// exists.
func Resume(ctx context.Context, state *State) (Summary, error) {
	cp, err := state.Deps.Store.Load()
	if err != nil {
		return state.Summary, fmt.Errorf("Resume: reading checkpoint: %w", err)
	}
	if cp == nil {
		return state.Summary, fmt.Errorf("Resume: no checkpoint to resume from")
	}
	if !resumable(cp.Stage) {
		return state.Summary, fmt.Errorf("Resume: checkpoint stage %s is not resumable", cp.Stage)
	}
	return resume(ctx, state, cp)
}

// resumable reports whether a checkpoint stage carries a usable record
// snapshot. Anything earlier never wrote records; DONE has nothing left.
func resumable(stage checkpoint.Stage) bool {
	switch stage {
	case checkpoint.StageCategorizing, checkpoint.StageCheckpointed,
		checkpoint.StageCommitting, checkpoint.StageFailed:
		return true
	}
	return false
}

func resume(ctx context.Context, state *State, cp *checkpoint.Checkpoint) (Summary, error) {
	state.RunID = cp.RunID
	state.cp = cp
	state.Categorized = checkpoint.ToCategorized(cp.Records)
	state.Summary.Resumed = true
	state.Deps.Log = logger.ForRun(state.Deps.Log, state.RunID)
	state.Deps.Log.Info().Int("records", len(cp.Records)).
		Str("stage", string(cp.Stage)).Msg("resuming from checkpoint")

	// A run interrupted mid-categorization picks up the remaining
	// records; already-categorized ones keep their persisted category and
	// never hit the model again. Later stages go straight to the commit.
	steps := []Step{&CommitStep{}}
	if cp.Stage == checkpoint.StageCategorizing {
		for i, r := range cp.Records {
			if r.Stage != checkpoint.StageCheckpointed {
				state.pending = append(state.pending, i)
			}
		}
		steps = []Step{&CategorizeStep{}, &CheckpointStep{}, &CommitStep{}}
	}

	p := NewPipeline(steps...)
	if err := p.Execute(ctx, state); err != nil {
		return state.Summary, err
	}
	return state.Summary, nil
}

// Status describes the checkpoint on disk without touching it.
type Status struct {
	HasCheckpoint bool
	RunID         string
	Stage         checkpoint.Stage
	Records       int
	Path          string
}

// Inspect reports the current checkpoint state for the status command.
func Inspect(state *State) (Status, error) {
	st := Status{Path: state.Deps.Store.Path()}
	cp, err := state.Deps.Store.Load()
	if err != nil {
		return st, fmt.Errorf("Inspect: %w", err)
	}
	if cp == nil {
		return st, nil
	}
	st.HasCheckpoint = true
	st.RunID = cp.RunID
	st.Stage = cp.Stage
	st.Records = len(cp.Records)
	return st, nil
}
