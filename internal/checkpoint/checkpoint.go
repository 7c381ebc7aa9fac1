// Package checkpoint persists the categorized batch locally before any
// sink write, so an interrupted run can resume straight into the commit
// without re-parsing, re-merging or re-categorizing anything.
package checkpoint

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/shopspring/decimal"
)

// Stage is the run state machine. FAILED always preserves the last
// CHECKPOINTED snapshot on disk.
type Stage string

const (
	StageInit         Stage = "INIT"
	StageStaged       Stage = "STAGED"
	StageCategorizing Stage = "CATEGORIZING"
	StageCheckpointed Stage = "CHECKPOINTED"
	StageCommitting   Stage = "COMMITTING"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// Record is one persisted tuple: the canonical fields, the assigned
// category and the pipeline stage it reached. Once a record reaches DONE
// the checkpoint it lived in is deleted, never mutated.
type Record struct {
	BusinessKey     string          `json:"business_key"`
	SourceID        string          `json:"source_id"`
	Date            civil.Date      `json:"transaction_date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	OriginFile      string          `json:"origin_file"`
	TransferGroupID string          `json:"transfer_group_id,omitempty"`
	Category        string          `json:"category"`
	Summary         string          `json:"summary,omitempty"`
	Stage           Stage           `json:"pipeline_stage"`
}

// Checkpoint is the durable snapshot of one run. It is exclusively owned
// by that run; a stale checkpoint from an interrupted prior run is the
// only valid input to a resume.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Stage     Stage     `json:"stage"`
	Records   []Record  `json:"records"`
}

// FromCategorized converts pipeline output into checkpoint records,
// keeping the batch order.
func FromCategorized(records []domain.CategorizedRecord, stage Stage) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Record{
			BusinessKey:     r.BusinessKey,
			SourceID:        r.SourceID,
			Date:            r.Date,
			Description:     r.Description,
			Amount:          r.Amount,
			OriginFile:      r.OriginFile,
			TransferGroupID: r.TransferGroupID,
			Category:        r.Category,
			Summary:         r.Summary,
			Stage:           stage,
		})
	}
	return out
}

// ToCategorized rebuilds the commit batch from persisted records. The
// business key is restored verbatim, never recomputed: the checkpoint is
// the sole source of truth for a resume.
func ToCategorized(records []Record) []domain.CategorizedRecord {
	out := make([]domain.CategorizedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, domain.CategorizedRecord{
			Record: domain.Record{
				SourceID:        r.SourceID,
				Date:            r.Date,
				Description:     r.Description,
				Amount:          r.Amount,
				OriginFile:      r.OriginFile,
				BusinessKey:     r.BusinessKey,
				TransferGroupID: r.TransferGroupID,
			},
			Category: r.Category,
			Summary:  r.Summary,
		})
	}
	return out
}
