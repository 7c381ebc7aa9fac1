// Package watermark answers "what has the sink already accepted?" so the
// pipeline can filter out already-ingested input. A watermark is read once
// at the start of a run and never mutated in-process; only a successful
// commit advances it.
package watermark

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/domain"
)

// Watermark is the per-account high-water mark in the sink: the most
// recent committed transaction date plus the set of committed business
// keys. The key set makes same-day partial commits safe: date equality
// alone cannot decide whether a record is already in the sink.
type Watermark struct {
	SourceID string
	Date     civil.Date
	HasDate  bool
	Keys     map[string]struct{}
}

// Contains reports whether the sink already holds the given business key.
func (w Watermark) Contains(businessKey string) bool {
	_, ok := w.Keys[businessKey]
	return ok
}

// Resolver queries the sink for one account's watermark.
type Resolver interface {
	Watermark(ctx context.Context, sourceID string) (Watermark, error)
}

// Filter drops every candidate with transaction_date <= watermark whose
// business key is already present in the sink. Records dated after the
// watermark always pass, as do records on or before it whose key the sink
// does not know (the partially-committed same-day case). The dropped count
// is returned for the run summary.
func Filter(records []domain.Record, w Watermark) (kept []domain.Record, dropped int) {
	if !w.HasDate {
		return records, 0
	}
	kept = make([]domain.Record, 0, len(records))
	for _, r := range records {
		if r.Date.After(w.Date) {
			kept = append(kept, r)
			continue
		}
		if w.Contains(r.BusinessKey) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
