package reconcile

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/domain"
)

// OverlapError is fatal to the whole merge: a historical reconstruction
// reaching into a native export's date range beyond the configured
// tolerance signals a wrong cutoff date, not legitimate duplicate data.
// The operator must correct the source boundaries and re-run.
type OverlapError struct {
	Account       string
	HistoricalMax civil.Date
	NativeMin     civil.Date
	OverlapDays   int
	ToleranceDays int
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"account %s: historical data ends %s but native export starts %s (%d day overlap, tolerance %d); fix the source cutoff dates",
		e.Account, e.HistoricalMax, e.NativeMin, e.OverlapDays, e.ToleranceDays,
	)
}

// checkOverlap validates that for every account the historical and native
// date ranges stay disjoint within the configured tolerance.
func (e *Engine) checkOverlap(batches []SourceBatch) error {
	type bounds struct {
		min, max civil.Date
		set      bool
	}
	native := make(map[string]*bounds)
	historical := make(map[string]*bounds)

	extend := func(m map[string]*bounds, account string, d civil.Date) {
		b := m[account]
		if b == nil {
			b = &bounds{}
			m[account] = b
		}
		if !b.set {
			b.min, b.max, b.set = d, d, true
			return
		}
		if d.Before(b.min) {
			b.min = d
		}
		if d.After(b.max) {
			b.max = d
		}
	}

	for _, batch := range batches {
		m := native
		if batch.Kind == domain.SourceHistorical {
			m = historical
		}
		for _, rec := range batch.Records {
			extend(m, batch.Account, rec.Date)
		}
	}

	tolerance := e.cfg.Overlap.ToleranceDays
	for account, hist := range historical {
		nat, ok := native[account]
		if !ok || !nat.set || !hist.set {
			continue
		}
		if hist.max.Before(nat.min) {
			continue
		}
		overlapDays := hist.max.DaysSince(nat.min) + 1
		if overlapDays > tolerance {
			return &OverlapError{
				Account:       account,
				HistoricalMax: hist.max,
				NativeMin:     nat.min,
				OverlapDays:   overlapDays,
				ToleranceDays: tolerance,
			}
		}
	}
	return nil
}
