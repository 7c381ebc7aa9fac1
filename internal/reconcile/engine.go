// Package reconcile merges canonical record candidates from multiple
// sources into one deduplicated, chronologically ordered ledger. The
// engine is state-free: configuration goes in as explicit parameters and
// every run on identical input produces byte-identical output.
package reconcile

import (
	"sort"
	"strings"

	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/rs/zerolog"
)

// SourceBatch is one source's candidate records plus the metadata the
// merge needs: which account they belong to, whether they come from a
// native export or a historical reconstruction, and the dedup priority.
type SourceBatch struct {
	Account  string
	Kind     domain.SourceKind
	Priority int
	Records  []domain.Record
}

// Stats is the audit trail of one merge.
type Stats struct {
	Candidates        int
	TransferPairs     int
	DuplicatesDropped int

	// ReviewCollisions counts dropped duplicates whose full descriptions
	// differ from the kept record. Those may be distinct transactions
	// collapsed by the truncated fingerprint and deserve a manual look;
	// they are a warning, never a hard error.
	ReviewCollisions int
}

// Engine applies the transfer-expansion table and merge policy from one
// loaded configuration.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// candidate carries a record through the merge with its batch metadata.
type candidate struct {
	rec      domain.Record
	priority int
	seq      int
}

// Merge concatenates all batches, expands transfer settlements into pairs,
// deduplicates by business key (higher-priority source wins, first seen
// wins ties), validates that native and historical variants of one account
// stay temporally disjoint, and returns the result sorted by
// (transaction_date, business_key).
func (e *Engine) Merge(batches []SourceBatch) ([]domain.Record, Stats, error) {
	var stats Stats

	var candidates []candidate
	seq := 0
	for _, b := range batches {
		for _, rec := range b.Records {
			stats.Candidates++
			expanded, isPair, err := e.expandTransfer(rec)
			if err != nil {
				return nil, stats, err
			}
			if isPair {
				stats.TransferPairs++
			}
			for _, r := range expanded {
				candidates = append(candidates, candidate{rec: r, priority: b.Priority, seq: seq})
				seq++
			}
		}
	}

	if err := e.checkOverlap(batches); err != nil {
		return nil, stats, err
	}

	kept := e.dedup(candidates, &stats)

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Date != kept[j].Date {
			return kept[i].Date.Before(kept[j].Date)
		}
		return kept[i].BusinessKey < kept[j].BusinessKey
	})
	return kept, stats, nil
}

// expandTransfer replaces a settlement row matching a configured trigger
// pattern with its two canonical ledger entries. Non-matching records pass
// through unchanged.
func (e *Engine) expandTransfer(rec domain.Record) ([]domain.Record, bool, error) {
	rule := e.cfg.TransferRuleFor(rec.SourceID, rec.Description)
	if rule == nil {
		return []domain.Record{rec}, false, nil
	}
	pair, err := domain.ExpandTransfer(rec, rule.From, rule.To, rule.Description)
	if err != nil {
		return nil, false, err
	}
	e.log.Debug().
		Str("source", rec.SourceID).
		Str("date", rec.Date.String()).
		Str("rule", rule.Pattern).
		Msg("expanded settlement into transfer pair")
	return []domain.Record{pair.Outflow, pair.Inflow}, true, nil
}

// dedup keeps exactly one record per business key and boundary side.
// Transfer-pair members are never deduplicated against non-transfer
// records; a key shared across that boundary is kept on both sides and
// flagged for review, and each side then dedups independently.
func (e *Engine) dedup(candidates []candidate, stats *Stats) []domain.Record {
	type slotKey struct {
		key      string
		transfer bool
	}
	type slot struct {
		cand candidate
		pos  int
	}
	byKey := make(map[slotKey]slot, len(candidates))
	var kept []domain.Record

	for _, c := range candidates {
		k := slotKey{key: c.rec.BusinessKey, transfer: c.rec.IsTransfer()}
		prev, seen := byKey[k]
		if !seen {
			if _, crossed := byKey[slotKey{key: k.key, transfer: !k.transfer}]; crossed {
				e.log.Warn().
					Str("business_key", c.rec.BusinessKey).
					Msg("business key shared between transfer and non-transfer record, keeping both")
				stats.ReviewCollisions++
			}
			byKey[k] = slot{cand: c, pos: len(kept)}
			kept = append(kept, c.rec)
			continue
		}

		stats.DuplicatesDropped++
		dropped := c
		if c.priority > prev.cand.priority {
			// Higher-priority source wins the slot; the earlier record is
			// the one dropped for audit purposes.
			dropped = prev.cand
			kept[prev.pos] = c.rec
			byKey[k] = slot{cand: c, pos: prev.pos}
		}
		winner := byKey[k].cand
		if !strings.EqualFold(dropped.rec.Description, winner.rec.Description) {
			stats.ReviewCollisions++
			e.log.Warn().
				Str("business_key", c.rec.BusinessKey).
				Str("kept_description", winner.rec.Description).
				Str("dropped_description", dropped.rec.Description).
				Str("kept_origin", winner.rec.OriginFile).
				Str("dropped_origin", dropped.rec.OriginFile).
				Msg("fingerprint collision merged differing descriptions, review recommended")
		} else {
			e.log.Debug().
				Str("business_key", c.rec.BusinessKey).
				Str("dropped_origin", dropped.rec.OriginFile).
				Msg("dropped duplicate record")
		}
	}
	return kept
}
