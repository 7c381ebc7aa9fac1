// Package sources holds the per-bank format adapters. Each adapter turns
// raw tabular rows from one export format into canonical record candidates
// with the sign convention already normalized (positive = money leaving
// the account). The core pipeline treats all adapters uniformly; file
// formats, serial date encodings and locale decimal strings never leak
// past this package.
package sources

import (
	"fmt"

	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/domain"
)

// RawInput is format-agnostic tabular data: the first row is the header,
// the rest are data rows. Origin is carried onto every record for
// provenance.
type RawInput struct {
	Origin string
	Rows   [][]string
}

// SkippedRow records one row excluded by record-level validation. The rest
// of the file still parses; skipped rows are reported in the run summary.
type SkippedRow struct {
	Line int
	Err  error
}

// Result is an adapter's output for one input file.
type Result struct {
	Records []domain.Record
	Skipped []SkippedRow
}

// Adapter converts one export format into canonical record candidates.
// Structurally invalid input (missing required columns, unparsable header)
// fails the whole file with a *ParseError; individually malformed rows are
// collected in Result.Skipped instead.
type Adapter interface {
	Parse(input RawInput) (Result, error)
}

// ParseError marks a structurally invalid input file. It is fatal to that
// file only; other sources in the run continue.
type ParseError struct {
	Origin string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Origin, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Origin, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// New returns the adapter for a configured source. The set is closed:
// selection is explicit configuration, never format sniffing.
func New(src config.SourceConfig) (Adapter, error) {
	switch src.Adapter {
	case "swedbank":
		return &SwedbankAdapter{Account: src.Account}, nil
	case "firstcard":
		return &FirstCardAdapter{Account: src.Account}, nil
	case "strawberry":
		return &StrawberryAdapter{Account: src.Account}, nil
	case "revolut":
		return &RevolutAdapter{Account: src.Account}, nil
	case "sheethistory":
		return &SheetHistoryAdapter{Account: src.Account, DisplayName: src.DisplayName}, nil
	default:
		return nil, fmt.Errorf("sources.New: unknown adapter %q for account %s", src.Adapter, src.Account)
	}
}

// headerIndex maps column names to positions, failing with *ParseError
// when a required column is missing.
func headerIndex(origin string, header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, &ParseError{Origin: origin, Reason: fmt.Sprintf("missing required column %q", name)}
		}
	}
	return idx, nil
}

// cell returns the trimmed value at column name, or "" when the row is
// shorter than the header.
func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return trimCell(row[i])
}
