package watermark

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledgersync/internal/sink"
	"google.golang.org/api/sheets/v4"
)

// SheetsResolver reads watermarks back out of the ledger tab written by
// the sheets sink.
type SheetsResolver struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	// DisplayName must match the mapping the sink used when writing, so
	// that account labels in the sheet resolve back to source ids.
	DisplayName func(account string) string
}

func NewSheetsResolver(svc *sheets.Service, spreadsheetID, sheetName string) *SheetsResolver {
	return &SheetsResolver{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (r *SheetsResolver) Watermark(ctx context.Context, sourceID string) (Watermark, error) {
	resp, err := r.svc.Spreadsheets.Values.
		Get(r.spreadsheetID, r.sheetName).
		Context(ctx).
		Do()
	if err != nil {
		return Watermark{}, fmt.Errorf("Watermark: reading sheet %s: %w", r.sheetName, err)
	}

	label := sourceID
	if r.DisplayName != nil {
		label = r.DisplayName(sourceID)
	}

	w := Watermark{SourceID: sourceID, Keys: make(map[string]struct{})}
	for _, row := range resp.Values {
		if len(row) <= sink.SheetColBusinessKey {
			continue
		}
		account, _ := row[sink.SheetColAccount].(string)
		if account != label && account != sourceID {
			continue
		}
		dateText, _ := row[sink.SheetColDate].(string)
		date, err := parseSheetDate(dateText)
		if err != nil {
			// Header or decoration row.
			continue
		}
		if key, ok := row[sink.SheetColBusinessKey].(string); ok && key != "" {
			w.Keys[key] = struct{}{}
		}
		if !w.HasDate || date.After(w.Date) {
			w.Date = date
			w.HasDate = true
		}
	}
	return w, nil
}
