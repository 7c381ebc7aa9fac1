package sink

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledgersync/internal/domain"
	"google.golang.org/api/sheets/v4"
)

// Column layout of the ledger tab. CommitBatch writes this row to an
// empty tab and the watermark resolver reads the same layout back, so
// the order here is load-bearing.
var SheetHeader = []string{
	"DATE", "ACCOUNT", "DESCRIPTION", "AMOUNT",
	"CATEGORY", "ORIGIN_FILE", "TRANSFER_GROUP_ID", "BUSINESS_KEY",
}

const (
	SheetColDate = iota
	SheetColAccount
	SheetColDescription
	SheetColAmount
	SheetColCategory
	SheetColOriginFile
	SheetColTransferGroupID
	SheetColBusinessKey
)

// SheetsSink appends batches to a Google Sheets tab in one values.append
// call, which the Sheets API applies atomically.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	// DisplayName maps the stable source id to the account label shown in
	// the sheet. Optional.
	DisplayName func(account string) string
}

func NewSheetsSink(svc *sheets.Service, spreadsheetID, sheetName string) *SheetsSink {
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (s *SheetsSink) CommitBatch(ctx context.Context, records []domain.CategorizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	empty, err := s.tabIsEmpty(ctx)
	if err != nil {
		return &CommitError{Err: fmt.Errorf("checking %s header: %w", s.sheetName, err)}
	}

	values := make([][]interface{}, 0, len(records)+1)
	if empty {
		header := make([]interface{}, len(SheetHeader))
		for i, h := range SheetHeader {
			header[i] = h
		}
		values = append(values, header)
	}
	for _, r := range records {
		account := r.SourceID
		if s.DisplayName != nil {
			account = s.DisplayName(r.SourceID)
		}
		values = append(values, []interface{}{
			r.Date.String(),
			account,
			r.Description,
			r.Amount.StringFixed(2),
			r.Category,
			r.OriginFile,
			r.TransferGroupID,
			r.BusinessKey,
		})
	}

	vr := &sheets.ValueRange{Values: values}
	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return &CommitError{Err: fmt.Errorf("appending %d rows to %s: %w", len(values), s.sheetName, err)}
	}
	return nil
}

// tabIsEmpty reports whether the ledger tab has no first row yet, in
// which case the header still needs writing.
func (s *SheetsSink) tabIsEmpty(ctx context.Context) (bool, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.sheetName+"!1:1").
		Context(ctx).
		Do()
	if err != nil {
		return false, err
	}
	return len(resp.Values) == 0, nil
}
