package sources

import (
	"github.com/dvloznov/ledgersync/internal/domain"
)

// RevolutAdapter parses Revolut CSV exports. Revolut reports spending as
// negative Amount with a separate non-negative Fee, so the canonical
// outflow is fee minus amount. Only COMPLETED transactions are ingested;
// pending and reverted rows never reach the ledger.
type RevolutAdapter struct {
	Account string
}

const (
	revolutColCompletedDate = "Completed Date"
	revolutColDescription   = "Description"
	revolutColAmount        = "Amount"
	revolutColFee           = "Fee"
	revolutColState         = "State"
)

func (a *RevolutAdapter) Parse(input RawInput) (Result, error) {
	if len(input.Rows) == 0 {
		return Result{}, &ParseError{Origin: input.Origin, Reason: "empty input"}
	}
	idx, err := headerIndex(input.Origin, input.Rows[0], revolutColCompletedDate, revolutColDescription, revolutColAmount, revolutColState)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for line, row := range input.Rows[1:] {
		if cell(row, idx, revolutColState) != "COMPLETED" {
			continue
		}
		date, err := parseDate(cell(row, idx, revolutColCompletedDate))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "transaction_date", Reason: err.Error()}})
			continue
		}
		amount, err := parseAmount(cell(row, idx, revolutColAmount))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "amount", Reason: err.Error()}})
			continue
		}
		canonical := amount.Neg()
		if feeText := cell(row, idx, revolutColFee); feeText != "" {
			fee, err := parseAmount(feeText)
			if err != nil {
				res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "fee", Reason: err.Error()}})
				continue
			}
			canonical = canonical.Add(fee)
		}

		rec, err := domain.NewRecord(a.Account, date, cell(row, idx, revolutColDescription), canonical, input.Origin)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
