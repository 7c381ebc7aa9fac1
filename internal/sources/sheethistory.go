package sources

import (
	"fmt"

	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/shopspring/decimal"
)

// SheetHistoryAdapter reverse-engineers historical rows exported from the
// old budget spreadsheet back into canonical records. The sheet holds all
// accounts in one tab, so rows are filtered on the ACCOUNT display name.
// OUTFLOW maps to a positive canonical amount and INFLOW to a negative
// one; a row carrying both is malformed and skipped.
type SheetHistoryAdapter struct {
	Account     string
	DisplayName string
}

const (
	sheetColDate     = "DATE"
	sheetColOutflow  = "OUTFLOW"
	sheetColInflow   = "INFLOW"
	sheetColCategory = "CATEGORY"
	sheetColMemo     = "MEMO"
	sheetColAccount  = "ACCOUNT"
)

func (a *SheetHistoryAdapter) Parse(input RawInput) (Result, error) {
	if len(input.Rows) == 0 {
		return Result{}, &ParseError{Origin: input.Origin, Reason: "empty input"}
	}
	idx, err := headerIndex(input.Origin, input.Rows[0], sheetColDate, sheetColOutflow, sheetColInflow, sheetColAccount)
	if err != nil {
		return Result{}, err
	}

	match := a.DisplayName
	if match == "" {
		match = a.Account
	}

	var res Result
	for line, row := range input.Rows[1:] {
		if cell(row, idx, sheetColAccount) != match {
			continue
		}
		date, err := parseDate(cell(row, idx, sheetColDate))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "transaction_date", Reason: err.Error()}})
			continue
		}

		amount, err := sheetAmount(cell(row, idx, sheetColOutflow), cell(row, idx, sheetColInflow))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}

		rec, err := domain.NewRecord(a.Account, date, sheetDescription(cell(row, idx, sheetColCategory), cell(row, idx, sheetColMemo)), amount, input.Origin)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// sheetAmount resolves the OUTFLOW/INFLOW pair into one signed canonical
// amount.
func sheetAmount(outflowText, inflowText string) (decimal.Decimal, error) {
	var outflow, inflow decimal.Decimal
	if outflowText != "" {
		d, err := parseAmount(outflowText)
		if err != nil {
			return decimal.Zero, &domain.ValidationError{Field: "outflow", Reason: err.Error()}
		}
		outflow = d
	}
	if inflowText != "" {
		d, err := parseAmount(inflowText)
		if err != nil {
			return decimal.Zero, &domain.ValidationError{Field: "inflow", Reason: err.Error()}
		}
		inflow = d
	}

	hasOutflow := !outflow.IsZero()
	hasInflow := !inflow.IsZero()
	switch {
	case hasOutflow && hasInflow:
		return decimal.Zero, &domain.ValidationError{Field: "amount", Reason: "both OUTFLOW and INFLOW present on one row"}
	case hasOutflow:
		return outflow, nil
	case hasInflow:
		return inflow.Neg(), nil
	default:
		return decimal.Zero, nil
	}
}

// sheetDescription rebuilds the description the sheet split across
// CATEGORY and MEMO.
func sheetDescription(category, memo string) string {
	switch {
	case category != "" && memo != "":
		return fmt.Sprintf("%s: %s", category, memo)
	case category != "":
		return category
	default:
		return memo
	}
}
