package sources

import (
	"fmt"

	"github.com/dvloznov/ledgersync/internal/domain"
)

// SwedbankAdapter parses Swedbank account exports. Swedbank reports
// debits as negative Belopp, so the canonical amount is the negation.
type SwedbankAdapter struct {
	Account string
}

const (
	swedbankColDate        = "Transaktionsdag"
	swedbankColBookingDate = "Bokföringsdag"
	swedbankColDescription = "Beskrivning"
	swedbankColAmount      = "Belopp"
)

func (a *SwedbankAdapter) Parse(input RawInput) (Result, error) {
	if len(input.Rows) == 0 {
		return Result{}, &ParseError{Origin: input.Origin, Reason: "empty input"}
	}
	idx, err := headerIndex(input.Origin, input.Rows[0], swedbankColDescription, swedbankColAmount)
	if err != nil {
		return Result{}, err
	}
	// Either date column is acceptable; the transaction day wins when both
	// are present.
	if _, hasTx := idx[swedbankColDate]; !hasTx {
		if _, hasBooking := idx[swedbankColBookingDate]; !hasBooking {
			return Result{}, &ParseError{Origin: input.Origin, Reason: fmt.Sprintf("missing required column %q or %q", swedbankColDate, swedbankColBookingDate)}
		}
	}

	var res Result
	for line, row := range input.Rows[1:] {
		dateText := cell(row, idx, swedbankColDate)
		if dateText == "" {
			dateText = cell(row, idx, swedbankColBookingDate)
		}
		date, err := parseDate(dateText)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "transaction_date", Reason: err.Error()}})
			continue
		}
		amount, err := parseAmount(cell(row, idx, swedbankColAmount))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "amount", Reason: err.Error()}})
			continue
		}

		rec, err := domain.NewRecord(a.Account, date, cell(row, idx, swedbankColDescription), amount.Neg(), input.Origin)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
