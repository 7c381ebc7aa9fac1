package sources

import (
	"github.com/dvloznov/ledgersync/internal/domain"
)

// StrawberryAdapter parses Strawberry credit card exports. Purchases are
// positive Belopp, matching the canonical convention. The export appends
// currency-exchange footer rows without a parseable Datum; those are not
// transactions and are dropped silently rather than reported as skips.
type StrawberryAdapter struct {
	Account string
}

const (
	strawberryColDate          = "Datum"
	strawberryColSpecification = "Specifikation"
	strawberryColCity          = "Ort"
	strawberryColAmount        = "Belopp"
)

func (a *StrawberryAdapter) Parse(input RawInput) (Result, error) {
	if len(input.Rows) == 0 {
		return Result{}, &ParseError{Origin: input.Origin, Reason: "empty input"}
	}
	idx, err := headerIndex(input.Origin, input.Rows[0], strawberryColDate, strawberryColSpecification, strawberryColAmount)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for line, row := range input.Rows[1:] {
		date, err := parseDate(cell(row, idx, strawberryColDate))
		if err != nil {
			// Exchange-rate footer row, not a transaction.
			continue
		}
		amount, err := parseAmount(cell(row, idx, strawberryColAmount))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "amount", Reason: err.Error()}})
			continue
		}

		rec, err := domain.NewRecord(a.Account, date, cell(row, idx, strawberryColSpecification), amount, input.Origin)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
