package sources

import (
	"github.com/dvloznov/ledgersync/internal/domain"
)

// FirstCardAdapter parses First Card credit card exports. First Card
// reports purchases as positive Belopp, which already matches the
// canonical convention (positive = money leaving the account).
type FirstCardAdapter struct {
	Account string
}

const (
	firstcardColDate      = "Datum"
	firstcardColPurchase  = "Reseinformation / Inköpsplats"
	firstcardColExtraInfo = "Ytterligare information"
	firstcardColAmount    = "Belopp"
)

func (a *FirstCardAdapter) Parse(input RawInput) (Result, error) {
	if len(input.Rows) == 0 {
		return Result{}, &ParseError{Origin: input.Origin, Reason: "empty input"}
	}
	idx, err := headerIndex(input.Origin, input.Rows[0], firstcardColDate, firstcardColAmount)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for line, row := range input.Rows[1:] {
		date, err := parseDate(cell(row, idx, firstcardColDate))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "transaction_date", Reason: err.Error()}})
			continue
		}
		amount, err := parseAmount(cell(row, idx, firstcardColAmount))
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: &domain.ValidationError{Field: "amount", Reason: err.Error()}})
			continue
		}

		desc := cell(row, idx, firstcardColPurchase)
		if desc == "" {
			desc = cell(row, idx, firstcardColExtraInfo)
		}
		rec, err := domain.NewRecord(a.Account, date, desc, amount, input.Origin)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
