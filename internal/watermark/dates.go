package watermark

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// parseSheetDate parses the ISO date text stored in the ledger tab's DATE
// column.
func parseSheetDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("unparsable sheet date %q: %w", s, err)
	}
	return d, nil
}
