package sources

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// trimCell strips ordinary and non-breaking whitespace from a cell.
func trimCell(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ' ' || r == ' '
	})
}

// parseAmount normalizes locale-formatted amount text into a decimal.
// Handles Swedish bank exports: "1 234,56 kr" -> 1234.56, non-breaking
// thousand separators, U+2212 minus, and plain "1234.56".
func parseAmount(s string) (decimal.Decimal, error) {
	clean := trimCell(s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	clean = strings.TrimSuffix(clean, "kr")
	clean = strings.TrimSuffix(clean, "SEK")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, "−", "-")

	// "1.234,56" and "1234,56" both use the decimal comma; drop dot
	// thousand separators only when a comma is present.
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q: %w", s, err)
	}
	return d, nil
}

// excelEpoch is day zero of the 1900 date system used by spreadsheet
// serial dates. Serial 1 is 1900-01-01; the 1899-12-30 epoch absorbs the
// historical Lotus leap-year bug.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// serialDate converts a spreadsheet serial day number to a calendar date.
func serialDate(serial int) civil.Date {
	return civil.DateOf(excelEpoch.AddDate(0, 0, serial))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"1/2/06 15:04",
}

// parseDate normalizes date text into a calendar date. Pure integer text
// is treated as a spreadsheet serial; everything else is tried against the
// known layouts.
func parseDate(s string) (civil.Date, error) {
	clean := trimCell(s)
	if clean == "" {
		return civil.Date{}, fmt.Errorf("empty date")
	}
	if serial, err := strconv.Atoi(clean); err == nil {
		if serial <= 0 {
			return civil.Date{}, fmt.Errorf("invalid serial date %d", serial)
		}
		return serialDate(serial), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unparsable date %q", s)
}
