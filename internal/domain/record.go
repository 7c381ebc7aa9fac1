package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SourceKind distinguishes a bank's own export from rows reconstructed
// out of the old spreadsheet.
type SourceKind string

const (
	SourceNative     SourceKind = "native"
	SourceHistorical SourceKind = "historical"
)

// Reserved category tags. CategoryTransfer marks both members of a
// transfer pair; CategoryUncategorized is the fallback when the
// categorization service fails or times out.
const (
	CategoryTransfer      = "Account Transfer"
	CategoryUncategorized = "UNCATEGORIZED"
)

// Record is the canonical transaction representation every adapter must
// produce. Amount is already sign-normalized: positive means money leaving
// the account. Adapters own the sign conversion; the model never re-derives
// it from the source or description.
type Record struct {
	SourceID    string
	Date        civil.Date
	Description string
	Amount      decimal.Decimal
	OriginFile  string

	// BusinessKey is derived from (SourceID, Date, Amount, Description)
	// at construction and never recomputed afterwards.
	BusinessKey string

	// TransferGroupID links the two members of a transfer pair. Empty for
	// ordinary records.
	TransferGroupID string
}

// NewRecord validates the canonical fields and derives the business key.
func NewRecord(sourceID string, date civil.Date, description string, amount decimal.Decimal, originFile string) (Record, error) {
	if sourceID == "" {
		return Record{}, &ValidationError{Field: "source_id", Reason: "empty"}
	}
	if !date.IsValid() {
		return Record{}, &ValidationError{Field: "transaction_date", Reason: "invalid date " + date.String()}
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Record{}, &ValidationError{Field: "description", Reason: "empty after trimming"}
	}

	r := Record{
		SourceID:    sourceID,
		Date:        date,
		Description: description,
		Amount:      amount,
		OriginFile:  originFile,
	}
	r.BusinessKey = BusinessKey(sourceID, date, amount, description)
	return r, nil
}

// IsTransfer reports whether the record is a member of a transfer pair.
func (r Record) IsTransfer() bool {
	return r.TransferGroupID != ""
}

// CategorizedRecord is a canonical record plus the category assigned by
// the categorization service. This is what the checkpoint persists and the
// sink receives.
type CategorizedRecord struct {
	Record
	Category string
	Summary  string
}
