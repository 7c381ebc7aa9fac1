package domain

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestNewRecord_Validation(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 4, Day: 30}
	amount := decimal.NewFromFloat(1234.56)

	tests := []struct {
		name        string
		sourceID    string
		date        civil.Date
		description string
		wantErr     bool
	}{
		{
			name:        "valid record",
			sourceID:    "firstcard",
			date:        d,
			description: "ICA Supermarket",
			wantErr:     false,
		},
		{
			name:        "empty description",
			sourceID:    "firstcard",
			date:        d,
			description: "   ",
			wantErr:     true,
		},
		{
			name:        "invalid date",
			sourceID:    "firstcard",
			date:        civil.Date{},
			description: "ICA Supermarket",
			wantErr:     true,
		},
		{
			name:        "empty source",
			sourceID:    "",
			date:        d,
			description: "ICA Supermarket",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecord(tt.sourceID, tt.date, tt.description, amount, "test.xlsx")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected *ValidationError, got %T", err)
				}
				return
			}
			if r.BusinessKey == "" {
				t.Error("expected business key to be set on construction")
			}
		})
	}
}

func TestNewRecord_TrimsDescription(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 1, Day: 15}
	r, err := NewRecord("revolut", d, "  Coffee Shop  ", decimal.NewFromInt(45), "revolut.csv")
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	if r.Description != "Coffee Shop" {
		t.Errorf("Description = %q, want %q", r.Description, "Coffee Shop")
	}
}

func TestBusinessKey_Deterministic(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 4, Day: 30}
	amount := decimal.NewFromFloat(1234.56)

	k1 := BusinessKey("firstcard", d, amount, "ICA Supermarket Stockholm")
	k2 := BusinessKey("firstcard", d, amount, "ICA Supermarket Stockholm")
	if k1 != k2 {
		t.Errorf("business key not deterministic: %s vs %s", k1, k2)
	}
	if len(k1) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%s)", len(k1), k1)
	}
}

func TestBusinessKey_NormalizesDescription(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 4, Day: 30}
	amount := decimal.NewFromFloat(99.00)

	// Case and surrounding whitespace must not change the key.
	k1 := BusinessKey("swedbank", d, amount, "  NETFLIX.COM  ")
	k2 := BusinessKey("swedbank", d, amount, "netflix.com")
	if k1 != k2 {
		t.Error("expected case/whitespace-insensitive keys to match")
	}

	// Text beyond the truncation bound must not change the key.
	long := strings.Repeat("x", 50)
	k3 := BusinessKey("swedbank", d, amount, long+"tail-a")
	k4 := BusinessKey("swedbank", d, amount, long+"tail-b")
	if k3 != k4 {
		t.Error("expected keys to ignore description beyond 50 chars")
	}
}

func TestBusinessKey_SourcePrefixPreventsCrossSourceCollisions(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 4, Day: 30}
	amount := decimal.NewFromFloat(250.00)

	k1 := BusinessKey("swedbank", d, amount, "Spotify AB")
	k2 := BusinessKey("revolut", d, amount, "Spotify AB")
	if k1 == k2 {
		t.Error("expected different keys for different sources")
	}
}

func TestBusinessKey_AmountFixedTwoDecimals(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 4, Day: 30}

	k1 := BusinessKey("swedbank", d, decimal.NewFromFloat(100), "Rent")
	k2 := BusinessKey("swedbank", d, decimal.RequireFromString("100.00"), "Rent")
	if k1 != k2 {
		t.Error("expected 100 and 100.00 to produce the same key")
	}
}

func TestExpandTransfer(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 3, Day: 27}
	orig, err := NewRecord("firstcard", d, "NORDEA BANK ABP, FILIAL I SVERIGE", decimal.NewFromFloat(-2000.00), "firstcard.xlsx")
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}

	pair, err := ExpandTransfer(orig, "swedbank", "firstcard", "First Card invoice payment")
	if err != nil {
		t.Fatalf("ExpandTransfer() error = %v", err)
	}

	if pair.Outflow.SourceID != "swedbank" {
		t.Errorf("outflow source = %s, want swedbank", pair.Outflow.SourceID)
	}
	if pair.Inflow.SourceID != "firstcard" {
		t.Errorf("inflow source = %s, want firstcard", pair.Inflow.SourceID)
	}
	if !pair.Outflow.Amount.Equal(decimal.NewFromFloat(2000.00)) {
		t.Errorf("outflow amount = %s, want 2000", pair.Outflow.Amount)
	}
	if !pair.Inflow.Amount.Equal(decimal.NewFromFloat(-2000.00)) {
		t.Errorf("inflow amount = %s, want -2000", pair.Inflow.Amount)
	}
	if pair.Outflow.TransferGroupID == "" || pair.Outflow.TransferGroupID != pair.Inflow.TransferGroupID {
		t.Error("expected both members to share a transfer group id")
	}
	if !pair.Outflow.IsTransfer() || !pair.Inflow.IsTransfer() {
		t.Error("expected both members to report IsTransfer")
	}
	if pair.Outflow.BusinessKey == pair.Inflow.BusinessKey {
		t.Error("expected distinct business keys for the two members")
	}
}
