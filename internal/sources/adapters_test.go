package sources

import (
	"errors"
	"testing"

	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/domain"
)

func TestNew_ClosedAdapterSet(t *testing.T) {
	for _, name := range []string{"swedbank", "firstcard", "strawberry", "revolut", "sheethistory"} {
		if _, err := New(config.SourceConfig{Account: "acct", Adapter: name}); err != nil {
			t.Errorf("New(%q) error = %v", name, err)
		}
	}
	if _, err := New(config.SourceConfig{Account: "acct", Adapter: "sniffed"}); err == nil {
		t.Error("expected error for unknown adapter")
	}
}

func TestSwedbankAdapter_Parse(t *testing.T) {
	a := &SwedbankAdapter{Account: "swedbank"}
	res, err := a.Parse(RawInput{
		Origin: "swedbank.xlsx",
		Rows: [][]string{
			{"Bokföringsdag", "Transaktionsdag", "Beskrivning", "Belopp"},
			{"2025-05-02", "2025-05-01", "ICA Supermarket", "-345,50"},
			{"2025-05-03", "2025-05-03", "Salary", "32 000,00"},
			{"2025-05-04", "bad-date", "Broken row", "10,00"},
		},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(res.Skipped))
	}

	// Swedbank negative Belopp is money out; canonical positive is money
	// leaving the account.
	if got := res.Records[0].Amount.String(); got != "345.5" {
		t.Errorf("purchase amount = %s, want 345.5", got)
	}
	if got := res.Records[1].Amount.String(); got != "-32000" {
		t.Errorf("salary amount = %s, want -32000", got)
	}
	if res.Records[0].Date.Day != 1 {
		t.Errorf("expected Transaktionsdag to win over Bokföringsdag, got %v", res.Records[0].Date)
	}
	if res.Records[0].OriginFile != "swedbank.xlsx" {
		t.Errorf("origin = %q", res.Records[0].OriginFile)
	}
}

func TestSwedbankAdapter_MissingColumns(t *testing.T) {
	a := &SwedbankAdapter{Account: "swedbank"}
	_, err := a.Parse(RawInput{
		Origin: "swedbank.xlsx",
		Rows:   [][]string{{"Datum", "Text"}},
	})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestFirstCardAdapter_Parse(t *testing.T) {
	a := &FirstCardAdapter{Account: "firstcard"}
	res, err := a.Parse(RawInput{
		Origin: "firstcard.xlsx",
		Rows: [][]string{
			{"Datum", "Ytterligare information", "Reseinformation / Inköpsplats", "Belopp"},
			{"45777", "", "COOP KONSUM", "512,30"},
			{"2025-05-02", "Återbetalning", "", "-99,00"},
		},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}

	// Serial date column from the raw xlsx.
	if res.Records[0].Date.String() != "2025-04-30" {
		t.Errorf("serial date = %s, want 2025-04-30", res.Records[0].Date)
	}
	// First Card positive Belopp already means money leaving.
	if got := res.Records[0].Amount.String(); got != "512.3" {
		t.Errorf("amount = %s, want 512.3", got)
	}
	// Fallback to the extra-info column when purchase place is empty.
	if res.Records[1].Description != "Återbetalning" {
		t.Errorf("description = %q", res.Records[1].Description)
	}
}

func TestStrawberryAdapter_SkipsExchangeRateFooter(t *testing.T) {
	a := &StrawberryAdapter{Account: "strawberry"}
	res, err := a.Parse(RawInput{
		Origin: "strawberry.xls",
		Rows: [][]string{
			{"Datum", "Bokfört", "Specifikation", "Ort", "Belopp"},
			{"2025-04-12", "2025-04-13", "SPOTIFY", "STOCKHOLM", "169,00"},
			{"Växelkurs EUR", "", "11,45", "", ""},
		},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	if len(res.Skipped) != 0 {
		t.Errorf("footer rows must be dropped silently, skipped = %d", len(res.Skipped))
	}
}

func TestRevolutAdapter_Parse(t *testing.T) {
	a := &RevolutAdapter{Account: "revolut"}
	res, err := a.Parse(RawInput{
		Origin: "revolut.csv",
		Rows: [][]string{
			{"Type", "Started Date", "Completed Date", "Description", "Amount", "Fee", "Currency", "State"},
			{"CARD_PAYMENT", "2025-03-01 09:00:00", "2025-03-02 10:15:00", "Pret A Manger", "-8.50", "0.00", "GBP", "COMPLETED"},
			{"TOPUP", "2025-03-03 09:00:00", "2025-03-03 09:00:05", "Top-Up", "100.00", "0.00", "GBP", "COMPLETED"},
			{"CARD_PAYMENT", "2025-03-04 12:00:00", "", "Pending thing", "-5.00", "0.00", "GBP", "PENDING"},
			{"EXCHANGE", "2025-03-05 12:00:00", "2025-03-05 12:00:02", "FX", "-50.00", "0.50", "GBP", "COMPLETED"},
		},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("records = %d, want 3 (pending excluded)", len(res.Records))
	}

	if got := res.Records[0].Amount.String(); got != "8.5" {
		t.Errorf("card payment canonical amount = %s, want 8.5", got)
	}
	if got := res.Records[1].Amount.String(); got != "-100" {
		t.Errorf("top-up canonical amount = %s, want -100", got)
	}
	// Fee folds into the outflow: 50.00 out plus 0.50 fee.
	if got := res.Records[2].Amount.String(); got != "50.5" {
		t.Errorf("exchange canonical amount = %s, want 50.5", got)
	}
	if res.Records[0].Date.String() != "2025-03-02" {
		t.Errorf("expected Completed Date, got %s", res.Records[0].Date)
	}
}

func TestSheetHistoryAdapter_Parse(t *testing.T) {
	a := &SheetHistoryAdapter{Account: "firstcard", DisplayName: "💳 First Card"}
	res, err := a.Parse(RawInput{
		Origin: "orig_google_sheet_rev_engineered",
		Rows: [][]string{
			{"DATE", "OUTFLOW", "INFLOW", "CATEGORY", "MEMO", "ACCOUNT"},
			{"2022-10-11", "1 234,56 kr", "", "Groceries", "ICA", "💳 First Card"},
			{"2022-10-12", "", "300,00 kr", "Refund", "", "💳 First Card"},
			{"2022-10-13", "50,00 kr", "", "Food", "Lunch", "💰 Swedbank"},
			{"2022-10-14", "10,00 kr", "20,00 kr", "Broken", "Both flows", "💳 First Card"},
		},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2 (other account filtered, broken row skipped)", len(res.Records))
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(res.Skipped))
	}

	if got := res.Records[0].Amount.String(); got != "1234.56" {
		t.Errorf("outflow amount = %s, want 1234.56", got)
	}
	if res.Records[0].Description != "Groceries: ICA" {
		t.Errorf("description = %q, want %q", res.Records[0].Description, "Groceries: ICA")
	}
	if got := res.Records[1].Amount.String(); got != "-300" {
		t.Errorf("inflow amount = %s, want -300", got)
	}
	if res.Records[1].Description != "Refund" {
		t.Errorf("description = %q, want %q", res.Records[1].Description, "Refund")
	}
	if res.Records[0].SourceID != "firstcard" {
		t.Errorf("source = %q, want canonical account id", res.Records[0].SourceID)
	}

	var verr *domain.ValidationError
	if !errors.As(res.Skipped[0].Err, &verr) {
		t.Errorf("expected *domain.ValidationError for both-flows row, got %T", res.Skipped[0].Err)
	}
}
