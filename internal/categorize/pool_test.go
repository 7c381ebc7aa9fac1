package categorize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// mockCategorizer maps descriptions to results and can simulate slow or
// failing calls.
type mockCategorizer struct {
	results map[string]Result
	delay   time.Duration
	failOn  map[string]bool
}

func (m *mockCategorizer) Categorize(ctx context.Context, req Request) (Result, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Result{}, &CategorizationError{Description: req.Description, Err: ctx.Err()}
		}
	}
	if m.failOn[req.Description] {
		return Result{}, &CategorizationError{Description: req.Description, Err: errors.New("model unavailable")}
	}
	if res, ok := m.results[req.Description]; ok {
		return res, nil
	}
	return Result{Category: "Misc"}, nil
}

func testRecords(t *testing.T, n int) []domain.Record {
	t.Helper()
	records := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		d := civil.Date{Year: 2025, Month: 1, Day: 1 + i%27}
		r, err := domain.NewRecord("swedbank", d, fmt.Sprintf("merchant-%03d", i), decimal.NewFromInt(int64(i+1)), "swedbank.xlsx")
		if err != nil {
			t.Fatalf("NewRecord() error = %v", err)
		}
		records = append(records, r)
	}
	return records
}

func TestBatch_PreservesOrder(t *testing.T) {
	records := testRecords(t, 40)
	c := &mockCategorizer{delay: time.Millisecond}

	out, fallbacks, err := Batch(context.Background(), c, records, Options{Workers: 8, Timeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if fallbacks != 0 {
		t.Errorf("fallbacks = %d, want 0", fallbacks)
	}
	if len(out) != len(records) {
		t.Fatalf("out = %d, want %d", len(out), len(records))
	}
	for i := range records {
		if out[i].BusinessKey != records[i].BusinessKey {
			t.Fatalf("order changed at %d under concurrency", i)
		}
	}
}

func TestBatch_FallbackOnError(t *testing.T) {
	records := testRecords(t, 3)
	c := &mockCategorizer{
		results: map[string]Result{
			"merchant-000": {Category: "Groceries"},
			"merchant-002": {Category: "Transport"},
		},
		failOn: map[string]bool{"merchant-001": true},
	}

	out, fallbacks, err := Batch(context.Background(), c, records, Options{Workers: 2, Timeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
	if out[0].Category != "Groceries" || out[2].Category != "Transport" {
		t.Errorf("healthy records miscategorized: %q, %q", out[0].Category, out[2].Category)
	}
	if out[1].Category != domain.CategoryUncategorized {
		t.Errorf("failed record category = %q, want fallback", out[1].Category)
	}
}

func TestBatch_FallbackOnTimeout(t *testing.T) {
	records := testRecords(t, 1)
	c := &mockCategorizer{delay: 200 * time.Millisecond}

	out, fallbacks, err := Batch(context.Background(), c, records, Options{Workers: 1, Timeout: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
	if out[0].Category != domain.CategoryUncategorized {
		t.Errorf("category = %q, want fallback after timeout", out[0].Category)
	}
}

func TestBatch_TransferMembersSkipModel(t *testing.T) {
	settlement, err := domain.NewRecord("firstcard", civil.Date{Year: 2025, Month: 3, Day: 27}, "NORDEA BANK", decimal.NewFromInt(-2000), "firstcard.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	pair, err := domain.ExpandTransfer(settlement, "swedbank", "firstcard", "First Card invoice payment")
	if err != nil {
		t.Fatal(err)
	}

	// A categorizer that fails everything: transfer members must still get
	// the reserved tag without any model call.
	c := &mockCategorizer{failOn: map[string]bool{"First Card invoice payment": true}}
	out, fallbacks, err := Batch(context.Background(), c, []domain.Record{pair.Outflow, pair.Inflow}, Options{Workers: 1, Timeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if fallbacks != 0 {
		t.Errorf("fallbacks = %d, want 0 for transfer members", fallbacks)
	}
	for _, r := range out {
		if r.Category != domain.CategoryTransfer {
			t.Errorf("category = %q, want %q", r.Category, domain.CategoryTransfer)
		}
	}
}

func TestBatch_ProgressPerRecord(t *testing.T) {
	records := testRecords(t, 2)
	settlement, err := domain.NewRecord("firstcard", civil.Date{Year: 2025, Month: 3, Day: 27}, "NORDEA BANK", decimal.NewFromInt(-2000), "firstcard.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	pair, err := domain.ExpandTransfer(settlement, "swedbank", "firstcard", "First Card invoice payment")
	if err != nil {
		t.Fatal(err)
	}
	records = append(records, pair.Outflow)

	c := &mockCategorizer{
		results: map[string]Result{"merchant-000": {Category: "Groceries"}},
		failOn:  map[string]bool{"merchant-001": true},
	}

	var mu sync.Mutex
	seen := make(map[int]string)
	opts := Options{
		Workers: 2,
		Timeout: time.Second,
		Progress: func(i int, rec domain.CategorizedRecord) {
			mu.Lock()
			defer mu.Unlock()
			seen[i] = rec.Category
		},
	}
	if _, _, err := Batch(context.Background(), c, records, opts, zerolog.Nop()); err != nil {
		t.Fatalf("Batch() error = %v", err)
	}

	if len(seen) != len(records) {
		t.Fatalf("progress fired for %d records, want %d", len(seen), len(records))
	}
	if seen[0] != "Groceries" {
		t.Errorf("progress category[0] = %q, want Groceries", seen[0])
	}
	if seen[1] != domain.CategoryUncategorized {
		t.Errorf("progress category[1] = %q, want fallback", seen[1])
	}
	if seen[2] != domain.CategoryTransfer {
		t.Errorf("progress category[2] = %q, want %q", seen[2], domain.CategoryTransfer)
	}
}

func TestBatch_Cancellation(t *testing.T) {
	records := testRecords(t, 10)
	c := &mockCategorizer{delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Batch(ctx, c, records, Options{Workers: 2}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected cancellation to be fatal")
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"category":"Groceries","summary":"ICA"}`, want: `{"category":"Groceries","summary":"ICA"}`},
		{name: "fenced", input: "```json\n{\"category\":\"Groceries\"}\n```", want: `{"category":"Groceries"}`},
		{name: "prose around", input: "Sure! Here you go: {\"category\":\"Transport\"} hope that helps", want: `{"category":"Transport"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.input); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
