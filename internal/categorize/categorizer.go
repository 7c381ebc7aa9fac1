// Package categorize assigns a budget category to every record headed for
// the sink. The external model is advisory: any error or timeout on a
// single record falls back to the reserved UNCATEGORIZED tag and the run
// continues, so categorization can never block or fail the pipeline.
package categorize

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Request carries the fields the model may use for classification.
type Request struct {
	Description string
	Amount      decimal.Decimal
	Date        civil.Date
	Account     string
}

// Result is a category from the configured taxonomy plus an optional
// cleaned-up summary of the merchant text.
type Result struct {
	Category string
	Summary  string
}

// Categorizer classifies one transaction. Implementations must honor the
// context deadline; the caller enforces a per-call timeout.
type Categorizer interface {
	Categorize(ctx context.Context, req Request) (Result, error)
}

// CategorizationError wraps a failed model call. It is always recovered
// locally via the fallback category and only surfaces in the run summary.
type CategorizationError struct {
	Description string
	Err         error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorize %q: %v", e.Description, e.Err)
}

func (e *CategorizationError) Unwrap() error { return e.Err }
