// Package sink appends committed batches to the durable ledger target.
// From the pipeline's perspective CommitBatch is one atomic logical call:
// it either confirms the whole batch or fails, and partial-batch retries
// are the sink client's own business.
package sink

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/ledgersync/internal/domain"
)

// Sink commits one categorized batch.
type Sink interface {
	CommitBatch(ctx context.Context, records []domain.CategorizedRecord) error
}

// CommitError is fatal to the run but recoverable via resume: the
// checkpoint stays on disk and the next invocation retries the commit.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// retrying wraps a sink with bounded exponential backoff. Retry behavior
// is explicit configuration, not a convention buried in call sites.
type retrying struct {
	inner      Sink
	maxRetries uint64
}

// WithRetry returns a sink that retries transient commit failures up to
// maxRetries times. Zero disables retries.
func WithRetry(s Sink, maxRetries uint64) Sink {
	if maxRetries == 0 {
		return s
	}
	return &retrying{inner: s, maxRetries: maxRetries}
}

func (r *retrying) CommitBatch(ctx context.Context, records []domain.CategorizedRecord) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	return backoff.Retry(func() error {
		return r.inner.CommitBatch(ctx, records)
	}, policy)
}
