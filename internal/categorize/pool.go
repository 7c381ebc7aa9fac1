package categorize

import (
	"context"
	"time"

	"github.com/dvloznov/ledgersync/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options bounds the fan-out against the external model.
type Options struct {
	Workers int
	Timeout time.Duration

	// Progress, when set, is invoked once per record as soon as its
	// category is decided, including transfer members and fallbacks.
	// Workers invoke it concurrently; the callback does its own locking.
	Progress func(i int, rec domain.CategorizedRecord)
}

// Batch categorizes a merged, sorted batch with bounded concurrency.
// Results land in a slice indexed by input position, so the output keeps
// the reconciliation engine's ordering no matter how calls interleave.
// Transfer-pair members carry the reserved transfer tag and never hit the
// model. The returned count is the number of fallback assignments.
//
// The only fatal error is context cancellation; per-record failures are
// absorbed into domain.CategoryUncategorized.
func Batch(ctx context.Context, c Categorizer, records []domain.Record, opts Options, log zerolog.Logger) ([]domain.CategorizedRecord, int, error) {
	out := make([]domain.CategorizedRecord, len(records))
	fallbacks := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for i, rec := range records {
		out[i] = domain.CategorizedRecord{Record: rec}
		if rec.IsTransfer() {
			out[i].Category = domain.CategoryTransfer
			if opts.Progress != nil {
				opts.Progress(i, out[i])
			}
			continue
		}

		g.Go(func() error {
			callCtx := gctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, opts.Timeout)
				defer cancel()
			}

			res, err := c.Categorize(callCtx, Request{
				Description: rec.Description,
				Amount:      rec.Amount,
				Date:        rec.Date,
				Account:     rec.SourceID,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().
					Str("description", rec.Description).
					Err(err).
					Msg("categorization failed, using fallback")
				out[i].Category = domain.CategoryUncategorized
				fallbacks[i] = true
				if opts.Progress != nil {
					opts.Progress(i, out[i])
				}
				return nil
			}
			out[i].Category = res.Category
			out[i].Summary = res.Summary
			if opts.Progress != nil {
				opts.Progress(i, out[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	count := 0
	for _, f := range fallbacks {
		if f {
			count++
		}
	}
	return out, count, nil
}
