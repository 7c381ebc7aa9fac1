package watermark

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/config"
	"google.golang.org/api/iterator"
)

// BigQueryResolver reads watermarks from the ledger table in BigQuery.
type BigQueryResolver struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewBigQueryResolver(client *bigquery.Client, project config.ProjectConfig) *BigQueryResolver {
	return &BigQueryResolver{client: client, dataset: project.Dataset, table: project.Table}
}

// Watermark fetches the committed dates and business keys for one account
// in a single scan. Personal-ledger volumes make loading the full key set
// per account cheap, and it is the only authoritative answer for the
// same-day partial-commit case.
func (r *BigQueryResolver) Watermark(ctx context.Context, sourceID string) (Watermark, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT transaction_date, business_key
		FROM %s.%s
		WHERE source_id = @source_id
	`, r.dataset, r.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "source_id", Value: sourceID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return Watermark{}, fmt.Errorf("Watermark: query read for %s: %w", sourceID, err)
	}

	w := Watermark{SourceID: sourceID, Keys: make(map[string]struct{})}
	for {
		var row struct {
			TransactionDate civil.Date `bigquery:"transaction_date"`
			BusinessKey     string     `bigquery:"business_key"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Watermark{}, fmt.Errorf("Watermark: iter next for %s: %w", sourceID, err)
		}
		w.Keys[row.BusinessKey] = struct{}{}
		if !w.HasDate || row.TransactionDate.After(w.Date) {
			w.Date = row.TransactionDate
			w.HasDate = true
		}
	}
	return w, nil
}
