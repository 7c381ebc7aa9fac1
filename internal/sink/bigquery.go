package sink

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledgersync/internal/config"
	"github.com/dvloznov/ledgersync/internal/domain"
)

// LedgerRow is the BigQuery schema for one committed ledger entry.
// Amount maps to a NUMERIC column.
type LedgerRow struct {
	BusinessKey     string              `bigquery:"business_key"`
	SourceID        string              `bigquery:"source_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     string              `bigquery:"description"`
	Amount          *big.Rat            `bigquery:"amount"`
	Category        string              `bigquery:"category"`
	OriginFile      string              `bigquery:"origin_file"`
	TransferGroupID bigquery.NullString `bigquery:"transfer_group_id"`
	CommittedTS     time.Time           `bigquery:"committed_ts"`
}

func rowFromRecord(r domain.CategorizedRecord, committedTS time.Time) *LedgerRow {
	row := &LedgerRow{
		BusinessKey:     r.BusinessKey,
		SourceID:        r.SourceID,
		TransactionDate: r.Date,
		Description:     r.Description,
		Amount:          r.Amount.Rat(),
		Category:        r.Category,
		OriginFile:      r.OriginFile,
		CommittedTS:     committedTS,
	}
	if r.TransferGroupID != "" {
		row.TransferGroupID = bigquery.NullString{StringVal: r.TransferGroupID, Valid: true}
	}
	return row
}

// BigQuerySink appends batches to the ledger table with the streaming
// inserter.
type BigQuerySink struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewBigQuerySink(client *bigquery.Client, project config.ProjectConfig) *BigQuerySink {
	return &BigQuerySink{client: client, dataset: project.Dataset, table: project.Table}
}

func (s *BigQuerySink) CommitBatch(ctx context.Context, records []domain.CategorizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*LedgerRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, rowFromRecord(r, now))
	}

	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return &CommitError{Err: err}
	}
	return nil
}
