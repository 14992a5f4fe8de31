package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// insertBatchSize bounds the rows sent in one streaming insert.
const insertBatchSize = 500

// SegmentRow is one customer's scores and segment for a run.
type SegmentRow struct {
	RunID          string     `bigquery:"run_id"`
	CustomerID     string     `bigquery:"customer_id"`
	Recency        int64      `bigquery:"recency"`
	Frequency      int64      `bigquery:"frequency"`
	Monetary       float64    `bigquery:"monetary"`
	RecencyScore   int64      `bigquery:"recency_score"`
	FrequencyScore int64      `bigquery:"frequency_score"`
	MonetaryScore  int64      `bigquery:"monetary_score"`
	RFMScore       string     `bigquery:"rfm_score"`
	Segment        string     `bigquery:"segment"`
	LastPurchaseTS time.Time  `bigquery:"last_purchase_ts"`
	ReferenceDate  civil.Date `bigquery:"reference_date"`
	CreatedTS      time.Time  `bigquery:"created_ts"`
}

// NewSegmentRows maps a run's customers to table rows.
func NewSegmentRows(run domain.Run, customers []domain.Customer, now time.Time) []*SegmentRow {
	rows := make([]*SegmentRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, &SegmentRow{
			RunID:          run.ID,
			CustomerID:     c.CustomerID,
			Recency:        int64(c.Recency),
			Frequency:      int64(c.Frequency),
			Monetary:       c.Monetary.InexactFloat64(),
			RecencyScore:   int64(c.RecencyScore),
			FrequencyScore: int64(c.FrequencyScore),
			MonetaryScore:  int64(c.MonetaryScore),
			RFMScore:       c.RFMScore(),
			Segment:        string(c.Segment),
			LastPurchaseTS: c.LastPurchase,
			ReferenceDate:  run.ReferenceDate,
			CreatedTS:      now,
		})
	}
	return rows
}

// SegmentRepository stores segment assignments in a BigQuery table. It
// holds a shared client for the lifetime of a run.
type SegmentRepository struct {
	client *bigquery.Client
	table  TableRef
}

// NewSegmentRepository creates a repository writing to table.
func NewSegmentRepository(ctx context.Context, table TableRef) (*SegmentRepository, error) {
	client, err := bigquery.NewClient(ctx, table.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewSegmentRepository: creating client: %w", err)
	}
	return &SegmentRepository{client: client, table: table}, nil
}

// Name identifies the sink in logs.
func (r *SegmentRepository) Name() string {
	return "bigquery:" + r.table.String()
}

// Close closes the BigQuery client connection.
func (r *SegmentRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable creates the segments table from SegmentRow's schema when it
// does not exist yet.
func (r *SegmentRepository) EnsureTable(ctx context.Context) error {
	t := r.client.DatasetInProject(r.table.ProjectID, r.table.DatasetID).Table(r.table.TableID)

	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: reading metadata of %s: %w", r.table, err)
	}

	schema, err := bigquery.InferSchema(SegmentRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_ts",
		},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: creating %s: %w", r.table, err)
	}
	return nil
}

// Publish inserts one row per customer.
func (r *SegmentRepository) Publish(ctx context.Context, run domain.Run, customers []domain.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	if err := r.EnsureTable(ctx); err != nil {
		return fmt.Errorf("SegmentRepository.Publish: %w", err)
	}

	rows := NewSegmentRows(run, customers, time.Now().UTC())
	inserter := r.client.DatasetInProject(r.table.ProjectID, r.table.DatasetID).Table(r.table.TableID).Inserter()

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("SegmentRepository.Publish: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}
