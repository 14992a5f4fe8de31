// Package postgres stores segment assignments in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rfm_runs (
    run_id         UUID PRIMARY KEY,
    source         TEXT NOT NULL,
    reference_date DATE NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    customers      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rfm_segments (
    run_id          UUID NOT NULL REFERENCES rfm_runs (run_id) ON DELETE CASCADE,
    customer_id     TEXT NOT NULL,
    recency         INTEGER NOT NULL,
    frequency       INTEGER NOT NULL,
    monetary        NUMERIC(14, 2) NOT NULL,
    recency_score   SMALLINT NOT NULL,
    frequency_score SMALLINT NOT NULL,
    monetary_score  SMALLINT NOT NULL,
    rfm_score       CHAR(3) NOT NULL,
    segment         TEXT NOT NULL,
    last_purchase   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS rfm_segments_segment_idx ON rfm_segments (run_id, segment);
`

const insertRunSQL = `
INSERT INTO rfm_runs (run_id, source, reference_date, started_at, customers)
VALUES ($1::uuid, $2, $3::date, $4, $5)
ON CONFLICT (run_id) DO UPDATE SET customers = EXCLUDED.customers`

const upsertSegmentSQL = `
INSERT INTO rfm_segments (
    run_id, customer_id, recency, frequency, monetary,
    recency_score, frequency_score, monetary_score, rfm_score, segment, last_purchase
)
VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)
ON CONFLICT (run_id, customer_id) DO UPDATE SET
    recency = EXCLUDED.recency,
    frequency = EXCLUDED.frequency,
    monetary = EXCLUDED.monetary,
    recency_score = EXCLUDED.recency_score,
    frequency_score = EXCLUDED.frequency_score,
    monetary_score = EXCLUDED.monetary_score,
    rfm_score = EXCLUDED.rfm_score,
    segment = EXCLUDED.segment,
    last_purchase = EXCLUDED.last_purchase`

// batchSize bounds the statements sent in one round trip.
const batchSize = 1000

// SegmentStore writes each run and its customer assignments.
type SegmentStore struct {
	pool *pgxpool.Pool
}

// NewSegmentStore connects to the database at dsn.
func NewSegmentStore(ctx context.Context, dsn string) (*SegmentStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("NewSegmentStore: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewSegmentStore: ping: %w", err)
	}
	return &SegmentStore{pool: pool}, nil
}

// Name identifies the sink in logs.
func (s *SegmentStore) Name() string {
	return "postgres"
}

// Close releases the connection pool.
func (s *SegmentStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates the run and segment tables when missing.
func (s *SegmentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

// Publish records the run and upserts one row per customer in a single
// transaction.
func (s *SegmentStore) Publish(ctx context.Context, run domain.Run, customers []domain.Customer) error {
	log := logger.FromContext(ctx)

	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("SegmentStore.Publish: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("SegmentStore.Publish: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRunSQL, runArgs(run, len(customers))...); err != nil {
		return fmt.Errorf("SegmentStore.Publish: inserting run: %w", err)
	}

	for _, batch := range buildBatches(run, customers) {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("SegmentStore.Publish: upserting segments: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("SegmentStore.Publish: commit: %w", err)
	}

	log.Debug().Int("customers", len(customers)).Msg("Stored segment assignments in Postgres")
	return nil
}

func runArgs(run domain.Run, customers int) []any {
	return []any{run.ID, run.Source, run.ReferenceDate.String(), run.StartedAt.UTC(), customers}
}

// segmentArgs orders a customer's fields as upsertSegmentSQL expects.
// Monetary travels as text so the numeric column keeps exact cents.
func segmentArgs(run domain.Run, c domain.Customer) []any {
	return []any{
		run.ID,
		c.CustomerID,
		c.Recency,
		c.Frequency,
		c.Monetary.StringFixed(2),
		c.RecencyScore,
		c.FrequencyScore,
		c.MonetaryScore,
		c.RFMScore(),
		string(c.Segment),
		c.LastPurchase.UTC().Truncate(time.Microsecond),
	}
}

func buildBatches(run domain.Run, customers []domain.Customer) []*pgx.Batch {
	var batches []*pgx.Batch
	for start := 0; start < len(customers); start += batchSize {
		end := min(start+batchSize, len(customers))
		b := &pgx.Batch{}
		for _, c := range customers[start:end] {
			b.Queue(upsertSegmentSQL, segmentArgs(run, c)...)
		}
		batches = append(batches, b)
	}
	return batches
}
