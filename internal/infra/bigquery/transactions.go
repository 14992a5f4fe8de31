package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

// TransactionRow mirrors one invoice line in a BigQuery table. Column
// names are snake_case versions of the spreadsheet headers.
type TransactionRow struct {
	Invoice     bigquery.NullString   `bigquery:"invoice"`
	StockCode   bigquery.NullString   `bigquery:"stock_code"`
	Description bigquery.NullString   `bigquery:"description"`
	Quantity    bigquery.NullInt64    `bigquery:"quantity"`
	InvoiceDate bigquery.NullDateTime `bigquery:"invoice_date"`
	Price       bigquery.NullFloat64  `bigquery:"price"`
	CustomerID  bigquery.NullString   `bigquery:"customer_id"`
	Country     bigquery.NullString   `bigquery:"country"`
}

// ToDomain converts the row, keeping nulls as nulls.
func (r *TransactionRow) ToDomain() domain.Row {
	row := domain.Row{
		Invoice:     r.Invoice,
		StockCode:   r.StockCode,
		Description: r.Description,
		Quantity:    r.Quantity,
		InvoiceDate: r.InvoiceDate,
		CustomerID:  r.CustomerID,
		Country:     r.Country,
	}
	if r.Price.Valid {
		row.Price = decimal.NullDecimal{Decimal: decimal.NewFromFloat(r.Price.Float64), Valid: true}
	}
	return row
}

// NewTransactionRow converts a domain row for insertion. Prices are
// stored as FLOAT64 like the spreadsheet's numeric cells.
func NewTransactionRow(r domain.Row) *TransactionRow {
	row := &TransactionRow{
		Invoice:     r.Invoice,
		StockCode:   r.StockCode,
		Description: r.Description,
		Quantity:    r.Quantity,
		InvoiceDate: r.InvoiceDate,
		CustomerID:  r.CustomerID,
		Country:     r.Country,
	}
	if r.Price.Valid {
		row.Price = bigquery.NullFloat64{Float64: r.Price.Decimal.InexactFloat64(), Valid: true}
	}
	return row
}

// TransactionTable reads and appends invoice lines in a BigQuery table.
type TransactionTable struct {
	client *bigquery.Client
	table  TableRef
}

// NewTransactionTable opens the given table, billing queries to the
// table's project.
func NewTransactionTable(ctx context.Context, table TableRef) (*TransactionTable, error) {
	client, err := bigquery.NewClient(ctx, table.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionTable: creating client: %w", err)
	}
	return &TransactionTable{client: client, table: table}, nil
}

// Close closes the BigQuery client connection.
func (s *TransactionTable) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Load implements dataset.Source.
func (s *TransactionTable) Load(ctx context.Context) ([]domain.Row, error) {
	log := logger.FromContext(ctx)

	q := s.client.Query(fmt.Sprintf(`
		SELECT
		  invoice,
		  stock_code,
		  description,
		  quantity,
		  invoice_date,
		  price,
		  customer_id,
		  country
		FROM `+"`%s`", s.table))

	it, err := q.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("TransactionTable.Load: %s: %w", s.table, domain.ErrInputNotFound)
		}
		return nil, fmt.Errorf("TransactionTable.Load: query read: %w", err)
	}

	var rows []domain.Row
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TransactionTable.Load: iter next: %w", err)
		}
		rows = append(rows, r.ToDomain())
	}

	log.Debug().Str("table", s.table.String()).Int("rows", len(rows)).Msg("Read BigQuery table")
	return rows, nil
}

// EnsureTable creates the table from TransactionRow's schema when missing.
func (s *TransactionTable) EnsureTable(ctx context.Context) error {
	t := s.client.DatasetInProject(s.table.ProjectID, s.table.DatasetID).Table(s.table.TableID)

	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: reading metadata of %s: %w", s.table, err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("EnsureTable: creating %s: %w", s.table, err)
	}
	return nil
}

// Insert appends rows to the table, creating it first if needed.
func (s *TransactionTable) Insert(ctx context.Context, rows []domain.Row) error {
	log := logger.FromContext(ctx)

	if err := s.EnsureTable(ctx); err != nil {
		return fmt.Errorf("TransactionTable.Insert: %w", err)
	}

	inserter := s.client.DatasetInProject(s.table.ProjectID, s.table.DatasetID).Table(s.table.TableID).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		batch := make([]*TransactionRow, 0, end-start)
		for _, r := range rows[start:end] {
			batch = append(batch, NewTransactionRow(r))
		}
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("TransactionTable.Insert: inserting rows %d-%d: %w", start, end, err)
		}
		log.Debug().Int("inserted", end).Int("total", len(rows)).Msg("Inserted invoice lines")
	}
	return nil
}
