package bigquery

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

func TestParseTableURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    TableRef
		wantErr bool
	}{
		{"bq://retail-analytics/online_retail/invoice_lines", TableRef{"retail-analytics", "online_retail", "invoice_lines"}, false},
		{"bq://p/d", TableRef{}, true},
		{"bq://p/d/t/extra", TableRef{}, true},
		{"bq://p/d/t;drop", TableRef{}, true},
		{"gs://bucket/file.xlsx", TableRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseTableURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTableURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTableURI() = %+v, want %+v", got, tt.want)
			}
		})
	}

	ref := TableRef{"p", "d", "t"}
	if ref.String() != "p.d.t" {
		t.Errorf("String() = %q", ref.String())
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})
	if !isNotFound(notFound) {
		t.Error("expected 404 to be recognised")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Error("403 is not a not-found error")
	}
	if isNotFound(errors.New("boom")) {
		t.Error("plain error is not a not-found error")
	}
}

func TestTransactionRow_ToDomain(t *testing.T) {
	r := &TransactionRow{
		Invoice:     bigquery.NullString{StringVal: "489434", Valid: true},
		Quantity:    bigquery.NullInt64{Int64: 12, Valid: true},
		Price:       bigquery.NullFloat64{Float64: 6.95, Valid: true},
		CustomerID:  bigquery.NullString{},
		InvoiceDate: bigquery.NullDateTime{DateTime: civil.DateTime{Date: civil.Date{Year: 2009, Month: 12, Day: 1}}, Valid: true},
	}

	row := r.ToDomain()
	if !row.Price.Valid || !row.Price.Decimal.Equal(decimal.RequireFromString("6.95")) {
		t.Errorf("Price = %+v, want 6.95", row.Price)
	}
	if row.CustomerID.Valid {
		t.Error("null customer id must stay null")
	}
	if !row.HasNull() {
		t.Error("row with missing columns should report nulls")
	}
}

func TestNewSegmentRows(t *testing.T) {
	ref := civil.Date{Year: 2010, Month: time.December, Day: 11}
	run := domain.Run{ID: "run-1", ReferenceDate: ref}
	last := time.Date(2010, 12, 9, 20, 1, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	customers := []domain.Customer{{
		Scored: domain.Scored{
			Metrics: domain.Metrics{
				CustomerID:   "13085",
				Recency:      1,
				Frequency:    84,
				Monetary:     decimal.RequireFromString("2433.28"),
				LastPurchase: last,
			},
			RecencyScore:   5,
			FrequencyScore: 4,
			MonetaryScore:  5,
		},
		Segment: domain.SegmentChampions,
	}}

	rows := NewSegmentRows(run, customers, now)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.RunID != "run-1" || got.CustomerID != "13085" || got.RFMScore != "545" || got.Segment != "Champions" {
		t.Errorf("unexpected row: %+v", got)
	}
	if got.Monetary != 2433.28 || got.ReferenceDate != ref || !got.LastPurchaseTS.Equal(last) || !got.CreatedTS.Equal(now) {
		t.Errorf("unexpected values: %+v", got)
	}

	if _, err := bigquery.InferSchema(SegmentRow{}); err != nil {
		t.Errorf("InferSchema(SegmentRow{}) error: %v", err)
	}
}

func TestNewTransactionRow(t *testing.T) {
	in := domain.Row{
		Invoice:     bigquery.NullString{StringVal: "489434", Valid: true},
		Quantity:    bigquery.NullInt64{Int64: 12, Valid: true},
		Price:       decimal.NullDecimal{Decimal: decimal.RequireFromString("6.95"), Valid: true},
		CustomerID:  bigquery.NullString{StringVal: "13085", Valid: true},
		InvoiceDate: bigquery.NullDateTime{DateTime: civil.DateTime{Date: civil.Date{Year: 2009, Month: 12, Day: 1}}, Valid: true},
	}

	row := NewTransactionRow(in)
	if !row.Price.Valid || row.Price.Float64 != 6.95 {
		t.Errorf("Price = %+v, want 6.95", row.Price)
	}
	if row.Description.Valid {
		t.Error("null description must stay null")
	}

	back := row.ToDomain()
	if back.Invoice != in.Invoice || back.CustomerID != in.CustomerID || !back.Price.Decimal.Equal(in.Price.Decimal) {
		t.Errorf("round trip = %+v, want %+v", back, in)
	}

	if _, err := bigquery.InferSchema(TransactionRow{}); err != nil {
		t.Errorf("InferSchema(TransactionRow{}) error: %v", err)
	}
}
