package domain

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Row is one invoice line as read from the dataset. Every field may be
// null; the cleaner decides what survives.
type Row struct {
	Invoice     bigquery.NullString
	StockCode   bigquery.NullString
	Description bigquery.NullString
	Quantity    bigquery.NullInt64 // negative for returns
	InvoiceDate bigquery.NullDateTime
	Price       decimal.NullDecimal
	CustomerID  bigquery.NullString
	Country     bigquery.NullString
}

// HasNull reports whether any field of the row is null.
func (r Row) HasNull() bool {
	return !r.Invoice.Valid ||
		!r.StockCode.Valid ||
		!r.Description.Valid ||
		!r.Quantity.Valid ||
		!r.InvoiceDate.Valid ||
		!r.Price.Valid ||
		!r.CustomerID.Valid ||
		!r.Country.Valid
}

// Transaction is a cleaned invoice line with its derived line total.
type Transaction struct {
	Invoice     string
	StockCode   string
	Description string
	Quantity    int64
	InvoiceDate civil.DateTime
	Price       decimal.Decimal
	CustomerID  string
	Country     string

	LineTotal decimal.Decimal // Quantity * Price
}

// InvoiceTime returns the invoice timestamp as a UTC time.Time.
func (t Transaction) InvoiceTime() time.Time {
	return t.InvoiceDate.In(time.UTC)
}

// Run identifies a single segmentation run. It travels with every
// record handed to a result sink.
type Run struct {
	ID            string
	Source        string
	ReferenceDate civil.Date
	StartedAt     time.Time
}
