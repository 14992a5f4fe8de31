package dataset

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// Column names of the invoice sheet.
const (
	ColInvoice     = "Invoice"
	ColStockCode   = "StockCode"
	ColDescription = "Description"
	ColQuantity    = "Quantity"
	ColInvoiceDate = "InvoiceDate"
	ColPrice       = "Price"
	ColCustomerID  = "Customer ID"
	ColCountry     = "Country"
)

// RequiredColumns lists the columns every dataset must carry.
var RequiredColumns = []string{
	ColInvoice, ColStockCode, ColDescription, ColQuantity,
	ColInvoiceDate, ColPrice, ColCustomerID, ColCountry,
}

var floatIDPattern = regexp.MustCompile(`^(\d+)\.0+$`)

// Older exports of the same dataset use these headers.
var columnAliases = map[string]string{
	"InvoiceNo":  ColInvoice,
	"UnitPrice":  ColPrice,
	"CustomerID": ColCustomerID,
}

// dateLayouts are tried in order for textual invoice dates.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"2006-01-02",
}

// dateParser turns a cell into a civil date-time.
type dateParser func(cell string) (civil.DateTime, error)

// columnIndex maps each required column to its position in header.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s: %w", strings.Join(missing, ", "), domain.ErrSchemaMismatch)
	}
	return idx, nil
}

// parseRecords converts a header plus data records into rows. Empty cells
// and cells past the end of a short record are nulls.
func parseRecords(header []string, records [][]string, parseDate dateParser) ([]domain.Row, error) {
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Row, 0, len(records))
	for n, rec := range records {
		cell := func(col string) (string, bool) {
			i := idx[col]
			if i >= len(rec) {
				return "", false
			}
			v := strings.TrimSpace(rec[i])
			return v, v != ""
		}

		var r domain.Row
		if v, ok := cell(ColInvoice); ok {
			r.Invoice = bigquery.NullString{StringVal: v, Valid: true}
		}
		if v, ok := cell(ColStockCode); ok {
			r.StockCode = bigquery.NullString{StringVal: v, Valid: true}
		}
		if v, ok := cell(ColDescription); ok {
			r.Description = bigquery.NullString{StringVal: v, Valid: true}
		}
		if v, ok := cell(ColCountry); ok {
			r.Country = bigquery.NullString{StringVal: v, Valid: true}
		}
		if v, ok := cell(ColCustomerID); ok {
			r.CustomerID = bigquery.NullString{StringVal: NormalizeCustomerID(v), Valid: true}
		}
		if v, ok := cell(ColQuantity); ok {
			q, err := parseQuantity(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
			r.Quantity = bigquery.NullInt64{Int64: q, Valid: true}
		}
		if v, ok := cell(ColPrice); ok {
			p, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: price %q: %w", n+2, v, domain.ErrSchemaMismatch)
			}
			r.Price = decimal.NullDecimal{Decimal: p, Valid: true}
		}
		if v, ok := cell(ColInvoiceDate); ok {
			dt, err := parseDate(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
			r.InvoiceDate = bigquery.NullDateTime{DateTime: dt, Valid: true}
		}

		rows = append(rows, r)
	}
	return rows, nil
}

// NormalizeCustomerID strips the ".0" a float-typed id column picks up,
// so 13085.0 and 13085 name the same customer.
// Any other text, leading zeros included, is kept as is.
func NormalizeCustomerID(id string) string {
	if m := floatIDPattern.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

func parseQuantity(v string) (int64, error) {
	if q, err := strconv.ParseInt(v, 10, 64); err == nil {
		return q, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %q: %w", v, domain.ErrSchemaMismatch)
	}
	return int64(f), nil
}

// parseTextDate parses the textual date formats found in CSV exports.
func parseTextDate(v string) (civil.DateTime, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return civil.DateTimeOf(t), nil
		}
	}
	return civil.DateTime{}, fmt.Errorf("invoice date %q: %w", v, domain.ErrSchemaMismatch)
}
