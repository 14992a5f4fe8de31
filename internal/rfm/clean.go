// Package rfm implements the cleaning, aggregation, quantile scoring and
// segment naming stages of an RFM analysis. Every stage takes its input
// table and returns a new one.
package rfm

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// DefaultCancellationMarker marks cancelled invoices, e.g. "C489449".
const DefaultCancellationMarker = "C"

// IsCancelled reports whether the invoice identifier carries the
// cancellation marker. A null invoice is never a cancellation.
func IsCancelled(invoice string, valid bool, marker string) bool {
	if !valid || marker == "" {
		return false
	}
	return strings.Contains(invoice, marker)
}

// Clean drops cancelled invoices, then drops every row with a null in any
// column, then derives the line total for what remains.
func Clean(rows []domain.Row, marker string) []domain.Transaction {
	kept := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		if IsCancelled(r.Invoice.StringVal, r.Invoice.Valid, marker) {
			continue
		}
		kept = append(kept, r)
	}

	txs := make([]domain.Transaction, 0, len(kept))
	for _, r := range kept {
		if r.HasNull() {
			continue
		}
		txs = append(txs, domain.Transaction{
			Invoice:     r.Invoice.StringVal,
			StockCode:   r.StockCode.StringVal,
			Description: r.Description.StringVal,
			Quantity:    r.Quantity.Int64,
			InvoiceDate: r.InvoiceDate.DateTime,
			Price:       r.Price.Decimal,
			CustomerID:  r.CustomerID.StringVal,
			Country:     r.Country.StringVal,
			LineTotal:   decimal.NewFromInt(r.Quantity.Int64).Mul(r.Price.Decimal),
		})
	}
	return txs
}
