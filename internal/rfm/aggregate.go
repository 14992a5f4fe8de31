package rfm

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// ReferenceDate derives a reference date one day after the latest invoice
// date in txs. It returns false when txs is empty.
func ReferenceDate(txs []domain.Transaction) (civil.Date, bool) {
	if len(txs) == 0 {
		return civil.Date{}, false
	}
	latest := txs[0].InvoiceDate
	for _, tx := range txs[1:] {
		if latest.Before(tx.InvoiceDate) {
			latest = tx.InvoiceDate
		}
	}
	return latest.Date.AddDays(1), true
}

// RecencyDays returns the whole days elapsed between last and ref.
func RecencyDays(ref civil.Date, last time.Time) int {
	d := ref.In(time.UTC).Sub(last)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// Aggregate groups transactions by customer and computes recency,
// frequency and monetary value relative to ref. Customers whose monetary
// value or frequency is not positive are excluded. The result is ordered
// by customer id.
func Aggregate(txs []domain.Transaction, ref civil.Date) ([]domain.Metrics, error) {
	byCustomer := make(map[string]*domain.Metrics)
	var ids []string

	for _, tx := range txs {
		m, ok := byCustomer[tx.CustomerID]
		if !ok {
			m = &domain.Metrics{CustomerID: tx.CustomerID, Monetary: decimal.Zero}
			byCustomer[tx.CustomerID] = m
			ids = append(ids, tx.CustomerID)
		}
		ts := tx.InvoiceTime()
		if m.Frequency == 0 || ts.After(m.LastPurchase) {
			m.LastPurchase = ts
		}
		m.Frequency++
		m.Monetary = m.Monetary.Add(tx.LineTotal)
	}

	sort.Strings(ids)

	out := make([]domain.Metrics, 0, len(ids))
	for _, id := range ids {
		m := byCustomer[id]
		if !m.Monetary.IsPositive() || m.Frequency <= 0 {
			continue
		}
		m.Recency = RecencyDays(ref, m.LastPurchase)
		if m.Recency < 0 {
			return nil, fmt.Errorf("Aggregate: customer %s last purchased %s after %s: %w",
				id, m.LastPurchase.Format(time.DateTime), ref, domain.ErrInvalidReferenceDate)
		}
		out = append(out, *m)
	}

	return out, nil
}
