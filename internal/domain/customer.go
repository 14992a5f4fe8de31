package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics holds the RFM values aggregated for one customer.
type Metrics struct {
	CustomerID   string
	Recency      int             // days since LastPurchase, relative to the reference date
	Frequency    int             // invoice line items, not distinct invoices
	Monetary     decimal.Decimal // sum of line totals
	LastPurchase time.Time
}

// Scored is a customer's metrics together with their 1-5 quantile scores.
type Scored struct {
	Metrics

	RecencyScore   int
	FrequencyScore int
	MonetaryScore  int
}

// RFMScore returns the three scores concatenated in R, F, M order, e.g. "555".
func (s Scored) RFMScore() string {
	return strconv.Itoa(s.RecencyScore) + strconv.Itoa(s.FrequencyScore) + strconv.Itoa(s.MonetaryScore)
}

// SegmentKey returns the two-digit recency/frequency code used for naming.
func (s Scored) SegmentKey() string {
	return strconv.Itoa(s.RecencyScore) + strconv.Itoa(s.FrequencyScore)
}

// Customer is the final per-customer record of a run.
type Customer struct {
	Scored

	Segment Segment
}
