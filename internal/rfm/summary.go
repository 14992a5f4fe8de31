package rfm

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// SegmentSummary holds the size and mean metrics of one segment.
type SegmentSummary struct {
	Segment       domain.Segment
	Count         int
	MeanRecency   float64
	MeanFrequency float64
	MeanMonetary  decimal.Decimal
}

// Summarize reports count and mean recency, frequency and monetary value
// per segment. Segments appear in rule order; empty ones are omitted.
func Summarize(customers []domain.Customer) []SegmentSummary {
	type acc struct {
		count     int
		recency   int
		frequency int
		monetary  decimal.Decimal
	}
	totals := make(map[domain.Segment]*acc)
	for _, c := range customers {
		a, ok := totals[c.Segment]
		if !ok {
			a = &acc{monetary: decimal.Zero}
			totals[c.Segment] = a
		}
		a.count++
		a.recency += c.Recency
		a.frequency += c.Frequency
		a.monetary = a.monetary.Add(c.Monetary)
	}

	var out []SegmentSummary
	for _, seg := range domain.Segments {
		a, ok := totals[seg]
		if !ok {
			continue
		}
		n := float64(a.count)
		out = append(out, SegmentSummary{
			Segment:       seg,
			Count:         a.count,
			MeanRecency:   float64(a.recency) / n,
			MeanFrequency: float64(a.frequency) / n,
			MeanMonetary:  a.monetary.Div(decimal.NewFromInt(int64(a.count))),
		})
	}
	return out
}
