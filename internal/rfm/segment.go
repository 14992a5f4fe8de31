package rfm

import (
	"fmt"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// scoreRange is an inclusive range of score digits.
type scoreRange struct{ lo, hi int }

func (r scoreRange) contains(v int) bool { return v >= r.lo && v <= r.hi }

// Rule names a segment for a block of (recency, frequency) scores.
type Rule struct {
	Recency   scoreRange
	Frequency scoreRange
	Segment   domain.Segment
}

// Matches reports whether the rule covers the given scores.
func (r Rule) Matches(recency, frequency int) bool {
	return r.Recency.contains(recency) && r.Frequency.contains(frequency)
}

// Pattern renders the rule in the [r][f] digit-class notation.
func (r Rule) Pattern() string {
	return digitClass(r.Recency) + digitClass(r.Frequency)
}

func digitClass(r scoreRange) string {
	if r.lo == r.hi {
		return fmt.Sprint(r.lo)
	}
	return fmt.Sprintf("[%d-%d]", r.lo, r.hi)
}

// Rules is evaluated top to bottom; the first match wins. Monetary score
// is not consulted.
var Rules = []Rule{
	{scoreRange{1, 2}, scoreRange{1, 2}, domain.SegmentHibernating},
	{scoreRange{1, 2}, scoreRange{3, 4}, domain.SegmentAtRisk},
	{scoreRange{1, 2}, scoreRange{5, 5}, domain.SegmentCantLoose},
	{scoreRange{3, 3}, scoreRange{1, 2}, domain.SegmentAboutToSleep},
	{scoreRange{3, 3}, scoreRange{3, 3}, domain.SegmentNeedAttention},
	{scoreRange{3, 4}, scoreRange{4, 5}, domain.SegmentLoyalCustomers},
	{scoreRange{4, 4}, scoreRange{1, 1}, domain.SegmentPromising},
	{scoreRange{5, 5}, scoreRange{1, 1}, domain.SegmentNewCustomers},
	{scoreRange{4, 5}, scoreRange{2, 3}, domain.SegmentPotentialLoyalists},
	{scoreRange{5, 5}, scoreRange{4, 5}, domain.SegmentChampions},
}

// Classify returns the segment for a recency/frequency score pair.
func Classify(recency, frequency int) (domain.Segment, bool) {
	for _, r := range Rules {
		if r.Matches(recency, frequency) {
			return r.Segment, true
		}
	}
	return "", false
}

// Assign names the segment of every scored customer.
func Assign(scored []domain.Scored) ([]domain.Customer, error) {
	out := make([]domain.Customer, len(scored))
	for i, s := range scored {
		seg, ok := Classify(s.RecencyScore, s.FrequencyScore)
		if !ok {
			return nil, fmt.Errorf("Assign: customer %s: no segment for scores %s", s.CustomerID, s.SegmentKey())
		}
		out[i] = domain.Customer{Scored: s, Segment: seg}
	}
	return out, nil
}

// Members returns the customers assigned to seg, in input order.
func Members(customers []domain.Customer, seg domain.Segment) []domain.Customer {
	var out []domain.Customer
	for _, c := range customers {
		if c.Segment == seg {
			out = append(out, c)
		}
	}
	return out
}
