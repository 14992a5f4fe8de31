package domain

import "fmt"

// Segment is a named marketing category derived from RFM scores.
type Segment string

const (
	SegmentHibernating        Segment = "Hibernating"
	SegmentAtRisk             Segment = "At_Risk"
	SegmentCantLoose          Segment = "Cant_Loose"
	SegmentAboutToSleep       Segment = "About_to_Sleep"
	SegmentNeedAttention      Segment = "Need_Attention"
	SegmentLoyalCustomers     Segment = "Loyal_Customers"
	SegmentPromising          Segment = "Promising"
	SegmentNewCustomers       Segment = "New_Customers"
	SegmentPotentialLoyalists Segment = "Potential_Loyalists"
	SegmentChampions          Segment = "Champions"
)

// Segments lists every segment name.
var Segments = []Segment{
	SegmentHibernating,
	SegmentAtRisk,
	SegmentCantLoose,
	SegmentAboutToSleep,
	SegmentNeedAttention,
	SegmentLoyalCustomers,
	SegmentPromising,
	SegmentNewCustomers,
	SegmentPotentialLoyalists,
	SegmentChampions,
}

// ParseSegment validates a segment name. Matching is exact.
func ParseSegment(name string) (Segment, error) {
	for _, s := range Segments {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("ParseSegment: %q: %w", name, ErrUnknownSegment)
}

func (s Segment) String() string {
	return string(s)
}
