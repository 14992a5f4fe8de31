package pipeline

import (
	"context"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// Publisher receives the segment assignments of a finished run.
// Implementations live in internal/infra.
type Publisher interface {
	// Name identifies the sink in logs and errors.
	Name() string

	// Publish stores one record per customer, tagged with the run.
	Publish(ctx context.Context, run domain.Run, customers []domain.Customer) error

	// Close releases the sink's connections.
	Close() error
}

// SegmentSaver writes the customer ids of one segment to a destination.
type SegmentSaver interface {
	SaveSegment(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error
}
