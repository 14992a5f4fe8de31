package pipeline

import "github.com/dvloznov/customer-segmentation/internal/domain"

// DefaultSegment is the segment exported when none is requested. Without
// an ExportPath it is written to export.DefaultPath of the segment.
const DefaultSegment = domain.SegmentNeedAttention
