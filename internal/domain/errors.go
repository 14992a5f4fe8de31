package domain

import "errors"

// Error kinds surfaced by a segmentation run. Callers wrap them with
// context and check with errors.Is; any of them terminates the run.
var (
	// ErrInputNotFound is returned when the dataset file, object or sheet does not exist.
	ErrInputNotFound = errors.New("input not found")

	// ErrSchemaMismatch is returned when a required column is missing or a cell cannot be parsed.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrInsufficientData is returned when a metric cannot be split into quantile buckets.
	ErrInsufficientData = errors.New("insufficient distinct values for quantile scoring")

	// ErrOutputWrite is returned when an export or a result sink fails.
	ErrOutputWrite = errors.New("output write failure")

	// ErrInvalidReferenceDate is returned when the reference date precedes a purchase.
	ErrInvalidReferenceDate = errors.New("reference date precedes last purchase")

	// ErrUnknownSegment is returned for a segment name outside the rule table.
	ErrUnknownSegment = errors.New("unknown segment")
)
