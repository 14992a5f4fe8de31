// Package pipeline runs an RFM segmentation end to end: load, clean,
// aggregate, score, segment, export and publish.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/customer-segmentation/internal/dataset"
	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/export"
	"github.com/dvloznov/customer-segmentation/internal/gcs"
	"github.com/dvloznov/customer-segmentation/internal/logger"
	"github.com/dvloznov/customer-segmentation/internal/rfm"
)

// Options configures a segmentation run.
type Options struct {
	// Input is a dataset URI understood by dataset.Open. Ignored when
	// Source is set.
	Input   string
	Sheet   string
	Source  dataset.Source
	Storage gcs.StorageService

	// ReferenceDate fixes the date recency is measured from. Nil derives
	// it from the data.
	ReferenceDate      *civil.Date
	CancellationMarker string

	Segment    domain.Segment
	ExportPath string
	Saver      SegmentSaver

	// SkipExport stops the run after segmentation.
	SkipExport bool
	Publishers []Publisher
}

func (o Options) withDefaults() Options {
	if o.CancellationMarker == "" {
		o.CancellationMarker = rfm.DefaultCancellationMarker
	}
	if o.Segment == "" {
		o.Segment = DefaultSegment
	}
	if o.ExportPath == "" {
		o.ExportPath = export.DefaultPath(o.Segment)
	}
	if o.Saver == nil {
		o.Saver = &export.Saver{Storage: o.Storage}
	}
	return o
}

// NewSegmentationPipeline creates the standard pipeline for opts. Export
// and publish steps are included only when requested.
func NewSegmentationPipeline(opts Options) (*Pipeline, error) {
	opts = opts.withDefaults()

	source := opts.Source
	if source == nil {
		var err error
		source, err = dataset.Open(opts.Input, dataset.OpenOptions{Sheet: opts.Sheet, Storage: opts.Storage})
		if err != nil {
			return nil, fmt.Errorf("NewSegmentationPipeline: %w", err)
		}
	}

	steps := []PipelineStep{
		&LoadStep{Source: source},
		&CleanStep{CancellationMarker: opts.CancellationMarker},
		&AggregateStep{ReferenceDate: opts.ReferenceDate},
		&ScoreStep{},
		&SegmentStep{},
	}
	if !opts.SkipExport {
		steps = append(steps, &ExportStep{Segment: opts.Segment, Path: opts.ExportPath, Saver: opts.Saver})
	}
	if len(opts.Publishers) > 0 {
		steps = append(steps, &PublishStep{Publishers: opts.Publishers})
	}
	return NewPipeline(steps...), nil
}

// Run executes a segmentation run and returns its final state. The run
// id is attached to the context logger.
func Run(ctx context.Context, opts Options) (*PipelineState, error) {
	if _, err := domain.ParseSegment(string(opts.withDefaults().Segment)); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	p, err := NewSegmentationPipeline(opts)
	if err != nil {
		return nil, err
	}

	state := &PipelineState{
		Run: domain.Run{
			ID:        uuid.NewString(),
			Source:    opts.Input,
			StartedAt: time.Now().UTC(),
		},
	}

	log := logger.WithRun(logger.FromContext(ctx), state.Run.ID)
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("input", opts.Input).Strs("steps", p.Steps()).Msg("Starting segmentation run")

	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}

	log.Info().
		Int("customers", len(state.Customers)).
		Dur("elapsed", time.Since(state.Run.StartedAt)).
		Msg("Segmentation run finished")
	return state, nil
}
