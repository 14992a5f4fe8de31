package pipeline

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/customer-segmentation/internal/dataset"
	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/logger"
	"github.com/dvloznov/customer-segmentation/internal/rfm"
)

// PipelineStep represents a single step in the segmentation pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the tables produced by the steps. Every step reads
// the output of an earlier one and writes its own field; none is
// modified after it is written.
type PipelineState struct {
	Run domain.Run

	Rows         []domain.Row
	Transactions []domain.Transaction
	Metrics      []domain.Metrics
	Scored       []domain.Scored
	Customers    []domain.Customer
	Summary      []rfm.SegmentSummary
}

// Step 1: LoadStep reads the raw invoice rows.
type LoadStep struct {
	Source dataset.Source
}

func (s *LoadStep) Name() string { return "load" }

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := s.Source.Load(ctx)
	if err != nil {
		return err
	}
	state.Rows = rows

	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(rows)).Msg("Loaded dataset")
	return nil
}

// Step 2: CleanStep drops cancellations and incomplete rows.
type CleanStep struct {
	CancellationMarker string
}

func (s *CleanStep) Name() string { return "clean" }

func (s *CleanStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = rfm.Clean(state.Rows, s.CancellationMarker)

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", len(state.Rows)).
		Int("transactions", len(state.Transactions)).
		Msg("Cleaned dataset")
	return nil
}

// Step 3: AggregateStep computes per-customer recency, frequency and
// monetary value. Without a fixed ReferenceDate the day after the latest
// invoice is used.
type AggregateStep struct {
	ReferenceDate *civil.Date
}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	ref, derived := civil.Date{}, false
	if s.ReferenceDate != nil {
		ref = *s.ReferenceDate
	} else {
		var ok bool
		ref, ok = rfm.ReferenceDate(state.Transactions)
		if !ok {
			return fmt.Errorf("AggregateStep: no transactions left after cleaning: %w", domain.ErrInsufficientData)
		}
		derived = true
	}
	state.Run.ReferenceDate = ref

	metrics, err := rfm.Aggregate(state.Transactions, ref)
	if err != nil {
		return err
	}
	state.Metrics = metrics

	log.Info().
		Str("reference_date", ref.String()).
		Bool("derived", derived).
		Int("customers", len(metrics)).
		Msg("Aggregated customer metrics")
	return nil
}

// Step 4: ScoreStep assigns 1-5 quantile scores.
type ScoreStep struct{}

func (s *ScoreStep) Name() string { return "score" }

func (s *ScoreStep) Execute(ctx context.Context, state *PipelineState) error {
	scored, err := rfm.Score(state.Metrics)
	if err != nil {
		return err
	}
	state.Scored = scored
	return nil
}

// Step 5: SegmentStep names each customer's segment and summarizes them.
type SegmentStep struct{}

func (s *SegmentStep) Name() string { return "segment" }

func (s *SegmentStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	customers, err := rfm.Assign(state.Scored)
	if err != nil {
		return err
	}
	state.Customers = customers
	state.Summary = rfm.Summarize(customers)

	for _, sum := range state.Summary {
		log.Debug().
			Str("segment", string(sum.Segment)).
			Int("customers", sum.Count).
			Float64("mean_recency", sum.MeanRecency).
			Float64("mean_frequency", sum.MeanFrequency).
			Str("mean_monetary", sum.MeanMonetary.StringFixed(2)).
			Msg("Segment summary")
	}
	return nil
}

// Step 6: ExportStep writes the ids of one segment.
type ExportStep struct {
	Segment domain.Segment
	Path    string
	Saver   SegmentSaver
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Saver.SaveSegment(ctx, s.Path, s.Segment, state.Customers)
}

// Step 7: PublishStep hands the assignments to every configured sink.
type PublishStep struct {
	Publishers []Publisher
}

func (s *PublishStep) Name() string { return "publish" }

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for _, p := range s.Publishers {
		if err := p.Publish(ctx, state.Run, state.Customers); err != nil {
			return fmt.Errorf("PublishStep: %s: %w: %w", p.Name(), domain.ErrOutputWrite, err)
		}
		log.Info().Str("sink", p.Name()).Int("customers", len(state.Customers)).Msg("Published segments")
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially, stopping at the
// first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
