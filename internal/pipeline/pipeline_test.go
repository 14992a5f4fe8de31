package pipeline_test

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/pipeline"
)

// MockSource is a mock implementation of dataset.Source for testing.
type MockSource struct {
	LoadFunc func(ctx context.Context) ([]domain.Row, error)
}

func (m *MockSource) Load(ctx context.Context) ([]domain.Row, error) {
	return m.LoadFunc(ctx)
}

// MockSaver is a mock implementation of SegmentSaver for testing.
type MockSaver struct {
	SaveSegmentFunc func(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error
}

func (m *MockSaver) SaveSegment(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error {
	if m.SaveSegmentFunc != nil {
		return m.SaveSegmentFunc(ctx, dest, seg, customers)
	}
	return nil
}

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, run domain.Run, customers []domain.Customer) error
	published   int
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) Publish(ctx context.Context, run domain.Run, customers []domain.Customer) error {
	m.published++
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, run, customers)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func line(invoice, customer string, qty int64, price string, ts civil.DateTime) domain.Row {
	return domain.Row{
		Invoice:     bigquery.NullString{StringVal: invoice, Valid: true},
		StockCode:   bigquery.NullString{StringVal: "85048", Valid: true},
		Description: bigquery.NullString{StringVal: "GLASS BALL", Valid: true},
		Quantity:    bigquery.NullInt64{Int64: qty, Valid: true},
		InvoiceDate: bigquery.NullDateTime{DateTime: ts, Valid: true},
		Price:       decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true},
		CustomerID:  bigquery.NullString{StringVal: customer, Valid: customer != ""},
		Country:     bigquery.NullString{StringVal: "United Kingdom", Valid: true},
	}
}

// retailRows builds ten customers 12000..12009. Customer i buys i+1 lines
// of 10.00, the last on December 1+i, so all three metrics are distinct.
// A cancellation and a row without customer are mixed in.
func retailRows() []domain.Row {
	var rows []domain.Row
	for i := 0; i < 10; i++ {
		id := strconv.Itoa(12000 + i)
		for j := 0; j <= i; j++ {
			ts := civil.DateTime{Date: civil.Date{Year: 2010, Month: 12, Day: 1 + j}, Time: civil.Time{Hour: 10}}
			rows = append(rows, line(strconv.Itoa(50000+i), id, 1, "10.00", ts))
		}
	}
	cancelled := civil.DateTime{Date: civil.Date{Year: 2010, Month: 12, Day: 9}, Time: civil.Time{Hour: 12}}
	rows = append(rows,
		line("C5009", "12009", -1, "10.00", cancelled),
		line("5010", "", 4, "2.50", cancelled),
	)
	return rows
}

func sourceOf(rows []domain.Row) *MockSource {
	return &MockSource{LoadFunc: func(ctx context.Context) ([]domain.Row, error) { return rows, nil }}
}

func TestRun(t *testing.T) {
	ref := civil.Date{Year: 2010, Month: 12, Day: 11}

	var exported []string
	var exportPath string
	saver := &MockSaver{SaveSegmentFunc: func(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error {
		exportPath = dest
		for _, c := range customers {
			if c.Segment == seg {
				exported = append(exported, c.CustomerID)
			}
		}
		return nil
	}}
	pub := &MockPublisher{}

	state, err := pipeline.Run(context.Background(), pipeline.Options{
		Input:         "memory",
		Source:        sourceOf(retailRows()),
		ReferenceDate: &ref,
		Saver:         saver,
		Publishers:    []pipeline.Publisher{pub},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(state.Rows) != 57 {
		t.Errorf("rows = %d, want 57", len(state.Rows))
	}
	if len(state.Transactions) != 55 {
		t.Errorf("transactions = %d, want 55", len(state.Transactions))
	}
	if len(state.Customers) != 10 {
		t.Fatalf("customers = %d, want 10", len(state.Customers))
	}
	if state.Run.ID == "" || state.Run.ReferenceDate != ref {
		t.Errorf("run = %+v", state.Run)
	}

	want := map[string]domain.Segment{
		"12000": domain.SegmentHibernating,
		"12003": domain.SegmentHibernating,
		"12004": domain.SegmentNeedAttention,
		"12005": domain.SegmentNeedAttention,
		"12006": domain.SegmentLoyalCustomers,
		"12009": domain.SegmentChampions,
	}
	for _, c := range state.Customers {
		if seg, ok := want[c.CustomerID]; ok && c.Segment != seg {
			t.Errorf("customer %s (%s) = %s, want %s", c.CustomerID, c.RFMScore(), c.Segment, seg)
		}
	}

	if exportPath != "Need_Attention.csv" {
		t.Errorf("export path = %q, want Need_Attention.csv", exportPath)
	}
	if !reflect.DeepEqual(exported, []string{"12004", "12005"}) {
		t.Errorf("exported = %v", exported)
	}
	if pub.published != 1 {
		t.Errorf("publisher called %d times, want 1", pub.published)
	}
}

func TestRun_ExportPathFollowsSegment(t *testing.T) {
	var exportPath string
	saver := &MockSaver{SaveSegmentFunc: func(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error {
		exportPath = dest
		return nil
	}}

	_, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:  sourceOf(retailRows()),
		Segment: domain.SegmentChampions,
		Saver:   saver,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if exportPath != "Champions.csv" {
		t.Errorf("export path = %q, want Champions.csv", exportPath)
	}
}

func TestRun_DerivedReferenceDate(t *testing.T) {
	state, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:     sourceOf(retailRows()),
		SkipExport: true,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if want := (civil.Date{Year: 2010, Month: 12, Day: 11}); state.Run.ReferenceDate != want {
		t.Errorf("reference date = %v, want %v", state.Run.ReferenceDate, want)
	}
	if len(state.Summary) == 0 {
		t.Error("expected a segment summary")
	}
}

func TestRun_Errors(t *testing.T) {
	early := civil.Date{Year: 2010, Month: 12, Day: 5}
	sinkDown := errors.New("connection refused")

	tests := []struct {
		name    string
		opts    pipeline.Options
		wantErr error
	}{
		{
			name: "source missing",
			opts: pipeline.Options{Source: &MockSource{LoadFunc: func(ctx context.Context) ([]domain.Row, error) {
				return nil, domain.ErrInputNotFound
			}}},
			wantErr: domain.ErrInputNotFound,
		},
		{
			name:    "reference date before purchases",
			opts:    pipeline.Options{Source: sourceOf(retailRows()), ReferenceDate: &early, SkipExport: true},
			wantErr: domain.ErrInvalidReferenceDate,
		},
		{
			name:    "too few customers",
			opts:    pipeline.Options{Source: sourceOf(retailRows()[:3]), SkipExport: true},
			wantErr: domain.ErrInsufficientData,
		},
		{
			name:    "nothing survives cleaning",
			opts:    pipeline.Options{Source: sourceOf(retailRows()[55:]), SkipExport: true},
			wantErr: domain.ErrInsufficientData,
		},
		{
			name:    "unknown segment",
			opts:    pipeline.Options{Source: sourceOf(retailRows()), Segment: "Whales"},
			wantErr: domain.ErrUnknownSegment,
		},
		{
			name: "export fails",
			opts: pipeline.Options{Source: sourceOf(retailRows()), Saver: &MockSaver{
				SaveSegmentFunc: func(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error {
					return domain.ErrOutputWrite
				},
			}},
			wantErr: domain.ErrOutputWrite,
		},
		{
			name: "sink fails",
			opts: pipeline.Options{Source: sourceOf(retailRows()), SkipExport: true, Publishers: []pipeline.Publisher{
				&MockPublisher{PublishFunc: func(ctx context.Context, run domain.Run, customers []domain.Customer) error {
					return sinkDown
				}},
			}},
			wantErr: domain.ErrOutputWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.Run(context.Background(), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewSegmentationPipeline_Steps(t *testing.T) {
	tests := []struct {
		name string
		opts pipeline.Options
		want []string
	}{
		{
			name: "full",
			opts: pipeline.Options{Source: sourceOf(nil), Publishers: []pipeline.Publisher{&MockPublisher{}}},
			want: []string{"load", "clean", "aggregate", "score", "segment", "export", "publish"},
		},
		{
			name: "analysis only",
			opts: pipeline.Options{Source: sourceOf(nil), SkipExport: true},
			want: []string{"load", "clean", "aggregate", "score", "segment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.NewSegmentationPipeline(tt.opts)
			if err != nil {
				t.Fatalf("NewSegmentationPipeline() error: %v", err)
			}
			if got := p.Steps(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Steps() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := pipeline.NewSegmentationPipeline(pipeline.Options{Input: "data/online_retail_II.json"}); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch for unsupported input, got %v", err)
	}
}

// failingStep always fails.
type failingStep struct{}

func (failingStep) Name() string { return "explode" }

func (failingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	return domain.ErrOutputWrite
}

func TestPipeline_ExecuteWrapsStep(t *testing.T) {
	p := pipeline.NewPipeline(&pipeline.ScoreStep{}, failingStep{})

	// Score on no metrics fails first.
	err := p.Execute(context.Background(), &pipeline.PipelineState{})
	if err == nil || !strings.HasPrefix(err.Error(), "pipeline step 1 (score) failed:") {
		t.Errorf("Execute() error = %v", err)
	}

	p = pipeline.NewPipeline(failingStep{})
	err = p.Execute(context.Background(), &pipeline.PipelineState{})
	if !errors.Is(err, domain.ErrOutputWrite) {
		t.Errorf("Execute() error = %v, want wrapped ErrOutputWrite", err)
	}
}
