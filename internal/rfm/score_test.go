package rfm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

func TestQuantile_BucketSizes(t *testing.T) {
	for _, n := range []int{5, 6, 12, 23, 100, 4312} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			values := make([]float64, n)
			for i := range values {
				// Deliberately unsorted with repeats.
				values[i] = float64((i * 7919) % 97)
			}

			buckets, err := Quantile(values, Buckets)
			if err != nil {
				t.Fatalf("Quantile() error: %v", err)
			}

			sizes := make(map[int]int)
			for _, b := range buckets {
				if b < 1 || b > Buckets {
					t.Fatalf("bucket %d out of range", b)
				}
				sizes[b]++
			}

			lo, hi := n/Buckets, (n+Buckets-1)/Buckets
			for b := 1; b <= Buckets; b++ {
				if sizes[b] < lo || sizes[b] > hi {
					t.Errorf("bucket %d has %d members, want %d..%d", b, sizes[b], lo, hi)
				}
			}
		})
	}
}

func TestQuantile_Monotonic(t *testing.T) {
	values := []float64{50, 3, 3, 8, 1, 99, 42, 7, 7, 7, 15, 0, 23}
	buckets, err := Quantile(values, Buckets)
	if err != nil {
		t.Fatalf("Quantile() error: %v", err)
	}

	for i := range values {
		for j := range values {
			if values[i] < values[j] && buckets[i] > buckets[j] {
				t.Errorf("value %v in bucket %d above value %v in bucket %d", values[i], buckets[i], values[j], buckets[j])
			}
		}
	}
}

func TestQuantile_InsufficientDistinctValues(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"four customers", []float64{1, 2, 3, 4}},
		{"four distinct values", []float64{1, 1, 2, 2, 3, 3, 4, 4, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Quantile(tt.values, Buckets)
			if !errors.Is(err, domain.ErrInsufficientData) {
				t.Errorf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

func population() []domain.Metrics {
	metrics := []domain.Metrics{
		{CustomerID: "A", Recency: 1, Frequency: 50, Monetary: decimal.NewFromInt(5000)},
		{CustomerID: "B", Recency: 400, Frequency: 1, Monetary: decimal.NewFromInt(10)},
		{CustomerID: "C", Recency: 30, Frequency: 5, Monetary: decimal.NewFromInt(300)},
	}
	for i := 0; i < 22; i++ {
		metrics = append(metrics, domain.Metrics{
			CustomerID: fmt.Sprintf("P%02d", i),
			Recency:    10 + i*10,
			Frequency:  2 + i,
			Monetary:   decimal.NewFromInt(int64(20 + i*15)),
		})
	}
	return metrics
}

func TestScore_TopCustomer(t *testing.T) {
	scored, err := Score(population())
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	top := scored[0]
	if !strings.HasPrefix(top.RFMScore(), "55") {
		t.Errorf("RFMScore() = %q, want 5** prefix", top.RFMScore())
	}

	worst := scored[1]
	if worst.RecencyScore != 1 || worst.FrequencyScore != 1 {
		t.Errorf("least active customer scored %s, want 11*", worst.RFMScore())
	}
}

func TestScore_Directions(t *testing.T) {
	scored, err := Score(population())
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	for _, a := range scored {
		for _, b := range scored {
			if a.Recency < b.Recency && a.RecencyScore < b.RecencyScore {
				t.Errorf("recency %d scored %d below recency %d scored %d", a.Recency, a.RecencyScore, b.Recency, b.RecencyScore)
			}
			if a.Frequency < b.Frequency && a.FrequencyScore > b.FrequencyScore {
				t.Errorf("frequency %d scored %d above frequency %d scored %d", a.Frequency, a.FrequencyScore, b.Frequency, b.FrequencyScore)
			}
			if a.Monetary.LessThan(b.Monetary) && a.MonetaryScore > b.MonetaryScore {
				t.Errorf("monetary %s scored %d above monetary %s scored %d", a.Monetary, a.MonetaryScore, b.Monetary, b.MonetaryScore)
			}
		}
	}
}

func TestScore_InsufficientData(t *testing.T) {
	metrics := population()
	for i := range metrics {
		metrics[i].Frequency = 1 + i%3
	}

	_, err := Score(metrics)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if !strings.Contains(err.Error(), "frequency") {
		t.Errorf("error should name the metric: %v", err)
	}
}
