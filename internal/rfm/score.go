package rfm

import (
	"fmt"
	"sort"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// Buckets is the number of quantile buckets each metric is split into.
const Buckets = 5

// Quantile assigns each value a 1-based bucket so that the buckets hold
// equal shares of the population, ordered by value. Bucket sizes differ
// by at most one; the lower buckets take the remainder. Equal values keep
// their input order, so a run of ties may straddle a bucket boundary.
//
// It fails with ErrInsufficientData when fewer than n distinct values exist.
func Quantile(values []float64, n int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Quantile: bucket count %d must be positive", n)
	}

	distinct := make(map[float64]struct{}, len(values))
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	if len(distinct) < n {
		return nil, fmt.Errorf("Quantile: %d distinct values for %d buckets: %w", len(distinct), n, domain.ErrInsufficientData)
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	// NTILE: the first total%n buckets hold one extra member.
	total := len(values)
	size, extra := total/n, total%n
	buckets := make([]int, total)
	rank := 0
	for b := 1; b <= n; b++ {
		members := size
		if b <= extra {
			members++
		}
		for k := 0; k < members; k++ {
			buckets[order[rank]] = b
			rank++
		}
	}

	return buckets, nil
}

// Score buckets recency, frequency and monetary independently. Recency is
// inverted so the most recent customers score 5.
func Score(metrics []domain.Metrics) ([]domain.Scored, error) {
	recency := make([]float64, len(metrics))
	frequency := make([]float64, len(metrics))
	monetary := make([]float64, len(metrics))
	for i, m := range metrics {
		recency[i] = float64(m.Recency)
		frequency[i] = float64(m.Frequency)
		monetary[i] = m.Monetary.InexactFloat64()
	}

	rb, err := Quantile(recency, Buckets)
	if err != nil {
		return nil, fmt.Errorf("Score: recency: %w", err)
	}
	fb, err := Quantile(frequency, Buckets)
	if err != nil {
		return nil, fmt.Errorf("Score: frequency: %w", err)
	}
	mb, err := Quantile(monetary, Buckets)
	if err != nil {
		return nil, fmt.Errorf("Score: monetary: %w", err)
	}

	scored := make([]domain.Scored, len(metrics))
	for i, m := range metrics {
		scored[i] = domain.Scored{
			Metrics:        m,
			RecencyScore:   Buckets + 1 - rb[i],
			FrequencyScore: fb[i],
			MonetaryScore:  mb[i],
		}
	}
	return scored, nil
}
