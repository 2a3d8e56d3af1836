package sim

import (
	"context"
	"fmt"
	"sync"
)

// Builder constructs an independent simulator for one seed. Each call must
// return its own set and random generator.
type Builder func(seed int64) (*Simulator, error)

// Ensemble runs the same configuration under consecutive seeds concurrently
// and keeps the best-scoring result.
type Ensemble struct {
	build     Builder
	numRuns   int
	seedStart int64
}

func NewEnsemble(build Builder, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart}
}

func (e *Ensemble) Run(ctx context.Context, cfg RunConfig) ([]*Result, error) {
	if e.numRuns < 1 {
		return nil, fmt.Errorf("ensemble needs at least one run, got %d", e.numRuns)
	}

	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			s, err := e.build(e.seedStart + int64(idx))
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = s.Run(ctx, cfg)
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", e.seedStart+int64(i), err)
		}
	}

	return results, nil
}

// Best returns the index of the result with the lowest (or, when lower is
// false, the highest) value of the named metric. Results missing the metric
// are ignored; -1 means none had it.
func Best(results []*Result, metric string, lower bool) int {
	best := -1
	for i, r := range results {
		if r == nil {
			continue
		}
		v, ok := r.Metrics[metric]
		if !ok {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cur := results[best].Metrics[metric]
		if (lower && v < cur) || (!lower && v > cur) {
			best = i
		}
	}
	return best
}
