package optim

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/optimize"
)

// Refine polishes a grid point with Nelder-Mead. Each objective evaluation
// is a full relaxation, so the budget is counted in evaluations. Points the
// builder rejects score +Inf and the simplex moves away from them.
type Refine struct {
	Names []string
	// MaxEvals caps objective evaluations; 0 means 50.
	MaxEvals int
	Lower    bool

	mu     sync.Mutex
	trials []Trial
}

func NewRefine(names []string, maxEvals int) *Refine {
	return &Refine{Names: names, MaxEvals: maxEvals, Lower: true}
}

// Search starts the simplex at start (ordered like Names) and returns the
// best point seen together with its metric value.
func (r *Refine) Search(ctx context.Context, build BuildFunc, metricName string, start map[string]float64) (map[string]float64, float64, error) {
	x0 := make([]float64, len(r.Names))
	for i, n := range r.Names {
		v, ok := start[n]
		if !ok {
			return nil, 0, fmt.Errorf("start point missing %s", n)
		}
		x0[i] = v
	}

	r.trials = r.trials[:0]
	maxEvals := r.MaxEvals
	if maxEvals <= 0 {
		maxEvals = 50
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return r.evaluate(ctx, build, metricName, x)
		},
	}
	settings := optimize.Settings{
		FuncEvaluations: maxEvals,
		Concurrent:      1,
	}

	result, err := optimize.Minimize(problem, x0, &settings, &optimize.NelderMead{})
	if cerr := ctx.Err(); cerr != nil {
		return nil, 0, cerr
	}
	if err != nil && result == nil {
		return nil, 0, err
	}
	if math.IsInf(result.F, 1) {
		return nil, 0, fmt.Errorf("no refined point produced metric %q", metricName)
	}

	best := r.params(result.X)
	value := result.F
	if !r.Lower {
		value = -value
	}
	return best, value, nil
}

// Trials returns every evaluated point in order.
func (r *Refine) Trials() []Trial {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Trial(nil), r.trials...)
}

func (r *Refine) params(x []float64) map[string]float64 {
	p := make(map[string]float64, len(r.Names))
	for i, n := range r.Names {
		p[n] = x[i]
	}
	return p
}

func (r *Refine) evaluate(ctx context.Context, build BuildFunc, metricName string, x []float64) float64 {
	trial := Trial{Params: r.params(x), Value: math.Inf(1)}
	defer func() {
		r.mu.Lock()
		r.trials = append(r.trials, trial)
		r.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		trial.Err = err
		return math.Inf(1)
	}

	exp, err := build(trial.Params)
	if err != nil {
		trial.Err = err
		return math.Inf(1)
	}
	result, err := exp.Run(ctx)
	if err != nil {
		trial.Err = err
		return math.Inf(1)
	}
	val, ok := result.Metrics[metricName]
	if !ok || math.IsNaN(val) {
		trial.Err = fmt.Errorf("metric %q not recorded", metricName)
		return math.Inf(1)
	}

	trial.Value = val
	if !r.Lower {
		return -val
	}
	return val
}
