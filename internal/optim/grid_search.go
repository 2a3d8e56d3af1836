package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/experiment"
)

// BuildFunc turns one grid point into a runnable experiment.
type BuildFunc func(params map[string]float64) (*experiment.Experiment, error)

// Trial is the outcome of one grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Lower selects minimisation; set it to false for metrics such as
	// min_distance where larger is better.
	Lower  bool
	trials []Trial
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, Lower: true}
}

// Search runs every combination of the parameter ranges and returns the
// best point with its metric value. Failed points are kept in Trials but do
// not stop the search; cancellation does.
func (g *GridSearch) Search(ctx context.Context, build BuildFunc, metricName string) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	g.trials = g.trials[:0]
	best := math.Inf(1)
	if !g.Lower {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64

	g.searchRecursive(ctx, 0, make(map[string]float64), build, metricName, &best, &bestParams)

	if err := ctx.Err(); err != nil {
		return bestParams, best, err
	}
	if bestParams == nil {
		return nil, best, fmt.Errorf("no grid point produced metric %q", metricName)
	}
	return bestParams, best, nil
}

// Trials returns every evaluated point of the last search in visit order.
func (g *GridSearch) Trials() []Trial {
	return g.trials
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	build BuildFunc,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) {
	if ctx.Err() != nil {
		return
	}

	if depth == len(g.paramNames) {
		trial := Trial{Params: current}
		defer func() { g.trials = append(g.trials, trial) }()

		exp, err := build(current)
		if err != nil {
			trial.Err = err
			return
		}

		result, err := exp.Run(ctx)
		if err != nil {
			trial.Err = err
			return
		}
		if result.Canceled {
			trial.Err = ctx.Err()
			return
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			trial.Err = fmt.Errorf("metric %q not recorded", metricName)
			return
		}
		trial.Value = val

		if (g.Lower && val < *best) || (!g.Lower && val > *best) {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.searchRecursive(ctx, depth+1, newParams, build, metricName, best, bestParams)
	}
}

// Tunable lists the parameter names Apply understands.
func Tunable() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var setters = map[string]func(*config.Config, float64){
	"base":      func(c *config.Config, v float64) { c.Schedule.Base = v },
	"decay":     func(c *config.Config, v float64) { c.Schedule.Decay = v },
	"floor":     func(c *config.Config, v float64) { c.Schedule.Floor = v },
	"repulsion": func(c *config.Config, v float64) { c.Force.Repulsion = v },
	"restore":   func(c *config.Config, v float64) { c.Force.Restore = v },
}

// Apply returns a copy of cfg with params written into it.
func Apply(cfg *config.Config, params map[string]float64) (*config.Config, error) {
	out := cfg.Clone()
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter: %s", name)
		}
		set(out, v)
	}
	return out, nil
}

// ConfigBuilder builds experiments from cfg with the grid point applied.
// Exports are disabled so that trials do not overwrite each other.
func ConfigBuilder(cfg *config.Config) BuildFunc {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		c, err := Apply(cfg, params)
		if err != nil {
			return nil, err
		}
		c.Export.Path = ""
		return experiment.New(c)
	}
}
