package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/spherelax/internal/metrics"
	"github.com/san-kum/spherelax/internal/sim"
)

// Registry maps metric names to constructors, with the direction in which
// each one improves.
type Registry struct {
	metrics map[string]func() sim.Metric
	lower   map[string]bool
}

func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]func() sim.Metric),
		lower:   make(map[string]bool),
	}

	r.register("min_distance", false, func() sim.Metric { return metrics.NewMinDistance() })
	r.register("log_energy", true, func() sim.Metric { return metrics.NewLogEnergy() })
	r.register("coulomb_energy", true, func() sim.Metric { return metrics.NewCoulombEnergy() })
	r.register("radius_spread", true, func() sim.Metric { return metrics.NewRadiusSpread() })
	r.register("nn_variation", true, func() sim.Metric { return metrics.NewUniformity() })

	return r
}

func (r *Registry) register(name string, lower bool, fn func() sim.Metric) {
	r.metrics[name] = fn
	r.lower[name] = lower
}

func (r *Registry) GetMetric(name string) (sim.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(), nil
}

// LowerIsBetter reports whether smaller values of the named metric are
// improvements.
func (r *Registry) LowerIsBetter(name string) (bool, error) {
	lower, ok := r.lower[name]
	if !ok {
		return false, fmt.Errorf("unknown metric: %s", name)
	}
	return lower, nil
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
