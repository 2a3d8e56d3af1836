package sim

import "github.com/san-kum/spherelax/internal/dynamo"

// Metric accumulates a scalar over the committed steps of a run.
type Metric interface {
	Name() string
	Observe(s dynamo.Snapshot)
	Value() float64
	Reset()
}

// Observer receives a read-only snapshot after every committed step.
type Observer interface {
	OnStep(s dynamo.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s dynamo.Snapshot)

func (f ObserverFunc) OnStep(s dynamo.Snapshot) { f(s) }

// Exporter persists a snapshot, typically as a scene file.
type Exporter interface {
	Export(s dynamo.Snapshot) error
}

type RunConfig struct {
	// Steps is the iteration budget; 0 runs until the context is canceled.
	Steps int
	// ExportEvery exports after every K committed steps; 0 disables.
	ExportEvery int
	// SampleEvery records a history sample every K steps; 0 disables.
	SampleEvery   int
	FinalExport   bool
	ValidateState bool
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		Steps:         2000,
		SampleEvery:   10,
		FinalExport:   true,
		ValidateState: true,
	}
}

// Sample is one point of the convergence history.
type Sample struct {
	Step        int     `json:"step"`
	Temperature float64 `json:"temperature"`
	MinDistance float64 `json:"min_distance"`
	Energy      float64 `json:"energy"`
}

type Result struct {
	Steps        int
	Temperature  float64
	Metrics      map[string]float64
	History      []Sample
	ExportErrors []error
	Final        dynamo.Snapshot
	Canceled     bool
}
