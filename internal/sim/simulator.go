package sim

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
)

// Simulator is the driver loop: it steps a Relaxer, feeds snapshots to
// observers and metrics, and exports on a cadence.
type Simulator struct {
	relaxer   *Relaxer
	exporter  Exporter
	metrics   []Metric
	observers []Observer
	logger    *log.Logger
}

func New(r *Relaxer) *Simulator {
	return &Simulator{
		relaxer:   r,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		logger:    log.Default(),
	}
}

func (s *Simulator) AddMetric(m Metric)      { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)  { s.observers = append(s.observers, o) }
func (s *Simulator) SetExporter(e Exporter)  { s.exporter = e }
func (s *Simulator) SetLogger(l *log.Logger) { s.logger = l }
func (s *Simulator) Relaxer() *Relaxer       { return s.relaxer }
func (s *Simulator) Metrics() []Metric       { return s.metrics }
func (s *Simulator) Exporter() Exporter      { return s.exporter }
func (s *Simulator) Observers() []Observer   { return s.observers }

// Run steps until cfg.Steps is reached or ctx is canceled. Cancellation is
// not an error: the partial result is returned with Canceled set.
func (s *Simulator) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Metrics:      make(map[string]float64),
		History:      make([]Sample, 0, historyCap(cfg)),
		ExportErrors: make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	s.logger.Debug("relaxation started",
		"particles", s.relaxer.Set().Len(),
		"steps", cfg.Steps,
		"confinement", s.relaxer.Force().Mode,
		"cutoff", s.relaxer.Schedule().Cutoff(),
	)

	var snap dynamo.Snapshot
	for i := 0; cfg.Steps == 0 || i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			result.Canceled = true
		default:
		}
		if result.Canceled {
			break
		}

		t := s.relaxer.Step()
		snap = s.relaxer.Snapshot()
		result.Steps++
		result.Temperature = t

		if cfg.ValidateState && !s.relaxer.Set().IsValid() {
			return result, &StepError{Step: snap.Step, Wrapped: dynamo.ErrUnstable}
		}

		for _, obs := range s.observers {
			obs.OnStep(snap)
		}
		for _, m := range s.metrics {
			m.Observe(snap)
		}

		if cfg.SampleEvery > 0 && snap.Step%cfg.SampleEvery == 0 {
			result.History = append(result.History, Sampled(snap))
		}
		if cfg.ExportEvery > 0 && snap.Step%cfg.ExportEvery == 0 {
			s.export(snap, result)
		}
	}

	result.Final = s.relaxer.Snapshot()
	if cfg.FinalExport && !alreadyExported(cfg, result.Final.Step) {
		s.export(result.Final, result)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.logger.Debug("relaxation finished",
		"steps", result.Steps,
		"min_distance", dynamo.MinDistance(result.Final.Positions),
		"canceled", result.Canceled,
	)

	return result, nil
}

func (s *Simulator) export(snap dynamo.Snapshot, result *Result) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.Export(snap); err != nil {
		s.logger.Warn("export failed", "step", snap.Step, "err", err)
		result.ExportErrors = append(result.ExportErrors, err)
		return
	}
	s.logger.Debug("exported", "step", snap.Step)
}

func alreadyExported(cfg RunConfig, step int) bool {
	return cfg.ExportEvery > 0 && step > 0 && step%cfg.ExportEvery == 0
}

func historyCap(cfg RunConfig) int {
	if cfg.SampleEvery <= 0 || cfg.Steps <= 0 {
		return 0
	}
	return cfg.Steps/cfg.SampleEvery + 1
}

func validateRunConfig(cfg RunConfig) error {
	if cfg.Steps < 0 {
		return &dynamo.ConfigError{Field: "run.steps", Value: cfg.Steps, Reason: "must not be negative"}
	}
	if cfg.ExportEvery < 0 {
		return &dynamo.ConfigError{Field: "run.export_every", Value: cfg.ExportEvery, Reason: "must not be negative"}
	}
	if cfg.SampleEvery < 0 {
		return &dynamo.ConfigError{Field: "run.sample_every", Value: cfg.SampleEvery, Reason: "must not be negative"}
	}
	return nil
}

// Sampled computes the history sample for a snapshot. Energy is the
// logarithmic pair energy whose gradient is the repulsion force.
func Sampled(snap dynamo.Snapshot) Sample {
	return Sample{
		Step:        snap.Step,
		Temperature: snap.Temperature,
		MinDistance: dynamo.MinDistance(snap.Positions),
		Energy:      physics.LogEnergy(snap.Positions, snap.Weights),
	}
}

// StepError reports the step at which a run failed.
type StepError struct {
	Step    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error { return e.Wrapped }
