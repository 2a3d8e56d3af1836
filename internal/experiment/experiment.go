package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/export"
	"github.com/san-kum/spherelax/internal/metrics"
	"github.com/san-kum/spherelax/internal/sim"
)

// PreviewSize is the edge length in pixels of SVG previews written next to
// exported scenes.
const PreviewSize = 512

// Experiment is one configured relaxation: a seeded set, the force model,
// the schedule and a simulator with the default metrics attached.
type Experiment struct {
	cfg       *config.Config
	rng       *rand.Rand
	set       *dynamo.Set
	relaxer   *sim.Relaxer
	simulator *sim.Simulator
	sink      *export.FileSink
}

func New(cfg *config.Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weights, err := cfg.WeightDist()
	if err != nil {
		return nil, err
	}
	force, err := cfg.PhysicsForce()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	set, err := dynamo.NewSet(cfg.Particles.Count, cfg.Particles.Radius, weights, rng)
	if err != nil {
		return nil, err
	}

	relaxer := sim.NewRelaxer(set, force, cfg.PhysicsSchedule(), rng)
	relaxer.SetWorkers(cfg.Run.Workers)

	simulator := sim.New(relaxer)
	for _, m := range metrics.Defaults() {
		simulator.AddMetric(m)
	}

	e := &Experiment{
		cfg:       cfg,
		rng:       rng,
		set:       set,
		relaxer:   relaxer,
		simulator: simulator,
	}

	if cfg.Export.Path != "" {
		sink, err := e.NewSink(cfg.Export.Path)
		if err != nil {
			return nil, err
		}
		e.sink = sink
		simulator.SetExporter(sink)
	}

	return e, nil
}

// NewSink builds a file sink at path using the configured scene settings.
func (e *Experiment) NewSink(path string) (*export.FileSink, error) {
	scene, err := e.cfg.Scene()
	if err != nil {
		return nil, err
	}
	sink := export.NewFileSink(path, scene)
	if e.cfg.Export.Preview {
		sink.Preview = export.NewPreview(PreviewSize, scene.BaseRadius)
		sink.Preview.UseWeights = scene.UseWeights
	}
	return sink, nil
}

func (e *Experiment) SetLogger(l *log.Logger) {
	e.simulator.SetLogger(l)
}

// Run executes the configured iteration budget.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.cfg.RunConfig())
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) Set() *dynamo.Set          { return e.set }
func (e *Experiment) Relaxer() *sim.Relaxer     { return e.relaxer }
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
func (e *Experiment) Sink() *export.FileSink    { return e.sink }

// Builder returns an ensemble builder running cfg under other seeds. File
// export is disabled for ensemble members; the caller exports the winner.
func Builder(cfg *config.Config, logger *log.Logger) sim.Builder {
	return func(seed int64) (*sim.Simulator, error) {
		c := cfg.Clone()
		c.Seed = seed
		c.Export.Path = ""
		e, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("build seed %d: %w", seed, err)
		}
		if logger != nil {
			e.SetLogger(logger.With("seed", seed))
		}
		return e.Simulator(), nil
	}
}
