package sim_test

import (
	"context"
	"errors"
	"io"
	"math/rand"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
	"github.com/san-kum/spherelax/internal/sim"
)

type recordingExporter struct {
	steps []int
	fail  bool
}

func (e *recordingExporter) Export(s dynamo.Snapshot) error {
	e.steps = append(e.steps, s.Step)
	if e.fail {
		return &dynamo.ExportError{Op: "create", Path: "/nope/scene.scad", Err: errors.New("read-only file system")}
	}
	return nil
}

type countingMetric struct{ n int }

func (m *countingMetric) Name() string            { return "count" }
func (m *countingMetric) Observe(dynamo.Snapshot) { m.n++ }
func (m *countingMetric) Value() float64          { return float64(m.n) }
func (m *countingMetric) Reset()                  { m.n = 0 }

func newSimulator(seed int64) *sim.Simulator {
	s := sim.New(randomRelaxer(8, seed, physics.Hard, physics.NewSchedule(5, 0.01, 0.0003)))
	s.SetLogger(log.New(io.Discard))
	return s
}

var _ = Describe("Simulator", func() {
	var (
		s   *sim.Simulator
		ctx context.Context
	)

	BeforeEach(func() {
		s = newSimulator(42)
		ctx = context.Background()
	})

	It("runs exactly the configured number of steps", func() {
		m := &countingMetric{}
		s.AddMetric(m)

		res, err := s.Run(ctx, sim.RunConfig{Steps: 120, SampleEvery: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(Equal(120))
		Expect(res.Final.Step).To(Equal(120))
		Expect(res.History).To(HaveLen(12))
		Expect(res.History[0].Step).To(Equal(10))
		Expect(res.Metrics).To(HaveKeyWithValue("count", 120.0))
		Expect(res.Canceled).To(BeFalse())
	})

	It("hands observers a snapshot after every committed step", func() {
		var seen []int
		s.AddObserver(sim.ObserverFunc(func(snap dynamo.Snapshot) {
			Expect(snap.Len()).To(Equal(8))
			seen = append(seen, snap.Step)
		}))

		_, err := s.Run(ctx, sim.RunConfig{Steps: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]int{1, 2, 3, 4, 5}))
	})

	It("exports on cadence without duplicating the final export", func() {
		exp := &recordingExporter{}
		s.SetExporter(exp)

		_, err := s.Run(ctx, sim.RunConfig{Steps: 100, ExportEvery: 25, FinalExport: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(exp.steps).To(Equal([]int{25, 50, 75, 100}))
	})

	It("exports once more at termination when the budget is off cadence", func() {
		exp := &recordingExporter{}
		s.SetExporter(exp)

		_, err := s.Run(ctx, sim.RunConfig{Steps: 60, ExportEvery: 25, FinalExport: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(exp.steps).To(Equal([]int{25, 50, 60}))
	})

	It("keeps running when an export fails", func() {
		exp := &recordingExporter{fail: true}
		s.SetExporter(exp)

		res, err := s.Run(ctx, sim.RunConfig{Steps: 30, ExportEvery: 10, FinalExport: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(Equal(30))
		Expect(res.ExportErrors).To(HaveLen(3))
		Expect(errors.Is(res.ExportErrors[0], dynamo.ErrIO)).To(BeTrue())
		Expect(s.Relaxer().Set().IsValid()).To(BeTrue())
	})

	It("runs until canceled when no budget is set", func() {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		s.AddObserver(sim.ObserverFunc(func(snap dynamo.Snapshot) {
			if snap.Step == 30 {
				cancel()
			}
		}))
		exp := &recordingExporter{}
		s.SetExporter(exp)

		res, err := s.Run(cctx, sim.RunConfig{FinalExport: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Canceled).To(BeTrue())
		Expect(res.Steps).To(Equal(30))
		Expect(exp.steps).To(Equal([]int{30}))
	})

	It("rejects negative budgets", func() {
		_, err := s.Run(ctx, sim.RunConfig{Steps: -1})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})

	It("stops with ErrUnstable when positions diverge", func() {
		rng := rand.New(rand.NewSource(1))
		set, err := dynamo.NewSet(4, radius, dynamo.ConstantWeight(1), rng)
		Expect(err).NotTo(HaveOccurred())
		f := physics.NewForce(0.5, radius, physics.Soft)
		f.Restore = 1e308
		unstable := sim.New(sim.NewRelaxer(set, f, physics.NewSchedule(1, 0, 0), rng))
		unstable.SetLogger(log.New(io.Discard))

		_, err = unstable.Run(ctx, sim.RunConfig{Steps: 50, ValidateState: true})
		Expect(errors.Is(err, dynamo.ErrUnstable)).To(BeTrue())

		var stepErr *sim.StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Step).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one independent simulator per seed", func() {
		ens := sim.NewEnsemble(func(seed int64) (*sim.Simulator, error) {
			s := newSimulator(seed)
			s.AddMetric(&countingMetric{})
			return s, nil
		}, 3, 10)

		results, err := ens.Run(context.Background(), sim.RunConfig{Steps: 20})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for _, r := range results {
			Expect(r.Steps).To(Equal(20))
		}
		Expect(results[0].Final.Positions).NotTo(Equal(results[1].Final.Positions))
	})

	It("propagates build errors", func() {
		ens := sim.NewEnsemble(func(seed int64) (*sim.Simulator, error) {
			return nil, &dynamo.ConfigError{Field: "count", Value: 0, Reason: "must be positive"}
		}, 2, 0)

		_, err := ens.Run(context.Background(), sim.RunConfig{Steps: 1})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})

	It("picks the best result by metric", func() {
		results := []*sim.Result{
			{Metrics: map[string]float64{"e": 3}},
			nil,
			{Metrics: map[string]float64{"e": 1}},
			{Metrics: map[string]float64{}},
			{Metrics: map[string]float64{"e": 5}},
		}
		Expect(sim.Best(results, "e", true)).To(Equal(2))
		Expect(sim.Best(results, "e", false)).To(Equal(4))
		Expect(sim.Best(results, "missing", true)).To(Equal(-1))
	})
})
