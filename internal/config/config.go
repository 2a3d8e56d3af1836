package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/export"
	"github.com/san-kum/spherelax/internal/physics"
	"github.com/san-kum/spherelax/internal/sim"
)

const (
	DefaultCount       = 100
	DefaultRadius      = 2.0
	DefaultRepulsion   = 0.5
	DefaultRestore     = 0.1
	DefaultBase        = 5.0
	DefaultDecay       = 0.01
	DefaultFloor       = 0.0003
	DefaultSteps       = 2000
	DefaultSampleEvery = 10
	DefaultBaseRadius  = 0.5
	DefaultPath        = "spherelax.scad"
)

type Config struct {
	Name      string          `yaml:"name" json:"name"`
	Seed      int64           `yaml:"seed" json:"seed"`
	Particles ParticlesConfig `yaml:"particles" json:"particles"`
	Force     ForceConfig     `yaml:"force" json:"force"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	Run       RunSection      `yaml:"run" json:"run"`
	Export    ExportConfig    `yaml:"export" json:"export"`
}

type ParticlesConfig struct {
	Count   int          `yaml:"count" json:"count"`
	Radius  float64      `yaml:"radius" json:"radius"`
	Weights WeightConfig `yaml:"weights" json:"weights"`
}

// WeightConfig is either {kind: constant, value: w} or
// {kind: uniform, min: lo, max: hi}.
type WeightConfig struct {
	Kind  string  `yaml:"kind" json:"kind"`
	Value float64 `yaml:"value" json:"value"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
}

type ForceConfig struct {
	Repulsion   float64 `yaml:"repulsion" json:"repulsion"`
	Restore     float64 `yaml:"restore" json:"restore"`
	Confinement string  `yaml:"confinement" json:"confinement"`
}

type ScheduleConfig struct {
	Base  float64 `yaml:"base" json:"base"`
	Decay float64 `yaml:"decay" json:"decay"`
	Floor float64 `yaml:"floor" json:"floor"`
}

type RunSection struct {
	Steps       int  `yaml:"steps" json:"steps"`
	ExportEvery int  `yaml:"export_every" json:"export_every"`
	SampleEvery int  `yaml:"sample_every" json:"sample_every"`
	FinalExport bool `yaml:"final_export" json:"final_export"`
	Workers     int  `yaml:"workers" json:"workers"`
}

type ExportConfig struct {
	Path        string  `yaml:"path" json:"path"`
	Mode        string  `yaml:"mode" json:"mode"`
	BaseRadius  float64 `yaml:"base_radius" json:"base_radius"`
	ShellOffset float64 `yaml:"shell_offset" json:"shell_offset"`
	UseWeights  bool    `yaml:"use_weights" json:"use_weights"`
	Resolution  int     `yaml:"resolution" json:"resolution"`
	Precision   int     `yaml:"precision" json:"precision"`
	Preview     bool    `yaml:"preview" json:"preview"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "default",
		Seed: 1,
		Particles: ParticlesConfig{
			Count:   DefaultCount,
			Radius:  DefaultRadius,
			Weights: WeightConfig{Kind: "constant", Value: 1},
		},
		Force: ForceConfig{
			Repulsion:   DefaultRepulsion,
			Restore:     DefaultRestore,
			Confinement: "hard",
		},
		Schedule: ScheduleConfig{
			Base:  DefaultBase,
			Decay: DefaultDecay,
			Floor: DefaultFloor,
		},
		Run: RunSection{
			Steps:       DefaultSteps,
			SampleEvery: DefaultSampleEvery,
			FinalExport: true,
			Workers:     1,
		},
		Export: ExportConfig{
			Path:        DefaultPath,
			Mode:        "solid",
			BaseRadius:  DefaultBaseRadius,
			ShellOffset: DefaultBaseRadius / 5,
			Resolution:  export.DefaultResolution,
			Precision:   export.DefaultPrecision,
		},
	}
}

// Load reads a YAML file over DefaultConfig, so omitted keys keep their
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over a copy of base, so omitted keys keep the
// values of base (a preset, for example). base is not modified.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy; Config holds no references.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

func (c *Config) Validate() error {
	p := c.Particles
	if p.Count <= 0 {
		return &dynamo.ConfigError{Field: "particles.count", Value: p.Count, Reason: "must be positive"}
	}
	if !(p.Radius > 0) || math.IsInf(p.Radius, 0) {
		return &dynamo.ConfigError{Field: "particles.radius", Value: p.Radius, Reason: "must be positive"}
	}
	weights, err := c.WeightDist()
	if err != nil {
		return err
	}
	force, err := c.PhysicsForce()
	if err != nil {
		return err
	}
	if err := force.Validate(); err != nil {
		return err
	}
	if err := c.PhysicsSchedule().Validate(); err != nil {
		return err
	}
	if c.Run.Steps < 0 {
		return &dynamo.ConfigError{Field: "run.steps", Value: c.Run.Steps, Reason: "must not be negative"}
	}
	if c.Run.ExportEvery < 0 {
		return &dynamo.ConfigError{Field: "run.export_every", Value: c.Run.ExportEvery, Reason: "must not be negative"}
	}
	if c.Run.SampleEvery < 0 {
		return &dynamo.ConfigError{Field: "run.sample_every", Value: c.Run.SampleEvery, Reason: "must not be negative"}
	}
	if c.Run.Workers < 0 {
		return &dynamo.ConfigError{Field: "run.workers", Value: c.Run.Workers, Reason: "must not be negative"}
	}

	scene, err := c.Scene()
	if err != nil {
		return err
	}
	if err := scene.Validate(); err != nil {
		return err
	}
	if scene.Mode == export.Shell {
		smallest := scene.BaseRadius
		if scene.UseWeights {
			smallest = dynamo.Particle{Weight: weights.Min()}.Radius(scene.BaseRadius)
		}
		if scene.ShellOffset >= smallest {
			return &dynamo.ConfigError{
				Field:  "export.shell_offset",
				Value:  scene.ShellOffset,
				Reason: fmt.Sprintf("must be smaller than the smallest sphere radius %g", smallest),
			}
		}
	}
	return nil
}

func (c *Config) WeightDist() (dynamo.WeightDist, error) {
	w := c.Particles.Weights
	switch w.Kind {
	case "", "constant":
		v := w.Value
		if v == 0 && w.Kind == "" {
			v = 1
		}
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, &dynamo.ConfigError{Field: "particles.weights.value", Value: v, Reason: "must be positive"}
		}
		return dynamo.ConstantWeight(v), nil
	case "uniform":
		if !(w.Min > 0) {
			return nil, &dynamo.ConfigError{Field: "particles.weights.min", Value: w.Min, Reason: "must be positive"}
		}
		if w.Max < w.Min || math.IsInf(w.Max, 0) {
			return nil, &dynamo.ConfigError{Field: "particles.weights.max", Value: w.Max, Reason: "must not be below min"}
		}
		return dynamo.UniformWeight{Lo: w.Min, Hi: w.Max}, nil
	default:
		return nil, &dynamo.ConfigError{Field: "particles.weights.kind", Value: w.Kind, Reason: "want constant or uniform"}
	}
}

func (c *Config) PhysicsForce() (*physics.Force, error) {
	mode, err := physics.ParseConfinement(c.Force.Confinement)
	if err != nil {
		return nil, err
	}
	f := physics.NewForce(c.Force.Repulsion, c.Particles.Radius, mode)
	f.Restore = c.Force.Restore
	return f, nil
}

func (c *Config) PhysicsSchedule() physics.Schedule {
	return physics.NewSchedule(c.Schedule.Base, c.Schedule.Decay, c.Schedule.Floor)
}

func (c *Config) Scene() (*export.Scene, error) {
	mode, err := export.ParseSceneMode(c.Export.Mode)
	if err != nil {
		return nil, err
	}
	sc := export.NewScene(mode, c.Export.BaseRadius)
	sc.ShellOffset = c.Export.ShellOffset
	sc.UseWeights = c.Export.UseWeights
	sc.Resolution = c.Export.Resolution
	sc.Precision = c.Export.Precision
	return sc, nil
}

func (c *Config) RunConfig() sim.RunConfig {
	rc := sim.DefaultRunConfig()
	rc.Steps = c.Run.Steps
	rc.ExportEvery = c.Run.ExportEvery
	rc.SampleEvery = c.Run.SampleEvery
	rc.FinalExport = c.Run.FinalExport
	return rc
}
