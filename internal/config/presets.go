package config

import "sort"

// Presets are named starting points. None of them is canonical; thomson
// reproduces the classic hard-sphere run the project started from.
var Presets = map[string]func() *Config{
	"thomson": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "thomson"
		cfg.Export.Path = "thomson.scad"
		return cfg
	},
	"quick": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "quick"
		cfg.Particles.Count = 12
		cfg.Particles.Radius = 1
		cfg.Schedule.Decay = 0.02
		cfg.Run.Steps = 800
		cfg.Export.Path = "quick.scad"
		cfg.Export.BaseRadius = 0.3
		cfg.Export.ShellOffset = 0.06
		return cfg
	},
	"weighted-shell": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "weighted-shell"
		cfg.Particles.Weights = WeightConfig{Kind: "uniform", Min: 0.5, Max: 2}
		cfg.Force.Repulsion = 0.05
		cfg.Force.Confinement = "soft"
		cfg.Run.Steps = 4000
		cfg.Export.Path = "weighted_shell.scad"
		cfg.Export.Mode = "shell"
		cfg.Export.UseWeights = true
		cfg.Export.BaseRadius = 0.4
		cfg.Export.ShellOffset = 0.1
		cfg.Export.Resolution = 100
		return cfg
	},
	"ball": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "ball"
		cfg.Particles.Count = 200
		cfg.Force.Repulsion = 0.1
		cfg.Force.Restore = 0.5
		cfg.Force.Confinement = "soft"
		cfg.Run.Steps = 3000
		cfg.Export.Path = "ball.scad"
		cfg.Export.BaseRadius = 0.35
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
