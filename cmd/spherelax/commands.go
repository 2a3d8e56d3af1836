package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/experiment"
	"github.com/san-kum/spherelax/internal/export"
	"github.com/san-kum/spherelax/internal/optim"
	"github.com/san-kum/spherelax/internal/sim"
	"github.com/san-kum/spherelax/internal/storage"
	"github.com/san-kum/spherelax/internal/viz"
)

var (
	restarts      int
	metricName    string
	noSave        bool
	jsonOut       bool
	stepsPerFrame int
	theme         string
	format        string
	svgSize       int
	gridParams    []string
	refineEvals   int
	force         bool
)

func runRelaxation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// Interrupting a run still writes the final export.
	ctx, stop := interruptContext()
	defer stop()

	logger.Info("relaxing", "name", cfg.Name, "particles", cfg.Particles.Count,
		"confinement", cfg.Force.Confinement, "steps", cfg.Run.Steps, "restarts", restarts)
	start := time.Now()

	var result *sim.Result
	if restarts > 1 {
		result, err = runEnsemble(ctx, cfg)
	} else {
		result, err = runSingle(ctx, cfg)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		if runID, err = st.Save(cfg, result); err != nil {
			return err
		}
	}

	if jsonOut {
		if err := storage.ExportJSONStdout(cfg, result); err != nil {
			return err
		}
	} else {
		printSummary(cfg, result, runID, elapsed)
	}

	if n := len(result.ExportErrors); n > 0 {
		return fmt.Errorf("%d of the exports failed: %w", n, errors.Join(result.ExportErrors...))
	}
	return nil
}

// interruptContext is canceled by SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSingle(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
	exp, err := experiment.New(cfg)
	if err != nil {
		return nil, err
	}
	exp.SetLogger(logger)
	return exp.Run(ctx)
}

// runEnsemble relaxes restarts seeds concurrently and exports only the best.
func runEnsemble(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
	lower, err := experiment.NewRegistry().LowerIsBetter(metricName)
	if err != nil {
		return nil, err
	}

	rc := cfg.RunConfig()
	rc.ExportEvery = 0
	ens := sim.NewEnsemble(experiment.Builder(cfg, logger), restarts, cfg.Seed)
	results, err := ens.Run(ctx, rc)
	if err != nil {
		return nil, err
	}

	best := sim.Best(results, metricName, lower)
	if best < 0 {
		return nil, fmt.Errorf("no restart recorded metric %q", metricName)
	}
	cfg.Seed += int64(best)
	result := results[best]
	logger.Info("best restart", "seed", cfg.Seed, metricName, result.Metrics[metricName])

	if cfg.Export.Path != "" && cfg.Run.FinalExport {
		exp, err := experiment.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := exp.Sink().Export(result.Final); err != nil {
			logger.Warn("export failed", "err", err)
			result.ExportErrors = append(result.ExportErrors, err)
		}
	}
	return result, nil
}

func printSummary(cfg *config.Config, result *sim.Result, runID string, elapsed time.Duration) {
	if result.Canceled {
		fmt.Printf("interrupted after %d steps\n", result.Steps)
	}
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	if runID != "" {
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("steps: %d\n", result.Steps)
	if cfg.Export.Path != "" && cfg.Run.FinalExport {
		fmt.Printf("scene: %s\n", export.NewFileSink(cfg.Export.Path, nil).PathFor(result.Final.Step))
	}
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}

	var exporter sim.Exporter
	if sink := exp.Sink(); sink != nil {
		exporter = sink
	}

	m := viz.NewModel(exp.Relaxer(), exporter, viz.Options{
		StepsPerFrame: stepsPerFrame,
		MaxSteps:      cfg.Run.Steps,
		BaseRadius:    cfg.Export.BaseRadius,
		UseWeights:    cfg.Export.UseWeights,
		Theme:         theme,
		Title:         cfg.Name,
	})

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(viz.Model); ok && fm.Err() != nil {
		return fm.Err()
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tPARTICLES\tSTEPS\tSEED\tLOG_ENERGY\tMIN_DIST")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.4f\t%.5f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Steps,
			run.Seed,
			run.Metrics["log_energy"],
			run.Metrics["min_distance"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		return fmt.Errorf("run %s has too few samples to plot", runID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("particles: %d\n", meta.Particles)
	fmt.Printf("samples: %d\n\n", len(history))

	series := []struct {
		caption string
		value   func(sim.Sample) float64
	}{
		{"minimum pair distance", func(s sim.Sample) float64 { return s.MinDistance }},
		{"log energy", func(s sim.Sample) float64 { return s.Energy }},
		{"temperature", func(s sim.Sample) float64 { return s.Temperature }},
	}

	for _, sr := range series {
		data := make([]float64, len(history))
		for i, s := range history {
			data[i] = sr.value(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sr.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	set, err := st.LoadParticles(runID)
	if err != nil {
		return err
	}
	snap := set.Snapshot(meta.Steps, meta.Temperature)

	cfg := meta.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg = cfg.Clone()
	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Export.Mode = exportMode
	}
	if changed("base-radius") {
		cfg.Export.BaseRadius = exportBaseRadius
	}
	if changed("shell-offset") {
		cfg.Export.ShellOffset = exportOffset
	}
	if changed("use-weights") {
		cfg.Export.UseWeights = exportUseWeights
	}
	if changed("resolution") {
		cfg.Export.Resolution = exportResolution
	}
	if changed("precision") {
		cfg.Export.Precision = exportPrecision
	}

	path := exportPath(runID)

	switch format {
	case "scad":
		scene, err := cfg.Scene()
		if err != nil {
			return err
		}
		if err := scene.WriteFile(path, snap); err != nil {
			return err
		}
	case "svg":
		p := export.NewPreview(svgSize, cfg.Export.BaseRadius)
		p.UseWeights = cfg.Export.UseWeights
		if err := p.WriteFile(path, snap); err != nil {
			return err
		}
	case "json":
		history, err := st.LoadHistory(runID)
		if err != nil {
			return err
		}
		result := &sim.Result{
			Steps:       meta.Steps,
			Temperature: meta.Temperature,
			Canceled:    meta.Canceled,
			Metrics:     meta.Metrics,
			History:     history,
			Final:       snap,
		}
		if err := storage.ExportJSON(path, cfg, result); err != nil {
			return err
		}
	default:
		return &dynamo.ConfigError{Field: "format", Value: format, Reason: "want scad, svg or json"}
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// exportPath is the -o value, or <run_id>.<format> when none was given.
func exportPath(runID string) string {
	if exportOut != "" {
		return exportOut
	}
	return fmt.Sprintf("%s.%s", runID, format)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tWEIGHTS\tCONFINEMENT\tREPULSION\tSTEPS\tMODE")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		weights, err := cfg.WeightDist()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%g\t%d\t%s\n",
			name,
			cfg.Particles.Count,
			weights,
			cfg.Force.Confinement,
			cfg.Force.Repulsion,
			cfg.Run.Steps,
			cfg.Export.Mode,
		)
	}
	return w.Flush()
}

func tuneSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	names, ranges, err := parseGrid(gridParams)
	if err != nil {
		return err
	}
	lower, err := experiment.NewRegistry().LowerIsBetter(metricName)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext()
	defer stop()

	g := optim.NewGridSearch(names, ranges)
	g.Lower = lower
	logger.Info("grid search", "axes", strings.Join(names, ","), "metric", metricName)

	best, value, err := g.Search(ctx, optim.ConfigBuilder(cfg), metricName)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(append(append([]string{}, names...), metricName), "\t")))
	for _, tr := range g.Trials() {
		cols := make([]string, 0, len(names)+1)
		for _, n := range names {
			cols = append(cols, strconv.FormatFloat(tr.Params[n], 'g', -1, 64))
		}
		if tr.Err != nil {
			cols = append(cols, "error: "+tr.Err.Error())
		} else {
			cols = append(cols, fmt.Sprintf("%.6f", tr.Value))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}

	if err != nil {
		return err
	}
	printBest("grid", names, best, value)

	if refineEvals <= 0 {
		return nil
	}
	r := optim.NewRefine(names, refineEvals)
	r.Lower = lower
	refined, rvalue, err := r.Search(ctx, optim.ConfigBuilder(cfg), metricName, best)
	if err != nil {
		return err
	}
	logger.Debug("refinement finished", "evaluations", len(r.Trials()))
	printBest("refined", names, refined, rvalue)
	return nil
}

func printBest(stage string, names []string, params map[string]float64, value float64) {
	fmt.Printf("\n%s best %s = %.6f at", stage, metricName, value)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, params[n])
	}
	fmt.Println()
}

// parseGrid reads "name=v1,v2" axes. Without any, base and decay are
// searched over a small default grid.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	if len(specs) == 0 {
		return []string{"base", "decay"}, [][]float64{{1, 5, 10}, {0.005, 0.01, 0.02}}, nil
	}

	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, s := range specs {
		name, values, ok := strings.Cut(s, "=")
		if !ok || values == "" {
			return nil, nil, fmt.Errorf("bad grid axis %q: want name=v1,v2", s)
		}
		if _, err := optim.Apply(config.DefaultConfig(), map[string]float64{name: 0}); err != nil {
			return nil, nil, fmt.Errorf("%w (tunable: %s)", err, strings.Join(optim.Tunable(), ", "))
		}
		var vals []float64
		for _, v := range strings.Split(values, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in %q: %w", s, err)
			}
			vals = append(vals, f)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	path := "spherelax.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func benchRelaxer(cmd *cobra.Command, args []string) error {
	counts := []int{50, 100, 200, 400}
	workerCounts := []int{1}
	if n := runtime.NumCPU(); n > 1 {
		workerCounts = append(workerCounts, n)
	}

	fmt.Printf("benchmarking %d steps\n\n", benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tWORKERS\tTIME\tSTEPS/SEC")

	for _, n := range counts {
		for _, wk := range workerCounts {
			cfg := config.DefaultConfig()
			cfg.Particles.Count = n
			cfg.Run.Steps = benchSteps
			cfg.Run.Workers = wk
			cfg.Run.FinalExport = false
			cfg.Export.Path = ""

			exp, err := experiment.New(cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			r := exp.Relaxer()
			for i := 0; i < benchSteps; i++ {
				r.Step()
			}
			elapsed := time.Since(start)

			fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\n",
				n, wk, elapsed.Round(time.Microsecond), float64(benchSteps)/elapsed.Seconds())
		}
	}

	return w.Flush()
}
