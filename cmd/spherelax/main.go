package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/dynamo"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	count       int
	radius      float64
	uniformMin  float64
	uniformMax  float64
	repulsion   float64
	restore     float64
	confinement string
	base        float64
	decay       float64
	floor       float64
	steps       int
	seed        int64
	workers     int
	exportEvery int
	outPath     string
	mode        string
	baseRadius  float64
	shellOffset float64
	useWeights  bool
	resolution  int
	precision   int
	preview     bool

	// export and bench flags share names with the run flags but not their
	// defaults.
	exportOut        string
	exportMode       string
	exportBaseRadius float64
	exportOffset     float64
	exportUseWeights bool
	exportResolution int
	exportPrecision  int

	benchSteps int

	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "spherelax"})
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error(err)
		if errors.Is(err, dynamo.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spherelax",
		Short:         "relax points on a sphere and export them as OpenSCAD",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".spherelax", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "relax a particle set and export the result",
		Args:  cobra.NoArgs,
		RunE:  runRelaxation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&restarts, "restarts", 1, "independent seeds to run concurrently; the best is kept")
	runCmd.Flags().StringVar(&metricName, "metric", "log_energy", "metric used to pick the best restart")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "relax with a live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().IntVar(&stepsPerFrame, "speed", 1, "relaxation steps per frame")
	liveCmd.Flags().StringVar(&theme, "theme", "cyan", "color theme")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the convergence history of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "re-export a stored run as scad, svg or json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "scad", "output format (scad, svg, json)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default <run_id>.<format>)")
	exportCmd.Flags().StringVar(&exportMode, "mode", "", "scene mode (solid, shell)")
	exportCmd.Flags().Float64Var(&exportBaseRadius, "base-radius", 0, "sphere base radius")
	exportCmd.Flags().Float64Var(&exportOffset, "shell-offset", 0, "shell thickness")
	exportCmd.Flags().BoolVar(&exportUseWeights, "use-weights", false, "scale spheres by cube root of weight")
	exportCmd.Flags().IntVar(&exportResolution, "resolution", 0, "OpenSCAD $fn")
	exportCmd.Flags().IntVar(&exportPrecision, "precision", 0, "decimal places in the scene")
	exportCmd.Flags().IntVar(&svgSize, "size", 512, "svg size in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search annealing parameters",
		Args:  cobra.NoArgs,
		RunE:  tuneSchedule,
	}
	addConfigFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridParams, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "log_energy", "metric to optimise")
	tuneCmd.Flags().IntVar(&refineEvals, "refine", 0, "polish the grid optimum with this many Nelder-Mead evaluations")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure relaxation throughput",
		Args:  cobra.NoArgs,
		RunE:  benchRelaxer,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 200, "steps per measurement")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, presetsCmd, tuneCmd, initCmd, benchCmd)
	return rootCmd
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVarP(&count, "count", "n", config.DefaultCount, "number of particles")
	f.Float64Var(&radius, "radius", config.DefaultRadius, "target sphere radius")
	f.Float64Var(&uniformMin, "weight-min", 0, "draw weights uniformly from [weight-min, weight-max]")
	f.Float64Var(&uniformMax, "weight-max", 0, "upper bound of uniform weights")
	f.Float64Var(&repulsion, "repulsion", config.DefaultRepulsion, "repulsion coefficient")
	f.Float64Var(&restore, "restore", config.DefaultRestore, "restoring coefficient (soft confinement)")
	f.StringVar(&confinement, "confinement", "hard", "confinement (hard, soft)")
	f.Float64Var(&base, "base", config.DefaultBase, "initial temperature")
	f.Float64Var(&decay, "decay", config.DefaultDecay, "temperature decay rate")
	f.Float64Var(&floor, "floor", config.DefaultFloor, "temperature floor")
	f.IntVar(&steps, "steps", config.DefaultSteps, "iteration budget (0 runs until interrupted)")
	f.Int64Var(&seed, "seed", 1, "random seed")
	f.IntVar(&workers, "workers", 1, "goroutines for the force phase")
	f.IntVar(&exportEvery, "export-every", 0, "export every K steps (0 disables)")
	f.StringVarP(&outPath, "out", "o", config.DefaultPath, "scene path; may contain a %d verb")
	f.StringVar(&mode, "mode", "solid", "scene mode (solid, shell)")
	f.Float64Var(&baseRadius, "base-radius", config.DefaultBaseRadius, "sphere base radius")
	f.Float64Var(&shellOffset, "shell-offset", config.DefaultBaseRadius/5, "shell thickness")
	f.BoolVar(&useWeights, "use-weights", false, "scale spheres by cube root of weight")
	f.IntVar(&resolution, "resolution", 30, "OpenSCAD $fn")
	f.IntVar(&precision, "precision", 6, "decimal places in the scene")
	f.BoolVar(&preview, "preview", false, "also write an SVG preview per export")
}

// resolveConfig layers defaults, a preset, a config file and explicitly
// set flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("count") {
		cfg.Particles.Count = count
	}
	if changed("radius") {
		cfg.Particles.Radius = radius
	}
	if changed("weight-min") || changed("weight-max") {
		cfg.Particles.Weights = config.WeightConfig{Kind: "uniform", Min: uniformMin, Max: uniformMax}
	}
	if changed("repulsion") {
		cfg.Force.Repulsion = repulsion
	}
	if changed("restore") {
		cfg.Force.Restore = restore
	}
	if changed("confinement") {
		cfg.Force.Confinement = confinement
	}
	if changed("base") {
		cfg.Schedule.Base = base
	}
	if changed("decay") {
		cfg.Schedule.Decay = decay
	}
	if changed("floor") {
		cfg.Schedule.Floor = floor
	}
	if changed("steps") {
		cfg.Run.Steps = steps
	}
	if changed("seed") {
		cfg.Seed = seed
	}
	if changed("workers") {
		cfg.Run.Workers = workers
	}
	if changed("export-every") {
		cfg.Run.ExportEvery = exportEvery
	}
	if changed("out") {
		cfg.Export.Path = outPath
	}
	if changed("mode") {
		cfg.Export.Mode = mode
	}
	if changed("base-radius") {
		cfg.Export.BaseRadius = baseRadius
	}
	if changed("shell-offset") {
		cfg.Export.ShellOffset = shellOffset
	}
	if changed("use-weights") {
		cfg.Export.UseWeights = useWeights
	}
	if changed("resolution") {
		cfg.Export.Resolution = resolution
	}
	if changed("precision") {
		cfg.Export.Precision = precision
	}
	if changed("preview") {
		cfg.Export.Preview = preview
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
