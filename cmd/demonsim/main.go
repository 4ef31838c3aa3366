package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/metrics"
)

var (
	dataDir string
	verbose bool
	// Config file and preset
	configFile string
	preset     string
	// Lattice and rules
	latticeKind string
	size        int
	dim         int
	field       float64
	coupling    string
	acceptance  string
	// Run control
	seed         uint64
	iterations   int
	clamp        float64
	initialDemon float64
	noChecks     bool
	logEvery     int
	unbounded    bool
	// Live view
	frameRate int
	every     int
	tail      int
	theme     string
	watch     bool
	// Ensemble
	workers int
	// Output
	svgPath string
	quantum float64
	// Tuning
	target float64
	demons []float64
	fields []float64
	// Checkpoints
	label string
)

// main registers the commands and exits with status 1 when one fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "demonsim",
		Short:         "microcanonical Ising simulation with the demon algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: "15:04:05",
			})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".demonsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store its history",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&watch, "watch", false, "redraw the lattice plane while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 10, "redraw rate for --watch")
	runCmd.Flags().StringVar(&label, "checkpoint", "", "save the final state as a checkpoint under this label")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write the final lattice plane as svg")
	runCmd.Flags().BoolVar(&unbounded, "unbounded", false, "ignore --iterations and run until interrupted")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with the live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().IntVar(&every, "every", 50, "steps between frames")
	liveCmd.Flags().IntVar(&tail, "tail", 600, "history points kept in the plot")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")
	liveCmd.Flags().StringVar(&label, "checkpoint", "", "save the final state as a checkpoint under this label")
	liveCmd.Flags().BoolVar(&unbounded, "unbounded", false, "ignore --iterations and run until quit")

	resumeCmd := &cobra.Command{
		Use:   "resume [checkpoint_id]",
		Short: "continue a run from a stored checkpoint",
		Long:  "continue a run from a stored checkpoint, given by id or by --label for the latest one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  resumeRun,
	}
	resumeCmd.Flags().StringVar(&label, "label", "", "resume the latest checkpoint with this label")
	resumeCmd.Flags().IntVar(&iterations, "iterations", 10000, "further iterations")
	resumeCmd.Flags().Float64Var(&clamp, "clamp", 0, "demon energy ceiling (0 disables)")
	resumeCmd.Flags().BoolVar(&noChecks, "no-checks", false, "skip the per-step conservation audit")
	resumeCmd.Flags().IntVar(&logEvery, "log-every", 0, "log progress every n steps")
	resumeCmd.Flags().BoolVar(&unbounded, "unbounded", false, "ignore --iterations and run until interrupted")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot demon energy and magnetization of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the demon energy series as svg")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "autocorrelation, error bars and a fitted beta for a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&quantum, "quantum", metrics.DefaultQuantum, "demon energy bin width")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search initial demon energy and field for a target temperature",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addConfigFlags(tuneCmd)
	tuneCmd.Flags().Float64Var(&target, "target", 2.269, "target temperature")
	tuneCmd.Flags().Float64SliceVar(&demons, "demons", []float64{0, 100, 200, 400, 800}, "initial demon energies to try")
	tuneCmd.Flags().Float64SliceVar(&fields, "fields", nil, "fields to try (default: the configured field)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a run's history as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-10s %s %d^%d  H=%g  %s  clamp=%g  iterations=%d\n",
					name, p.Lattice, p.Size, p.Dim, p.Field, p.Acceptance, p.Clamp, p.Iterations)
			}
			return nil
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of staged simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [demon energies...]",
		Short: "run one simulation per initial demon energy and tabulate temperatures",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [runs]",
		Short: "run independent seeds concurrently and tabulate their summaries",
		Args:  cobra.ExactArgs(1),
		RunE:  runEnsemble,
	}
	addConfigFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default: one per CPU)")

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "list stored checkpoints",
		RunE:  listCheckpoints,
	}
	checkpointsCmd.AddCommand(&cobra.Command{
		Use:   "rm [checkpoint_id]",
		Short: "delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteCheckpoint,
	})

	rootCmd.AddCommand(runCmd, liveCmd, resumeCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd,
		presetsCmd, scenarioCmd, sweepCmd, ensembleCmd, checkpointsCmd, analyzeCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&latticeKind, "lattice", config.DefaultLattice, "lattice representation: array or graph")
	f.IntVarP(&size, "size", "n", config.DefaultSize, "sites per axis")
	f.IntVarP(&dim, "dim", "d", config.DefaultDim, "number of dimensions")
	f.Float64Var(&field, "field", 0, "external field H")
	f.StringVar(&coupling, "coupling", config.DefaultCoupling, "field coupling: per-bond or per-site")
	f.StringVar(&acceptance, "acceptance", config.DefaultAcceptance, "acceptance rule: inclusive or strict")
	f.Uint64Var(&seed, "seed", 0, "random seed (default: time based)")
	f.IntVar(&iterations, "iterations", config.DefaultIterations, "number of iterations")
	f.Float64Var(&clamp, "clamp", 0, "demon energy ceiling (0 disables)")
	f.Float64Var(&initialDemon, "demon", 0, "initial demon energy")
	f.BoolVar(&noChecks, "no-checks", false, "skip the per-step conservation audit")
	f.IntVar(&logEvery, "log-every", 0, "log progress every n steps")
}

// resolveConfig layers defaults, then the preset, then the config file, then
// explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %s (available: %v)", demon.ErrConfiguration, preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("lattice") {
		cfg.Lattice = latticeKind
	}
	if flags.Changed("size") {
		cfg.Size = size
	}
	if flags.Changed("dim") {
		cfg.Dim = dim
	}
	if flags.Changed("field") {
		cfg.Field = field
	}
	if flags.Changed("coupling") {
		cfg.Coupling = coupling
	}
	if flags.Changed("acceptance") {
		cfg.Acceptance = acceptance
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("clamp") {
		cfg.Clamp = clamp
	}
	if flags.Changed("demon") {
		cfg.InitialDemon = initialDemon
	}
	if flags.Changed("no-checks") {
		cfg.CheckInvariants = !noChecks
	}
	if flags.Changed("log-every") {
		cfg.LogEvery = logEvery
	}
	if flags.Changed("unbounded") {
		cfg.Unbounded = unbounded
	}
	switch {
	case flags.Changed("seed"):
		cfg.Seed = seed
	case cfg.Seed == 0:
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkpointPath() string {
	return filepath.Join(dataDir, "checkpoints.db")
}
