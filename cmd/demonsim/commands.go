package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/demonsim/internal/automation"
	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/experiment"
	"github.com/san-kum/demonsim/internal/export"
	"github.com/san-kum/demonsim/internal/persistence"
	"github.com/san-kum/demonsim/internal/sim"
	"github.com/san-kum/demonsim/internal/storage"
	"github.com/san-kum/demonsim/internal/tui"
	"github.com/san-kum/demonsim/internal/viz"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, slog.Default())
	if err != nil {
		return err
	}

	var renderer *tui.LiveRenderer
	if watch {
		renderer = tui.NewLiveRenderer(os.Stdout, exp.Engine(), frameRate)
		exp.AddObserver(renderer)
		renderer.Start()
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	res, err := exp.Run(ctx, nil)
	if renderer != nil {
		renderer.Stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if svgPath != "" {
		f := viz.NewFrame(sim.Snapshot{Lattice: exp.Lattice()}, 0, 0, 0)
		if err := export.WriteFile(svgPath, export.PlaneToSVG(f.Plane, 8)); err != nil {
			return err
		}
		slog.Info("plane written", "path", svgPath)
	}

	return finish(exp, res)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// The live view owns the terminal; keep log lines out of it.
	exp, err := experiment.New(cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	res, err := viz.RunLive(ctx, exp, viz.LiveOptions{Every: every, Tail: tail, Theme: theme})
	if err != nil {
		return err
	}
	return finish(exp, res)
}

func resumeRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && label == "" {
		return fmt.Errorf("resume needs a checkpoint id or --label")
	}

	db, err := openCheckpoints()
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		id string
		cp sim.Checkpoint
	)
	if len(args) == 1 {
		id = args[0]
		cp, err = db.LoadCheckpoint(id)
	} else {
		id, cp, err = db.LatestCheckpoint(label)
	}
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Iterations = iterations
	cfg.Clamp = clamp
	cfg.CheckInvariants = !noChecks
	cfg.LogEvery = logEvery
	cfg.Unbounded = unbounded

	exp, err := experiment.Resume(cfg, cp, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("resuming", "checkpoint", id, "step", cp.Step)

	ctx, stop := signalContext(cmd)
	defer stop()

	res, err := exp.Run(ctx, nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return finish(exp, res)
}

// finish stores the result, saves a checkpoint when a label is set and
// prints the summary.
func finish(exp *experiment.Experiment, res *sim.Result) error {
	cfg := exp.Config()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(&cfg, res)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if label != "" {
		cp, err := exp.Checkpoint()
		if err != nil {
			return err
		}
		db, err := openCheckpoints()
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.SaveCheckpoint(label, cp)
		if err != nil {
			return err
		}
		slog.Info("checkpoint saved", "id", id, "label", label, "step", cp.Step)
	}

	printSummary(os.Stdout, exp.Summary(res))
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

func printSummary(out io.Writer, s experiment.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "lattice\t%s %d^%d (%d sites)\n", s.Lattice, s.Size, s.Dim, s.Sites)
	fmt.Fprintf(w, "seed\t%d\n", s.Seed)
	fmt.Fprintf(w, "steps\t%d\n", s.Steps)
	fmt.Fprintf(w, "accepted\t%d (%.1f%%)\n", s.Accepted, 100*s.AcceptanceRate)
	fmt.Fprintf(w, "demon energy\t%g\n", s.FinalDemon)
	fmt.Fprintf(w, "lattice energy\t%g\n", s.FinalLattice)
	if s.Released != 0 {
		fmt.Fprintf(w, "released\t%g\n", s.Released)
	}
	fmt.Fprintf(w, "<E_d>\t%.4f\n", s.MeanDemon)
	fmt.Fprintf(w, "<|M|>\t%.4f\n", s.MeanMagnetization)
	if s.Beta != 0 {
		fmt.Fprintf(w, "beta\t%.4f\n", s.Beta)
		fmt.Fprintf(w, "T\t%.4f\n", s.Temperature)
	}
	w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLATTICE\tSIZE\tSTEPS\tDEMON\tENERGY\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d^%d\t%d\t%g\t%g\t%s\n",
			r.ID, r.Lattice, r.Size, r.Dim, r.Steps, r.FinalDemon, r.Energy, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	h, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}
	if h.Len() == 0 {
		return fmt.Errorf("run %s has no history", args[0])
	}

	fmt.Println(viz.Plot(viz.Downsample(h.DemonEnergy, 80), "demon energy", 80, 12))
	fmt.Println()
	fmt.Println(viz.Plot(viz.Downsample(h.Magnetization, 80), "magnetization", 80, 12))

	if svgPath != "" {
		return export.WriteFile(svgPath, export.SeriesToSVG(h.DemonEnergy, 800, 300, "#00ffff"))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportCSV(os.Stdout, args[0])
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).Export(os.Stdout, args[0])
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	results, err := automation.RunScenario(ctx, scenario, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTEPS\tDEMON\tENERGY\tRELEASED\tT")
	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%.4f\n", r.Name, s.Steps, s.FinalDemon, s.FinalLattice, s.Released, s.Temperature)
	}
	w.Flush()
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	demons := make([]float64, 0, len(args))
	for _, a := range args {
		e, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("invalid demon energy %q: %w", a, err)
		}
		demons = append(demons, e)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	results, err := automation.RunSweep(ctx, &automation.Sweep{Base: cfg, Demons: demons}, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "E_d(0)\t<E_d>\t<|M|>\tBETA\tT")
	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(w, "%g\t%.4f\t%.4f\t%.4f\t%.4f\n", r.InitialDemon, s.MeanDemon, s.MeanMagnetization, s.Beta, s.Temperature)
	}
	w.Flush()
	return err
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	runs, err := strconv.Atoi(args[0])
	if err != nil || runs <= 0 {
		return fmt.Errorf("invalid run count %q", args[0])
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	ens := experiment.NewEnsemble(cfg, runs, cfg.Seed, slog.Default())
	if workers > 0 {
		ens.SetWorkers(workers)
	}
	summaries, err := ens.Run(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tACCEPTED\tDEMON\tENERGY\t<|M|>\tT")
	var meanT float64
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%d\t%g\t%g\t%.4f\t%.4f\n", s.Seed, s.Accepted, s.FinalDemon, s.FinalLattice, s.MeanMagnetization, s.Temperature)
		meanT += s.Temperature
	}
	w.Flush()
	fmt.Printf("\nmean T over %d runs: %.4f\n", len(summaries), meanT/float64(len(summaries)))
	return nil
}

func openCheckpoints() (*persistence.DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return persistence.Open(checkpointPath(), slog.Default())
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	db, err := openCheckpoints()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListCheckpoints()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no checkpoints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tLATTICE\tSIZE\tSTEP\tDEMON\tENERGY\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d^%d\t%d\t%g\t%g\t%s\n",
			e.ID, e.Label, e.Lattice, e.Size, e.Dim, e.Step, e.Demon, e.Energy, e.Created().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func deleteCheckpoint(cmd *cobra.Command, args []string) error {
	db, err := openCheckpoints()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteCheckpoint(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
