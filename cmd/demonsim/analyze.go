package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/demonsim/internal/analysis"
	"github.com/san-kum/demonsim/internal/metrics"
	"github.com/san-kum/demonsim/internal/optim"
	"github.com/san-kum/demonsim/internal/storage"
)

const analysisBlocks = 20

func analyzeRun(cmd *cobra.Command, args []string) error {
	h, err := storage.New(dataDir).LoadHistory(args[0])
	if err != nil {
		return err
	}
	if h.Len() == 0 {
		return fmt.Errorf("run %s has no history", args[0])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "samples\t%d\n", h.Len())

	for _, series := range []struct {
		name   string
		values []float64
	}{
		{"E_d", h.DemonEnergy},
		{"M", h.Magnetization},
	} {
		if mean, stderr, err := analysis.BlockMean(series.values, analysisBlocks); err == nil {
			fmt.Fprintf(w, "<%s>\t%.4f ± %.4f\n", series.name, mean, stderr)
		}
		if tau, err := analysis.IntegratedTime(series.values); err == nil {
			fmt.Fprintf(w, "tau(%s)\t%.1f\n", series.name, tau)
		}
	}

	if beta, err := metrics.Beta(h.DemonEnergy, quantum); err == nil {
		fmt.Fprintf(w, "beta (mean)\t%.4f\n", beta)
	} else {
		slog.Debug("no mean beta", "err", err)
	}

	hist, err := analysis.DemonDistribution(h.DemonEnergy, quantum)
	if err != nil {
		return err
	}
	if beta, err := hist.FitBeta(10); err == nil {
		fmt.Fprintf(w, "beta (fit)\t%.4f\n", beta)
	} else {
		slog.Debug("no fitted beta", "err", err)
	}
	w.Flush()

	fmt.Println("\nmagnetization vs demon energy")
	fmt.Print(analysis.Portrait(analysis.Pair(h.DemonEnergy, h.Magnetization), 60, 16))
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	params := []string{"demon"}
	ranges := [][]float64{demons}
	if len(fields) > 0 {
		params = append(params, "field")
		ranges = append(ranges, fields)
	}

	g, err := optim.NewGridSearch(params, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	best, err := g.Search(ctx, cfg, optim.TargetTemperature(target), slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range params {
		fmt.Fprintf(w, "%s\t%g\n", name, best.Params[name])
	}
	fmt.Fprintf(w, "T\t%.4f (target %.4f)\n", best.Summary.Temperature, target)
	fmt.Fprintf(w, "<|M|>\t%.4f\n", best.Summary.MeanMagnetization)
	return w.Flush()
}
