package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/demonsim/internal/metrics"
)

var ErrTooFewBins = errors.New("analysis: fewer than two populated bins")

// Histogram counts demon energies in bins of width Quantum; Counts[k] holds
// the samples in [k·Quantum, (k+1)·Quantum).
type Histogram struct {
	Quantum float64
	Counts  []int
	Total   int
}

func DemonDistribution(history []float64, quantum float64) (Histogram, error) {
	if quantum <= 0 || math.IsNaN(quantum) {
		return Histogram{}, metrics.ErrBadQuantum
	}
	if len(history) == 0 {
		return Histogram{}, metrics.ErrNoSamples
	}

	h := Histogram{Quantum: quantum, Total: len(history)}
	for _, e := range history {
		k := int(math.Floor(e/quantum + 1e-9))
		if k < 0 {
			k = 0
		}
		for len(h.Counts) <= k {
			h.Counts = append(h.Counts, 0)
		}
		h.Counts[k]++
	}
	return h, nil
}

// Probability returns the fraction of samples in bin k.
func (h Histogram) Probability(k int) float64 {
	if k < 0 || k >= len(h.Counts) || h.Total == 0 {
		return 0
	}
	return float64(h.Counts[k]) / float64(h.Total)
}

// FitBeta fits ln P(E_d) = a - β·E_d by least squares over the bins holding
// at least minCount samples, weighting each bin by its count.
func (h Histogram) FitBeta(minCount int) (float64, error) {
	var xs, ys, ws []float64
	for k, c := range h.Counts {
		if c == 0 || c < minCount {
			continue
		}
		xs = append(xs, float64(k)*h.Quantum)
		ys = append(ys, math.Log(h.Probability(k)))
		ws = append(ws, float64(c))
	}
	if len(xs) < 2 {
		return 0, ErrTooFewBins
	}

	_, slope := stat.LinearRegression(xs, ys, ws, false)
	return -slope, nil
}
