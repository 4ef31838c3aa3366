package metrics

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/demonsim/internal/lattice"
)

// Magnetization accumulates the order parameter, one sample per call.
type Magnetization struct {
	samples []float64
	sites   int
}

func NewMagnetization() *Magnetization {
	return &Magnetization{samples: make([]float64, 0)}
}

// Sample appends the sum of all spins of v and returns it.
func (m *Magnetization) Sample(v lattice.View) float64 {
	s := float64(lattice.Magnetization(v))
	m.samples = append(m.samples, s)
	m.sites = v.NumSites()
	return s
}

// History returns the samples so far. Callers must not modify it.
func (m *Magnetization) History() []float64 { return slices.Clip(m.samples) }

func (m *Magnetization) Len() int { return len(m.samples) }

func (m *Magnetization) Mean() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	return stat.Mean(m.samples, nil)
}

// PerSite is the mean magnetization divided by N^dim.
func (m *Magnetization) PerSite() float64 {
	if m.sites == 0 {
		return 0
	}
	return m.Mean() / float64(m.sites)
}

func (m *Magnetization) Reset() {
	m.samples = m.samples[:0]
}

// Restore replaces the history, for resuming a checkpointed run.
func (m *Magnetization) Restore(samples []float64, sites int) {
	m.samples = slices.Clone(samples)
	m.sites = sites
}
