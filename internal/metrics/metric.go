package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sample is what a metric observes after each iteration.
type Sample struct {
	Step          int
	DemonEnergy   float64
	Magnetization float64
	Accepted      bool
	Clamped       float64
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// AcceptanceRate is the fraction of attempted moves that flipped a spin.
type AcceptanceRate struct {
	accepted int
	samples  int
}

func NewAcceptanceRate() *AcceptanceRate { return &AcceptanceRate{} }

func (a *AcceptanceRate) Name() string { return "acceptance_rate" }

func (a *AcceptanceRate) Observe(s Sample) {
	a.samples++
	if s.Accepted {
		a.accepted++
	}
}

func (a *AcceptanceRate) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return float64(a.accepted) / float64(a.samples)
}

func (a *AcceptanceRate) Reset() {
	a.accepted = 0
	a.samples = 0
}

// MeanAbsMagnetization averages |M| per site, which stays meaningful when
// the ordered phase flips between its two signs.
type MeanAbsMagnetization struct {
	sites  int
	values []float64
}

func NewMeanAbsMagnetization(sites int) *MeanAbsMagnetization {
	return &MeanAbsMagnetization{sites: sites}
}

func (m *MeanAbsMagnetization) Name() string { return "mean_abs_magnetization" }

func (m *MeanAbsMagnetization) Observe(s Sample) {
	m.values = append(m.values, math.Abs(s.Magnetization))
}

func (m *MeanAbsMagnetization) Value() float64 {
	if len(m.values) == 0 || m.sites == 0 {
		return 0
	}
	return floats.Sum(m.values) / float64(len(m.values)) / float64(m.sites)
}

func (m *MeanAbsMagnetization) Reset() { m.values = m.values[:0] }

// ClampedEnergy totals the energy removed from the demon by the clamp.
type ClampedEnergy struct {
	total float64
}

func NewClampedEnergy() *ClampedEnergy { return &ClampedEnergy{} }

func (c *ClampedEnergy) Name() string     { return "clamped_energy" }
func (c *ClampedEnergy) Observe(s Sample) { c.total += s.Clamped }
func (c *ClampedEnergy) Value() float64   { return c.total }
func (c *ClampedEnergy) Reset()           { c.total = 0 }

// PeakDemon is the largest demon energy seen.
type PeakDemon struct {
	peak float64
}

func NewPeakDemon() *PeakDemon { return &PeakDemon{} }

func (p *PeakDemon) Name() string { return "peak_demon" }

func (p *PeakDemon) Observe(s Sample) { p.peak = math.Max(p.peak, s.DemonEnergy) }

func (p *PeakDemon) Value() float64 { return p.peak }

func (p *PeakDemon) Reset() { p.peak = 0 }
