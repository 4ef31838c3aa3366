package metrics

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoSamples  = errors.New("metrics: no demon energy samples")
	ErrZeroDemon  = errors.New("metrics: mean demon energy is zero")
	ErrBadQuantum = errors.New("metrics: energy quantum must be positive")
)

// DefaultQuantum is the demon energy step of the field-free hypercubic
// lattice: every flip cost is a multiple of 4.
const DefaultQuantum = 4.0

// DemonHistory records the demon energy once per iteration.
type DemonHistory struct {
	samples []float64
}

func NewDemonHistory() *DemonHistory {
	return &DemonHistory{samples: make([]float64, 0)}
}

func (h *DemonHistory) Record(e float64) { h.samples = append(h.samples, e) }

// History returns the samples so far. Callers must not modify it.
func (h *DemonHistory) History() []float64 { return slices.Clip(h.samples) }

func (h *DemonHistory) Len() int { return len(h.samples) }

func (h *DemonHistory) Mean() float64 {
	if len(h.samples) == 0 {
		return 0
	}
	return stat.Mean(h.samples, nil)
}

func (h *DemonHistory) Reset() { h.samples = h.samples[:0] }

func (h *DemonHistory) Restore(samples []float64) { h.samples = slices.Clone(samples) }

// Beta estimates the inverse temperature from demon energies,
// β = (1/δ)·ln(1 + δ/⟨E_d⟩), where δ is the demon energy quantum.
// With δ = 4 this is the closed form for coordination number 4 lattices.
func Beta(history []float64, quantum float64) (float64, error) {
	if quantum <= 0 {
		return 0, ErrBadQuantum
	}
	if len(history) == 0 {
		return 0, ErrNoSamples
	}
	mean := stat.Mean(history, nil)
	if mean <= 0 {
		return 0, ErrZeroDemon
	}
	return math.Log1p(quantum/mean) / quantum, nil
}

// Temperature is 1/β in units of the coupling.
func Temperature(history []float64, quantum float64) (float64, error) {
	beta, err := Beta(history, quantum)
	if err != nil {
		return 0, err
	}
	return 1 / beta, nil
}
