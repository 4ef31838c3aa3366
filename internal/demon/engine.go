package demon

import (
	"fmt"
	"math"

	"github.com/san-kum/demonsim/internal/lattice"
)

// Engine runs the demon update rule over a lattice it owns.
// Engines are not safe for concurrent use.
type Engine struct {
	lat  lattice.Lattice
	opts Options

	energy    float64 // tracked lattice energy
	demon     float64
	reference float64 // energy + demon + released right after Initialize
	released  float64 // removed by Clamp

	attempts int
	accepted int
}

// State is the engine bookkeeping needed to resume a run.
type State struct {
	Lattice   float64 `json:"lattice_energy" yaml:"lattice_energy"`
	Demon     float64 `json:"demon_energy" yaml:"demon_energy"`
	Reference float64 `json:"reference" yaml:"reference"`
	Released  float64 `json:"released" yaml:"released"`
	Attempts  int     `json:"attempts" yaml:"attempts"`
	Accepted  int     `json:"accepted" yaml:"accepted"`
}

func New(l lattice.Lattice, opts Options) (*Engine, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil lattice", ErrConfiguration)
	}
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	e := &Engine{lat: l, opts: opts}
	e.Initialize()
	return e, nil
}

// Initialize recomputes the lattice energy from scratch and empties the demon.
func (e *Engine) Initialize() {
	e.energy = Energy(e.lat, e.opts.Field, e.opts.Coupling)
	e.demon = 0
	e.released = 0
	e.reference = e.energy
	e.attempts = 0
	e.accepted = 0
}

// Energy is the lattice energy of v as reported by LatticeEnergy right after
// Initialize. The sum runs over sites, so every bond is counted from both
// ends: the aligned 2×2 lattice gives −16.
func Energy(v lattice.View, field float64, coupling Coupling) float64 {
	bonds, mag := 0, 0
	for site := range v.Sites() {
		s := int(v.Spin(site))
		bonds += s * lattice.NeighborSum(v, site)
		mag += s
	}
	return -float64(bonds) - coupling.factor(v.Dim())*field*float64(mag)
}

// BondEnergy counts every bond once. Cost is exactly the change in
// BondEnergy caused by a flip, so with no field a flip moves Energy by twice
// its cost.
func BondEnergy(v lattice.View, field float64, coupling Coupling) float64 {
	bonds, mag := 0, 0
	for site := range v.Sites() {
		s := int(v.Spin(site))
		bonds += s * lattice.NeighborSum(v, site)
		mag += s
	}
	return -float64(bonds)/2 - coupling.factor(v.Dim())*field*float64(mag)
}

// Cost is the energy change of flipping the spin at site.
func (e *Engine) Cost(site lattice.Site) float64 {
	s := float64(e.lat.Spin(site))
	nb := float64(lattice.NeighborSum(e.lat, site))
	cost := 2 * s * nb
	if e.opts.Field != 0 {
		cost += 2 * e.opts.Coupling.factor(e.lat.Dim()) * e.opts.Field * s
	}
	return cost
}

func (e *Engine) affords(cost float64) bool {
	if e.opts.Acceptance == Strict {
		return e.demon > cost
	}
	return e.demon >= cost
}

// AttemptMove tries to flip one random spin and reports whether it flipped.
// A rejected move leaves the engine untouched.
func (e *Engine) AttemptMove() bool {
	e.attempts++
	site := e.lat.RandomSite()
	cost := e.Cost(site)

	switch {
	case cost < 0:
		e.demon += math.Abs(cost)
	case e.affords(cost):
		e.demon -= cost
	default:
		return false
	}

	e.energy += cost
	e.lat.SetSpin(site, e.lat.Spin(site).Flip())
	e.accepted++
	return true
}

// Clamp lowers the demon to ceiling when it exceeds it and returns the
// energy removed. This deliberately breaks conservation; the removed
// energy is kept in Released so Check can still audit the rest.
func (e *Engine) Clamp(ceiling float64) float64 {
	if ceiling <= 0 || e.demon <= ceiling {
		return 0
	}
	removed := e.demon - ceiling
	e.demon = ceiling
	e.released += removed
	return removed
}

// Check verifies demon non-negativity and energy conservation.
func (e *Engine) Check() error {
	if e.demon < 0 {
		return e.violation(ErrNegativeDemon)
	}
	total := e.energy + e.demon + e.released
	limit := e.opts.Tolerance * math.Max(1, math.Abs(e.reference))
	if math.Abs(total-e.reference) > limit {
		return e.violation(ErrEnergyDrift)
	}
	return nil
}

func (e *Engine) violation(err error) error {
	return &InvariantError{
		Step:      e.attempts,
		Demon:     e.demon,
		Total:     e.energy + e.demon,
		Reference: e.reference,
		Wrapped:   err,
	}
}

// SetDemonEnergy seeds the reservoir, for example to start from a target
// total energy. The conservation reference is rebased.
func (e *Engine) SetDemonEnergy(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: demon energy must be finite and non-negative, got %v", ErrConfiguration, v)
	}
	e.demon = v
	e.reference = e.energy + e.demon + e.released
	return nil
}

func (e *Engine) State() State {
	return State{
		Lattice:   e.energy,
		Demon:     e.demon,
		Reference: e.reference,
		Released:  e.released,
		Attempts:  e.attempts,
		Accepted:  e.accepted,
	}
}

// Restore replaces the bookkeeping, typically after rebuilding the lattice
// from a checkpoint.
func (e *Engine) Restore(st State) error {
	if st.Demon < 0 {
		return fmt.Errorf("%w: demon energy must be non-negative, got %v", ErrConfiguration, st.Demon)
	}
	if st.Released < 0 || st.Attempts < 0 || st.Accepted < 0 || st.Accepted > st.Attempts {
		return fmt.Errorf("%w: inconsistent engine state %+v", ErrConfiguration, st)
	}
	e.energy = st.Lattice
	e.demon = st.Demon
	e.reference = st.Reference
	e.released = st.Released
	e.attempts = st.Attempts
	e.accepted = st.Accepted
	return nil
}

func (e *Engine) DemonEnergy() float64   { return e.demon }
// LatticeEnergy is a ledger: it starts at Energy and advances by Cost on
// every accepted move. It therefore differs from a fresh Energy of the
// current spins; LatticeEnergy − BondEnergy stays constant over a run.
func (e *Engine) LatticeEnergy() float64 { return e.energy }
func (e *Engine) TotalEnergy() float64   { return e.energy + e.demon }
func (e *Engine) Released() float64      { return e.released }
func (e *Engine) Attempts() int          { return e.attempts }
func (e *Engine) Accepted() int          { return e.accepted }
func (e *Engine) Options() Options       { return e.opts }

// Lattice returns a read-only view of the spins.
func (e *Engine) Lattice() lattice.View { return e.lat }
