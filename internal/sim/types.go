package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
)

type Config struct {
	Iterations int
	// ClampCeiling caps the demon energy before every iteration; 0 disables it.
	ClampCeiling    float64
	CheckInvariants bool
	// Unbounded ignores Iterations and runs until the context is done.
	Unbounded bool
}

func DefaultConfig() Config {
	return Config{
		Iterations:      10000,
		CheckInvariants: true,
	}
}

func (c Config) Validate() error {
	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations must be non-negative, got %d", demon.ErrConfiguration, c.Iterations)
	}
	if c.ClampCeiling < 0 || math.IsNaN(c.ClampCeiling) {
		return fmt.Errorf("%w: clamp ceiling must be positive, got %v", demon.ErrConfiguration, c.ClampCeiling)
	}
	return nil
}

// Snapshot is handed to the step callback between the sample and the move.
// Histories and the lattice view are read-only and only valid during the call.
type Snapshot struct {
	Step          int
	DemonEnergy   float64
	DemonHistory  []float64
	Magnetization []float64
	Lattice       lattice.View
}

// StepFunc receives every snapshot; a non-nil error aborts the run.
type StepFunc func(step int, snap Snapshot) error

// Observer is notified of every snapshot and cannot fail the run.
type Observer interface {
	OnStep(snap Snapshot)
}

// Result describes one Run call. Steps, Accepted and Metrics cover that call
// only; after Restore the histories also hold the checkpointed samples, so
// they span the whole run. FinalLattice is the engine's energy ledger (see
// demon.Engine.LatticeEnergy).
type Result struct {
	Steps         int
	Accepted      int
	DemonHistory  []float64
	Magnetization []float64
	FinalDemon    float64
	FinalLattice  float64
	Released      float64
	Metrics       map[string]float64
}

// Checkpoint is everything needed to resume a run identically.
type Checkpoint struct {
	Kind          string         `json:"kind" yaml:"kind"`
	Size          int            `json:"size" yaml:"size"`
	Dim           int            `json:"dim" yaml:"dim"`
	Field         float64        `json:"field" yaml:"field"`
	Coupling      string         `json:"coupling" yaml:"coupling"`
	Acceptance    string         `json:"acceptance" yaml:"acceptance"`
	Spins         []lattice.Spin `json:"spins" yaml:"spins"`
	Engine        demon.State    `json:"engine" yaml:"engine"`
	Step          int            `json:"step" yaml:"step"`
	Magnetization []float64      `json:"magnetization" yaml:"magnetization"`
	DemonHistory  []float64      `json:"demon_history" yaml:"demon_history"`
	Seed          uint64         `json:"seed" yaml:"seed"`
	RNG           []byte         `json:"rng" yaml:"rng"`
}
