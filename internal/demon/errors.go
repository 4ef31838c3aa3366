package demon

import (
	"errors"
	"fmt"

	"github.com/san-kum/demonsim/internal/lattice"
)

// Domain errors for the demon engine.
var (
	// ErrConfiguration is shared with the lattice package so a single
	// errors.Is check covers every construction failure.
	ErrConfiguration = lattice.ErrConfiguration

	// ErrInvariantViolation indicates a bug in the acceptance rule.
	ErrInvariantViolation = errors.New("demon: invariant violated")

	// ErrNegativeDemon indicates the reservoir went below zero.
	ErrNegativeDemon = fmt.Errorf("%w: negative demon energy", ErrInvariantViolation)

	// ErrEnergyDrift indicates lattice plus demon energy moved off its reference.
	ErrEnergyDrift = fmt.Errorf("%w: total energy drifted", ErrInvariantViolation)
)

// InvariantError wraps an invariant violation with the engine state.
type InvariantError struct {
	Step      int
	Demon     float64
	Total     float64
	Reference float64
	Wrapped   error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("step %d (demon=%g total=%g reference=%g): %v",
		e.Step, e.Demon, e.Total, e.Reference, e.Wrapped)
}

func (e *InvariantError) Unwrap() error {
	return e.Wrapped
}
