package demon

import (
	"fmt"
	"math"
)

// Acceptance decides whether the demon can pay for a positive-cost flip.
type Acceptance int

const (
	// Inclusive accepts when E_demon >= cost.
	Inclusive Acceptance = iota
	// Strict accepts when E_demon > cost.
	Strict
)

func (a Acceptance) String() string {
	switch a {
	case Inclusive:
		return "inclusive"
	case Strict:
		return "strict"
	}
	return fmt.Sprintf("acceptance(%d)", int(a))
}

func ParseAcceptance(name string) (Acceptance, error) {
	switch name {
	case "", "inclusive":
		return Inclusive, nil
	case "strict":
		return Strict, nil
	}
	return 0, fmt.Errorf("%w: unknown acceptance rule %q", ErrConfiguration, name)
}

// Coupling decides how the external field enters a flip cost.
type Coupling int

const (
	// PerBond adds H·s once per neighbour evaluation.
	PerBond Coupling = iota
	// PerSite adds H·s once per site.
	PerSite
)

func (c Coupling) String() string {
	switch c {
	case PerBond:
		return "per-bond"
	case PerSite:
		return "per-site"
	}
	return fmt.Sprintf("coupling(%d)", int(c))
}

func ParseCoupling(name string) (Coupling, error) {
	switch name {
	case "", "per-bond":
		return PerBond, nil
	case "per-site":
		return PerSite, nil
	}
	return 0, fmt.Errorf("%w: unknown field coupling %q", ErrConfiguration, name)
}

// factor is how many times H·s enters per site.
func (c Coupling) factor(dim int) float64 {
	if c == PerSite {
		return 1
	}
	return float64(2 * dim)
}

const DefaultTolerance = 1e-9

type Options struct {
	Field      float64
	Coupling   Coupling
	Acceptance Acceptance
	// Tolerance is the relative drift allowed by Check.
	Tolerance float64
}

func (o Options) validate() (Options, error) {
	if math.IsNaN(o.Field) || math.IsInf(o.Field, 0) {
		return o, fmt.Errorf("%w: field must be finite, got %v", ErrConfiguration, o.Field)
	}
	if o.Coupling != PerBond && o.Coupling != PerSite {
		return o, fmt.Errorf("%w: unknown field coupling %d", ErrConfiguration, o.Coupling)
	}
	if o.Acceptance != Inclusive && o.Acceptance != Strict {
		return o, fmt.Errorf("%w: unknown acceptance rule %d", ErrConfiguration, o.Acceptance)
	}
	if o.Tolerance < 0 {
		return o, fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrConfiguration, o.Tolerance)
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	return o, nil
}
