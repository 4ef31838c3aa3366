package lattice

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrConfiguration indicates an invalid lattice size, dimension or spin layout.
	ErrConfiguration = errors.New("lattice: invalid configuration")

	// ErrInvalidSpin indicates a value outside the spin encodings.
	ErrInvalidSpin = errors.New("lattice: invalid spin value")
)

// Spin is a spin-1/2 state in the canonical {-1, +1} encoding.
type Spin int8

const (
	Down Spin = -1
	Up   Spin = 1
)

func (s Spin) Flip() Spin { return -s }

// Half returns the {-0.5, +0.5} encoding used by node attributes.
func (s Spin) Half() float64 { return float64(s) / 2 }

func (s Spin) Valid() bool { return s == Up || s == Down }

// FromHalf converts the ±0.5 encoding to the canonical one.
func FromHalf(v float64) (Spin, error) {
	switch v {
	case 0.5:
		return Up, nil
	case -0.5:
		return Down, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidSpin, v)
}

// Site is a flat row-major index into the lattice.
type Site int

// Source is the random stream a lattice draws from.
type Source interface {
	IntN(n int) int
}

// View is read-only access to a spin configuration.
type View interface {
	Size() int
	Dim() int
	NumSites() int
	Spin(site Site) Spin
	Neighbors(site Site) []Site
	Sites() iter.Seq[Site]
	Spins() []Spin
	Coords(site Site) []int
}

// Lattice is a mutable spin configuration with a fixed periodic topology.
type Lattice interface {
	View
	SetSpin(site Site, s Spin)
	RandomSite() Site
}

// Magnetization returns the sum of all spins.
func Magnetization(v View) int {
	m := 0
	for site := range v.Sites() {
		m += int(v.Spin(site))
	}
	return m
}

// NeighborSum returns the sum of the neighbour spins of site.
func NeighborSum(v View, site Site) int {
	sum := 0
	for _, nb := range v.Neighbors(site) {
		sum += int(v.Spin(nb))
	}
	return sum
}

func validate(n, dim int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: size must be positive, got %d", ErrConfiguration, n)
	}
	if dim <= 0 {
		return 0, fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, dim)
	}
	total := 1
	for i := 0; i < dim; i++ {
		total *= n
	}
	return total, nil
}

func checkSpins(spins []Spin, total int) error {
	if len(spins) != total {
		return fmt.Errorf("%w: expected %d spins, got %d", ErrConfiguration, total, len(spins))
	}
	for i, s := range spins {
		if !s.Valid() {
			return fmt.Errorf("%w: site %d holds %d", ErrInvalidSpin, i, s)
		}
	}
	return nil
}

func randomSpin(src Source) Spin {
	return Spin(2*src.IntN(2) - 1)
}

// grid holds the coordinate arithmetic shared by both representations.
type grid struct {
	n, dim, total int
	strides       []int
}

func newGrid(n, dim, total int) grid {
	strides := make([]int, dim)
	stride := 1
	for axis := dim - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= n
	}
	return grid{n: n, dim: dim, total: total, strides: strides}
}

func (g grid) coords(site Site) []int {
	c := make([]int, g.dim)
	rem := int(site)
	for axis := 0; axis < g.dim; axis++ {
		c[axis] = rem / g.strides[axis]
		rem %= g.strides[axis]
	}
	return c
}

// shift moves site one step along axis with periodic wraparound.
func (g grid) shift(site Site, axis, delta int) Site {
	c := (int(site) / g.strides[axis]) % g.n
	next := c + delta
	switch {
	case next > g.n-1:
		next = 0
	case next < 0:
		next = g.n - 1
	}
	return site + Site((next-c)*g.strides[axis])
}

func (g grid) sites() iter.Seq[Site] {
	return func(yield func(Site) bool) {
		for i := 0; i < g.total; i++ {
			if !yield(Site(i)) {
				return
			}
		}
	}
}
