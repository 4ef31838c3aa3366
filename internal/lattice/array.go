package lattice

import (
	"iter"
	"slices"
)

// Array is a dense periodic hypercubic lattice. The neighbour table is
// computed once at construction.
type Array struct {
	grid
	spins     []Spin
	neighbors []Site
	src       Source
}

// NewArray draws every site independently and uniformly from {-1, +1}.
func NewArray(n, dim int, src Source) (*Array, error) {
	total, err := validate(n, dim)
	if err != nil {
		return nil, err
	}
	spins := make([]Spin, total)
	for i := range spins {
		spins[i] = randomSpin(src)
	}
	return newArray(n, dim, total, spins, src), nil
}

// NewArrayFrom builds a lattice from an explicit row-major configuration.
// The slice is copied.
func NewArrayFrom(n, dim int, spins []Spin, src Source) (*Array, error) {
	total, err := validate(n, dim)
	if err != nil {
		return nil, err
	}
	if err := checkSpins(spins, total); err != nil {
		return nil, err
	}
	return newArray(n, dim, total, slices.Clone(spins), src), nil
}

func newArray(n, dim, total int, spins []Spin, src Source) *Array {
	a := &Array{
		grid:      newGrid(n, dim, total),
		spins:     spins,
		neighbors: make([]Site, 0, total*2*dim),
		src:       src,
	}
	for i := 0; i < total; i++ {
		site := Site(i)
		for axis := 0; axis < dim; axis++ {
			a.neighbors = append(a.neighbors, a.shift(site, axis, 1))
		}
		for axis := 0; axis < dim; axis++ {
			a.neighbors = append(a.neighbors, a.shift(site, axis, -1))
		}
	}
	return a
}

func (a *Array) Size() int     { return a.n }
func (a *Array) Dim() int      { return a.dim }
func (a *Array) NumSites() int { return a.total }

func (a *Array) Spin(site Site) Spin { return a.spins[site] }

func (a *Array) SetSpin(site Site, s Spin) { a.spins[site] = s }

// Neighbors returns a read-only slice into the neighbour table.
func (a *Array) Neighbors(site Site) []Site {
	k := 2 * a.dim
	start := int(site) * k
	return a.neighbors[start : start+k : start+k]
}

func (a *Array) Sites() iter.Seq[Site] { return a.sites() }

func (a *Array) Spins() []Spin { return slices.Clone(a.spins) }

func (a *Array) Coords(site Site) []int { return a.coords(site) }

func (a *Array) RandomSite() Site { return Site(a.src.IntN(a.total)) }
