package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/metrics"
)

// Builder constructs a lattice. A nil spins slice means a random start.
type Builder func(n, dim int, spins []lattice.Spin, src lattice.Source) (lattice.Lattice, error)

type Registry struct {
	lattices map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{
		lattices: make(map[string]Builder),
	}

	r.lattices["array"] = func(n, dim int, spins []lattice.Spin, src lattice.Source) (lattice.Lattice, error) {
		if spins == nil {
			return lattice.NewArray(n, dim, src)
		}
		return lattice.NewArrayFrom(n, dim, spins, src)
	}
	r.lattices["graph"] = func(n, dim int, spins []lattice.Spin, src lattice.Source) (lattice.Lattice, error) {
		if spins == nil {
			return lattice.NewGraph(n, dim, src)
		}
		return lattice.NewGraphFrom(n, dim, spins, src)
	}

	return r
}

func (r *Registry) Register(kind string, b Builder) {
	r.lattices[kind] = b
}

func (r *Registry) GetLattice(kind string, n, dim int, spins []lattice.Spin, src lattice.Source) (lattice.Lattice, error) {
	fn, ok := r.lattices[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown lattice %q", demon.ErrConfiguration, kind)
	}
	return fn(n, dim, spins, src)
}

func (r *Registry) ListLattices() []string {
	names := make([]string, 0, len(r.lattices))
	for name := range r.lattices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(sites int) []metrics.Metric {
	return []metrics.Metric{
		metrics.NewAcceptanceRate(),
		metrics.NewMeanAbsMagnetization(sites),
		metrics.NewClampedEnergy(),
		metrics.NewPeakDemon(),
	}
}
