// Package lattice provides the spin lattices the demon engine operates on.
//
// Two representations share the [Lattice] capability interface:
//
//   - [Array]: dense flat grid of spins, neighbours by periodic index arithmetic
//   - [Graph]: periodic grid graph, spins stored on the graph nodes
//
// Both use the canonical spin encoding {-1, +1}. Sites are flat row-major
// indices over Size()^Dim() positions, so a site means the same coordinate
// in either representation.
//
// # Periodic Boundaries
//
// Every site has exactly 2*dim neighbours. Index i wraps to 0 past N-1 and
// to N-1 below 0. For N = 2 the forward and backward neighbour along an axis
// are the same site; it is reported twice.
//
//	l, _ := lattice.NewArray(16, 2, rng)
//	for _, nb := range l.Neighbors(l.RandomSite()) {
//	    _ = l.Spin(nb)
//	}
package lattice
