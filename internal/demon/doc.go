// Package demon implements the microcanonical demon update rule for the
// nearest-neighbour Ising model.
//
// An [Engine] owns a [lattice.Lattice] and a single scalar energy reservoir,
// the demon. Each move picks a random site and prices the flip of its spin:
//
//   - cost < 0: the flip is taken and the demon absorbs |cost|
//   - the demon can afford cost: the flip is taken and the demon pays
//   - otherwise the move is rejected and nothing changes
//
// Lattice energy plus demon energy is therefore constant across moves, and
// the demon never goes negative. [Engine.Check] audits both.
//
// # Energy Convention
//
// Lattice energy is -Σ_site s·Σ_nb s_nb minus the field term, so an aligned
// 2×2 periodic lattice sits at -16 and the checkerboard at +16. Flip costs are
// 2·s·Σ_nb s_nb plus the field term and are applied incrementally; the
// recomputed [Energy] counts every bond from both endpoints, so it moves by
// twice the cost of a flip. Conservation is audited on the tracked values.
//
// # Field Coupling
//
// [PerBond] adds H·s once per neighbour evaluation, scaling the effective
// field by the coordination number. [PerSite] adds it once per site.
//
//	eng, _ := demon.New(l, demon.Options{Acceptance: demon.Strict})
//	for i := 0; i < steps; i++ {
//	    eng.AttemptMove()
//	}
package demon
