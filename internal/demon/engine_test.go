package demon

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/demonsim/internal/lattice"
)

// pinned always draws the same site.
type pinned struct{ site int }

func (p *pinned) IntN(n int) int { return p.site % n }

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 99))
}

func arrayFrom(t *testing.T, n, dim int, spins []lattice.Spin, src lattice.Source) *lattice.Array {
	t.Helper()
	l, err := lattice.NewArrayFrom(n, dim, spins, src)
	require.NoError(t, err)
	return l
}

func graphFrom(t *testing.T, n, dim int, spins []lattice.Spin, src lattice.Source) *lattice.Graph {
	t.Helper()
	l, err := lattice.NewGraphFrom(n, dim, spins, src)
	require.NoError(t, err)
	return l
}

func TestEnergySignConvention(t *testing.T) {
	aligned := []lattice.Spin{1, 1, 1, 1}
	checker := []lattice.Spin{1, -1, -1, 1}

	tests := []struct {
		name  string
		spins []lattice.Spin
		want  float64
	}{
		{"aligned", aligned, -16},
		{"anti-aligned", checker, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, l := range []lattice.Lattice{
				arrayFrom(t, 2, 2, tt.spins, &pinned{}),
				graphFrom(t, 2, 2, tt.spins, &pinned{}),
			} {
				eng, err := New(l, Options{})
				require.NoError(t, err)
				assert.Equal(t, tt.want, eng.LatticeEnergy())
				assert.Zero(t, eng.DemonEnergy())
			}
		})
	}
}

func TestEnergyWithField(t *testing.T) {
	l := arrayFrom(t, 2, 2, []lattice.Spin{1, 1, 1, 1}, &pinned{})
	assert.Equal(t, -20.0, Energy(l, 1, PerSite))
	assert.Equal(t, -32.0, Energy(l, 1, PerBond))
}

func TestForcedFlip(t *testing.T) {
	// centre is up with three down neighbours: cost = 2·1·(-2) = -4
	spins := []lattice.Spin{
		1, -1, 1,
		-1, 1, -1,
		1, 1, 1,
	}
	for _, l := range []lattice.Lattice{
		arrayFrom(t, 3, 2, spins, &pinned{site: 4}),
		graphFrom(t, 3, 2, spins, &pinned{site: 4}),
	} {
		eng, err := New(l, Options{Acceptance: Strict})
		require.NoError(t, err)
		before := eng.LatticeEnergy()
		require.Equal(t, -4.0, eng.Cost(4))

		require.True(t, eng.AttemptMove())
		assert.Equal(t, 4.0, eng.DemonEnergy())
		assert.Equal(t, before-4, eng.LatticeEnergy())
		assert.Equal(t, lattice.Down, l.Spin(4))
		assert.NoError(t, eng.Check())
	}
}

func TestLatticeEnergyIsACostLedger(t *testing.T) {
	spins := make([]lattice.Spin, 16)
	for i := range spins {
		spins[i] = lattice.Up
	}
	l := arrayFrom(t, 4, 2, spins, &pinned{site: 5})
	eng, err := New(l, Options{})
	require.NoError(t, err)
	require.NoError(t, eng.SetDemonEnergy(100))

	require.Equal(t, -64.0, eng.LatticeEnergy())
	require.Equal(t, -32.0, BondEnergy(l, 0, PerBond))
	require.Equal(t, 8.0, eng.Cost(5))

	require.True(t, eng.AttemptMove())
	assert.Equal(t, -56.0, eng.LatticeEnergy(), "ledger advances by the cost")
	assert.Equal(t, -48.0, Energy(l, 0, PerBond), "site sum counts the four broken bonds twice")
	assert.Equal(t, -24.0, BondEnergy(l, 0, PerBond), "bond energy moves by exactly the cost")
	assert.Equal(t, 92.0, eng.DemonEnergy())
}

func TestLedgerOffsetIsConstant(t *testing.T) {
	for _, opts := range []Options{
		{},
		{Field: 0.4, Coupling: PerSite},
		{Field: -0.25, Coupling: PerBond, Acceptance: Strict},
	} {
		l, err := lattice.NewArray(6, 2, newSource(17))
		require.NoError(t, err)
		eng, err := New(l, opts)
		require.NoError(t, err)
		require.NoError(t, eng.SetDemonEnergy(40))

		offset := eng.LatticeEnergy() - BondEnergy(l, opts.Field, opts.Coupling)
		for i := 0; i < 2000; i++ {
			eng.AttemptMove()
			require.InDelta(t, offset, eng.LatticeEnergy()-BondEnergy(l, opts.Field, opts.Coupling), 1e-9, "step %d", i)
		}
		assert.Greater(t, eng.Accepted(), 0)
	}
}

func TestRejectedFlip(t *testing.T) {
	// all up with H = 1 per site: cost = 2·1·4 + 2·1 = 10
	spins := []lattice.Spin{1, 1, 1, 1, 1, 1, 1, 1, 1}
	l := arrayFrom(t, 3, 2, spins, &pinned{site: 4})
	eng, err := New(l, Options{Field: 1, Coupling: PerSite, Acceptance: Strict})
	require.NoError(t, err)
	require.Equal(t, 10.0, eng.Cost(4))
	require.NoError(t, eng.SetDemonEnergy(5))
	energy := eng.LatticeEnergy()

	assert.False(t, eng.AttemptMove())
	assert.Equal(t, lattice.Up, l.Spin(4))
	assert.Equal(t, 5.0, eng.DemonEnergy())
	assert.Equal(t, energy, eng.LatticeEnergy())
	assert.Equal(t, 1, eng.Attempts())
	assert.Zero(t, eng.Accepted())
}

func TestAcceptanceBoundary(t *testing.T) {
	// centre up, neighbour sum 2: cost = 4
	spins := []lattice.Spin{
		1, 1, 1,
		1, 1, -1,
		1, 1, 1,
	}
	tests := []struct {
		rule Acceptance
		want bool
	}{
		{Inclusive, true},
		{Strict, false},
	}

	for _, tt := range tests {
		t.Run(tt.rule.String(), func(t *testing.T) {
			l := graphFrom(t, 3, 2, spins, &pinned{site: 4})
			eng, err := New(l, Options{Acceptance: tt.rule})
			require.NoError(t, err)
			require.Equal(t, 4.0, eng.Cost(4))
			require.NoError(t, eng.SetDemonEnergy(4))

			assert.Equal(t, tt.want, eng.AttemptMove())
			if tt.want {
				assert.Zero(t, eng.DemonEnergy())
			} else {
				assert.Equal(t, 4.0, eng.DemonEnergy())
			}
		})
	}
}

func TestZeroCostWithEmptyDemon(t *testing.T) {
	// centre up, neighbour sum 0: cost = 0
	spins := []lattice.Spin{
		1, 1, 1,
		-1, 1, 1,
		1, -1, 1,
	}
	for _, tt := range []struct {
		rule Acceptance
		want bool
	}{{Inclusive, true}, {Strict, false}} {
		l := arrayFrom(t, 3, 2, spins, &pinned{site: 4})
		eng, err := New(l, Options{Acceptance: tt.rule})
		require.NoError(t, err)
		require.Zero(t, eng.Cost(4))
		assert.Equal(t, tt.want, eng.AttemptMove(), tt.rule.String())
		assert.Zero(t, eng.DemonEnergy())
	}
}

func TestCostRepresentationsAgree(t *testing.T) {
	src := newSource(5)
	arr, err := lattice.NewArray(4, 3, src)
	require.NoError(t, err)
	gr := graphFrom(t, 4, 3, arr.Spins(), src)

	for _, opts := range []Options{
		{},
		{Coupling: PerSite},
		{Field: 0.5},
		{Field: -0.25, Coupling: PerSite},
	} {
		ea, err := New(arr, opts)
		require.NoError(t, err)
		eg, err := New(gr, opts)
		require.NoError(t, err)
		assert.Equal(t, ea.LatticeEnergy(), eg.LatticeEnergy())
		for site := range arr.Sites() {
			require.Equal(t, ea.Cost(site), eg.Cost(site), "site %d opts %+v", site, opts)
		}
	}
}

func TestFieldCouplingScale(t *testing.T) {
	spins := []lattice.Spin{1, 1, 1, 1, 1, 1, 1, 1, 1}
	l := arrayFrom(t, 3, 2, spins, &pinned{})
	free, err := New(l, Options{})
	require.NoError(t, err)
	bond, err := New(l, Options{Field: 0.5, Coupling: PerBond})
	require.NoError(t, err)
	site, err := New(l, Options{Field: 0.5, Coupling: PerSite})
	require.NoError(t, err)

	// the per-bond term is the per-site term times the coordination number
	assert.Equal(t, 1.0, site.Cost(0)-free.Cost(0))
	assert.Equal(t, 4.0, bond.Cost(0)-free.Cost(0))
}

func TestConservationAndNonNegativity(t *testing.T) {
	type build func(n, dim int, src lattice.Source) (lattice.Lattice, error)
	kinds := map[string]build{
		"array": func(n, dim int, src lattice.Source) (lattice.Lattice, error) { return lattice.NewArray(n, dim, src) },
		"graph": func(n, dim int, src lattice.Source) (lattice.Lattice, error) { return lattice.NewGraph(n, dim, src) },
	}
	optsList := []Options{
		{},
		{Acceptance: Strict},
		{Field: 0.3, Coupling: PerSite},
		{Field: -0.7, Coupling: PerBond, Acceptance: Strict},
	}

	for name, mk := range kinds {
		for _, dim := range []int{2, 3} {
			for _, opts := range optsList {
				src := newSource(uint64(dim) * 31)
				l, err := mk(5, dim, src)
				require.NoError(t, err)
				eng, err := New(l, opts)
				require.NoError(t, err)
				initial := eng.TotalEnergy()

				for i := 0; i < 3000; i++ {
					eng.AttemptMove()
					require.GreaterOrEqual(t, eng.DemonEnergy(), 0.0, "%s dim=%d step %d", name, dim, i)
					require.InDelta(t, initial, eng.TotalEnergy(), 1e-9, "%s dim=%d step %d", name, dim, i)
					require.NoError(t, eng.Check())
				}
				assert.Greater(t, eng.Accepted(), 0)
			}
		}
	}
}

func TestAcceptanceMonotonicity(t *testing.T) {
	rng := newSource(17)
	for _, rule := range []Acceptance{Inclusive, Strict} {
		pick := &pinned{}
		l, err := lattice.NewArray(6, 2, rng)
		require.NoError(t, err)
		l2 := arrayFrom(t, 6, 2, l.Spins(), pick)
		eng, err := New(l2, Options{Acceptance: rule})
		require.NoError(t, err)

		for i := 0; i < 2000; i++ {
			pick.site = rng.IntN(l2.NumSites())
			cost := eng.Cost(lattice.Site(pick.site))
			reservoir := eng.DemonEnergy()
			accepted := eng.AttemptMove()

			switch {
			case cost < 0:
				require.True(t, accepted, "negative cost must flip")
			case cost > reservoir:
				require.False(t, accepted, "unaffordable cost must be rejected")
			case cost == reservoir:
				require.Equal(t, rule == Inclusive, accepted)
			default:
				require.True(t, accepted)
			}
		}
	}
}

func TestClamp(t *testing.T) {
	l := arrayFrom(t, 2, 2, []lattice.Spin{1, 1, 1, 1}, &pinned{})
	eng, err := New(l, Options{})
	require.NoError(t, err)
	require.NoError(t, eng.SetDemonEnergy(150))

	assert.Zero(t, eng.Clamp(0), "zero ceiling disables the clamp")
	assert.Zero(t, eng.Clamp(200))
	assert.Equal(t, 50.0, eng.Clamp(100))
	assert.Equal(t, 100.0, eng.DemonEnergy())
	assert.Equal(t, 50.0, eng.Released())
	assert.NoError(t, eng.Check())
}

func TestInitializeIsIdempotent(t *testing.T) {
	a, err := lattice.NewArray(7, 2, newSource(8))
	require.NoError(t, err)
	b, err := lattice.NewArray(7, 2, newSource(8))
	require.NoError(t, err)

	ea, err := New(a, Options{})
	require.NoError(t, err)
	eb, err := New(b, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Spins(), b.Spins())
	assert.Equal(t, ea.LatticeEnergy(), eb.LatticeEnergy())

	first := ea.LatticeEnergy()
	ea.Initialize()
	assert.Equal(t, first, ea.LatticeEnergy())
}

func TestCheckDetectsDrift(t *testing.T) {
	l := arrayFrom(t, 2, 2, []lattice.Spin{1, 1, 1, 1}, &pinned{})
	eng, err := New(l, Options{})
	require.NoError(t, err)

	st := eng.State()
	st.Lattice += 4
	require.NoError(t, eng.Restore(st))

	err = eng.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnergyDrift))
	assert.True(t, errors.Is(err, ErrInvariantViolation))

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, -16.0, inv.Reference)
}

func TestRestoreRejectsBadState(t *testing.T) {
	l := arrayFrom(t, 2, 2, []lattice.Spin{1, 1, 1, 1}, &pinned{})
	eng, err := New(l, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Restore(State{Demon: -1}), ErrConfiguration)
	assert.ErrorIs(t, eng.Restore(State{Attempts: 1, Accepted: 2}), ErrConfiguration)
	assert.ErrorIs(t, eng.SetDemonEnergy(-0.5), ErrConfiguration)
}

func TestNewValidation(t *testing.T) {
	l := arrayFrom(t, 2, 2, []lattice.Spin{1, 1, 1, 1}, &pinned{})

	tests := []struct {
		name string
		lat  lattice.Lattice
		opts Options
	}{
		{"nil lattice", nil, Options{}},
		{"nan field", l, Options{Field: math.NaN()}},
		{"infinite field", l, Options{Field: math.Inf(1)}},
		{"negative tolerance", l, Options{Tolerance: -1}},
		{"unknown coupling", l, Options{Coupling: Coupling(9)}},
		{"unknown acceptance", l, Options{Acceptance: Acceptance(9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.lat, tt.opts)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestParseNames(t *testing.T) {
	a, err := ParseAcceptance("strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, a)
	a, err = ParseAcceptance("")
	require.NoError(t, err)
	assert.Equal(t, Inclusive, a)
	_, err = ParseAcceptance("loose")
	assert.ErrorIs(t, err, ErrConfiguration)

	c, err := ParseCoupling("per-site")
	require.NoError(t, err)
	assert.Equal(t, PerSite, c)
	assert.Equal(t, "per-bond", PerBond.String())
	_, err = ParseCoupling("dipole")
	assert.ErrorIs(t, err, ErrConfiguration)
}
