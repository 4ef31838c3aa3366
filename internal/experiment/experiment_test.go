package experiment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/rng"
	"github.com/san-kum/demonsim/internal/sim"
)

func smallConfig(kind string, iterations int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Lattice = kind
	cfg.Size = 8
	cfg.Dim = 2
	cfg.Seed = 42
	cfg.Iterations = iterations
	cfg.InitialDemon = 16
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"array", "graph"}, r.ListLattices())

	for _, kind := range r.ListLattices() {
		l, err := r.GetLattice(kind, 4, 2, nil, rng.New(1))
		require.NoError(t, err, kind)
		assert.Equal(t, 16, l.NumSites())
	}

	spins := make([]lattice.Spin, 9)
	for i := range spins {
		spins[i] = lattice.Down
	}
	l, err := r.GetLattice("graph", 3, 2, spins, rng.New(1))
	require.NoError(t, err)
	assert.Equal(t, -9, lattice.Magnetization(l))

	_, err = r.GetLattice("hexagonal", 4, 2, nil, rng.New(1))
	assert.ErrorIs(t, err, demon.ErrConfiguration)

	assert.Len(t, r.DefaultMetrics(16), 4)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig("array", 10)
	cfg.Size = -1
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, demon.ErrConfiguration)

	cfg = smallConfig("graph", 10)
	cfg.Size = 1
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, demon.ErrConfiguration)
}

func TestSameSeedSameRun(t *testing.T) {
	for _, kind := range []string{"array", "graph"} {
		t.Run(kind, func(t *testing.T) {
			a, err := New(smallConfig(kind, 300), nil)
			require.NoError(t, err)
			b, err := New(smallConfig(kind, 300), nil)
			require.NoError(t, err)

			ra, err := a.Run(context.Background(), nil)
			require.NoError(t, err)
			rb, err := b.Run(context.Background(), nil)
			require.NoError(t, err)

			if diff := cmp.Diff(ra, rb); diff != "" {
				t.Errorf("results differ (-a +b):\n%s", diff)
			}
		})
	}
}

func TestInitialDemonEnergy(t *testing.T) {
	exp, err := New(smallConfig("array", 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 16.0, exp.Engine().DemonEnergy())
	assert.NoError(t, exp.Engine().Check())
}

func TestCheckpointResumesIdentically(t *testing.T) {
	for _, kind := range []string{"array", "graph"} {
		t.Run(kind, func(t *testing.T) {
			whole, err := New(smallConfig(kind, 200), nil)
			require.NoError(t, err)
			want, err := whole.Run(context.Background(), nil)
			require.NoError(t, err)

			first, err := New(smallConfig(kind, 120), nil)
			require.NoError(t, err)
			_, err = first.Run(context.Background(), nil)
			require.NoError(t, err)

			cp, err := first.Checkpoint()
			require.NoError(t, err)
			assert.Equal(t, kind, cp.Kind)
			assert.Equal(t, uint64(42), cp.Seed)

			data, err := json.Marshal(cp)
			require.NoError(t, err)
			var decoded sim.Checkpoint
			require.NoError(t, json.Unmarshal(data, &decoded))

			second, err := Resume(smallConfig(kind, 80), decoded, nil)
			require.NoError(t, err)
			got, err := second.Run(context.Background(), nil)
			require.NoError(t, err)

			if diff := cmp.Diff(want.DemonHistory, got.DemonHistory); diff != "" {
				t.Errorf("demon history differs (-whole +resumed):\n%s", diff)
			}
			if diff := cmp.Diff(want.Magnetization, got.Magnetization); diff != "" {
				t.Errorf("magnetization differs (-whole +resumed):\n%s", diff)
			}
			if diff := cmp.Diff(whole.Lattice().Spins(), second.Lattice().Spins()); diff != "" {
				t.Errorf("final spins differ (-whole +resumed):\n%s", diff)
			}
			assert.Equal(t, want.FinalDemon, got.FinalDemon)
			assert.Equal(t, want.FinalLattice, got.FinalLattice)
			assert.Equal(t, 200, second.Simulator().Step())
		})
	}
}

func TestResumeTakesRulesFromCheckpoint(t *testing.T) {
	cfg := smallConfig("array", 10)
	cfg.Field = 0.5
	cfg.Acceptance = "strict"
	exp, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = exp.Run(context.Background(), nil)
	require.NoError(t, err)
	cp, err := exp.Checkpoint()
	require.NoError(t, err)

	resumed, err := Resume(config.DefaultConfig(), cp, nil)
	require.NoError(t, err)
	opts := resumed.Engine().Options()
	assert.Equal(t, 0.5, opts.Field)
	assert.Equal(t, demon.Strict, opts.Acceptance)
	assert.Equal(t, 8, resumed.Config().Size)
}

func TestResumeRejectsCorruptCheckpoint(t *testing.T) {
	exp, err := New(smallConfig("array", 5), nil)
	require.NoError(t, err)
	_, err = exp.Run(context.Background(), nil)
	require.NoError(t, err)
	cp, err := exp.Checkpoint()
	require.NoError(t, err)

	bad := cp
	bad.RNG = []byte("garbage")
	_, err = Resume(config.DefaultConfig(), bad, nil)
	assert.Error(t, err)

	bad = cp
	bad.Spins = bad.Spins[:3]
	_, err = Resume(config.DefaultConfig(), bad, nil)
	assert.ErrorIs(t, err, demon.ErrConfiguration)

	bad = cp
	bad.Kind = "triangular"
	_, err = Resume(config.DefaultConfig(), bad, nil)
	assert.ErrorIs(t, err, demon.ErrConfiguration)
}

func TestSummary(t *testing.T) {
	exp, err := New(smallConfig("array", 2000), nil)
	require.NoError(t, err)
	res, err := exp.Run(context.Background(), nil)
	require.NoError(t, err)

	sum := exp.Summary(res)
	assert.Equal(t, 64, sum.Sites)
	assert.Equal(t, 2000, sum.Steps)
	assert.InDelta(t, float64(res.Accepted)/2000, sum.AcceptanceRate, 1e-12)
	assert.Positive(t, sum.Beta)
	assert.InDelta(t, 1/sum.Beta, sum.Temperature, 1e-12)
	assert.Equal(t, res.FinalDemon, sum.FinalDemon)
}

func TestSummaryWithoutSamples(t *testing.T) {
	exp, err := New(smallConfig("array", 0), nil)
	require.NoError(t, err)
	res, err := exp.Run(context.Background(), nil)
	require.NoError(t, err)

	sum := exp.Summary(res)
	assert.Zero(t, sum.Beta)
	assert.Zero(t, sum.Temperature)
	assert.Zero(t, sum.MeanDemon)
}

func TestRunHonoursCancellation(t *testing.T) {
	exp, err := New(smallConfig("graph", 1_000_000), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := exp.Run(ctx, func(step int, _ sim.Snapshot) error {
		if step == 99 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 100, res.Steps)
}

func TestUnboundedRunOutlivesIterations(t *testing.T) {
	cfg := smallConfig("array", 10)
	cfg.Unbounded = true
	exp, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := exp.Run(ctx, func(step int, _ sim.Snapshot) error {
		if step == 250 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 251, res.Steps)
}

func TestEnsembleIgnoresUnbounded(t *testing.T) {
	cfg := smallConfig("graph", 40)
	cfg.Unbounded = true
	sums, err := NewEnsemble(cfg, 2, 5, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 2)
	for _, s := range sums {
		assert.Equal(t, 40, s.Steps)
	}
}

func TestEnsemble(t *testing.T) {
	cfg := smallConfig("array", 150)
	ens := NewEnsemble(cfg, 4, 10, nil)
	ens.SetWorkers(2)

	sums, err := ens.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 4)
	for i, s := range sums {
		assert.Equal(t, uint64(10+i), s.Seed)
		assert.Equal(t, 150, s.Steps)
	}

	single := *cfg
	single.Seed = 12
	exp, err := New(&single, nil)
	require.NoError(t, err)
	res, err := exp.Run(context.Background(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff(exp.Summary(res), sums[2]); diff != "" {
		t.Errorf("ensemble member differs from a solo run (-solo +ensemble):\n%s", diff)
	}
}

func TestEnsembleFailsFast(t *testing.T) {
	cfg := smallConfig("array", 10)
	cfg.Coupling = "bogus"
	_, err := NewEnsemble(cfg, 3, 0, nil).Run(context.Background())
	assert.ErrorIs(t, err, demon.ErrConfiguration)
}
