package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/demonsim/internal/config"
)

// Ensemble runs independent copies of one configuration with consecutive
// seeds. Each run keeps its own lattice and stream; only the runs are
// concurrent, never the moves inside a run.
type Ensemble struct {
	cfg       config.Config
	numRuns   int
	seedStart uint64
	workers   int
	logger    *slog.Logger
}

func NewEnsemble(cfg *config.Config, numRuns int, seedStart uint64, logger *slog.Logger) *Ensemble {
	if logger == nil {
		logger = discard()
	}
	return &Ensemble{
		cfg:       *cfg,
		numRuns:   numRuns,
		seedStart: seedStart,
		workers:   runtime.GOMAXPROCS(0),
		logger:    logger,
	}
}

// SetWorkers bounds concurrency; n <= 0 means unlimited.
func (e *Ensemble) SetWorkers(n int) { e.workers = n }

// Run returns one summary per seed, in seed order. The first failing run
// cancels the rest.
func (e *Ensemble) Run(ctx context.Context) ([]Summary, error) {
	summaries := make([]Summary, e.numRuns)

	g, gctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			cfg := e.cfg
			cfg.Seed = e.seedStart + uint64(i)
			cfg.LogEvery = 0
			cfg.Unbounded = false

			exp, err := New(&cfg, e.logger.With("seed", cfg.Seed))
			if err != nil {
				return err
			}
			res, err := exp.Run(gctx, nil)
			if err != nil {
				return fmt.Errorf("seed %d: %w", cfg.Seed, err)
			}
			summaries[i] = exp.Summary(res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
