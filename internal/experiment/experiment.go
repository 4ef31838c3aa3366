package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/metrics"
	"github.com/san-kum/demonsim/internal/rng"
	"github.com/san-kum/demonsim/internal/sim"
)

// Experiment owns one run: its random stream, lattice, engine and driver.
type Experiment struct {
	cfg       config.Config
	stream    *rng.Stream
	lattice   lattice.Lattice
	engine    *demon.Engine
	simulator *sim.Simulator
	logger    *slog.Logger
}

type Summary struct {
	Lattice           string  `json:"lattice"`
	Size              int     `json:"size"`
	Dim               int     `json:"dim"`
	Sites             int     `json:"sites"`
	Seed              uint64  `json:"seed"`
	Steps             int     `json:"steps"`
	Accepted          int     `json:"accepted"`
	AcceptanceRate    float64 `json:"acceptance_rate"`
	FinalDemon        float64 `json:"final_demon"`
	FinalLattice      float64 `json:"final_lattice"`
	Released          float64 `json:"released"`
	MeanDemon         float64 `json:"mean_demon"`
	MeanMagnetization float64 `json:"mean_magnetization"`
	// Beta and Temperature are zero when the demon never held energy.
	Beta        float64 `json:"beta"`
	Temperature float64 `json:"temperature"`
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New validates cfg and builds a fresh run seeded from cfg.Seed.
func New(cfg *config.Config, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stream := rng.New(cfg.Seed)
	l, err := NewRegistry().GetLattice(cfg.Lattice, cfg.Size, cfg.Dim, nil, stream)
	if err != nil {
		return nil, err
	}
	e, err := build(*cfg, stream, l, logger)
	if err != nil {
		return nil, err
	}
	if cfg.InitialDemon > 0 {
		if err := e.engine.SetDemonEnergy(cfg.InitialDemon); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Resume rebuilds a run from a checkpoint. The lattice, rules and random
// stream come from cp; iterations, clamp and checks come from cfg.
func Resume(cfg *config.Config, cp sim.Checkpoint, logger *slog.Logger) (*Experiment, error) {
	c := *cfg
	c.Lattice = cp.Kind
	c.Size = cp.Size
	c.Dim = cp.Dim
	c.Field = cp.Field
	c.Coupling = cp.Coupling
	c.Acceptance = cp.Acceptance
	c.Seed = cp.Seed
	c.InitialDemon = 0
	if err := c.Validate(); err != nil {
		return nil, err
	}

	stream, err := rng.Restore(cp.Seed, cp.RNG)
	if err != nil {
		return nil, err
	}
	l, err := NewRegistry().GetLattice(cp.Kind, cp.Size, cp.Dim, cp.Spins, stream)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	e, err := build(c, stream, l, logger)
	if err != nil {
		return nil, err
	}
	if err := e.simulator.Restore(cp); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	return e, nil
}

func build(cfg config.Config, stream *rng.Stream, l lattice.Lattice, logger *slog.Logger) (*Experiment, error) {
	if logger == nil {
		logger = discard()
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	eng, err := demon.New(l, opts)
	if err != nil {
		return nil, err
	}

	s := sim.New(eng, metrics.NewMagnetization())
	for _, m := range NewRegistry().DefaultMetrics(l.NumSites()) {
		s.AddMetric(m)
	}
	if cfg.LogEvery > 0 {
		s.AddObserver(&progress{logger: logger, every: cfg.LogEvery, engine: eng})
	}

	return &Experiment{
		cfg:       cfg,
		stream:    stream,
		lattice:   l,
		engine:    eng,
		simulator: s,
		logger:    logger,
	}, nil
}

func (e *Experiment) Run(ctx context.Context, onStep sim.StepFunc) (*sim.Result, error) {
	e.logger.Info("run starting",
		"lattice", e.cfg.Lattice,
		"size", e.cfg.Size,
		"dim", e.cfg.Dim,
		"iterations", e.cfg.Iterations,
		"from_step", e.simulator.Step(),
		"demon", e.engine.DemonEnergy(),
		"energy", e.engine.LatticeEnergy(),
	)
	res, err := e.simulator.Run(ctx, e.cfg.SimConfig(), onStep)
	if err != nil {
		if res != nil {
			e.logger.Warn("run stopped early", "steps", res.Steps, "err", err)
		}
		return res, err
	}
	e.logger.Info("run finished",
		"steps", res.Steps,
		"accepted", res.Accepted,
		"demon", res.FinalDemon,
		"energy", res.FinalLattice,
	)
	return res, nil
}

// Checkpoint captures the full run state including the random stream position.
func (e *Experiment) Checkpoint() (sim.Checkpoint, error) {
	cp := e.simulator.Checkpoint()
	cp.Kind = e.cfg.Lattice
	cp.Seed = e.stream.Seed()
	state, err := e.stream.MarshalBinary()
	if err != nil {
		return sim.Checkpoint{}, fmt.Errorf("checkpoint: %w", err)
	}
	cp.RNG = state
	return cp, nil
}

func (e *Experiment) Summary(res *sim.Result) Summary {
	sum := Summary{
		Lattice:        e.cfg.Lattice,
		Size:           e.cfg.Size,
		Dim:            e.cfg.Dim,
		Sites:          e.lattice.NumSites(),
		Seed:           e.stream.Seed(),
		Steps:          res.Steps,
		Accepted:       res.Accepted,
		AcceptanceRate: res.Metrics["acceptance_rate"],
		FinalDemon:     res.FinalDemon,
		FinalLattice:   res.FinalLattice,
		Released:       res.Released,
		MeanDemon:      e.simulator.DemonHistory().Mean(),
	}
	sum.MeanMagnetization = e.simulator.Tracker().Mean()

	quantum := e.cfg.Quantum
	if quantum == 0 {
		quantum = metrics.DefaultQuantum
	}
	beta, err := metrics.Beta(res.DemonHistory, quantum)
	if err != nil {
		e.logger.Debug("no temperature estimate", "err", err)
		return sum
	}
	sum.Beta = beta
	sum.Temperature = 1 / beta
	return sum
}

func (e *Experiment) Config() config.Config        { return e.cfg }
func (e *Experiment) Engine() *demon.Engine        { return e.engine }
func (e *Experiment) Simulator() *sim.Simulator    { return e.simulator }
func (e *Experiment) Lattice() lattice.View        { return e.lattice }
func (e *Experiment) AddObserver(o sim.Observer)   { e.simulator.AddObserver(o) }
func (e *Experiment) SetIterations(iterations int) { e.cfg.Iterations = iterations }

type progress struct {
	logger *slog.Logger
	every  int
	engine *demon.Engine
}

func (p *progress) OnStep(snap sim.Snapshot) {
	if snap.Step == 0 || snap.Step%p.every != 0 {
		return
	}
	p.logger.Info("progress",
		"step", snap.Step,
		"demon", snap.DemonEnergy,
		"energy", p.engine.LatticeEnergy(),
		"magnetization", snap.Magnetization[len(snap.Magnetization)-1],
		"accepted", p.engine.Accepted(),
	)
}
