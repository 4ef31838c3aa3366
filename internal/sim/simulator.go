package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/metrics"
)

// Simulator drives a demon engine and keeps the per-iteration histories.
type Simulator struct {
	engine    *demon.Engine
	tracker   *metrics.Magnetization
	demon     *metrics.DemonHistory
	metrics   []metrics.Metric
	observers []Observer
	step      int
}

func New(engine *demon.Engine, tracker *metrics.Magnetization) *Simulator {
	if tracker == nil {
		tracker = metrics.NewMagnetization()
	}
	return &Simulator{
		engine:    engine,
		tracker:   tracker,
		demon:     metrics.NewDemonHistory(),
		metrics:   make([]metrics.Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }

func (s *Simulator) Engine() *demon.Engine                { return s.engine }
func (s *Simulator) Tracker() *metrics.Magnetization      { return s.tracker }
func (s *Simulator) DemonHistory() *metrics.DemonHistory { return s.demon }

// Step is the number of iterations completed over the simulator's lifetime.
func (s *Simulator) Step() int { return s.step }

// Run executes iterations of clamp, sample, callback, move. The callback
// always sees the lattice before that iteration's move. On cancellation or
// callback failure the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, cfg Config, onStep StepFunc) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}

	for i := 0; cfg.Unbounded || i < cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		step := s.step
		var clamped float64
		if cfg.ClampCeiling > 0 {
			clamped = s.engine.Clamp(cfg.ClampCeiling)
		}
		mag := s.tracker.Sample(s.engine.Lattice())
		s.demon.Record(s.engine.DemonEnergy())

		snap := Snapshot{
			Step:          step,
			DemonEnergy:   s.engine.DemonEnergy(),
			DemonHistory:  s.demon.History(),
			Magnetization: s.tracker.History(),
			Lattice:       s.engine.Lattice(),
		}
		for _, obs := range s.observers {
			obs.OnStep(snap)
		}
		if onStep != nil {
			if err := onStep(step, snap); err != nil {
				s.finish(result)
				return result, fmt.Errorf("step %d: callback: %w", step, err)
			}
		}

		accepted := s.engine.AttemptMove()
		s.step++
		result.Steps++
		if accepted {
			result.Accepted++
		}

		if cfg.CheckInvariants {
			if err := s.engine.Check(); err != nil {
				var inv *demon.InvariantError
				if errors.As(err, &inv) {
					inv.Step = step
				}
				s.finish(result)
				return result, err
			}
		}

		sample := metrics.Sample{
			Step:          step,
			DemonEnergy:   s.engine.DemonEnergy(),
			Magnetization: mag,
			Accepted:      accepted,
			Clamped:       clamped,
		}
		for _, m := range s.metrics {
			m.Observe(sample)
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) finish(result *Result) {
	result.DemonHistory = slices.Clone(s.demon.History())
	result.Magnetization = slices.Clone(s.tracker.History())
	result.FinalDemon = s.engine.DemonEnergy()
	result.FinalLattice = s.engine.LatticeEnergy()
	result.Released = s.engine.Released()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

// Checkpoint captures the simulator-owned part of a checkpoint. Callers
// that own the lattice kind and random stream fill in the rest.
func (s *Simulator) Checkpoint() Checkpoint {
	v := s.engine.Lattice()
	opts := s.engine.Options()
	return Checkpoint{
		Size:          v.Size(),
		Dim:           v.Dim(),
		Field:         opts.Field,
		Coupling:      opts.Coupling.String(),
		Acceptance:    opts.Acceptance.String(),
		Spins:         v.Spins(),
		Engine:        s.engine.State(),
		Step:          s.step,
		Magnetization: slices.Clone(s.tracker.History()),
		DemonHistory:  slices.Clone(s.demon.History()),
	}
}

// Restore loads engine bookkeeping and histories. The engine's lattice must
// already hold the checkpointed spins.
func (s *Simulator) Restore(cp Checkpoint) error {
	if cp.Step < 0 || len(cp.Magnetization) != len(cp.DemonHistory) {
		return fmt.Errorf("%w: inconsistent checkpoint histories", demon.ErrConfiguration)
	}
	if err := s.engine.Restore(cp.Engine); err != nil {
		return err
	}
	s.tracker.Restore(cp.Magnetization, s.engine.Lattice().NumSites())
	s.demon.Restore(cp.DemonHistory)
	s.step = cp.Step
	return nil
}
