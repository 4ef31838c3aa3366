package viz

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/experiment"
	"github.com/san-kum/demonsim/internal/sim"
)

const pausePoll = 20 * time.Millisecond

// Feed turns step callbacks into frames for the UI. It holds at most one
// undelivered frame; when the UI falls behind, newer frames are dropped
// rather than stalling the simulation.
type Feed struct {
	engine *demon.Engine
	every  int
	tail   int
	frames chan Frame
	paused atomic.Bool
	ctx    context.Context
}

func NewFeed(engine *demon.Engine, every, tail int) *Feed {
	return &Feed{
		engine: engine,
		every:  max(every, 1),
		tail:   max(tail, 1),
		frames: make(chan Frame, 1),
		ctx:    context.Background(),
	}
}

func (f *Feed) Frames() <-chan Frame { return f.frames }

// TogglePause flips the pause flag and returns the new state. Only the UI
// goroutine toggles; the simulation goroutine only reads the flag.
func (f *Feed) TogglePause() bool {
	p := !f.paused.Load()
	f.paused.Store(p)
	return p
}

func (f *Feed) Paused() bool { return f.paused.Load() }

// OnStep is a sim.StepFunc. While paused it blocks the simulation until
// resumed or the run's context ends.
func (f *Feed) OnStep(step int, snap sim.Snapshot) error {
	for f.paused.Load() {
		select {
		case <-f.ctx.Done():
			return f.ctx.Err()
		case <-time.After(pausePoll):
		}
	}
	if step%f.every != 0 {
		return nil
	}

	frame := NewFrame(snap, f.engine.LatticeEnergy(), f.engine.Accepted(), f.tail)
	select {
	case f.frames <- frame:
	default:
	}
	return nil
}

// Outcome is the result of a driven run.
type Outcome struct {
	Result *sim.Result
	Err    error
}

// Drive runs exp on its own goroutine with feed as the step callback. The
// frame channel is closed when the run ends; the returned channel then
// delivers the outcome.
func Drive(ctx context.Context, exp *experiment.Experiment, feed *Feed) <-chan Outcome {
	feed.ctx = ctx
	done := make(chan Outcome, 1)
	go func() {
		defer close(done)
		defer close(feed.frames)
		res, err := exp.Run(ctx, feed.OnStep)
		done <- Outcome{Result: res, Err: err}
	}()
	return done
}
