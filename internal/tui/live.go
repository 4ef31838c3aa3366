package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/sim"
	"github.com/san-kum/demonsim/internal/viz"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a plain ANSI observer for terminals where the full live
// view is unwanted. It redraws at most frameRate times per second.
type LiveRenderer struct {
	out       io.Writer
	engine    *demon.Engine
	frameRate int
	lastFrame time.Time
	now       func() time.Time
}

func NewLiveRenderer(out io.Writer, engine *demon.Engine, frameRate int) *LiveRenderer {
	return &LiveRenderer{
		out:       out,
		engine:    engine,
		frameRate: max(frameRate, 1),
		now:       time.Now,
	}
}

func (r *LiveRenderer) OnStep(snap sim.Snapshot) {
	now := r.now()
	if now.Sub(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = now

	f := viz.NewFrame(snap, r.engine.LatticeEnergy(), r.engine.Accepted(), 1)
	fmt.Fprint(r.out, r.render(f))
}

func (r *LiveRenderer) render(f viz.Frame) string {
	var b strings.Builder
	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "  step=%d  demon=%.2f  energy=%.2f  M=%.0f\n", f.Step, f.DemonEnergy, f.Energy, f.Magnetization)

	cols := 0
	if len(f.Plane) > 0 {
		cols = len(f.Plane[0])
	}
	b.WriteString("  +" + strings.Repeat("-", cols) + "+\n")
	for _, row := range f.Plane {
		b.WriteString("  |")
		for _, s := range row {
			if s == lattice.Up {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	b.WriteString("  +" + strings.Repeat("-", cols) + "+\n")
	return b.String()
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
