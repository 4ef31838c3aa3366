package viz

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/sim"
)

// Frame is a self-contained copy of what the live view draws. It shares no
// memory with the simulation. Plane holds the spins with every axis beyond
// the second at zero, indexed [row][col] by the first two coordinates.
type Frame struct {
	Step              int
	DemonEnergy       float64
	Energy            float64
	Magnetization     float64
	Accepted          int
	Sites             int
	Plane             [][]lattice.Spin
	DemonTail         []float64
	MagnetizationTail []float64
}

// NewFrame copies snap. energy and accepted come from the engine, which the
// caller reads on the simulation goroutine.
func NewFrame(snap sim.Snapshot, energy float64, accepted, tail int) Frame {
	v := snap.Lattice
	f := Frame{
		Step:        snap.Step,
		DemonEnergy: snap.DemonEnergy,
		Energy:      energy,
		Accepted:    accepted,
		Sites:       v.NumSites(),
		Plane:       plane(v),
	}
	if n := len(snap.Magnetization); n > 0 {
		f.Magnetization = snap.Magnetization[n-1]
	}
	f.DemonTail = lastN(snap.DemonHistory, tail)
	f.MagnetizationTail = lastN(snap.Magnetization, tail)
	return f
}

func lastN(values []float64, n int) []float64 {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return slices.Clone(values)
}

func plane(v lattice.View) [][]lattice.Spin {
	n := v.Size()
	rows, cols := 1, n
	if v.Dim() >= 2 {
		rows = n
	}
	grid := make([][]lattice.Spin, rows)
	for r := range grid {
		grid[r] = make([]lattice.Spin, cols)
	}

	for site := range v.Sites() {
		c := v.Coords(site)
		if slices.ContainsFunc(c[min(2, len(c)):], func(x int) bool { return x != 0 }) {
			continue
		}
		if len(c) == 1 {
			grid[0][c[0]] = v.Spin(site)
			continue
		}
		grid[c[0]][c[1]] = v.Spin(site)
	}
	return grid
}

// RenderSpins draws the frame's plane, two characters per spin so cells
// come out roughly square.
func RenderSpins(f Frame, t Theme) string {
	up := lipgloss.NewStyle().Foreground(t.SpinUp).Render("██")
	down := lipgloss.NewStyle().Foreground(t.SpinDown).Render("░░")

	var b strings.Builder
	for i, row := range f.Plane {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range row {
			if s == lattice.Up {
				b.WriteString(up)
			} else {
				b.WriteString(down)
			}
		}
	}
	return b.String()
}
