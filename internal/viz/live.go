package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/demonsim/internal/experiment"
	"github.com/san-kum/demonsim/internal/sim"
)

const (
	plotWidth  = 60
	plotHeight = 8
)

type frameMsg Frame

type doneMsg struct{}

func waitForFrame(frames <-chan Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return doneMsg{}
		}
		return frameMsg(f)
	}
}

// Model is the Bubble Tea model of the live view.
type Model struct {
	feed       *Feed
	title      string
	iterations int
	theme      Theme
	frame      Frame
	haveFrame  bool
	done       bool
	showMag    bool
	showHelp   bool
	quitting   bool
}

func NewModel(feed *Feed, title string, iterations int, theme Theme) Model {
	return Model{
		feed:       feed,
		title:      title,
		iterations: iterations,
		theme:      theme,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForFrame(m.feed.Frames())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ":
			m.feed.TogglePause()
		case "v":
			m.showMag = !m.showMag
		case "t":
			m.theme = nextTheme(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
		return m, nil

	case frameMsg:
		m.frame = Frame(msg)
		m.haveFrame = true
		return m, waitForFrame(m.feed.Frames())

	case doneMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m Model) status() string {
	switch {
	case m.done:
		return statusDone.Render("DONE")
	case m.feed.Paused():
		return statusPaused.Render("PAUSED")
	}
	return statusRunning.Render("RUNNING")
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle(m.theme).Render(m.title) + "  " + m.status() + "\n\n")

	if !m.haveFrame {
		b.WriteString("waiting for the first frame...\n")
		return b.String()
	}

	f := m.frame
	rate := 0.0
	if f.Step > 0 {
		rate = float64(f.Accepted) / float64(f.Step)
	}
	stats := strings.Join([]string{
		row("step", fmt.Sprintf("%d", f.Step)),
		row("demon", fmt.Sprintf("%.2f", f.DemonEnergy)),
		row("energy", fmt.Sprintf("%.2f", f.Energy)),
		row("magnetization", fmt.Sprintf("%.0f (%.3f/site)", f.Magnetization, f.Magnetization/float64(max(f.Sites, 1)))),
		row("acceptance", fmt.Sprintf("%.3f", rate)),
		"",
		row("demon", Sparkline(f.DemonTail, 30)),
	}, "\n")
	if m.iterations > 0 {
		stats += "\n\n" + ProgressBar(float64(f.Step)/float64(m.iterations), 30)
	}

	spins := panelStyle.Render(RenderSpins(f, m.theme))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, spins, "  ", panelStyle.Render(stats)))
	b.WriteString("\n")

	series, caption := f.DemonTail, "demon energy"
	if m.showMag {
		series, caption = f.MagnetizationTail, "magnetization"
	}
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Primary).Render(Plot(series, caption, plotWidth, plotHeight)))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(helpStyle.Render("space pause/resume · v demon/magnetization · t theme (" + m.theme.Name + ") · q quit"))
	} else {
		b.WriteString(helpStyle.Render("? help · q quit"))
	}
	return b.String()
}

// LiveOptions tune the live view.
type LiveOptions struct {
	Every int
	Tail  int
	Theme string
}

// RunLive drives exp in the background and shows it until the user quits.
// Quitting early stops the run; the partial result is returned without error.
func RunLive(ctx context.Context, exp *experiment.Experiment, opts LiveOptions) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := NewFeed(exp.Engine(), opts.Every, opts.Tail)
	outcome := Drive(ctx, exp, feed)

	cfg := exp.Config()
	title := fmt.Sprintf("demon · %s %d^%d · H=%g", cfg.Lattice, cfg.Size, cfg.Dim, cfg.Field)
	iterations := cfg.Iterations
	if cfg.Unbounded {
		iterations = 0
	}
	p := tea.NewProgram(NewModel(feed, title, iterations, GetTheme(opts.Theme)), tea.WithAltScreen())
	_, uiErr := p.Run()

	cancel()
	out := <-outcome

	if uiErr != nil {
		return out.Result, uiErr
	}
	if errors.Is(out.Err, context.Canceled) {
		return out.Result, nil
	}
	return out.Result, out.Err
}
