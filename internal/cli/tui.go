package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/drl3d/pkg/core/drl"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorTeal)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	phaseStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
)

// =============================================================================
// Messages
// =============================================================================

// frameMsg is a copy of one scheduler frame, without positions.
type frameMsg struct {
	iteration       int
	temperature     float64
	maxDisplacement float64
	fine            bool
}

func newFrameMsg(f drl.Frame) frameMsg {
	return frameMsg{
		iteration:       f.Iteration,
		temperature:     f.Temperature,
		maxDisplacement: f.MaxDisplacement,
		fine:            f.Fine,
	}
}

// layoutDoneMsg ends the program.
type layoutDoneMsg struct{ err error }

// =============================================================================
// LayoutModel - live annealing progress
// =============================================================================

// LayoutModel is the bubbletea model behind layout --progress. It renders the
// iteration count against the budget along with temperature and step size.
type LayoutModel struct {
	Title         string
	MaxIterations int

	frame     frameMsg
	width     int
	start     time.Time
	cancel    context.CancelFunc
	canceling bool
	done      bool
	err       error
}

// NewLayoutModel creates a progress model. cancel is invoked when the user
// interrupts; the model keeps running until the layout reports completion.
func NewLayoutModel(title string, maxIterations int, cancel context.CancelFunc) LayoutModel {
	return LayoutModel{
		Title:         title,
		MaxIterations: maxIterations,
		width:         defaultBarWidth,
		start:         time.Now(),
		cancel:        cancel,
	}
}

func (m LayoutModel) Init() tea.Cmd {
	return nil
}

func (m LayoutModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.canceling && m.cancel != nil {
				m.cancel()
			}
			m.canceling = true
		}
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-30, minBarWidth)
	case frameMsg:
		m.frame = msg
	case layoutDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m LayoutModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n\n")

	frac := 0.0
	if m.MaxIterations > 0 {
		frac = float64(m.frame.iteration) / float64(m.MaxIterations)
	}
	b.WriteString(renderBar(m.width, frac))
	b.WriteString(" ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", m.frame.iteration, m.MaxIterations)))
	b.WriteString("\n")

	phase := "coarse"
	if m.frame.fine {
		phase = "fine"
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("T %.4g · step %.4g · ", m.frame.temperature, m.frame.maxDisplacement)))
	b.WriteString(phaseStyle.Render(phase))
	b.WriteString(StyleDim.Render(fmt.Sprintf(" · %s", time.Since(m.start).Round(time.Second))))
	b.WriteString("\n")

	switch {
	case m.done:
	case m.canceling:
		b.WriteString(StyleWarning.Render("canceling after this iteration..."))
		b.WriteString("\n")
	default:
		b.WriteString(StyleDim.Render("q to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderBar draws a progress bar of the given width. frac is clamped to [0, 1].
func renderBar(width int, frac float64) string {
	frac = min(max(frac, 0), 1)
	full := int(frac * float64(width))
	return barFullStyle.Render(strings.Repeat("█", full)) +
		barEmptyStyle.Render(strings.Repeat("░", width-full))
}

// runWithProgress runs fn while a LayoutModel renders its frames. fn receives
// an observer to install on the scheduler and a context canceled when the user
// quits the display.
func runWithProgress(ctx context.Context, title string, maxIterations int, fn func(context.Context, drl.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewLayoutModel(title, maxIterations, cancel), tea.WithOutput(os.Stderr))
	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, func(f drl.Frame) { p.Send(newFrameMsg(f)) })
		p.Send(layoutDoneMsg{err: err})
		errc <- err
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-errc
		return fmt.Errorf("progress display: %w", err)
	}
	return <-errc
}
