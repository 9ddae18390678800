package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/pipeline"
)

var (
	colorTeal  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorAmber = lipgloss.Color("220")
	colorRed   = lipgloss.Color("167")
	colorBlue  = lipgloss.Color("75")
	colorWhite = lipgloss.Color("255")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")
)

// Styles shared by the plain printers and the progress view.
var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	StyleLink    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorTeal)
	StyleWarning = lipgloss.NewStyle().Foreground(colorAmber)
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleFailed  = lipgloss.NewStyle().Foreground(colorRed)
	styleNote    = lipgloss.NewStyle().Foreground(colorGray)
	styleSpinner = lipgloss.NewStyle().Foreground(colorTeal)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

const (
	markOK     = "✓"
	markFailed = "✗"
	markWarn   = "!"
	markNote   = "›"
	markFile   = "→"
)

func printSuccess(format string, args ...any) {
	fmt.Println(styleOK.Render(markOK) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleFailed.Render(markFailed) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(StyleWarning.Render(markWarn) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleNote.Render(markNote) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, muted line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(markFile) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// printRunSummary reports how a finished layout ended: its terminal state and
// reason, then the graph size and the cost of the run. Cached layouts say so in
// place of a timing.
func printRunSummary(state, reason string, stats pipeline.Stats, cached bool) {
	mark, style := markOK, styleOK
	if state == drl.Aborted.String() {
		mark, style = markFailed, styleFailed
	}
	head := style.Render(mark) + " layout " + style.Render(state)
	if reason != "" {
		head += StyleDim.Render(" (" + reason + ")")
	}
	fmt.Println(head)

	parts := []string{
		plural(stats.NodeCount, "node"),
		plural(stats.EdgeCount, "edge"),
		plural(stats.Iterations, "iteration"),
	}
	if stats.Restarts > 0 {
		parts = append(parts, plural(stats.Restarts, "restart"))
	}
	if cached {
		parts = append(parts, styleOK.Render("from cache"))
	} else {
		parts = append(parts, stats.LayoutTime.Round(time.Millisecond).String())
	}
	fmt.Println("  " + StyleDim.Render(strings.Join(parts, " · ")))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
