package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/drl3d/pkg/core/drl"
)

func TestLayoutModelFrame(t *testing.T) {
	m := NewLayoutModel("Laying out", 100, nil)
	next, cmd := m.Update(newFrameMsg(drl.Frame{Iteration: 25, Temperature: 3.5, MaxDisplacement: 0.25, Fine: true}))
	if cmd != nil {
		t.Error("frame update returned a command")
	}
	view := next.View()
	for _, want := range []string{"Laying out", "25/100", "fine", "q to cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestLayoutModelCancelOnce(t *testing.T) {
	calls := 0
	var m tea.Model = NewLayoutModel("x", 10, func() { calls++ })

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "canceling") {
		t.Errorf("View() after cancel:\n%s", m.View())
	}
}

func TestLayoutModelDoneQuits(t *testing.T) {
	m := NewLayoutModel("x", 10, nil)
	next, cmd := m.Update(layoutDoneMsg{})
	if cmd == nil {
		t.Fatal("done message returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done message did not quit")
	}
	if strings.Contains(next.View(), "q to cancel") {
		t.Error("finished model still shows the cancel hint")
	}
}

func TestLayoutModelResize(t *testing.T) {
	m := NewLayoutModel("x", 10, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	if w := next.(LayoutModel).width; w != minBarWidth {
		t.Errorf("width = %d, want %d", w, minBarWidth)
	}
	next, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 10})
	if w := next.(LayoutModel).width; w != 70 {
		t.Errorf("width = %d, want 70", w)
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		frac float64
		full int
	}{
		{-1, 0},
		{0, 0},
		{0.5, 5},
		{1, 10},
		{3, 10},
	}
	for _, tt := range tests {
		bar := renderBar(10, tt.frac)
		if got := strings.Count(bar, "█"); got != tt.full {
			t.Errorf("renderBar(10, %v) has %d full cells, want %d", tt.frac, got, tt.full)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderBar(10, %v) has %d cells, want 10", tt.frac, got)
		}
	}
}
