package tui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/transformer"
)

func newModel(t *testing.T) (Model, *transformer.Animator, *anim.FakeClock) {
	t.Helper()
	clock := anim.NewFakeClock()
	a, err := transformer.NewAnimator(transformer.DefaultConfig(), clock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)
	return New(a), a, clock
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestSpaceTogglesRun(t *testing.T) {
	m, a, _ := newModel(t)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeySpace})
	if !a.Running() {
		t.Fatal("space should start the animator")
	}
	if !strings.Contains(m.View(), "running") {
		t.Fatal("view does not show the running state")
	}
	press(m, tea.KeyMsg{Type: tea.KeySpace})
	if a.Running() {
		t.Fatal("second space should pause")
	}
}

func TestManualStepAndReset(t *testing.T) {
	m, a, _ := newModel(t)
	m, _ = press(m, runes("n"))
	if got := len(a.State().Sequence); got != 2 {
		t.Fatalf("sequence length = %d after manual step", got)
	}
	if !strings.Contains(m.View(), "The") {
		t.Fatal("appended token not rendered")
	}
	press(m, runes("r"))
	if got := len(a.State().Sequence); got != 1 {
		t.Fatalf("sequence length = %d after reset", got)
	}
}

func TestManualStepWhileRunningShowsError(t *testing.T) {
	m, _, _ := newModel(t)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = press(m, runes("n"))
	if m.err == nil || !strings.Contains(m.View(), anim.ErrRunning.Error()) {
		t.Fatalf("err = %v", m.err)
	}
}

func TestDelayKeys(t *testing.T) {
	m, a, _ := newModel(t)
	m, _ = press(m, runes("+"))
	if a.Delay() != 550*time.Millisecond {
		t.Fatalf("delay = %v, want 550ms", a.Delay())
	}
	m, _ = press(m, runes("-"))
	press(m, runes("-"))
	if a.Delay() != 450*time.Millisecond {
		t.Fatalf("delay = %v, want 450ms", a.Delay())
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newModel(t)
	m, cmd := press(m, runes("q"))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("command is not tea.Quit")
	}
	if m.View() != "" {
		t.Fatal("view should be empty after quitting")
	}
}

func TestCursorEasesToAttentionSource(t *testing.T) {
	m, a, clock := newModel(t)
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	// embedding, layer 0, then attention on <start> attending to itself
	clock.Advance(250*time.Millisecond + 2*500*time.Millisecond)
	a.Pause()
	if _, ok := a.State().Attention(); !ok {
		t.Fatalf("expected attention phase, got %s", a.State().Kind())
	}

	target, ok := cursorTarget(a.View())
	if !ok || target != 4.5 {
		t.Fatalf("cursor target = %v, %v", target, ok)
	}
	var cmd tea.Cmd
	m, cmd = press(m, frameMsg{ts: time.Now()})
	if cmd == nil {
		t.Fatal("frames should keep ticking")
	}
	if m.cursorX <= 0 || m.cursorX >= target {
		t.Fatalf("after one frame cursor = %v", m.cursorX)
	}
	for i := 0; i < 3*FPS; i++ {
		m, _ = press(m, frameMsg{})
	}
	if math.Abs(m.cursorX-target) > 0.05 {
		t.Fatalf("cursor settled at %v, want %v", m.cursorX, target)
	}
	if !strings.Contains(m.View(), "^") {
		t.Fatal("attention cursor not drawn")
	}
}

func TestViewLayout(t *testing.T) {
	m, _, _ := newModel(t)
	out := m.View()
	for _, want := range []string{"Embedding", "Layer 1", "Layer 3", "Masked Self-Attention", "Feed Forward", "Status: idle", "Len: 1", "space"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
