// Package tui renders the transformer animator in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/openfluke/mlviz/transformer"
)

const (
	FPS        = 30
	DelayStep  = 50 * time.Millisecond
	chipGap    = 1
	chipMargin = 2 // horizontal padding inside a chip
)

type frameMsg struct{ ts time.Time }

func frameCmd() tea.Cmd {
	return tea.Tick(time.Second/FPS, func(ts time.Time) tea.Msg { return frameMsg{ts: ts} })
}

type keyMap struct {
	Toggle key.Binding
	Reset  key.Binding
	Step   key.Binding
	Slower key.Binding
	Faster key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.Step, k.Slower, k.Faster, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/pause")),
		Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Step:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "manual step")),
		Slower: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "slower")),
		Faster: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "faster")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type styles struct {
	title     lipgloss.Style
	chip      lipgloss.Style
	process   lipgloss.Style
	embedding lipgloss.Style
	source    lipgloss.Style
	target    lipgloss.Style
	pending   lipgloss.Style
	block     lipgloss.Style
	active    lipgloss.Style
	subActive lipgloss.Style
	cursor    lipgloss.Style
	dim       lipgloss.Style
	warn      lipgloss.Style
}

func defaultStyles() styles {
	brand := lipgloss.Color("51")
	subtle := lipgloss.Color("241")
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(brand),
		chip:      lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("236")),
		process:   lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("23")).Bold(true),
		embedding: lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("53")),
		source:    lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("136")).Foreground(lipgloss.Color("0")),
		target:    lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("24")).Bold(true),
		pending:   lipgloss.NewStyle().Padding(0, 1).Foreground(subtle),
		block:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1),
		active:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(brand).Padding(0, 1),
		subActive: lipgloss.NewStyle().Bold(true).Foreground(brand),
		cursor:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		dim:       lipgloss.NewStyle().Foreground(subtle),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// Model is the bubbletea model driving one animator.
type Model struct {
	anim   *transformer.Animator
	keys   keyMap
	help   help.Model
	styles styles

	spring    harmonica.Spring
	cursorX   float64 // eased column of the attention cursor
	cursorVel float64

	err      error
	quitting bool
}

// New wraps an animator. The caller keeps ownership and closes it.
func New(a *transformer.Animator) Model {
	return Model{
		anim:   a,
		keys:   defaultKeys(),
		help:   help.New(),
		styles: defaultStyles(),
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 8.0, 0.8),
	}
}

func (m Model) Init() tea.Cmd { return frameCmd() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.anim.Pause()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.err = m.anim.Toggle()
		case key.Matches(msg, m.keys.Reset):
			m.anim.Reset()
		case key.Matches(msg, m.keys.Step):
			_, m.err = m.anim.ManualStep()
		case key.Matches(msg, m.keys.Slower):
			m.anim.SetDelay(m.anim.Delay() + DelayStep)
		case key.Matches(msg, m.keys.Faster):
			m.anim.SetDelay(m.anim.Delay() - DelayStep)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case frameMsg:
		if target, ok := cursorTarget(m.anim.View()); ok {
			m.cursorX, m.cursorVel = m.spring.Update(m.cursorX, m.cursorVel, target)
		}
		return m, frameCmd()
	}
	return m, nil
}

// chipOffsets returns the starting column of each chip in the token row.
func chipOffsets(chips []transformer.Chip) []int {
	out := make([]int, len(chips))
	x := 0
	for i, c := range chips {
		out[i] = x
		x += lipgloss.Width(c.Text) + chipMargin + chipGap
	}
	return out
}

// cursorTarget is the centre column of the attention source chip.
func cursorTarget(v transformer.View) (float64, bool) {
	offs := chipOffsets(v.Chips)
	for i, c := range v.Chips {
		if c.AttentionSource {
			return float64(offs[i]) + float64(lipgloss.Width(c.Text)+chipMargin)/2, true
		}
	}
	return 0, false
}

func (m Model) chipStyle(c transformer.Chip) lipgloss.Style {
	switch {
	case c.HasClass("token-attention-source"):
		return m.styles.source
	case c.HasClass("token-attention-target"):
		return m.styles.target
	case c.HasClass("token-embedding"):
		return m.styles.embedding
	case c.HasClass("token-processing"):
		return m.styles.process
	}
	return m.styles.chip
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.anim.View()
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Decoder-Only Transformer"))
	b.WriteString("\n\n")

	chips := make([]string, 0, len(v.Chips)+1)
	for _, c := range v.Chips {
		chips = append(chips, m.chipStyle(c).Render(c.Text))
	}
	if v.Predicting {
		chips = append(chips, m.styles.pending.Render("?"))
	}
	b.WriteString(strings.Join(chips, strings.Repeat(" ", chipGap)))
	b.WriteString("\n")
	if _, ok := cursorTarget(v); ok {
		col := max(0, int(math.Round(m.cursorX)))
		b.WriteString(strings.Repeat(" ", col) + m.styles.cursor.Render("^"))
	}
	b.WriteString("\n")

	emb := m.styles.block
	if v.EmbeddingActive {
		emb = m.styles.active
	}
	b.WriteString(emb.Render("Embedding"))
	b.WriteString("\n")

	boxes := make([]string, len(v.Layers))
	for i, l := range v.Layers {
		att, ffn := m.styles.dim.Render("Masked Self-Attention"), m.styles.dim.Render("Feed Forward")
		if l.AttentionActive {
			att = m.styles.subActive.Render("Masked Self-Attention")
		}
		if l.FFNActive {
			ffn = m.styles.subActive.Render("Feed Forward")
		}
		st := m.styles.block
		if l.Active {
			st = m.styles.active
		}
		boxes[i] = st.Render(fmt.Sprintf("Layer %d\n%s\n%s", l.Index+1, att, ffn))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	out := m.styles.block
	label := "Output"
	if v.OutputActive {
		out = m.styles.active
	}
	if v.Predicted != "" {
		label = "Predicted: " + v.Predicted
	}
	b.WriteString(out.Render(label))
	b.WriteString("\n\n")

	state := "paused"
	if m.anim.Running() {
		state = "running"
	}
	b.WriteString(m.styles.dim.Render(fmt.Sprintf("Status: %s   Len: %d   Layer: %s   Delay: %s   (%s)",
		v.Status, v.Len, v.LayerLabel, m.anim.Delay(), state)))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.styles.warn.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Run starts a full-screen program for a and blocks until the user quits.
func Run(a *transformer.Animator) error {
	_, err := tea.NewProgram(New(a), tea.WithAltScreen()).Run()
	return err
}
