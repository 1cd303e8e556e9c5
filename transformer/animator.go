package transformer

import (
	"time"

	"github.com/openfluke/mlviz/anim"
)

// model adapts the pure step function to anim.Model. It is only touched
// under the scheduler lock.
type model struct {
	cfg   Config
	state State
}

func (m *model) Tick() bool {
	m.state = Step(m.cfg, m.state)
	return !m.state.Stopped
}

func (m *model) Reset() {
	m.state = NewState()
}

// Animator runs the step machine on a scheduler. The scheduler is the only
// owner of the state between ticks.
type Animator struct {
	cfg   Config
	m     *model
	sched *anim.Scheduler
}

// NewAnimator creates a paused animator. A nil clock means wall time.
func NewAnimator(cfg Config, clock anim.Clock) (*Animator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &model{cfg: cfg, state: NewState()}
	return &Animator{
		cfg:   cfg,
		m:     m,
		sched: anim.NewScheduler(clock, m, anim.TickOptions()),
	}, nil
}

// Config returns the animator configuration.
func (a *Animator) Config() Config { return a.cfg }

// Scheduler exposes the underlying tick driver.
func (a *Animator) Scheduler() *anim.Scheduler { return a.sched }

func (a *Animator) Start() error            { return a.sched.Start() }
func (a *Animator) Pause()                  { a.sched.Pause() }
func (a *Animator) Toggle() error           { return a.sched.Toggle() }
func (a *Animator) Reset()                  { a.sched.Reset() }
func (a *Animator) Running() bool           { return a.sched.Running() }
func (a *Animator) Delay() time.Duration    { return a.sched.Delay() }
func (a *Animator) Observe(o anim.Observer) { a.sched.Observe(o) }
func (a *Animator) Close()                  { a.sched.Close() }

// SetDelay changes the tick delay; see anim.Scheduler.SetDelay.
func (a *Animator) SetDelay(d time.Duration) time.Duration {
	return a.sched.SetDelay(d)
}

// ManualStep appends one predicted token without animating the phases.
// It returns anim.ErrRunning while a run is active and false when the
// sequence is already finished.
func (a *Animator) ManualStep() (bool, error) {
	var changed bool
	err := a.sched.StepWith(func() {
		a.m.state, changed = ManualStep(a.cfg, a.m.state)
	})
	return changed, err
}

// State returns a copy of the current state.
func (a *Animator) State() State {
	var s State
	a.sched.Do(func() { s = a.m.state.Clone() })
	return s
}

// View projects the current state for rendering.
func (a *Animator) View() View {
	return Project(a.cfg, a.State())
}

// SVG renders the current state.
func (a *Animator) SVG() string {
	return RenderSVG(a.View())
}

// Snapshot is the JSON view of the animator.
type Snapshot struct {
	View
	Sequence []string `json:"sequence"`
	DelayMS  int64    `json:"delay_ms"`
	Running  bool     `json:"running"`
}

func (a *Animator) Snapshot() Snapshot {
	s := a.State()
	return Snapshot{
		View:     Project(a.cfg, s),
		Sequence: s.Sequence,
		DelayMS:  a.Delay().Milliseconds(),
		Running:  a.Running(),
	}
}
