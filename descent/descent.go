// Package descent animates gradient descent on f(x) = 0.1x^2 + cos(x), a
// curve with one global and two local minima.
package descent

import (
	"fmt"
	"math"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/nn"
	"github.com/openfluke/mlviz/plot"
)

const (
	DefaultStartX = 8.0
	DefaultLR     = 0.3
	MinLR         = 0.01
	MaxLR         = 1.5

	// Tolerance is the gradient magnitude at which the descent stops.
	Tolerance = 0.001

	// MaxHistory bounds the trail; the oldest points are dropped first.
	MaxHistory = 5000

	// ScheduleSteps is the horizon of the decaying learning-rate schedules.
	ScheduleSteps = 200
)

// F is the function being minimised.
func F(x float64) float64 { return 0.1*x*x + math.Cos(x) }

// Grad is F'(x).
func Grad(x float64) float64 { return 0.2*x - math.Sin(x) }

// State is one descent run.
type State struct {
	X         float64
	StartX    float64
	Iteration int
	History   []plot.Point
	Converged bool
}

// NewState starts at startX with a one-point history.
func NewState(startX float64) State {
	return State{
		X:       startX,
		StartX:  startX,
		History: []plot.Point{{X: startX, Y: F(startX)}},
	}
}

// Step takes one step of size lr. It reports false, leaving x unchanged,
// once the gradient is below Tolerance.
func (s *State) Step(lr float64) bool {
	g := Grad(s.X)
	if math.Abs(g) < Tolerance {
		s.Converged = true
		return false
	}
	s.X -= lr * g
	s.History = append(s.History, plot.Point{X: s.X, Y: F(s.X)})
	if len(s.History) > MaxHistory {
		s.History = append(s.History[:0:0], s.History[len(s.History)-MaxHistory:]...)
	}
	s.Iteration++
	return true
}

// Clone copies the history so the result can be read outside the lock.
func (s State) Clone() State {
	s.History = append([]plot.Point(nil), s.History...)
	return s
}

// ClampLR bounds a learning rate to [MinLR, MaxLR].
func ClampLR(v float64) float64 { return math.Min(MaxLR, math.Max(MinLR, v)) }

type model struct {
	state    State
	lr       float64
	schedule string
	sched    nn.LRScheduler
}

func (m *model) Tick() bool {
	return m.state.Step(m.sched.LR(m.state.Iteration))
}

func (m *model) Reset() {
	m.state = NewState(m.state.StartX)
}

func (m *model) rebuild() error {
	s, err := nn.NewSchedule(m.schedule, m.lr, ScheduleSteps)
	if err != nil {
		return err
	}
	m.sched = s
	return nil
}

// Config holds the initial parameters. A zero LearningRate takes the
// default.
type Config struct {
	StartX       float64
	LearningRate float64
	Schedule     string // constant, linear or cosine
}

// Animation runs the descent once per frame until it converges.
type Animation struct {
	m     *model
	sched *anim.Scheduler
}

// New builds a paused descent animation.
func New(cfg Config, clock anim.Clock) (*Animation, error) {
	lr := cfg.LearningRate
	if lr == 0 {
		lr = DefaultLR
	}
	m := &model{
		state:    NewState(cfg.StartX),
		lr:       ClampLR(lr),
		schedule: cfg.Schedule,
	}
	if err := m.rebuild(); err != nil {
		return nil, fmt.Errorf("descent: %w", err)
	}
	return &Animation{m: m, sched: anim.NewScheduler(clock, m, anim.FrameOptions())}, nil
}

// DefaultConfig starts at x = 8 with a constant rate of 0.3.
func DefaultConfig() Config {
	return Config{StartX: DefaultStartX, LearningRate: DefaultLR, Schedule: "constant"}
}

func (a *Animation) Scheduler() *anim.Scheduler { return a.sched }

func (a *Animation) Start() error            { return a.sched.Start() }
func (a *Animation) Pause()                  { a.sched.Pause() }
func (a *Animation) Toggle() error           { return a.sched.Toggle() }
func (a *Animation) Reset()                  { a.sched.Reset() }
func (a *Animation) Running() bool           { return a.sched.Running() }
func (a *Animation) Observe(o anim.Observer) { a.sched.Observe(o) }
func (a *Animation) Close()                  { a.sched.Close() }

// Step takes a single descent step by hand.
func (a *Animation) Step() error {
	_, err := a.sched.StepOnce()
	return err
}

// SetLearningRate changes the base rate. It is rejected while running.
func (a *Animation) SetLearningRate(v float64) (float64, error) {
	v = ClampLR(v)
	err := a.sched.DoPaused(func() {
		a.m.lr = v
		_ = a.m.rebuild()
	})
	return v, err
}

// SetSchedule switches the learning-rate schedule. It is rejected while
// running.
func (a *Animation) SetSchedule(id string) error {
	if _, err := nn.NewSchedule(id, 1, ScheduleSteps); err != nil {
		return err
	}
	return a.sched.DoPaused(func() {
		a.m.schedule = id
		_ = a.m.rebuild()
	})
}

// SetStartX moves the starting point and restarts the trail from it. It is
// rejected while running.
func (a *Animation) SetStartX(x float64) error {
	return a.sched.DoPaused(func() {
		a.m.state = NewState(x)
	})
}

// State returns a copy of the current state.
func (a *Animation) State() State {
	var s State
	a.sched.Do(func() { s = a.m.state.Clone() })
	return s
}

// LearningRate returns the base rate and the rate the next step will use.
func (a *Animation) LearningRate() (base, current float64) {
	a.sched.Do(func() {
		base = a.m.lr
		current = a.m.sched.LR(a.m.state.Iteration)
	})
	return base, current
}

// Schedule returns the active schedule id.
func (a *Animation) Schedule() string {
	var id string
	a.sched.Do(func() { id = a.m.sched.Name() })
	return id
}
