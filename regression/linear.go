// Package regression animates linear regression (mean squared error) and
// logistic regression (log loss), both fitted by full-batch gradient descent.
package regression

import (
	"math"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/plot"
)

const (
	// Tolerance is the gradient size at which a fit counts as converged.
	Tolerance = 0.001

	// WarmupIterations must pass before convergence is checked.
	WarmupIterations = 10

	DefaultLinearLR = 0.01
	MinLinearLR     = 0.001
	MaxLinearLR     = 0.05
)

// LinearData is the fixed, roughly y = 2x data set.
var LinearData = []plot.Point{
	{X: 1, Y: 2.1}, {X: 1.5, Y: 3.5}, {X: 2, Y: 3.9}, {X: 2.5, Y: 5.1}, {X: 3, Y: 6.2},
	{X: 3.5, Y: 6.8}, {X: 4, Y: 8.1}, {X: 4.5, Y: 9.2}, {X: 5, Y: 9.8}, {X: 5.5, Y: 11.5},
}

// LinearState is the line y = M*x + B being fitted.
type LinearState struct {
	M, B      float64
	Iteration int
	Converged bool
}

func (s LinearState) Predict(x float64) float64 { return s.M*x + s.B }

// MSE is the mean squared error of the line over data.
func (s LinearState) MSE(data []plot.Point) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, p := range data {
		e := p.Y - s.Predict(p.X)
		sum += e * e
	}
	return sum / float64(len(data))
}

// Gradients returns dMSE/dM and dMSE/dB.
func (s LinearState) Gradients(data []plot.Point) (gm, gb float64) {
	n := float64(len(data))
	for _, p := range data {
		e := p.Y - s.Predict(p.X)
		gm += (-2 / n) * p.X * e
		gb += (-2 / n) * e
	}
	return gm, gb
}

// Step applies one gradient update. It reports false without changing the
// line when data is empty or, after the warmup, both gradients are below
// Tolerance.
func (s *LinearState) Step(data []plot.Point, lr float64) bool {
	if len(data) == 0 {
		return false
	}
	gm, gb := s.Gradients(data)
	if s.Iteration > WarmupIterations && math.Abs(gm) < Tolerance && math.Abs(gb) < Tolerance {
		s.Converged = true
		return false
	}
	s.M -= lr * gm
	s.B -= lr * gb
	s.Iteration++
	return true
}

// ClampLinearLR bounds a learning rate to [MinLinearLR, MaxLinearLR].
func ClampLinearLR(v float64) float64 {
	return math.Min(MaxLinearLR, math.Max(MinLinearLR, v))
}

type linearModel struct {
	state LinearState
	data  []plot.Point
	lr    float64
}

func (m *linearModel) Tick() bool { return m.state.Step(m.data, m.lr) }
func (m *linearModel) Reset()     { m.state = LinearState{} }

// LinearConfig holds the initial parameters. A zero rate takes the default.
type LinearConfig struct {
	LearningRate float64
}

// Linear runs linear regression once per frame until it converges.
type Linear struct {
	m     *linearModel
	sched *anim.Scheduler
}

// NewLinear builds a paused linear regression over LinearData.
func NewLinear(cfg LinearConfig, clock anim.Clock) *Linear {
	lr := cfg.LearningRate
	if lr == 0 {
		lr = DefaultLinearLR
	}
	m := &linearModel{data: LinearData, lr: ClampLinearLR(lr)}
	return &Linear{m: m, sched: anim.NewScheduler(clock, m, anim.FrameOptions())}
}

func (l *Linear) Scheduler() *anim.Scheduler { return l.sched }

func (l *Linear) Start() error            { return l.sched.Start() }
func (l *Linear) Pause()                  { l.sched.Pause() }
func (l *Linear) Toggle() error           { return l.sched.Toggle() }
func (l *Linear) Reset()                  { l.sched.Reset() }
func (l *Linear) Running() bool           { return l.sched.Running() }
func (l *Linear) Observe(o anim.Observer) { l.sched.Observe(o) }
func (l *Linear) Close()                  { l.sched.Close() }

// Step applies one update by hand.
func (l *Linear) Step() error {
	_, err := l.sched.StepOnce()
	return err
}

// SetLearningRate is rejected while running.
func (l *Linear) SetLearningRate(v float64) (float64, error) {
	v = ClampLinearLR(v)
	return v, l.sched.DoPaused(func() { l.m.lr = v })
}

// State returns the current line and the rate in use.
func (l *Linear) State() (LinearState, float64) {
	var s LinearState
	var lr float64
	l.sched.Do(func() { s, lr = l.m.state, l.m.lr })
	return s, lr
}
