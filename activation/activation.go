// Package activation animates an input z sweeping back and forth across an
// activation function curve.
package activation

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/nn"
	"github.com/openfluke/mlviz/plot"
)

const (
	ZMin = -5.0
	ZMax = 5.0

	DefaultSpeed = 0.05
	MinSpeed     = 0.01
	MaxSpeed     = 0.2

	Width    = 500.0
	Height   = 400.0
	YPadding = 0.5
)

// ErrUnsupported is returned for activations this animation does not plot.
var ErrUnsupported = errors.New("activation: unsupported function")

// State is the sweep position on the selected function.
type State struct {
	Function  nn.Activation
	Z         float64
	Direction int // +1 right, -1 left
	Speed     float64
}

// NewState places z at the left edge moving right.
func NewState(fn nn.Activation, speed float64) State {
	return State{Function: fn, Z: ZMin, Direction: 1, Speed: ClampSpeed(speed)}
}

// ClampSpeed bounds a sweep speed to [MinSpeed, MaxSpeed].
func ClampSpeed(v float64) float64 {
	return math.Min(MaxSpeed, math.Max(MinSpeed, v))
}

// Step moves z by one increment, bouncing off the edges of [ZMin, ZMax].
func (s State) Step() State {
	z := s.Z + float64(s.Direction)*s.Speed
	switch {
	case z >= ZMax:
		z, s.Direction = ZMax, -1
	case z <= ZMin:
		z, s.Direction = ZMin, 1
	}
	s.Z = z
	return s
}

// Output is f(z).
func (s State) Output() float64 { return s.Function.Apply(s.Z) }

// Viewport returns the plot range for fn: z in [ZMin, ZMax] and the
// function's output range padded by YPadding.
func Viewport(fn nn.Activation) plot.Viewport {
	r := fn.Info().Range
	return plot.NewViewport(ZMin, ZMax, r[0]-YPadding, r[1]+YPadding, Width, Height)
}

// Curve samples fn once per pixel column and splits the polyline wherever
// neighbouring samples are more than half the canvas height apart.
func Curve(s nn.Sampler, fn nn.Activation) ([][]plot.Point, error) {
	v := Viewport(fn)
	zs := make([]float64, int(Width))
	for px := range zs {
		zs[px] = v.ToMathX(float64(px))
	}
	as, err := s.Sample(fn, zs)
	if err != nil {
		return nil, err
	}

	var segments [][]plot.Point
	var cur []plot.Point
	for i, z := range zs {
		p := v.ToPixel(z, as[i])
		if len(cur) > 0 && math.Abs(p.Y-cur[len(cur)-1].Y) > Height/2 {
			segments = append(segments, cur)
			cur = nil
		}
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments, nil
}

type model struct {
	state State
}

func (m *model) Tick() bool {
	m.state = m.state.Step()
	return true
}

func (m *model) Reset() {
	m.state.Z = ZMin
	m.state.Direction = 1
}

// Config selects the initial function and speed.
type Config struct {
	Function string
	Speed    float64
}

// Animation drives the sweep once per frame.
type Animation struct {
	m       *model
	sched   *anim.Scheduler
	sampler nn.Sampler

	curveMu sync.Mutex
	curves  map[nn.Activation][][]plot.Point
}

// New builds a paused animation. A nil sampler means the CPU sampler.
func New(cfg Config, clock anim.Clock, sampler nn.Sampler) (*Animation, error) {
	fn := nn.ReLU
	if cfg.Function != "" {
		var err error
		if fn, err = ParseFunction(cfg.Function); err != nil {
			return nil, err
		}
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	if sampler == nil {
		sampler = nn.CPUSampler{}
	}
	m := &model{state: NewState(fn, speed)}
	return &Animation{
		m:       m,
		sched:   anim.NewScheduler(clock, m, anim.FrameOptions()),
		sampler: sampler,
		curves:  make(map[nn.Activation][][]plot.Point),
	}, nil
}

// Functions are the activations offered by this animation.
func Functions() []nn.Activation {
	return []nn.Activation{nn.Linear, nn.ReLU, nn.Sigmoid, nn.Tanh, nn.Step}
}

// ParseFunction accepts only the ids in Functions.
func ParseFunction(id string) (nn.Activation, error) {
	fn, err := nn.ParseActivation(id)
	if err != nil {
		return 0, err
	}
	for _, f := range Functions() {
		if f == fn {
			return fn, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, id)
}

func (a *Animation) Scheduler() *anim.Scheduler { return a.sched }

func (a *Animation) Start() error            { return a.sched.Start() }
func (a *Animation) Pause()                  { a.sched.Pause() }
func (a *Animation) Toggle() error           { return a.sched.Toggle() }
func (a *Animation) Reset()                  { a.sched.Reset() }
func (a *Animation) Running() bool           { return a.sched.Running() }
func (a *Animation) Observe(o anim.Observer) { a.sched.Observe(o) }

// Step advances one frame by hand while paused.
func (a *Animation) Step() error {
	_, err := a.sched.StepOnce()
	return err
}

// Close stops the animation and releases the sampler.
func (a *Animation) Close() {
	a.sched.Close()
	a.sampler.Close()
}

// SetFunction switches the plotted function. Like a fresh selection it stops
// the run and returns z to the left edge.
func (a *Animation) SetFunction(id string) error {
	fn, err := ParseFunction(id)
	if err != nil {
		return err
	}
	a.sched.Reset()
	a.sched.Do(func() { a.m.state.Function = fn })
	return nil
}

// SetSpeed changes the sweep speed, clamped, and returns the applied value.
func (a *Animation) SetSpeed(v float64) float64 {
	v = ClampSpeed(v)
	a.sched.Do(func() { a.m.state.Speed = v })
	return v
}

// State returns a copy of the current state.
func (a *Animation) State() State {
	var s State
	a.sched.Do(func() { s = a.m.state })
	return s
}

func (a *Animation) curve(fn nn.Activation) ([][]plot.Point, error) {
	a.curveMu.Lock()
	defer a.curveMu.Unlock()
	if c, ok := a.curves[fn]; ok {
		return c, nil
	}
	c, err := Curve(a.sampler, fn)
	if err != nil {
		return nil, err
	}
	a.curves[fn] = c
	return c, nil
}
