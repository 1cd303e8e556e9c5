package netviz

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/nn"
)

const (
	BaseInterval = 600 * time.Millisecond
	DefaultSpeed = 2
	MinSpeed     = 1
	MaxSpeed     = 5
)

// ErrUnsupported is returned for activations the network view does not offer.
var ErrUnsupported = errors.New("netviz: unsupported activation")

// Activations are the functions selectable for the hidden and output layers.
func Activations() []nn.Activation {
	return []nn.Activation{nn.ReLU, nn.Sigmoid, nn.Tanh, nn.Softmax}
}

// ParseActivation accepts only the ids in Activations.
func ParseActivation(id string) (nn.Activation, error) {
	a, err := nn.ParseActivation(id)
	if err != nil {
		return 0, err
	}
	for _, ok := range Activations() {
		if ok == a {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, id)
}

// Interval is the tick period for a speed setting.
func Interval(speed int) time.Duration {
	return BaseInterval / time.Duration(clampSpeed(speed))
}

func clampSpeed(v int) int {
	return min(MaxSpeed, max(MinSpeed, v))
}

// Display holds the view toggles. They never affect the simulation.
type Display struct {
	ShowWeights         bool          `json:"show_weights"`
	ShowActivationLayer bool          `json:"show_activation_layer"`
	HighlightBias       bool          `json:"highlight_bias"`
	Activation          nn.Activation `json:"-"`
}

type model struct {
	state State
	rng   *rand.Rand
}

func (m *model) Tick() bool {
	m.state = m.state.Advance(m.rng)
	return true
}

// Reset rewinds the pass but keeps the learned weights and the epoch count.
func (m *model) Reset() {
	m.state.Mode = Forward
	m.state.Step = 0
}

// Config selects the speed, activation and random seed. A zero seed draws
// one from the clock.
type Config struct {
	Speed      int
	Activation string
	Seed       int64
}

// Animation steps the signal through the network on a fixed interval.
type Animation struct {
	m       *model
	sched   *anim.Scheduler
	sampler nn.Sampler
	speed   int
	display Display
}

// New builds a paused animation. A nil sampler means the CPU sampler.
func New(cfg Config, clock anim.Clock, sampler nn.Sampler) (*Animation, error) {
	act := nn.ReLU
	if cfg.Activation != "" {
		var err error
		if act, err = ParseActivation(cfg.Activation); err != nil {
			return nil, err
		}
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	speed = clampSpeed(speed)
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if sampler == nil {
		sampler = nn.CPUSampler{}
	}
	rng := rand.New(rand.NewSource(seed))
	m := &model{state: NewState(DefaultLayers(), rng), rng: rng}
	return &Animation{
		m:       m,
		sched:   anim.NewScheduler(clock, m, anim.IntervalOptions(Interval(speed))),
		sampler: sampler,
		speed:   speed,
		display: Display{ShowActivationLayer: true, Activation: act},
	}, nil
}

func (a *Animation) Scheduler() *anim.Scheduler { return a.sched }

func (a *Animation) Start() error            { return a.sched.Start() }
func (a *Animation) Pause()                  { a.sched.Pause() }
func (a *Animation) Toggle() error           { return a.sched.Toggle() }
func (a *Animation) Reset()                  { a.sched.Reset() }
func (a *Animation) Running() bool           { return a.sched.Running() }
func (a *Animation) Observe(o anim.Observer) { a.sched.Observe(o) }

// Step advances the signal by one step while paused.
func (a *Animation) Step() error {
	_, err := a.sched.StepOnce()
	return err
}

func (a *Animation) Close() {
	a.sched.Close()
	a.sampler.Close()
}

// SetSpeed clamps v to [MinSpeed, MaxSpeed], retimes the interval and
// returns the applied speed.
func (a *Animation) SetSpeed(v int) int {
	v = clampSpeed(v)
	a.sched.SetDelay(Interval(v))
	a.sched.Do(func() { a.speed = v })
	return v
}

func (a *Animation) Speed() int {
	var v int
	a.sched.Do(func() { v = a.speed })
	return v
}

func (a *Animation) SetShowWeights(on bool) {
	a.sched.Do(func() { a.display.ShowWeights = on })
}

func (a *Animation) SetShowActivationLayer(on bool) {
	a.sched.Do(func() { a.display.ShowActivationLayer = on })
}

func (a *Animation) SetHighlightBias(on bool) {
	a.sched.Do(func() { a.display.HighlightBias = on })
}

// SetActivation changes the function shown on the activation glyphs.
func (a *Animation) SetActivation(id string) error {
	act, err := ParseActivation(id)
	if err != nil {
		return err
	}
	a.sched.Do(func() { a.display.Activation = act })
	return nil
}

func (a *Animation) Display() Display {
	var d Display
	a.sched.Do(func() { d = a.display })
	return d
}

// State returns a copy of the current state.
func (a *Animation) State() State {
	var s State
	a.sched.Do(func() { s = a.m.state.Clone() })
	return s
}
