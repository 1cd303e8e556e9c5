package anim

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned when a closed scheduler is asked to start.
	ErrClosed = errors.New("anim: scheduler closed")
	// ErrRunning is returned by operations that are only allowed while paused.
	ErrRunning = errors.New("anim: not allowed while running")
)

// Model is a simulation advanced one step per tick.
type Model interface {
	// Tick advances the model by one step and reports whether the run
	// should continue. Returning false ends the run.
	Tick() bool

	// Reset restores the model to its initial state.
	Reset()
}

// FrameInterval approximates one display frame at 60Hz.
const FrameInterval = 16 * time.Millisecond

// Options bound and shape the tick delay.
type Options struct {
	Delay     time.Duration // initial delay between ticks
	MinDelay  time.Duration // 0 = unbounded
	MaxDelay  time.Duration // 0 = unbounded
	DelayStep time.Duration // SetDelay snaps to multiples of this above MinDelay; 0 = no snapping

	// FastStartDivisor shortens the first tick after Start to Delay/divisor.
	// Values below 2 disable the fast start.
	FastStartDivisor int
}

// TickOptions is the stepped-animation preset: 100ms..1500ms in 50ms steps,
// 500ms default, first tick at half the delay.
func TickOptions() Options {
	return Options{
		Delay:            500 * time.Millisecond,
		MinDelay:         100 * time.Millisecond,
		MaxDelay:         1500 * time.Millisecond,
		DelayStep:        50 * time.Millisecond,
		FastStartDivisor: 2,
	}
}

// FrameOptions is the per-frame preset used in place of an animation-frame
// callback: a fixed FrameInterval with no fast start.
func FrameOptions() Options {
	return Options{
		Delay:    FrameInterval,
		MinDelay: FrameInterval,
		MaxDelay: FrameInterval,
	}
}

// IntervalOptions is a plain repeating interval with no bounds.
func IntervalOptions(d time.Duration) Options {
	return Options{Delay: d}
}

// Clamp bounds d to the option range and snaps it to DelayStep.
func (o Options) Clamp(d time.Duration) time.Duration {
	d = o.bound(d)
	if o.DelayStep > 0 {
		steps := (d - o.MinDelay + o.DelayStep/2) / o.DelayStep
		d = o.bound(o.MinDelay + steps*o.DelayStep)
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

func (o Options) bound(d time.Duration) time.Duration {
	if o.MinDelay > 0 && d < o.MinDelay {
		d = o.MinDelay
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d
}

// handle is the single outstanding scheduled tick. The generation number
// lets a callback that already fired detect it was cancelled or superseded.
type handle struct {
	timer Timer
	gen   uint64
}

func (h *handle) cancel() {
	if h != nil && h.timer != nil {
		h.timer.Stop()
	}
}

// Scheduler drives a Model with a cancelable, self-rescheduling timer.
// At most one tick is ever pending, and ticks run to completion under the
// scheduler lock, so a model never sees two concurrent steps.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	model     Model
	opts      Options
	delay     time.Duration
	running   bool
	closed    bool
	ticks     uint64
	gen       uint64
	pending   *handle
	observers []Observer
}

// NewScheduler creates a paused scheduler. A nil clock means wall time.
func NewScheduler(clock Clock, model Model, opts Options) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock: clock,
		model: model,
		opts:  opts,
		delay: opts.Clamp(opts.Delay),
	}
}

// Observe registers an observer for all subsequent events.
func (s *Scheduler) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Start begins (or resumes) the run. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	first := s.delay
	if div := s.opts.FastStartDivisor; div > 1 {
		first = s.delay / time.Duration(div)
	}
	s.scheduleLocked(first)
	ev, obs := s.eventLocked(EventStart), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
	return nil
}

// Pause cancels the pending tick. Pausing a paused scheduler is a no-op.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.cancelLocked()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ev, obs := s.eventLocked(EventPause), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
}

// Toggle starts a paused scheduler and pauses a running one.
func (s *Scheduler) Toggle() error {
	if s.Running() {
		s.Pause()
		return nil
	}
	return s.Start()
}

// Reset stops the run, cancels any pending tick and resets the model.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.cancelLocked()
	s.running = false
	s.ticks = 0
	s.model.Reset()
	ev, obs := s.eventLocked(EventReset), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
}

// StepOnce runs a single tick by hand. It is rejected while running.
func (s *Scheduler) StepOnce() (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return false, ErrRunning
	}
	more := s.model.Tick()
	s.ticks++
	ev, obs := s.eventLocked(EventTick), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
	return more, nil
}

// SetDelay changes the tick delay (clamped and snapped to the options) and
// returns the value actually applied. A pending tick is rescheduled with the
// new delay.
func (s *Scheduler) SetDelay(d time.Duration) time.Duration {
	s.mu.Lock()
	s.delay = s.opts.Clamp(d)
	if s.running && s.pending != nil {
		s.scheduleLocked(s.delay)
	}
	applied := s.delay
	ev, obs := s.eventLocked(EventDelay), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
	return applied
}

// Delay returns the current tick delay.
func (s *Scheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// Options returns the bounds the scheduler was created with.
func (s *Scheduler) Options() Options {
	return s.opts
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ticks returns the number of ticks since the last reset.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Do runs fn with the scheduler lock held, so fn can read or mutate the
// model without racing a tick. fn must not call back into the scheduler.
func (s *Scheduler) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// DoPaused is Do for operations that are only allowed between runs. It
// returns ErrRunning without calling fn while a run is active.
func (s *Scheduler) DoPaused(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	fn()
	return nil
}

// StepWith is DoPaused for hand-driven changes that observers must see,
// such as a manual step that bypasses the model's Tick. On success it
// notifies observers with EventStep.
func (s *Scheduler) StepWith(fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	fn()
	ev, obs := s.eventLocked(EventStep), s.observersLocked()
	s.mu.Unlock()

	notify(obs, ev)
	return nil
}

// Close cancels pending work and makes the scheduler unusable.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.running = false
	s.closed = true
}

func (s *Scheduler) scheduleLocked(d time.Duration) {
	s.cancelLocked()
	s.gen++
	gen := s.gen
	h := &handle{gen: gen}
	s.pending = h
	h.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) cancelLocked() {
	s.pending.cancel()
	s.pending = nil
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || !s.running || s.pending == nil || s.pending.gen != gen {
		// cancelled or superseded after the timer fired
		s.mu.Unlock()
		return
	}
	s.pending = nil

	more := s.model.Tick()
	s.ticks++
	events := []Event{s.eventLocked(EventTick)}
	if more {
		s.scheduleLocked(s.delay)
	} else {
		s.running = false
		events = append(events, s.eventLocked(EventStop))
	}
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, events...)
}

func (s *Scheduler) eventLocked(kind EventKind) Event {
	return Event{Kind: kind, Ticks: s.ticks, Delay: s.delay, At: s.clock.Now()}
}

func (s *Scheduler) observersLocked() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]Observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func notify(obs []Observer, events ...Event) {
	for _, e := range events {
		for _, o := range obs {
			o.OnEvent(e)
		}
	}
}
