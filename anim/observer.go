package anim

import (
	"log"
	"time"
)

// EventKind identifies what the scheduler just did.
type EventKind string

const (
	EventStart EventKind = "start"
	EventTick  EventKind = "tick"
	EventPause EventKind = "pause"
	EventReset EventKind = "reset"
	EventStop  EventKind = "stop" // the model finished its run on its own
	EventDelay EventKind = "delay"
	EventStep  EventKind = "step" // a paused edit made through StepWith
)

// Event is delivered to observers after the scheduler changes state.
// Observers are called with the scheduler lock released, so they may call
// back into the scheduler (Do, Running, ...).
type Event struct {
	Kind  EventKind     `json:"kind"`
	Ticks uint64        `json:"ticks"` // ticks executed since the last reset
	Delay time.Duration `json:"delay"`
	At    time.Time     `json:"at"`
}

// Observer receives scheduler events.
type Observer interface {
	OnEvent(Event)
}

// FuncObserver adapts a plain function to the Observer interface.
type FuncObserver func(Event)

func (f FuncObserver) OnEvent(e Event) { f(e) }

// =============================================================================
// Example Observer Implementations
// =============================================================================

// ConsoleObserver logs every event. Ticks are skipped unless Verbose is set.
type ConsoleObserver struct {
	Name    string
	Verbose bool
}

func (o *ConsoleObserver) OnEvent(e Event) {
	if e.Kind == EventTick && !o.Verbose {
		return
	}
	log.Printf("[%s] %s ticks=%d delay=%s", o.Name, e.Kind, e.Ticks, e.Delay)
}

// ChannelObserver forwards events to a buffered channel for consumption on
// another goroutine.
type ChannelObserver struct {
	Events chan Event
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan Event, bufferSize),
	}
}

func (o *ChannelObserver) OnEvent(e Event) {
	select {
	case o.Events <- e:
	default:
		// Channel full, drop event to avoid stalling the tick loop
	}
}
