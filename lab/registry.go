// Package lab puts every animation behind one Demo interface and builds
// them by name from the configuration.
package lab

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
)

var (
	ErrUnknownDemo  = errors.New("lab: unknown demo")
	ErrUnknownParam = errors.New("lab: unknown parameter")
	ErrOutOfRange   = errors.New("lab: value out of range")
	ErrBadValue     = errors.New("lab: malformed value")
)

// Demo is the control surface shared by all animations.
type Demo interface {
	Name() string
	Title() string

	Start() error
	Pause()
	Toggle() error
	Reset()
	// Step advances by hand and fails with anim.ErrRunning during a run.
	Step() error
	Running() bool

	// Set changes a named parameter from its string form.
	Set(param, value string) error
	// Params lists the names Set accepts.
	Params() []string

	// Snapshot is a JSON-encodable view of the current state.
	Snapshot() any
	SVG() string

	Observe(anim.Observer)
	Close()
}

// Builder creates a fresh, paused demo.
type Builder func(cfg config.Config, clock anim.Clock) (Demo, error)

// Info names a registered demo.
type Info struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type entry struct {
	title string
	build Builder
}

var registry = map[string]entry{}

// Register adds a demo. Registering a name twice replaces the builder.
func Register(name, title string, b Builder) {
	registry[name] = entry{title: title, build: b}
}

// Names returns the registered demo names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Demos lists every registered demo in name order.
func Demos() []Info {
	names := Names()
	out := make([]Info, len(names))
	for i, n := range names {
		out[i] = Info{Name: n, Title: registry[n].title}
	}
	return out
}

// New builds the named demo. A nil clock means wall time.
func New(name string, cfg config.Config, clock anim.Clock) (Demo, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDemo, name)
	}
	d, err := e.build(cfg, clock)
	if err != nil {
		return nil, fmt.Errorf("lab: build %s: %w", name, err)
	}
	return d, nil
}
