package lab

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/openfluke/mlviz/anim"
)

// controls is the part of Demo every animation type already implements.
type controls interface {
	Start() error
	Pause()
	Toggle() error
	Reset()
	Running() bool
	Observe(anim.Observer)
	Close()
}

// demo adapts one animation to the Demo interface.
type demo struct {
	controls
	name     string
	title    string
	step     func() error
	params   map[string]func(string) error
	snapshot func() any
	svg      func() string
}

func (d *demo) Name() string  { return d.name }
func (d *demo) Title() string { return d.title }
func (d *demo) Step() error   { return d.step() }
func (d *demo) Snapshot() any { return d.snapshot() }
func (d *demo) SVG() string   { return d.svg() }

func (d *demo) Set(param, value string) error {
	set, ok := d.params[param]
	if !ok {
		return fmt.Errorf("%w: %s has no %q", ErrUnknownParam, d.name, param)
	}
	return set(value)
}

func (d *demo) Params() []string {
	out := make([]string, 0, len(d.params))
	for k := range d.params {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseFloat(param, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadValue, param, value)
	}
	return v, nil
}

func parseInt(param, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadValue, param, value)
	}
	return v, nil
}

func parseBool(param, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadValue, param, value)
	}
	return v, nil
}

func checkRange(param string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfRange, param, v, lo, hi)
	}
	return nil
}
