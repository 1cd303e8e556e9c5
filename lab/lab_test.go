package lab

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
	"github.com/openfluke/mlviz/transformer"
)

func newDemo(t *testing.T, name string) (Demo, *anim.FakeClock) {
	t.Helper()
	clock := anim.NewFakeClock()
	d, err := New(name, config.Default(), clock)
	if err != nil {
		t.Fatalf("New(%q): %v", name, err)
	}
	t.Cleanup(d.Close)
	return d, clock
}

func TestRegistryNames(t *testing.T) {
	want := []string{"activation", "descent", "linear", "logistic", "netviz", "transformer"}
	got := Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for _, info := range Demos() {
		if info.Title == "" {
			t.Errorf("%s has no title", info.Name)
		}
	}
}

func TestEveryDemoBuildsAndRenders(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			d, _ := newDemo(t, name)
			if d.Name() != name || d.Title() == "" {
				t.Fatalf("name/title = %q/%q", d.Name(), d.Title())
			}
			if d.Running() {
				t.Fatal("new demo should be paused")
			}
			if err := d.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
			if _, err := json.Marshal(d.Snapshot()); err != nil {
				t.Fatalf("snapshot is not JSON: %v", err)
			}
			if svg := d.SVG(); !strings.HasPrefix(svg, "<svg") {
				t.Fatalf("SVG() = %.40q", svg)
			}
			if len(d.Params()) == 0 {
				t.Fatal("no parameters")
			}
		})
	}
}

func TestUnknownDemo(t *testing.T) {
	if _, err := New("nope", config.Default(), nil); !errors.Is(err, ErrUnknownDemo) {
		t.Fatalf("err = %v, want ErrUnknownDemo", err)
	}
}

func TestBuildErrorIsWrapped(t *testing.T) {
	cfg := config.Default()
	cfg.Activation.Function = "softmax"
	_, err := New("activation", cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "build activation") {
		t.Fatalf("err = %v", err)
	}
}

func TestSetErrors(t *testing.T) {
	d, _ := newDemo(t, "descent")
	if err := d.Set("momentum", "0.9"); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("err = %v, want ErrUnknownParam", err)
	}
	if err := d.Set("learning_rate", "fast"); !errors.Is(err, ErrBadValue) {
		t.Fatalf("err = %v, want ErrBadValue", err)
	}
	if err := d.Set("start_x", "42"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
	if err := d.Set("start_x", "-3"); err != nil {
		t.Fatal(err)
	}
}

func TestSetRejectedWhileRunning(t *testing.T) {
	d, _ := newDemo(t, "descent")
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Set("learning_rate", "0.5"); !errors.Is(err, anim.ErrRunning) {
		t.Fatalf("err = %v, want anim.ErrRunning", err)
	}
	if err := d.Step(); !errors.Is(err, anim.ErrRunning) {
		t.Fatalf("Step err = %v, want anim.ErrRunning", err)
	}
}

func TestTransformerDemo(t *testing.T) {
	d, clock := newDemo(t, "transformer")
	if err := d.Set("delay", "120"); err != nil {
		t.Fatal(err)
	}
	snap := d.Snapshot().(transformer.Snapshot)
	if snap.DelayMS != 100 {
		t.Fatalf("delay = %dms, want 100 after snapping", snap.DelayMS)
	}
	if err := d.Set("delay", "0"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err = %v", err)
	}

	// manual step appends the first token at once
	if err := d.Step(); err != nil {
		t.Fatal(err)
	}
	if got := d.Snapshot().(transformer.Snapshot).Sequence; len(got) != 2 || got[1] != "The" {
		t.Fatalf("sequence = %v", got)
	}

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(50 * time.Millisecond)
	if got := d.Snapshot().(transformer.Snapshot).Status; got != "embedding" {
		t.Fatalf("status after first tick = %q", got)
	}
}

func TestNetVizToggles(t *testing.T) {
	d, _ := newDemo(t, "netviz")
	for _, p := range []string{"show_weights", "show_activation_layer", "highlight_bias"} {
		if err := d.Set(p, "true"); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
	}
	if err := d.Set("highlight_bias", "maybe"); !errors.Is(err, ErrBadValue) {
		t.Fatalf("err = %v", err)
	}
	if err := d.Set("speed", "4"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.SVG(), "bias-indicator") {
		t.Fatal("bias highlight not rendered")
	}
}

func TestObserverSeesTicks(t *testing.T) {
	d, clock := newDemo(t, "linear")
	var kinds []anim.EventKind
	d.Observe(anim.FuncObserver(func(e anim.Event) { kinds = append(kinds, e.Kind) }))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(3 * anim.FrameInterval)
	d.Pause()
	want := []anim.EventKind{anim.EventStart, anim.EventTick, anim.EventTick, anim.EventTick, anim.EventPause}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
}

func TestRunTicks(t *testing.T) {
	d, clock := newDemo(t, "netviz")
	n, err := RunTicks(d, clock, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 || d.Running() {
		t.Fatalf("ran %d ticks, running=%v", n, d.Running())
	}
}

func TestRunTicksStopsWithTheDemo(t *testing.T) {
	cfg := config.Default()
	cfg.Transformer.MaxLen = 2
	clock := anim.NewFakeClock()
	d, err := New("transformer", cfg, clock)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	// one full cycle appends a token, then the run stops by itself
	n, err := RunTicks(d, clock, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if n >= 1000 || d.Running() {
		t.Fatalf("ran %d ticks, running=%v", n, d.Running())
	}
	if seq := d.Snapshot().(transformer.Snapshot).Sequence; len(seq) != 2 {
		t.Fatalf("sequence = %v", seq)
	}
}
