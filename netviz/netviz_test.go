package netviz

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/openfluke/mlviz/anim"
)

func seeded() *rand.Rand { return rand.New(rand.NewSource(7)) }

func TestNewStateRanges(t *testing.T) {
	layers := DefaultLayers()
	s := NewState(layers, seeded())
	if s.Mode != Forward || s.Step != 0 || s.Epoch != 1 || s.Error != InitialError {
		t.Fatalf("initial state = %+v", s)
	}
	if len(s.Params.Weights) != len(layers)-1 {
		t.Fatalf("got %d weight matrices", len(s.Params.Weights))
	}
	for l, m := range s.Params.Weights {
		if len(m) != layers[l].Neurons || len(m[0]) != layers[l+1].Neurons {
			t.Fatalf("matrix %d is %dx%d", l, len(m), len(m[0]))
		}
		for _, row := range m {
			for _, w := range row {
				if w < -1 || w > 1 || math.Abs(w*100-math.Round(w*100)) > 1e-9 {
					t.Fatalf("weight %v out of range or not at two decimals", w)
				}
			}
		}
	}
	if s.Params.Biases[0] != nil {
		t.Fatal("input layer should have no bias")
	}
	for l := 1; l < len(layers); l++ {
		if len(s.Params.Biases[l]) != layers[l].Neurons {
			t.Fatalf("layer %d has %d biases", l, len(s.Params.Biases[l]))
		}
	}
	for _, row := range s.Gradients.Weights[1] {
		for _, g := range row {
			if g < -0.1 || g > 0.1 {
				t.Fatalf("gradient %v out of range", g)
			}
		}
	}
}

func TestAdvanceForwardToBackward(t *testing.T) {
	rng := seeded()
	s := NewState(DefaultLayers(), rng)
	before := s.Gradients.Clone()
	for i := 0; i < StepsPerPass-1; i++ {
		s = s.Advance(rng)
	}
	if s.Mode != Forward || s.Step != StepsPerPass-1 {
		t.Fatalf("before wrap: mode %s step %d", s.Mode, s.Step)
	}
	s = s.Advance(rng)
	if s.Mode != Backward || s.Step != 0 || s.Epoch != 2 {
		t.Fatalf("after wrap: %+v", s)
	}
	if math.Abs(s.Error-0.1275) > 1e-12 {
		t.Fatalf("error = %v, want 0.1275", s.Error)
	}
	if s.Gradients.Weights[0][0][0] == before.Weights[0][0][0] && s.Gradients.Weights[0][0][1] == before.Weights[0][0][1] {
		t.Fatal("expected fresh gradients")
	}
}

func TestAdvanceBackwardAppliesGradients(t *testing.T) {
	rng := seeded()
	s := NewState(DefaultLayers(), rng)
	s.Mode = Backward
	s.Step = StepsPerPass - 1
	w, g := s.Params.Weights[1][2][3], s.Gradients.Weights[1][2][3]
	b, gb := s.Params.Biases[2][1], s.Gradients.Biases[2][1]

	s = s.Advance(rng)
	if s.Mode != Forward || s.Epoch != 1 {
		t.Fatalf("after backward wrap: %+v", s)
	}
	if want := round(w-UpdateRate*g, 2); s.Params.Weights[1][2][3] != want {
		t.Fatalf("weight = %v, want %v", s.Params.Weights[1][2][3], want)
	}
	if want := round(b-UpdateRate*gb, 2); s.Params.Biases[2][1] != want {
		t.Fatalf("bias = %v, want %v", s.Params.Biases[2][1], want)
	}
}

func TestErrorFloor(t *testing.T) {
	rng := seeded()
	s := NewState(DefaultLayers(), rng)
	for i := 0; i < 60*StepsPerPass; i++ {
		s = s.Advance(rng)
	}
	if s.Error != MinError {
		t.Fatalf("error = %v, want floor %v", s.Error, MinError)
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	rng := seeded()
	p := RandomWeights(DefaultLayers(), rng)
	g := RandomGradients(DefaultLayers(), rng)
	orig := p.Weights[0][0][0]
	p.Apply(g, UpdateRate)
	if p.Weights[0][0][0] != orig {
		t.Fatal("Apply mutated its receiver")
	}
}

func TestSignalPositions(t *testing.T) {
	tests := []struct {
		step          int
		fwd, backward float64
	}{
		{0, 0, 100},
		{10, 15, 85},
		{66, 99, 1},
		{80, 100, 0},
	}
	for _, tt := range tests {
		if got := SignalPosition(tt.step); math.Abs(got-tt.fwd) > 1e-9 {
			t.Errorf("SignalPosition(%d) = %v, want %v", tt.step, got, tt.fwd)
		}
		if got := BackwardSignalPosition(tt.step); math.Abs(got-tt.backward) > 1e-9 {
			t.Errorf("BackwardSignalPosition(%d) = %v, want %v", tt.step, got, tt.backward)
		}
	}
}

func TestHighlighted(t *testing.T) {
	s := State{Layers: DefaultLayers(), Mode: Forward}
	// step 0: signal in segment 0, step%7 == 0 and step%5 == 0
	if !s.Highlighted(0, 3, 1) || !s.Highlighted(0, 1, 3) {
		t.Fatal("expected highlights on neurons 0 mod 3")
	}
	if s.Highlighted(0, 1, 1) {
		t.Fatal("neither end matches")
	}
	if s.Highlighted(1, 0, 0) {
		t.Fatal("segment 1 is not under the signal")
	}

	// backward step 10: signal at 85 lies in segment 2; step%7 = 3, step%5 = 0
	s = State{Layers: DefaultLayers(), Mode: Backward, Step: 10}
	if !s.Highlighted(2, 0, 1) {
		t.Fatal("backward pass matches step%5 against the source neuron")
	}
	if s.Highlighted(2, 1, 0) {
		t.Fatal("unexpected highlight")
	}
}

func TestNeuronActivation(t *testing.T) {
	layers := DefaultLayers()
	s := State{Layers: layers, Mode: Forward}
	if got := s.NeuronActivation(0, 0); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("crossing neuron = %v, want 0.5", got)
	}
	if got := s.NeuronActivation(1, 0); got != 0.2 {
		t.Fatalf("unreached neuron = %v, want 0.2", got)
	}

	s.Step = 80
	if got, want := s.NeuronActivation(0, 0), math.Sin(8)*0.3+0.7; math.Abs(got-want) > 1e-12 {
		t.Fatalf("passed neuron = %v, want %v", got, want)
	}

	s = State{Layers: layers, Mode: Backward}
	if got, want := s.NeuronActivation(3, 0), 0.7; math.Abs(got-want) > 1e-12 {
		t.Fatalf("output neuron on backward start = %v, want %v", got, want)
	}
	if got := s.NeuronActivation(2, 1); math.Abs(got-(math.Sin(0.7)*0.5+0.5)) > 1e-12 {
		t.Fatalf("crossing neuron = %v", got)
	}
	if got := s.NeuronActivation(0, 0); got != 0.2 {
		t.Fatalf("unreached neuron = %v", got)
	}
}

func TestColours(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{WeightColor(0.5), "rgb(0, 155, 155)"},
		{WeightColor(-1), "rgb(255, 0, 255)"},
		{WeightColor(0), "rgb(55, 0, 55)"},
		{GradientColor(0.05), "rgb(150, 75, 0)"},
		{GradientColor(-0.001), "rgb(50.5, 0, 101)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStrokeWidth(t *testing.T) {
	tests := []struct {
		show, hl bool
		w, want  float64
	}{
		{true, false, 0.1, 0.5},
		{true, false, 0.5, 1.5},
		{true, true, -2, 3},
		{false, true, 0.9, 2},
		{false, false, 0.9, 1},
	}
	for _, tt := range tests {
		if got := StrokeWidth(tt.show, tt.hl, tt.w); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("StrokeWidth(%v, %v, %v) = %v, want %v", tt.show, tt.hl, tt.w, got, tt.want)
		}
	}
}

func TestAnimationTicksAtSpeedInterval(t *testing.T) {
	clock := anim.NewFakeClock()
	a, err := New(Config{Seed: 3}, clock, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.Scheduler().Delay() != 300*time.Millisecond {
		t.Fatalf("delay = %v", a.Scheduler().Delay())
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * 300 * time.Millisecond)
	if got := a.State().Step; got != 5 {
		t.Fatalf("step = %d, want 5", got)
	}

	if got := a.SetSpeed(9); got != MaxSpeed {
		t.Fatalf("speed = %d", got)
	}
	if a.Scheduler().Delay() != 120*time.Millisecond {
		t.Fatalf("delay = %v", a.Scheduler().Delay())
	}
	clock.Advance(120 * time.Millisecond)
	if got := a.State().Step; got != 6 {
		t.Fatalf("step = %d, want 6", got)
	}
}

func TestResetKeepsWeights(t *testing.T) {
	a, err := New(Config{Seed: 3}, anim.NewFakeClock(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	w := a.State().Params.Weights[0][0][0]
	for i := 0; i < 12; i++ {
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
	}
	a.Reset()
	s := a.State()
	if s.Step != 0 || s.Mode != Forward || s.Params.Weights[0][0][0] != w {
		t.Fatalf("after reset: step %d mode %s", s.Step, s.Mode)
	}
}

func TestSameSeedSameNetwork(t *testing.T) {
	a, _ := New(Config{Seed: 11}, anim.NewFakeClock(), nil)
	b, _ := New(Config{Seed: 11}, anim.NewFakeClock(), nil)
	defer a.Close()
	defer b.Close()
	if a.State().Params.Weights[2][4][2] != b.State().Params.Weights[2][4][2] {
		t.Fatal("same seed produced different weights")
	}
}

func TestSetActivation(t *testing.T) {
	a, err := New(Config{Activation: "tanh", Seed: 1}, anim.NewFakeClock(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if err := a.SetActivation("softmax"); err != nil {
		t.Fatal(err)
	}
	if got := a.Snapshot().Activation.ID; got != "softmax" {
		t.Fatalf("activation = %q", got)
	}
	if err := a.SetActivation("step"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if _, err := New(Config{Activation: "linear"}, nil, nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestSnapshotGradientsOnlyWhenBackward(t *testing.T) {
	a, _ := New(Config{Seed: 5}, anim.NewFakeClock(), nil)
	defer a.Close()
	if a.Snapshot().Gradients != nil {
		t.Fatal("forward snapshot should omit gradients")
	}
	for i := 0; i < StepsPerPass; i++ {
		_ = a.Step()
	}
	snap := a.Snapshot()
	if snap.Mode != Backward || snap.Gradients == nil || snap.Epoch != 2 {
		t.Fatalf("snapshot = mode %s epoch %d", snap.Mode, snap.Epoch)
	}
	if len(snap.Neurons) != 4 || len(snap.Neurons[1]) != 6 {
		t.Fatal("neuron levels do not follow the layer shapes")
	}
}

func TestSVG(t *testing.T) {
	a, _ := New(Config{Seed: 5}, anim.NewFakeClock(), nil)
	defer a.Close()
	a.SetHighlightBias(true)
	a.SetShowWeights(true)
	out := a.SVG()
	for _, want := range []string{"<svg", "Forward Propagation", "Input Layer", "x1", "y3", "signal-overlay", "activation-function", "bias-indicator"} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}

	a.SetShowActivationLayer(false)
	if strings.Contains(a.SVG(), "activation-function") {
		t.Error("activation glyphs should be hidden")
	}
}
