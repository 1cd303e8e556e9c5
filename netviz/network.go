// Package netviz animates forward and backward passes through a small fully
// connected network. The numbers are illustrative: gradients are random and
// the error decays on a fixed schedule.
package netviz

import (
	"math"
	"math/rand"
)

// Layer describes one column of neurons.
type Layer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Neurons       int    `json:"neurons"`
	Description   string `json:"description"`
	HasBias       bool   `json:"has_bias"`
	HasActivation bool   `json:"has_activation"`
}

// DefaultLayers is the 4-6-5-3 network shown by the animation.
func DefaultLayers() []Layer {
	return []Layer{
		{ID: "input", Name: "Input Layer", Neurons: 4, Description: "Receives raw input data."},
		{ID: "hidden1", Name: "Hidden Layer 1", Neurons: 6, Description: "Processes information from the inputs.", HasBias: true, HasActivation: true},
		{ID: "hidden2", Name: "Hidden Layer 2", Neurons: 5, Description: "Further processes features.", HasBias: true, HasActivation: true},
		{ID: "output", Name: "Output Layer", Neurons: 3, Description: "Produces the final prediction.", HasBias: true, HasActivation: true},
	}
}

// Mode is the direction the signal is travelling.
type Mode string

const (
	Forward  Mode = "forward"
	Backward Mode = "backward"
)

const (
	StepsPerPass = 100
	UpdateRate   = 0.1
	ErrorDecay   = 0.85
	MinError     = 0.01
	InitialError = 0.15
)

// Params holds one value per connection and per bias. Weights[l][i][j]
// links neuron i of layer l to neuron j of layer l+1; Biases[l] is nil for
// layers without a bias.
type Params struct {
	Weights [][][]float64 `json:"weights"`
	Biases  [][]float64   `json:"biases"`
}

func newParams(layers []Layer, lo, hi float64, decimals int, rng *rand.Rand) Params {
	draw := func() float64 { return round(lo+rng.Float64()*(hi-lo), decimals) }
	p := Params{
		Weights: make([][][]float64, len(layers)-1),
		Biases:  make([][]float64, len(layers)),
	}
	for l := 0; l < len(layers)-1; l++ {
		p.Weights[l] = make([][]float64, layers[l].Neurons)
		for i := range p.Weights[l] {
			p.Weights[l][i] = make([]float64, layers[l+1].Neurons)
			for j := range p.Weights[l][i] {
				p.Weights[l][i][j] = draw()
			}
		}
	}
	for l, layer := range layers {
		if !layer.HasBias {
			continue
		}
		p.Biases[l] = make([]float64, layer.Neurons)
		for i := range p.Biases[l] {
			p.Biases[l][i] = draw()
		}
	}
	return p
}

// RandomWeights draws weights and biases in [-1, 1] at two decimals.
func RandomWeights(layers []Layer, rng *rand.Rand) Params {
	return newParams(layers, -1, 1, 2, rng)
}

// RandomGradients draws gradients in [-0.1, 0.1] at three decimals.
func RandomGradients(layers []Layer, rng *rand.Rand) Params {
	return newParams(layers, -0.1, 0.1, 3, rng)
}

// Apply returns p - rate*g, rounded to two decimals.
func (p Params) Apply(g Params, rate float64) Params {
	out := p.Clone()
	for l := range out.Weights {
		for i := range out.Weights[l] {
			for j := range out.Weights[l][i] {
				out.Weights[l][i][j] = round(out.Weights[l][i][j]-rate*g.Weights[l][i][j], 2)
			}
		}
	}
	for l := range out.Biases {
		for i := range out.Biases[l] {
			out.Biases[l][i] = round(out.Biases[l][i]-rate*g.Biases[l][i], 2)
		}
	}
	return out
}

func (p Params) Clone() Params {
	out := Params{
		Weights: make([][][]float64, len(p.Weights)),
		Biases:  make([][]float64, len(p.Biases)),
	}
	for l, m := range p.Weights {
		out.Weights[l] = make([][]float64, len(m))
		for i, row := range m {
			out.Weights[l][i] = append([]float64(nil), row...)
		}
	}
	for l, b := range p.Biases {
		if b != nil {
			out.Biases[l] = append([]float64(nil), b...)
		}
	}
	return out
}

func round(v float64, decimals int) float64 {
	s := math.Pow(10, float64(decimals))
	return math.Round(v*s) / s
}

// State is the full animation state.
type State struct {
	Layers    []Layer `json:"layers"`
	Mode      Mode    `json:"mode"`
	Step      int     `json:"step"`
	Epoch     int     `json:"epoch"`
	Error     float64 `json:"error"`
	Params    Params  `json:"params"`
	Gradients Params  `json:"gradients"`
}

// NewState starts a forward pass at epoch 1 with fresh random values.
func NewState(layers []Layer, rng *rand.Rand) State {
	return State{
		Layers:    layers,
		Mode:      Forward,
		Epoch:     1,
		Error:     InitialError,
		Params:    RandomWeights(layers, rng),
		Gradients: RandomGradients(layers, rng),
	}
}

// Advance moves the signal one step. When the step counter wraps, a
// finished forward pass turns into a backward pass with new gradients and a
// decayed error, and a finished backward pass applies the gradients.
func (s State) Advance(rng *rand.Rand) State {
	s.Step = (s.Step + 1) % StepsPerPass
	if s.Step != 0 {
		return s
	}
	switch s.Mode {
	case Forward:
		s.Mode = Backward
		s.Error = math.Max(MinError, s.Error*ErrorDecay)
		s.Epoch++
		s.Gradients = RandomGradients(s.Layers, rng)
	case Backward:
		s.Mode = Forward
		s.Params = s.Params.Apply(s.Gradients, UpdateRate)
	}
	return s
}

func (s State) Clone() State {
	s.Layers = append([]Layer(nil), s.Layers...)
	s.Params = s.Params.Clone()
	s.Gradients = s.Gradients.Clone()
	return s
}
