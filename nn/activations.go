package nn

import (
	"fmt"
	"math"
	"strings"
)

// Activation identifies a scalar activation function. The numeric values
// double as the shader case index in the GPU sampler.
type Activation int

const (
	Linear  Activation = 0 // z
	ReLU    Activation = 1 // max(0, z)
	Sigmoid Activation = 2 // 1 / (1 + e^-z)
	Tanh    Activation = 3 // tanh(z)
	Step    Activation = 4 // 1 if z >= 0, else 0
	Softmax Activation = 5 // e^z per element; normalise with SoftmaxVector
)

// ActivationInfo is the display metadata for an activation.
type ActivationInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Range       [2]float64 `json:"range"` // output range shown on plots
}

var activationInfo = map[Activation]ActivationInfo{
	Linear:  {"linear", "Linear (Identity)", "Outputs the input directly: f(z) = z", [2]float64{-2, 2}},
	ReLU:    {"relu", "ReLU", "Rectified Linear Unit: f(z) = max(0, z)", [2]float64{0, 2}},
	Sigmoid: {"sigmoid", "Sigmoid", "Sigmoid: f(z) = 1 / (1 + e^-z)", [2]float64{0, 1}},
	Tanh:    {"tanh", "Tanh", "Hyperbolic Tangent: f(z) = tanh(z)", [2]float64{-1, 1}},
	Step:    {"step", "Step Function", "Outputs 1 if z >= 0, else 0: f(z) = z >= 0 ? 1 : 0", [2]float64{0, 1}},
	Softmax: {"softmax", "Softmax", "Softmax: converts outputs to probabilities", [2]float64{0, 1}},
}

// Activations lists every activation in declaration order.
func Activations() []Activation {
	return []Activation{Linear, ReLU, Sigmoid, Tanh, Step, Softmax}
}

// ParseActivation resolves an id such as "relu".
func ParseActivation(id string) (Activation, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for a, info := range activationInfo {
		if info.ID == id {
			return a, nil
		}
	}
	return 0, fmt.Errorf("nn: unknown activation %q", id)
}

func (a Activation) Info() ActivationInfo { return activationInfo[a] }

func (a Activation) String() string {
	if info, ok := activationInfo[a]; ok {
		return info.ID
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// Apply evaluates the activation at z.
func (a Activation) Apply(z float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, z)
	case Sigmoid:
		return 1 / (1 + math.Exp(-z))
	case Tanh:
		return math.Tanh(z)
	case Step:
		if z >= 0 {
			return 1
		}
		return 0
	case Softmax:
		return math.Exp(z)
	default:
		return z
	}
}

// Derivative computes d/dz of the activation at the pre-activation z.
func (a Activation) Derivative(z float64) float64 {
	switch a {
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		s := 1 / (1 + math.Exp(-z))
		return s * (1 - s)
	case Tanh:
		t := math.Tanh(z)
		return 1 - t*t
	case Step:
		return 0
	case Softmax:
		return math.Exp(z)
	default:
		return 1
	}
}

// SoftmaxVector returns the normalised exponentials of xs, shifted by the
// max for stability.
func SoftmaxVector(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	maxV := xs[0]
	for _, x := range xs[1:] {
		maxV = math.Max(maxV, x)
	}
	var sum float64
	for i, x := range xs {
		out[i] = math.Exp(x - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
