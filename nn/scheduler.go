package nn

import (
	"fmt"
	"math"
)

// LRScheduler maps an iteration number to a learning rate.
type LRScheduler interface {
	// LR returns the learning rate for the given step
	LR(step int) float64

	// Name returns the scheduler id
	Name() string
}

// ============================================================================
// Constant - fixed learning rate
// ============================================================================

type ConstantSchedule struct {
	Base float64
}

func (s ConstantSchedule) LR(int) float64 { return s.Base }
func (s ConstantSchedule) Name() string   { return "constant" }

// ============================================================================
// Linear decay - from Base down to Final over Steps
// ============================================================================

type LinearDecaySchedule struct {
	Base  float64
	Final float64
	Steps int
}

func (s LinearDecaySchedule) LR(step int) float64 {
	if s.Steps <= 0 || step >= s.Steps {
		return s.Final
	}
	progress := float64(step) / float64(s.Steps)
	return s.Base + (s.Final-s.Base)*progress
}

func (s LinearDecaySchedule) Name() string { return "linear" }

// ============================================================================
// Cosine annealing - half cosine from Base to Min over Steps
// ============================================================================

type CosineSchedule struct {
	Base  float64
	Min   float64
	Steps int
}

func (s CosineSchedule) LR(step int) float64 {
	if s.Steps <= 0 || step >= s.Steps {
		return s.Min
	}
	progress := float64(step) / float64(s.Steps)
	decay := (1 + math.Cos(math.Pi*progress)) / 2
	return s.Min + (s.Base-s.Min)*decay
}

func (s CosineSchedule) Name() string { return "cosine" }

// Decay schedules bottom out at this fraction of the base rate.
const minLRFraction = 0.1

// NewSchedule builds a schedule by id: "constant", "linear" or "cosine".
// Decaying schedules run over steps iterations.
func NewSchedule(id string, base float64, steps int) (LRScheduler, error) {
	switch id {
	case "", "constant":
		return ConstantSchedule{Base: base}, nil
	case "linear":
		return LinearDecaySchedule{Base: base, Final: base * minLRFraction, Steps: steps}, nil
	case "cosine":
		return CosineSchedule{Base: base, Min: base * minLRFraction, Steps: steps}, nil
	}
	return nil, fmt.Errorf("nn: unknown schedule %q", id)
}
