package nn

import (
	"log"

	"github.com/openfluke/mlviz/detector"
)

// ErrNoGPU is returned when no GPU sampler can be created.
var ErrNoGPU = detector.ErrNoGPU

// Sampler evaluates an activation over a batch of inputs.
type Sampler interface {
	Name() string
	Sample(a Activation, xs []float64) ([]float64, error)
	Close()
}

// CPUSampler evaluates activations with Activation.Apply.
type CPUSampler struct{}

func (CPUSampler) Name() string { return "cpu" }

func (CPUSampler) Sample(a Activation, xs []float64) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = a.Apply(x)
	}
	return out, nil
}

func (CPUSampler) Close() {}

// NewSampler returns the GPU sampler when useGPU is set and a device is
// available, and the CPU sampler otherwise.
func NewSampler(useGPU bool) Sampler {
	if !useGPU {
		return CPUSampler{}
	}
	s, err := newGPUSampler()
	if err != nil {
		log.Printf("nn: gpu sampler unavailable, using cpu: %v", err)
		return CPUSampler{}
	}
	return &fallbackSampler{primary: s}
}

// fallbackSampler retries on the CPU when the GPU path fails mid-run.
type fallbackSampler struct {
	primary Sampler
	cpu     CPUSampler
}

func (f *fallbackSampler) Name() string { return f.primary.Name() }

func (f *fallbackSampler) Sample(a Activation, xs []float64) ([]float64, error) {
	out, err := f.primary.Sample(a, xs)
	if err != nil {
		log.Printf("nn: %s sample failed, using cpu: %v", f.primary.Name(), err)
		return f.cpu.Sample(a, xs)
	}
	return out, nil
}

func (f *fallbackSampler) Close() { f.primary.Close() }
