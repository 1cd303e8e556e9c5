//go:build !gpu

package detector

// ProbeGPU always fails without the gpu build tag.
func ProbeGPU() (*GPUReport, error) { return nil, ErrNoGPU }
