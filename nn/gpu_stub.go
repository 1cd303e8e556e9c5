//go:build !gpu

package nn

func newGPUSampler() (Sampler, error) { return nil, ErrNoGPU }
