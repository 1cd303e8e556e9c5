//go:build gpu

package nn

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/openfluke/mlviz/detector"
	"github.com/openfluke/webgpu/wgpu"
)

// wgpuSampler evaluates activation curves in a WGSL compute shader.
type wgpuSampler struct {
	mu      sync.Mutex
	dev     *wgpu.Device
	q       *wgpu.Queue
	wgx     uint32
	release func()
}

func newGPUSampler() (Sampler, error) {
	rep, err := detector.ProbeGPU()
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("CreateInstance nil")
	}

	pp := wgpu.PowerPreferenceHighPerformance
	if rep.AdapterType == "integrated-gpu" {
		pp = wgpu.PowerPreferenceLowPower
	}

	ad, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pp})
	if err != nil || ad == nil {
		inst.Release()
		return nil, fmt.Errorf("%w: RequestAdapter failed", ErrNoGPU)
	}

	dev, err := ad.RequestDevice(&wgpu.DeviceDescriptor{})
	if err != nil || dev == nil {
		ad.Release()
		inst.Release()
		return nil, fmt.Errorf("%w: RequestDevice failed", ErrNoGPU)
	}

	wgx := rep.Recommended.WorkgroupX
	if wgx == 0 {
		wgx = 64
	}
	if lim := rep.Limits.MaxComputeWorkgroupSizeX; lim > 0 && wgx > lim {
		wgx = lim
	}

	return &wgpuSampler{
		dev: dev,
		q:   dev.GetQueue(),
		wgx: wgx,
		release: func() {
			dev.Release()
			ad.Release()
			inst.Release()
		},
	}, nil
}

func (g *wgpuSampler) Name() string { return "wgpu" }

func (g *wgpuSampler) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.release != nil {
		g.release()
		g.release = nil
	}
}

// Sample runs one dispatch of the activation shader over xs. Inputs are
// narrowed to f32 on the way in.
func (g *wgpuSampler) Sample(a Activation, xs []float64) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.release == nil {
		return nil, ErrNoGPU
	}
	N := len(xs)
	if N == 0 {
		return nil, nil
	}
	input := make([]float32, N)
	for i, x := range xs {
		input[i] = float32(x)
	}
	bytes := uint64(N * 4)
	dev, q := g.dev, g.q

	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          fmt.Sprintf("mlviz_curve_%s", a),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: curveShader(g.wgx, a, N)},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateShaderModule: %w", err)
	}
	defer module.Release()

	bgl, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mlviz_curve_bgl",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return nil, err
	}
	defer bgl.Release()

	pl, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "mlviz_curve_pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}
	defer pl.Release()

	pipeline, err := dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "mlviz_curve_pipeline",
		Layout: pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	src, err := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlviz_curve_src",
		Size:  bytes,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer src.Release()

	dst, err := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlviz_curve_dst",
		Size:  bytes,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer dst.Release()

	readback, err := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "mlviz_curve_rb",
		Size:  bytes,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	bg, err := dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "mlviz_curve_bg",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: src, Offset: 0, Size: src.GetSize()},
			{Binding: 1, Buffer: dst, Offset: 0, Size: dst.GetSize()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bindgroup: %w", err)
	}
	defer bg.Release()

	q.WriteBuffer(src, 0, unsafe.Slice((*byte)(unsafe.Pointer(&input[0])), int(bytes)))

	gx := uint32((N + int(g.wgx) - 1) / int(g.wgx))
	if gx == 0 {
		gx = 1
	}

	enc, err := dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "mlviz_curve_enc"})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	pass := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "mlviz_curve_pass"})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(gx, 1, 1)
	pass.End()
	enc.CopyBufferToBuffer(dst, 0, readback, 0, bytes)

	cb, err := enc.Finish(nil)
	if err != nil {
		enc.Release()
		return nil, fmt.Errorf("finish: %w", err)
	}
	enc.Release()
	q.Submit(cb)
	cb.Release()

	done := false
	readback.MapAsync(wgpu.MapModeRead, 0, bytes, func(wgpu.BufferMapAsyncStatus) { done = true })
	for i := 0; i < 1000 && !done; i++ {
		dev.Poll(true, nil)
		time.Sleep(100 * time.Microsecond)
	}
	if !done {
		return nil, fmt.Errorf("timeout mapping readback buffer")
	}

	view := readback.GetMappedRange(0, uint(bytes))
	out32 := unsafe.Slice((*float32)(unsafe.Pointer(&view[0])), N)
	out := make([]float64, N)
	for i, v := range out32 {
		out[i] = float64(v)
	}
	readback.Unmap()
	return out, nil
}

// curveShader generates the WGSL kernel for one activation.
func curveShader(wgx uint32, a Activation, N int) string {
	var body string
	switch a {
	case ReLU:
		body = `return max(0.0, v);`
	case Sigmoid:
		body = `return 1.0 / (1.0 + exp(-v));`
	case Tanh:
		body = `let e2x = exp(2.0 * v);
    return (e2x - 1.0) / (e2x + 1.0);`
	case Step:
		body = `return select(0.0, 1.0, v >= 0.0);`
	case Softmax:
		body = `return exp(v);`
	default:
		body = `return v;`
	}

	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read>        src : array<f32>;
@group(0) @binding(1) var<storage, read_write>  dst : array<f32>;

const N: u32 = %du;

fn activate(v: f32) -> f32 {
    %s
}

@compute @workgroup_size(%d, 1, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= N) { return; }
    dst[i] = activate(src[i]);
}
`, N, body, wgx)
}
