// Package detector reports the hardware the animations run on: the host
// CPU always, and the WebGPU adapter when built with -tags gpu.
package detector

import (
	"encoding/json"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
)

// ErrNoGPU is the single error used for a missing GPU across builds.
var ErrNoGPU = errors.New("gpu unavailable (build with -tags=gpu to enable)")

/* ---------- public API ---------- */

// Report is a portable summary of the current host.
type Report struct {
	WhenISO  string            `json:"when_iso"`
	Runtime  string            `json:"runtime"`
	OS       string            `json:"os"`
	Arch     string            `json:"arch"`
	CPU      CPUReport         `json:"cpu"`
	GPU      *GPUReport        `json:"gpu,omitempty"`
	GPUError string            `json:"gpu_error,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// CPUReport is what cpuid knows about the host processor.
type CPUReport struct {
	Brand          string   `json:"brand"`
	Vendor         string   `json:"vendor"`
	Family         int      `json:"family"`
	Model          int      `json:"model"`
	PhysicalCores  int      `json:"physical_cores"`
	LogicalCores   int      `json:"logical_cores"`
	ThreadsPerCore int      `json:"threads_per_core"`
	CacheL1D       int      `json:"cache_l1d_bytes"`
	CacheL2        int      `json:"cache_l2_bytes"`
	CacheL3        int      `json:"cache_l3_bytes"`
	SIMD           string   `json:"simd"`
	Features       []string `json:"features"`
}

// GPUReport summarises the default adapter/device caps.
type GPUReport struct {
	Backend     string          `json:"backend"`
	AdapterType string          `json:"adapter_type"`
	VendorID    string          `json:"vendor_id_hex"`
	DeviceID    string          `json:"device_id_hex"`
	Name        string          `json:"name"`
	Driver      string          `json:"driver"`
	Recommended Recommendations `json:"recommended"`
	Limits      Limits          `json:"limits"`
	Features    []string        `json:"features"`
}

type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

type Recommendations struct {
	// 1D workgroup size for the curve sampler.
	WorkgroupX uint32 `json:"workgroup_x"`

	// Soft budget in bytes for staging buffers.
	BudgetBytes uint64 `json:"budget_bytes"`
}

// BudgetEnv overrides the GPU staging budget in MiB.
const BudgetEnv = "MLVIZ_GPU_BUDGET_MB"

// DetectJSON runs a probe and returns the indented JSON.
func DetectJSON() (string, error) {
	b, err := json.MarshalIndent(Detect(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Detect probes the CPU and, when available, the GPU. A failed GPU probe is
// recorded in GPUError rather than returned.
func Detect() *Report {
	rep := &Report{
		WhenISO: time.Now().UTC().Format(time.RFC3339),
		Runtime: detectRuntime(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		CPU:     DetectCPU(),
		Env:     pickEnv([]string{BudgetEnv, "MLVIZ_GPU"}),
	}
	gpu, err := ProbeGPU()
	if err != nil {
		rep.GPUError = err.Error()
	} else {
		rep.GPU = gpu
	}
	return rep
}

// DetectCPU reads the processor identification.
func DetectCPU() CPUReport {
	c := cpuid.CPU
	return CPUReport{
		Brand:          c.BrandName,
		Vendor:         c.VendorString,
		Family:         c.Family,
		Model:          c.Model,
		PhysicalCores:  c.PhysicalCores,
		LogicalCores:   c.LogicalCores,
		ThreadsPerCore: c.ThreadsPerCore,
		CacheL1D:       c.Cache.L1D,
		CacheL2:        c.Cache.L2,
		CacheL3:        c.Cache.L3,
		SIMD:           simdLevel(),
		Features:       c.FeatureSet(),
	}
}

func simdLevel() string {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ):
		return "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3):
		return "avx2"
	case cpuid.CPU.Supports(cpuid.SSE4):
		return "sse4"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		return "neon"
	}
	return "scalar"
}

/* ---------- helpers ---------- */

func detectRuntime() string {
	if runtime.GOOS == "js" {
		return "wasm"
	}
	return "native"
}

func pickEnv(keys []string) map[string]string {
	out := map[string]string{}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
