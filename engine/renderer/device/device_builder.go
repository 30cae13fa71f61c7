package device

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how presented frames are synchronized with the display.
type PresentMode int

const (
	// PresentModeImmediate presents without waiting for vertical blank.
	PresentModeImmediate PresentMode = iota
	// PresentModeFifo waits for vertical blank.
	PresentModeFifo
)

// deviceOptions collects the settings applied by DeviceBuilderOption values.
type deviceOptions struct {
	surface        *wgpu.SurfaceDescriptor
	surfaceWidth   int
	surfaceHeight  int
	forceFallback  bool
	presentMode    PresentMode
	kernels        map[string]Kernel
	workers        int
	allocFault     func(TextureDescriptor) error
	uniformArenaKB int
}

// DeviceBuilderOption configures a Device created by New.
type DeviceBuilderOption func(*deviceOptions)

// WithSurface sets the window surface the WebGPU backend presents to.
//
// Parameters:
//   - desc: the platform surface descriptor (see window.SurfaceDescriptor)
//   - width, height: the initial surface size in pixels
//
// Returns:
//   - DeviceBuilderOption: a function that applies the surface option
func WithSurface(desc *wgpu.SurfaceDescriptor, width, height int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.surface = desc
		o.surfaceWidth = width
		o.surfaceHeight = height
	}
}

// WithForceFallbackAdapter requests the WebGPU fallback (software) adapter.
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.forceFallback = force
	}
}

// WithPresentMode sets the surface present mode.
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.presentMode = mode
	}
}

// WithKernels registers the CPU kernels the software backend runs for each
// program label. Later registrations replace earlier ones with the same label.
//
// Parameters:
//   - kernels: program label to kernel
//
// Returns:
//   - DeviceBuilderOption: a function that applies the kernel option
func WithKernels(kernels map[string]Kernel) DeviceBuilderOption {
	return func(o *deviceOptions) {
		if o.kernels == nil {
			o.kernels = make(map[string]Kernel, len(kernels))
		}
		for k, v := range kernels {
			o.kernels[k] = v
		}
	}
}

// WithWorkers sets the number of rasterization workers of the software backend.
func WithWorkers(n int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.workers = max(1, n)
	}
}

// WithAllocationFault installs a hook consulted before every texture allocation
// of the software backend. A non-nil return fails the allocation with a
// GPUResourceError wrapping it.
//
// Parameters:
//   - fn: the fault hook
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fault option
func WithAllocationFault(fn func(TextureDescriptor) error) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.allocFault = fn
	}
}

// WithUniformArena sets the size in KiB of each uniform arena chunk of the WebGPU backend.
func WithUniformArena(kb int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.uniformArenaKB = kb
	}
}

// New creates a Device of the given backend type.
//
// Parameters:
//   - backend: the backend to create
//   - opts: functional options
//
// Returns:
//   - Device: the created device
//   - error: an error if the backend could not be initialized
func New(backend BackendType, opts ...DeviceBuilderOption) (Device, error) {
	o := &deviceOptions{
		workers:        runtime.NumCPU(),
		presentMode:    PresentModeFifo,
		uniformArenaKB: 1024,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch backend {
	case BackendTypeSoftware:
		return newSoftwareDevice(o), nil
	case BackendTypeWGPU:
		return newWGPUDevice(o)
	default:
		return nil, fmt.Errorf("unsupported backend type: %v", backend)
	}
}
