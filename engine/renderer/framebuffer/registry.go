package framebuffer

import (
	"errors"
	"slices"
	"sync"
)

// Registry tracks the live framebuffers of one render context so they can be
// cleared once per frame and released together at teardown.
type Registry struct {
	mu      sync.Mutex
	buffers []FrameBuffer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fb. Registering the same framebuffer twice has no effect.
func (r *Registry) Register(fb FrameBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.buffers, fb) {
		r.buffers = append(r.buffers, fb)
	}
}

// Unregister removes fb without releasing it.
func (r *Registry) Unregister(fb FrameBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.buffers, fb); i >= 0 {
		r.buffers = slices.Delete(r.buffers, i, i+1)
	}
}

// Len returns the number of registered framebuffers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

func (r *Registry) snapshot() []FrameBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.buffers)
}

// ClearAll clears every initialized framebuffer that was drawn to since its last
// clear and will be redrawn this frame. On-demand targets that are up to date keep
// their contents.
//
// Returns:
//   - error: the joined errors of the framebuffers that failed to clear
func (r *Registry) ClearAll() error {
	var errs []error
	for _, fb := range r.snapshot() {
		if !fb.Initialized() || !fb.Dirty() || !fb.ShouldUpdate() {
			continue
		}
		if err := fb.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Free releases every registered framebuffer and empties the registry.
func (r *Registry) Free() {
	buffers := r.snapshot()
	r.mu.Lock()
	r.buffers = nil
	r.mu.Unlock()
	for _, fb := range buffers {
		fb.Free()
	}
}
