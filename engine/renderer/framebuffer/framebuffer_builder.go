package framebuffer

import "github.com/go-gl/mathgl/mgl32"

// FrameBufferBuilderOption configures a FrameBuffer created by NewFrameBuffer.
type FrameBufferBuilderOption func(*frameBuffer)

// WithLabel sets the label used for texture names and diagnostics.
func WithLabel(label string) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.label = label
	}
}

// WithSize sets the initial resolution.
//
// Parameters:
//   - width, height: the resolution in pixels
//
// Returns:
//   - FrameBufferBuilderOption: a function that applies the size option
func WithSize(width, height int) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.width = max(1, width)
		f.height = max(1, height)
	}
}

// WithClearColor sets the color written by Clear.
func WithClearColor(c mgl32.Vec4) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.clearColor = c
	}
}

// WithOnDemandUpdates makes ShouldUpdate report true only after MarkDirty,
// Init or Resize, until the next Stamp. By default a framebuffer redraws every frame.
func WithOnDemandUpdates() FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.alwaysDraw = false
	}
}

// WithRegistry registers the framebuffer with r. Free unregisters it.
func WithRegistry(r *Registry) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.registry = r
	}
}
