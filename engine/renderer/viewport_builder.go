package renderer

import "github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"

// ViewportBuilderOption is a functional option applied to a viewport during
// construction via NewViewport.
type ViewportBuilderOption func(*viewport)

// WithViewportStrategy selects the renderer strategy. The default is deferred.
//
// Parameters:
//   - s: the strategy
//
// Returns:
//   - ViewportBuilderOption: a function that applies the strategy option to a viewport
func WithViewportStrategy(s Strategy) ViewportBuilderOption {
	return func(v *viewport) {
		v.strategy = s
	}
}

// WithViewportSize sets the initial size in pixels. The default is 800x600.
func WithViewportSize(width, height int) ViewportBuilderOption {
	return func(v *viewport) {
		v.width, v.height = width, height
	}
}

// WithOutput presents into a framebuffer instead of the device surface. The
// first color attachment of fb receives the final image.
//
// Parameters:
//   - fb: an initialized framebuffer with a color attachment
//
// Returns:
//   - ViewportBuilderOption: a function that applies the output option to a viewport
func WithOutput(fb framebuffer.FrameBuffer) ViewportBuilderOption {
	return func(v *viewport) {
		v.output = fb
	}
}

// WithOnDemand renders only after MarkDirty instead of every frame. The
// renderer's targets keep their contents while the viewport is idle, so
// pixel queries and buffer previews stay valid between redraws.
func WithOnDemand(onDemand bool) ViewportBuilderOption {
	return func(v *viewport) {
		v.onDemand = onDemand
	}
}

// WithOverlay installs a function called after the strategy passes each frame
// with the world transform active. It draws with Renderer.DrawLine and
// Renderer.DrawPlane.
func WithOverlay(fn func(r Renderer)) ViewportBuilderOption {
	return func(v *viewport) {
		v.overlay = fn
	}
}

// WithRendererOptions forwards options to the renderer the viewport creates.
func WithRendererOptions(options ...RendererBuilderOption) ViewportBuilderOption {
	return func(v *viewport) {
		v.rendererOpts = append(v.rendererOpts, options...)
	}
}
