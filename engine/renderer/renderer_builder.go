package renderer

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// RendererBuilderOption is a functional option applied to a renderer during
// construction via RenderContext.NewRenderer.
type RendererBuilderOption func(*rendererConfig)

// PassTimer receives the CPU time spent recording one pass of a frame.
type PassTimer func(pass string, elapsed time.Duration)

// rendererConfig collects construction-time options before the strategy allocates its targets.
type rendererConfig struct {
	label    string
	settings Settings
	clear    mgl32.Vec4
	timer    PassTimer
	onDemand bool
}

func newRendererConfig() rendererConfig {
	return rendererConfig{
		label:    "renderer",
		settings: DefaultSettings(),
	}
}

// WithLabel prefixes the labels of every target the renderer creates.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithLabel(label string) RendererBuilderOption {
	return func(c *rendererConfig) {
		if label != "" {
			c.label = label
		}
	}
}

// WithSettings replaces every pass setting.
//
// Parameters:
//   - s: the settings to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the settings option to a renderer
func WithSettings(s Settings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings = s
	}
}

// WithShadows configures the shadow pass.
func WithShadows(s ShadowSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.Shadow = s
	}
}

// WithSSAO configures screen-space ambient occlusion.
//
// Parameters:
//   - s: the SSAO settings
//
// Returns:
//   - RendererBuilderOption: a function that applies the SSAO option to a renderer
func WithSSAO(s SSAOSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.SSAO = s
	}
}

// WithReflection configures the planar reflection pass.
func WithReflection(s ReflectionSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.Reflection = s
	}
}

// WithBloom configures bloom.
func WithBloom(s BloomSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.Bloom = s
	}
}

// WithGodrays configures light shafts.
func WithGodrays(s GodraySettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.Godray = s
	}
}

// WithDOF configures depth of field.
func WithDOF(s DOFSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.DOF = s
	}
}

// WithLensFlare configures the lens flare.
func WithLensFlare(s LensFlareSettings) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.settings.LensFlare = s
	}
}

// WithClearColor sets the clear color of the final color target, visible
// where a strategy writes nothing.
//
// Parameters:
//   - color: the RGBA clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(color mgl32.Vec4) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.clear = color
	}
}

// WithPassTimer reports the duration of every pass to timer after it is recorded.
//
// Parameters:
//   - timer: the observer, typically a profiler's Record method
//
// Returns:
//   - RendererBuilderOption: a function that applies the timer option to a renderer
func WithPassTimer(timer PassTimer) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.timer = timer
	}
}

// withOnDemandTargets creates every target with on-demand updates so the
// registry keeps their contents while the owning viewport is idle.
func withOnDemandTargets() RendererBuilderOption {
	return func(c *rendererConfig) {
		c.onDemand = true
	}
}
