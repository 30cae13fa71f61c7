package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// renderContext is the implementation of the RenderContext interface.
type renderContext struct {
	dev      device.Device
	registry *framebuffer.Registry
	lib      programs.Library
	ownsLib  bool
	watcher  *shader.Watcher

	shaderDir string
	hotReload bool

	frame     uint64
	renderers []Renderer

	// neutral inputs bound in place of the outputs of skipped passes
	white        device.Texture
	black        device.Texture
	neutralDepth device.Texture
}

// RenderContext owns everything renderers share on one device: the framebuffer
// registry, the shader library, the frame counter and the neutral textures that
// stand in for disabled passes. Create one per device at startup and Free it
// at teardown.
type RenderContext interface {
	// Device returns the device every renderer of this context draws with.
	Device() device.Device

	// Registry returns the registry every renderer target is registered with.
	Registry() *framebuffer.Registry

	// Library returns the built-in shader programs.
	Library() programs.Library

	// Frame returns the number of the current frame. Targets written this frame
	// carry it as their generation.
	Frame() uint64

	// BeginFrame starts a new frame: it reloads changed shaders when hot reload
	// is on, advances the frame number and clears every dirty target.
	//
	// Returns:
	//   - error: the joined clear errors, also reported to the diagnostic sink
	BeginFrame() error

	// NewRenderer creates a renderer of the given strategy and allocates its targets.
	//
	// Parameters:
	//   - strategy: the pipeline variant
	//   - width, height: the viewport size in pixels
	//   - options: functional options
	//
	// Returns:
	//   - Renderer: the renderer
	//   - error: a *diag.ConfigurationError for an unknown strategy, or the
	//     allocation error of a target the strategy cannot run without
	NewRenderer(strategy Strategy, width, height int, options ...RendererBuilderOption) (Renderer, error)

	// Free releases every renderer, target and neutral texture, and the shader
	// library when the context loaded it.
	Free()
}

var _ RenderContext = &renderContext{}

// NewRenderContext creates a render context on dev and loads the shader library.
// Programs that fail to load are reported and stay invalid; the passes using
// them degrade.
//
// Parameters:
//   - dev: the device to render with
//   - options: functional options
//
// Returns:
//   - RenderContext: the context
//   - error: an error when the neutral textures or the shader watcher cannot be created
func NewRenderContext(dev device.Device, options ...RenderContextBuilderOption) (RenderContext, error) {
	c := &renderContext{
		dev:      dev,
		registry: framebuffer.NewRegistry(),
	}
	for _, opt := range options {
		opt(c)
	}

	if c.lib == nil {
		var libOpts []programs.LibraryBuilderOption
		if c.shaderDir != "" {
			libOpts = append(libOpts, programs.WithSourceDir(c.shaderDir))
		}
		c.lib = programs.NewLibrary(dev, libOpts...)
		c.ownsLib = true
		if err := c.lib.Load(); err != nil {
			diag.Logger().Warn("shader library loaded with errors", slog.String("error", err.Error()))
		}
	}

	if err := c.createNeutrals(); err != nil {
		c.Free()
		return nil, err
	}

	if c.hotReload && c.shaderDir != "" {
		w, err := shader.NewWatcher(c.shaderDir)
		if err != nil {
			c.Free()
			return nil, err
		}
		c.watcher = w
		if err := c.lib.Watch(w); err != nil {
			c.Free()
			return nil, err
		}
	}
	return c, nil
}

func (c *renderContext) createNeutrals() error {
	var err error
	c.white, err = c.solid("neutral/white", mgl32.Vec4{1, 1, 1, 1})
	if err != nil {
		return err
	}
	c.black, err = c.solid("neutral/black", mgl32.Vec4{0, 0, 0, 1})
	if err != nil {
		return err
	}
	c.neutralDepth, err = c.dev.CreateTexture(device.TextureDescriptor{
		Label: "neutral/depth", Width: 1, Height: 1, Format: device.TextureFormatDepth32Float,
	})
	if err != nil {
		return err
	}
	if err := c.dev.BeginPass(device.PassDescriptor{Label: "neutral/depth", Depth: c.neutralDepth, Clear: true, ClearDepth: 1}); err != nil {
		return err
	}
	c.dev.EndPass()
	return nil
}

func (c *renderContext) solid(label string, color mgl32.Vec4) (device.Texture, error) {
	tex, err := c.dev.CreateTexture(device.TextureDescriptor{Label: label, Width: 1, Height: 1, Format: device.TextureFormatRGBA8})
	if err != nil {
		return nil, err
	}
	if err := c.dev.WriteTexture(tex, []mgl32.Vec4{color}); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}

func (c *renderContext) Device() device.Device { return c.dev }

func (c *renderContext) Registry() *framebuffer.Registry { return c.registry }

func (c *renderContext) Library() programs.Library { return c.lib }

func (c *renderContext) Frame() uint64 { return c.frame }

func (c *renderContext) BeginFrame() error {
	if c.watcher != nil {
		if n := c.watcher.Poll(); n > 0 {
			diag.Logger().Info("shaders reloaded", slog.Int("programs", n))
		}
	}
	c.frame++
	err := c.registry.ClearAll()
	if err != nil {
		diag.Report(err)
	}
	return err
}

func (c *renderContext) NewRenderer(strategy Strategy, width, height int, options ...RendererBuilderOption) (Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, diag.NewConfigurationError("NewRenderer", "invalid size %dx%d", width, height)
	}
	cfg := newRendererConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	var (
		r   Renderer
		err error
	)
	switch strategy {
	case StrategyForward:
		r, err = newForwardRenderer(c, cfg, width, height)
	case StrategyDeferred:
		r, err = newDeferredRenderer(c, cfg, width, height)
	default:
		return nil, diag.NewConfigurationError("NewRenderer", "unknown strategy %s", strategy)
	}
	if err != nil {
		return nil, err
	}
	c.renderers = append(c.renderers, r)
	diag.Logger().Debug("renderer created",
		slog.String("strategy", strategy.String()),
		slog.String("label", cfg.label),
		slog.Int("width", width),
		slog.Int("height", height),
	)
	return r, nil
}

func (c *renderContext) Free() {
	for _, r := range c.renderers {
		r.Free()
	}
	c.renderers = nil
	c.registry.Free()
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			diag.Logger().Warn("close shader watcher", slog.String("error", err.Error()))
		}
		c.watcher = nil
	}
	if c.ownsLib && c.lib != nil {
		c.lib.Free()
	}
	for _, t := range []device.Texture{c.white, c.black, c.neutralDepth} {
		if t != nil {
			t.Release()
		}
	}
	c.white, c.black, c.neutralDepth = nil, nil, nil
}
