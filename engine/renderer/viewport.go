package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
)

// viewport is the implementation of the Viewport interface.
type viewport struct {
	ctx      RenderContext
	world    World
	renderer Renderer

	strategy      Strategy
	width, height int
	rendererOpts  []RendererBuilderOption

	output   framebuffer.FrameBuffer
	onDemand bool
	dirty    bool
	overlay  func(r Renderer)

	prepared bool
}

// Viewport owns one renderer, the world it draws and where the result goes. A
// frame is Prepare, Render, Present.
type Viewport interface {
	// Renderer returns the renderer owned by the viewport.
	Renderer() Renderer

	// World returns the world drawn by the viewport.
	World() World

	// SetWorld replaces the world and requests a redraw.
	SetWorld(world World)

	// Prepare binds the world to the renderer for this frame.
	//
	// Returns:
	//   - error: a *diag.ConfigurationError when the world cannot be rendered
	Prepare() error

	// Render runs the renderer passes and the overlay.
	Render()

	// Present finishes the frame and copies the final color to the output
	// framebuffer or the device surface.
	//
	// Returns:
	//   - error: the Finish error joined with the presentation error
	Present() error

	// Frame runs Prepare, Render and Present when ShouldUpdate is true.
	//
	// Returns:
	//   - error: the first error of the three steps
	Frame() error

	// Resize resizes the renderer and requests a redraw.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: the renderer's Resized error
	Resize(width, height int) error

	// ShouldUpdate reports whether the next frame needs rendering.
	ShouldUpdate() bool

	// MarkDirty requests a redraw of an on-demand viewport.
	MarkDirty()

	// Free releases the renderer.
	Free()
}

var _ Viewport = &viewport{}

// NewViewport creates a viewport drawing world with a renderer created on ctx.
//
// Parameters:
//   - ctx: the render context
//   - world: the world to draw
//   - options: functional options
//
// Returns:
//   - Viewport: the viewport
//   - error: the renderer creation error
func NewViewport(ctx RenderContext, world World, options ...ViewportBuilderOption) (Viewport, error) {
	v := &viewport{
		ctx:      ctx,
		world:    world,
		strategy: StrategyDeferred,
		width:    800,
		height:   600,
		dirty:    true,
	}
	for _, opt := range options {
		opt(v)
	}
	if v.onDemand {
		v.rendererOpts = append(v.rendererOpts, withOnDemandTargets())
	}
	r, err := ctx.NewRenderer(v.strategy, v.width, v.height, v.rendererOpts...)
	if err != nil {
		return nil, err
	}
	v.renderer = r
	return v, nil
}

func (v *viewport) Renderer() Renderer { return v.renderer }

func (v *viewport) World() World { return v.world }

func (v *viewport) SetWorld(world World) {
	v.world = world
	v.MarkDirty()
}

func (v *viewport) Prepare() error {
	if err := v.renderer.Prepare(v.world); err != nil {
		return err
	}
	v.prepared = true
	return nil
}

func (v *viewport) Render() {
	v.renderer.Render()
	if v.overlay == nil || !v.prepared {
		return
	}
	v.renderer.ActivateWorldTransform()
	v.overlay(v.renderer)
	v.renderer.DeactivateWorldTransform()
}

func (v *viewport) Present() error {
	v.prepared = false
	errFinish := v.renderer.Finish()

	final := v.renderer.Texture(framebuffer.RoleFinalColor)
	if final == nil {
		return errors.Join(errFinish, diag.NewConfigurationError("Present", "renderer has no final color target"))
	}
	var errPresent error
	if v.output != nil {
		errPresent = v.copyToOutput(final)
	} else {
		errPresent = v.ctx.Device().Present(final)
	}
	if errPresent != nil {
		diag.Report(errPresent)
	} else {
		v.stampTargets()
		v.dirty = false
	}
	return errors.Join(errFinish, errPresent)
}

func (v *viewport) copyToOutput(final device.Texture) error {
	dev := v.ctx.Device()
	p := v.ctx.Library().Program(programs.Copy)
	if !p.Valid() {
		return diag.NewConfigurationError("Present", "copy program unavailable")
	}
	if err := v.output.Bind(true); err != nil {
		return err
	}
	saved := dev.State()
	dev.SetState(device.DefaultState())
	p.SetTexture("src", final)
	p.Bind()
	dev.DrawFullscreen()
	p.Unbind()
	v.output.Unbind()
	dev.SetState(saved)
	v.output.Stamp(v.ctx.Frame())
	return nil
}

func (v *viewport) Frame() error {
	if !v.ShouldUpdate() {
		return nil
	}
	if err := v.Prepare(); err != nil {
		return err
	}
	v.Render()
	return v.Present()
}

func (v *viewport) Resize(width, height int) error {
	err := v.renderer.Resized(width, height)
	v.width, v.height = v.renderer.Width(), v.renderer.Height()
	v.MarkDirty()
	return err
}

func (v *viewport) ShouldUpdate() bool {
	return !v.onDemand || v.dirty
}

func (v *viewport) MarkDirty() {
	v.dirty = true
	for _, fb := range v.renderer.targets() {
		fb.MarkDirty()
	}
}

// stampTargets marks the renderer targets drawn this frame as up to date, so
// the registry leaves them alone until the next MarkDirty.
func (v *viewport) stampTargets() {
	frame := v.ctx.Frame()
	for _, fb := range v.renderer.targets() {
		if fb.Dirty() {
			fb.Stamp(frame)
		}
	}
}

func (v *viewport) Free() {
	if v.renderer != nil {
		v.renderer.Free()
	}
}
