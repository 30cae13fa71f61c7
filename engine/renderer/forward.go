package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// forwardRenderer shades every drawable directly into a color target. A shadow
// pass from the light and a reflection pass from the mirrored camera run first
// when their targets exist; without them the main pass renders unshadowed and
// unreflected.
type forwardRenderer struct {
	base

	scene      framebuffer.FrameBuffer
	shadow     framebuffer.FrameBuffer
	reflection framebuffer.FrameBuffer
}

var _ Renderer = &forwardRenderer{}

func newForwardRenderer(ctx *renderContext, cfg rendererConfig, width, height int) (Renderer, error) {
	r := &forwardRenderer{base: newBase(ctx, cfg, width, height)}

	r.scene = r.newTarget("scene", r.width, r.height, mgl32.Vec4{})
	r.output = r.newTarget("final", r.width, r.height, cfg.clear)
	required := []struct {
		fb    framebuffer.FrameBuffer
		setup func(fb framebuffer.FrameBuffer) error
	}{
		{r.scene, func(fb framebuffer.FrameBuffer) error {
			if err := fb.AddFloatColorAttachment(framebuffer.RoleRenderColor); err != nil {
				return err
			}
			return fb.AddDepthAttachment(framebuffer.RoleRenderDepth)
		}},
		{r.output, func(fb framebuffer.FrameBuffer) error {
			return fb.AddColorAttachment(framebuffer.RoleFinalColor)
		}},
	}
	for _, t := range required {
		if err := t.setup(t.fb); err != nil {
			r.Free()
			return nil, err
		}
		if err := t.fb.Init(); err != nil {
			r.Free()
			return nil, err
		}
		r.expose(t.fb)
	}

	if r.settings.Shadow.Enabled {
		res := r.shadowResolution(nil)
		r.shadow = r.optionalTarget("shadow", res, res, func(fb framebuffer.FrameBuffer) error {
			return fb.AddDepthAttachment(framebuffer.RoleShadow)
		})
	}
	if r.settings.Reflection.Enabled {
		w, h := r.reflectionSize()
		r.reflection = r.optionalTarget("reflection", w, h, func(fb framebuffer.FrameBuffer) error {
			if err := fb.AddFloatColorAttachment(framebuffer.RoleReflection); err != nil {
				return err
			}
			return fb.AddDepthAttachment(framebuffer.RoleReflectionDepth)
		})
	}
	return r, nil
}

// optionalTarget creates and initializes a target a pass can run without.
// On failure the error is reported and nil is returned.
func (b *base) optionalTarget(name string, w, h int, declare func(fb framebuffer.FrameBuffer) error) framebuffer.FrameBuffer {
	fb := b.newTarget(name, w, h, mgl32.Vec4{})
	if err := declare(fb); err != nil {
		b.report(err)
		b.dropTarget(fb)
		return nil
	}
	if err := fb.Init(); err != nil {
		b.report(err)
		b.dropTarget(fb)
		return nil
	}
	b.expose(fb)
	return fb
}

// reflectionSize returns the reflection target size for the current viewport.
func (b *base) reflectionSize() (int, int) {
	scale := b.settings.Reflection.Scale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	return max(int(float32(b.width)*scale), 1), max(int(float32(b.height)*scale), 1)
}

func (r *forwardRenderer) Strategy() Strategy { return StrategyForward }

func (r *forwardRenderer) Resized(width, height int) error {
	if err := r.setSize(width, height); err != nil {
		return err
	}
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	for _, fb := range []framebuffer.FrameBuffer{r.scene, r.output} {
		if fb != nil {
			if err := r.resizeTarget(fb, width, height); err != nil {
				keep(err)
			}
		}
	}
	if r.reflection != nil {
		w, h := r.reflectionSize()
		if err := r.resizeTarget(r.reflection, w, h); err != nil {
			keep(err)
		}
	}
	return first
}

func (r *forwardRenderer) Render() {
	if !r.beginPasses() {
		return
	}
	defer r.endPasses()

	env := r.world.Environment()
	ls := r.lightSetup()
	clock := r.startClock()

	var shadow device.Texture
	if r.settings.Shadow.Enabled && r.renderShadow(r.shadow, ls) {
		shadow = r.shadow.Texture(framebuffer.RoleShadow)
	}
	clock.lap("shadow")

	var reflection device.Texture
	if r.settings.Reflection.Enabled && r.reflection != nil && r.reflection.Initialized() {
		view := r.reflectionView(float32(r.width) / float32(r.height))
		if r.forwardPass(r.reflection, view, env, ls, shadow, nil) {
			reflection = r.reflection.Texture(framebuffer.RoleReflection)
		}
	}
	clock.lap("reflection")

	var scene device.Texture
	if r.forwardPass(r.scene, r.mainView(), env, ls, shadow, reflection) {
		scene = r.scene.Texture(framebuffer.RoleRenderColor)
	}
	clock.lap("forward")
	r.composite(scene, nil, nil, nil, mgl32.Vec4{})
	clock.lap("final")
}

// forwardPass shades every visible drawable into fb with the forward program.
// Pixels no drawable covers keep the sky color. It returns false when fb could
// not be bound.
func (b *base) forwardPass(fb framebuffer.FrameBuffer, view sceneView, env Environment, ls lightSetup, shadow, reflection device.Texture) bool {
	fb.SetClearColor(env.Sky)
	if err := fb.Bind(true); err != nil {
		b.report(err)
		return false
	}
	b.drawScene(b.lib.Program(programs.Forward), view, true, func(p shader.Program) {
		p.SetVec4("lightDir", ls.direction.Vec4(0))
		p.SetVec4("lightColor", ls.color.Vec4(1))
		p.SetVec4("ambient", env.Ambient.Vec4(1))
		p.SetVec4("fog", fog(env))

		features := mgl32.Vec4{0, float32(fb.Width()), float32(fb.Height()), 0}
		tex := b.ctx.black
		if reflection != nil {
			features[0] = 1
			tex = reflection
		}
		p.SetVec4("lightFeatures", features)
		p.SetTexture("reflectionMap", tex)
		b.bindShadow(p, ls, shadow)
	})
	fb.Unbind()
	fb.Stamp(b.ctx.frame)
	return true
}
