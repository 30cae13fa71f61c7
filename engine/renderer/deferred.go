package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// gbuffer attachment indices, in declaration order.
const (
	gbufferAlbedo = iota
	gbufferPosition
	gbufferNormal
	gbufferMaterial
	gbufferSpecular
)

// deferredRoles are the roles a deferred renderer can produce.
var deferredRoles = []framebuffer.Role{
	framebuffer.RoleFinalColor,
	framebuffer.RoleDeferredAlbedo,
	framebuffer.RoleDeferredPosition,
	framebuffer.RoleDeferredNormal,
	framebuffer.RoleDeferredMaterial,
	framebuffer.RoleDeferredDepth,
	framebuffer.RoleDeferredSpecular,
	framebuffer.RoleReflection,
	framebuffer.RoleReflectionDepth,
	framebuffer.RoleShadow,
	framebuffer.RoleSSAO,
	framebuffer.RoleSSAOBlur,
	framebuffer.RoleGodray,
	framebuffer.RoleBloom,
	framebuffer.RoleDOF,
	framebuffer.RoleLighting,
	framebuffer.RoleLensFlare,
}

// MaterialSample is the material attachment of one gbuffer pixel.
type MaterialSample struct {
	Roughness float32
	Metallic  float32
	Axis      HandleAxis
	ObjectID  uint32
}

// DeferredRenderer is the Renderer produced by StrategyDeferred. It exposes the
// gbuffer to editor tools.
type DeferredRenderer interface {
	Renderer

	// PositionAtPixel reads the world position rasterized at a pixel of the last frame.
	//
	// Parameters:
	//   - x, y: the pixel coordinate, origin at the top-left
	//
	// Returns:
	//   - mgl32.Vec3: the world position
	//   - bool: false over the background or when the readback failed
	PositionAtPixel(x, y int) (mgl32.Vec3, bool)

	// MaterialAtPixel reads the material channels rasterized at a pixel of the last frame.
	//
	// Parameters:
	//   - x, y: the pixel coordinate, origin at the top-left
	//
	// Returns:
	//   - MaterialSample: the roughness, metallic, handle axis and object id
	//   - bool: false over the background, over unpickable objects or when the readback failed
	MaterialAtPixel(x, y int) (MaterialSample, bool)

	// TextureTypeName returns the display name of a role this renderer can
	// produce, or "" for any other role.
	TextureTypeName(role framebuffer.Role) string

	// TextureType is the inverse of TextureTypeName.
	TextureType(name string) (framebuffer.Role, bool)

	// SSAOKernel returns a copy of the SSAO sample kernel.
	SSAOKernel() []mgl32.Vec4
}

// AsDeferred returns r as a DeferredRenderer when it uses the deferred strategy.
//
// Parameters:
//   - r: any renderer
//
// Returns:
//   - DeferredRenderer: r, or nil
//   - bool: whether r is deferred
func AsDeferred(r Renderer) (DeferredRenderer, bool) {
	d, ok := r.(DeferredRenderer)
	return d, ok
}

// passesRan records which optional passes produced output this frame.
type passesRan struct {
	geometry   bool
	shadow     bool
	ssao       bool
	reflection bool
	bloom      bool
	godray     bool
	flare      bool
	dof        bool
}

// deferredRenderer rasterizes surface attributes into a gbuffer and shades
// them in screen space. Every pass after the geometry pass is optional: when
// its target or program is missing it is skipped and a neutral input takes the
// place of its output.
type deferredRenderer struct {
	base

	gbuffer    framebuffer.FrameBuffer
	shadow     framebuffer.FrameBuffer
	ssao       framebuffer.FrameBuffer
	ssaoBlur   framebuffer.FrameBuffer
	reflection framebuffer.FrameBuffer
	lighting   framebuffer.FrameBuffer
	bloom      framebuffer.FrameBuffer
	scratch    framebuffer.FrameBuffer
	godray     framebuffer.FrameBuffer
	lensFlare  framebuffer.FrameBuffer
	dof        framebuffer.FrameBuffer

	kernel []mgl32.Vec4
	noise  device.Texture

	ran passesRan

	names  map[framebuffer.Role]string
	byName map[string]framebuffer.Role
}

var _ DeferredRenderer = &deferredRenderer{}

func newDeferredRenderer(ctx *renderContext, cfg rendererConfig, width, height int) (Renderer, error) {
	r := &deferredRenderer{
		base:   newBase(ctx, cfg, width, height),
		names:  make(map[framebuffer.Role]string, len(deferredRoles)),
		byName: make(map[string]framebuffer.Role, len(deferredRoles)),
	}
	for _, role := range deferredRoles {
		name := framebuffer.RoleName(role)
		r.names[role] = name
		r.byName[name] = role
	}

	var err error
	r.gbuffer, err = r.requiredTarget("gbuffer", func(fb framebuffer.FrameBuffer) error {
		return declareAll(
			func() error { return fb.AddColorAttachment(framebuffer.RoleDeferredAlbedo) },
			func() error { return fb.AddFloatColorAttachment(framebuffer.RoleDeferredPosition) },
			func() error { return fb.AddFloatColorAttachment(framebuffer.RoleDeferredNormal) },
			func() error { return fb.AddFloatColorAttachment(framebuffer.RoleDeferredMaterial) },
			func() error { return fb.AddColorAttachment(framebuffer.RoleDeferredSpecular) },
			func() error { return fb.AddDepthAttachment(framebuffer.RoleDeferredDepth) },
		)
	})
	if err != nil {
		return nil, err
	}
	r.lighting, err = r.requiredTarget("lighting", func(fb framebuffer.FrameBuffer) error {
		return fb.AddFloatColorAttachment(framebuffer.RoleLighting)
	})
	if err != nil {
		return nil, err
	}
	r.output, err = r.requiredTarget("final", func(fb framebuffer.FrameBuffer) error {
		return fb.AddColorAttachment(framebuffer.RoleFinalColor)
	})
	if err != nil {
		return nil, err
	}
	r.output.SetClearColor(cfg.clear)

	s := r.settings
	if s.Shadow.Enabled {
		res := r.shadowResolution(nil)
		r.shadow = r.optionalTarget("shadow", res, res, func(fb framebuffer.FrameBuffer) error {
			return fb.AddDepthAttachment(framebuffer.RoleShadow)
		})
	}
	if s.SSAO.Enabled || s.Bloom.Enabled || s.LensFlare.Enabled {
		r.scratch = r.newTarget("scratch", r.width, r.height, mgl32.Vec4{})
		if err := declareAll(
			func() error { return r.scratch.AddFloatColorAttachment(framebuffer.RoleBlurScratch) },
			r.scratch.Init,
		); err != nil {
			r.report(err)
			r.dropTarget(r.scratch)
			r.scratch = nil
		}
	}
	if s.SSAO.Enabled {
		r.initSSAO()
	}
	if s.Reflection.Enabled {
		w, h := r.reflectionSize()
		r.reflection = r.optionalTarget("reflection", w, h, func(fb framebuffer.FrameBuffer) error {
			return declareAll(
				func() error { return fb.AddFloatColorAttachment(framebuffer.RoleReflection) },
				func() error { return fb.AddDepthAttachment(framebuffer.RoleReflectionDepth) },
			)
		})
	}
	if s.Bloom.Enabled {
		r.bloom = r.optionalTarget("bloom", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
			return fb.AddFloatColorAttachment(framebuffer.RoleBloom)
		})
	}
	if s.Godray.Enabled {
		r.godray = r.optionalTarget("godray", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
			return fb.AddFloatColorAttachment(framebuffer.RoleGodray)
		})
	}
	if s.LensFlare.Enabled {
		r.lensFlare = r.optionalTarget("lensflare", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
			return fb.AddFloatColorAttachment(framebuffer.RoleLensFlare)
		})
	}
	if s.DOF.Enabled {
		r.dof = r.optionalTarget("dof", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
			return fb.AddFloatColorAttachment(framebuffer.RoleDOF)
		})
	}
	return r, nil
}

// declareAll runs steps in order and stops at the first error.
func declareAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// requiredTarget creates a viewport-sized target the strategy cannot run
// without. On failure every target created so far is freed.
func (r *deferredRenderer) requiredTarget(name string, declare func(fb framebuffer.FrameBuffer) error) (framebuffer.FrameBuffer, error) {
	fb := r.newTarget(name, r.width, r.height, mgl32.Vec4{})
	if err := declareAll(func() error { return declare(fb) }, fb.Init); err != nil {
		r.Free()
		return nil, err
	}
	r.expose(fb)
	return fb, nil
}

// initSSAO creates the occlusion targets, the sample kernel and the rotation
// noise texture. Any failure disables ambient occlusion.
func (r *deferredRenderer) initSSAO() {
	cfg := r.settings.SSAO
	r.kernel = GenerateSSAOKernel(cfg.Samples, cfg.Seed)

	size := max(cfg.NoiseSize, 1)
	noise, err := r.dev.CreateTexture(device.TextureDescriptor{
		Label:  r.label + "/ssao/noise",
		Width:  size,
		Height: size,
		Format: device.TextureFormatRGBA16Float,
	})
	if err == nil {
		if err = r.dev.WriteTexture(noise, GenerateSSAONoise(size, cfg.Seed)); err != nil {
			noise.Release()
		}
	}
	if err != nil {
		r.report(err)
		return
	}
	r.noise = noise

	r.ssao = r.optionalTarget("ssao", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
		return fb.AddColorAttachment(framebuffer.RoleSSAO)
	})
	r.ssaoBlur = r.optionalTarget("ssaoblur", r.width, r.height, func(fb framebuffer.FrameBuffer) error {
		return fb.AddColorAttachment(framebuffer.RoleSSAOBlur)
	})
	if r.ssao == nil {
		r.noise.Release()
		r.noise = nil
	}
}

func (r *deferredRenderer) Strategy() Strategy { return StrategyDeferred }

func (r *deferredRenderer) Resized(width, height int) error {
	if err := r.setSize(width, height); err != nil {
		return err
	}
	var first error
	for _, fb := range []framebuffer.FrameBuffer{
		r.gbuffer, r.lighting, r.output, r.scratch, r.ssao, r.ssaoBlur,
		r.bloom, r.godray, r.lensFlare, r.dof,
	} {
		if fb == nil {
			continue
		}
		if err := r.resizeTarget(fb, width, height); err != nil && first == nil {
			first = err
		}
	}
	if r.reflection != nil {
		w, h := r.reflectionSize()
		if err := r.resizeTarget(r.reflection, w, h); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *deferredRenderer) Render() {
	r.ran = passesRan{}
	if !r.beginPasses() {
		return
	}
	defer r.endPasses()

	env := r.world.Environment()
	ls := r.lightSetup()
	clock := r.startClock()

	r.geometryPass()
	clock.lap("geometry")
	var shadow device.Texture
	if r.settings.Shadow.Enabled && r.renderShadow(r.shadow, ls) {
		r.ran.shadow = true
		shadow = r.shadow.Texture(framebuffer.RoleShadow)
	}
	clock.lap("shadow")
	r.ssaoPass()
	clock.lap("ssao")
	r.reflectionPass(env, ls, shadow)
	clock.lap("reflection")
	r.lightingPass(env, ls, shadow)
	clock.lap("lighting")
	r.bloomPass()
	clock.lap("bloom")
	r.godrayPass(env)
	clock.lap("godray")
	r.lensFlarePass()
	clock.lap("lens flare")
	r.dofPass()
	clock.lap("dof")

	scene := r.lighting.Texture(framebuffer.RoleLighting)
	if r.ran.dof {
		scene = r.dof.Texture(framebuffer.RoleDOF)
	}
	var bloom, godray, flare device.Texture
	var weights mgl32.Vec4
	if r.ran.bloom {
		bloom = r.bloom.Texture(framebuffer.RoleBloom)
		weights[0] = r.settings.Bloom.Intensity
	}
	if r.ran.godray {
		godray = r.godray.Texture(framebuffer.RoleGodray)
		weights[1] = 1
	}
	if r.ran.flare {
		flare = r.lensFlare.Texture(framebuffer.RoleLensFlare)
		weights[2] = 1
	}
	r.composite(scene, bloom, godray, flare, weights)
	clock.lap("final")
}

// gbufferCurrent reports whether the gbuffer holds this frame's geometry.
func (r *deferredRenderer) gbufferCurrent() bool {
	return r.ran.geometry && r.gbuffer.Initialized() && r.gbuffer.Generation() == r.ctx.frame
}

// geometryPass clears the gbuffer and rasterizes every visible drawable into it.
// Background pixels keep position.w = 0 and object id 0.
func (r *deferredRenderer) geometryPass() {
	if !r.gbuffer.Initialized() {
		return
	}
	r.gbuffer.SetClearColor(mgl32.Vec4{})
	if err := r.gbuffer.Bind(true); err != nil {
		r.report(err)
		return
	}
	p := r.lib.Program(programs.GBuffer)
	if !p.Valid() {
		r.gbuffer.Unbind()
		return
	}
	r.drawScene(p, r.mainView(), false, nil)
	r.gbuffer.Unbind()
	r.gbuffer.Stamp(r.ctx.frame)
	r.ran.geometry = true
}

func (r *deferredRenderer) gbufferTexture(role framebuffer.Role) device.Texture {
	return r.gbuffer.Texture(role)
}

// blur runs the separable Gaussian blur from src into dst through the scratch target.
func (r *deferredRenderer) blur(src device.Texture, dst framebuffer.FrameBuffer) bool {
	p := r.lib.Program(programs.Blur)
	if r.scratch == nil || !r.scratch.Initialized() || !p.Valid() {
		return false
	}
	p.SetVec2("direction", mgl32.Vec2{1 / float32(r.scratch.Width()), 0})
	p.SetTexture("src", src)
	if !r.fullscreen(r.scratch, p) {
		return false
	}
	p.SetVec2("direction", mgl32.Vec2{0, 1 / float32(dst.Height())})
	p.SetTexture("src", r.scratch.Texture(framebuffer.RoleBlurScratch))
	return r.fullscreen(dst, p)
}

func (r *deferredRenderer) ssaoPass() {
	if !r.settings.SSAO.Enabled || r.ssao == nil || r.noise == nil || !r.gbufferCurrent() {
		return
	}
	p := r.lib.Program(programs.SSAO)
	if !p.Valid() {
		return
	}
	cfg := r.settings.SSAO
	p.SetMat4("view", r.view)
	p.SetMat4("projection", r.projection)
	p.SetVec4Array("ssaoKernel", r.kernel)
	p.SetVec4("ssaoParams", mgl32.Vec4{cfg.Radius, cfg.Bias, cfg.Intensity, float32(len(r.kernel))})
	p.SetTexture("gPosition", r.gbufferTexture(framebuffer.RoleDeferredPosition))
	p.SetTexture("gNormal", r.gbufferTexture(framebuffer.RoleDeferredNormal))
	p.SetTexture("noise", r.noise)
	if !r.fullscreen(r.ssao, p) {
		return
	}
	r.ran.ssao = true
	if r.ssaoBlur != nil && r.ssaoBlur.Initialized() {
		r.blur(r.ssao.Texture(framebuffer.RoleSSAO), r.ssaoBlur)
	}
}

// occlusion returns the ambient occlusion map of this frame: the blurred map,
// the raw map when blurring failed, or nil.
func (r *deferredRenderer) occlusion() device.Texture {
	if !r.ran.ssao {
		return nil
	}
	if r.ssaoBlur != nil && r.ssaoBlur.Initialized() && r.ssaoBlur.Generation() == r.ctx.frame {
		return r.ssaoBlur.Texture(framebuffer.RoleSSAOBlur)
	}
	return r.ssao.Texture(framebuffer.RoleSSAO)
}

func (r *deferredRenderer) reflectionPass(env Environment, ls lightSetup, shadow device.Texture) {
	if !r.settings.Reflection.Enabled || r.reflection == nil || !r.reflection.Initialized() {
		return
	}
	if !r.lib.Program(programs.Forward).Valid() {
		return
	}
	view := r.reflectionView(float32(r.width) / float32(r.height))
	r.ran.reflection = r.forwardPass(r.reflection, view, env, ls, shadow, nil)
}

// lightingPass shades the gbuffer. Without this frame's gbuffer every pixel is sky.
func (r *deferredRenderer) lightingPass(env Environment, ls lightSetup, shadow device.Texture) {
	p := r.lib.Program(programs.Lighting)
	if !r.gbufferCurrent() || !p.Valid() {
		r.clearTarget(r.lighting, env.Sky)
		return
	}
	features := mgl32.Vec4{}
	ao := r.occlusion()
	if ao != nil {
		features[0] = 1
	}
	reflection := r.ctx.black
	if r.ran.reflection {
		features[1] = 1
		reflection = r.reflection.Texture(framebuffer.RoleReflection)
	}

	p.SetVec4("lightDir", ls.direction.Vec4(0))
	p.SetVec4("lightColor", ls.color.Vec4(1))
	p.SetVec4("ambient", env.Ambient.Vec4(1))
	p.SetVec4("skyColor", env.Sky)
	p.SetVec4("fog", fog(env))
	p.SetVec4("eye", r.eye.Vec4(1))
	p.SetVec4("features", features)
	p.SetTexture("gAlbedo", r.gbufferTexture(framebuffer.RoleDeferredAlbedo))
	p.SetTexture("gPosition", r.gbufferTexture(framebuffer.RoleDeferredPosition))
	p.SetTexture("gNormal", r.gbufferTexture(framebuffer.RoleDeferredNormal))
	p.SetTexture("gMaterial", r.gbufferTexture(framebuffer.RoleDeferredMaterial))
	p.SetTexture("gSpecular", r.gbufferTexture(framebuffer.RoleDeferredSpecular))
	p.SetTexture("ssaoMap", common.Coalesce(ao, r.ctx.white))
	p.SetTexture("reflectionMap", reflection)
	r.bindShadow(p, ls, shadow)
	if !r.fullscreen(r.lighting, p) {
		r.clearTarget(r.lighting, env.Sky)
	}
}

// brightPass writes the pixels of the lit scene above the threshold into dst.
func (r *deferredRenderer) brightPass(dst framebuffer.FrameBuffer) bool {
	p := r.lib.Program(programs.Bright)
	if !p.Valid() {
		return false
	}
	p.SetFloat("threshold", r.settings.Bloom.Threshold)
	p.SetTexture("src", r.lighting.Texture(framebuffer.RoleLighting))
	return r.fullscreen(dst, p)
}

func (r *deferredRenderer) bloomPass() {
	if !r.settings.Bloom.Enabled || r.bloom == nil || !r.bloom.Initialized() {
		return
	}
	if !r.brightPass(r.bloom) {
		return
	}
	r.blur(r.bloom.Texture(framebuffer.RoleBloom), r.bloom)
	r.ran.bloom = true
}

// sunScreen returns the light position in texture space and how visible it is,
// 0 when it is behind the camera and fading out past the screen edges.
func (r *deferredRenderer) sunScreen() (mgl32.Vec2, float32) {
	l := r.world.Light()
	if l == nil || !l.Enabled() {
		return mgl32.Vec2{}, 0
	}
	sun := r.eye.Sub(l.Direction().Normalize().Mul(r.camera.Far() * 0.9))
	uv, ok := common.ProjectToScreen(r.final, sun)
	if !ok {
		return mgl32.Vec2{}, 0
	}
	d := uv.Sub(mgl32.Vec2{0.5, 0.5}).Len()
	return uv, common.Clamp(1.5-2*d, 0, 1)
}

func (r *deferredRenderer) godrayPass(env Environment) {
	if !r.settings.Godray.Enabled || r.godray == nil || !r.gbufferCurrent() {
		return
	}
	p := r.lib.Program(programs.Godray)
	if !p.Valid() {
		return
	}
	uv, visibility := r.sunScreen()
	if visibility <= 0 {
		return
	}
	g := r.settings.Godray
	p.SetVec4("lightScreen", mgl32.Vec4{uv.X(), uv.Y(), visibility, 0})
	p.SetVec4("godrayParams", mgl32.Vec4{g.Density, g.Weight, g.Decay, g.Exposure})
	p.SetVec4("godrayColor", env.GodrayColor.Vec4(1))
	p.SetTexture("gPosition", r.gbufferTexture(framebuffer.RoleDeferredPosition))
	r.ran.godray = r.fullscreen(r.godray, p)
}

// lensFlarePass builds ghosts and a halo from the bright parts of the scene,
// reusing the bloom target when bloom ran.
func (r *deferredRenderer) lensFlarePass() {
	if !r.settings.LensFlare.Enabled || r.lensFlare == nil {
		return
	}
	p := r.lib.Program(programs.LensFlare)
	if !p.Valid() {
		return
	}
	var src device.Texture
	switch {
	case r.ran.bloom:
		src = r.bloom.Texture(framebuffer.RoleBloom)
	case r.scratch != nil && r.brightPass(r.scratch):
		src = r.scratch.Texture(framebuffer.RoleBlurScratch)
	default:
		return
	}
	f := r.settings.LensFlare
	p.SetVec4("flareParams", mgl32.Vec4{float32(f.Ghosts), f.Dispersal, f.HaloWidth, f.Intensity})
	p.SetTexture("src", src)
	r.ran.flare = r.fullscreen(r.lensFlare, p)
}

func (r *deferredRenderer) dofPass() {
	if !r.settings.DOF.Enabled || r.dof == nil || !r.gbufferCurrent() {
		return
	}
	p := r.lib.Program(programs.DOF)
	if !p.Valid() {
		return
	}
	d := r.settings.DOF
	distance := d.FocusDistance
	if distance <= 0 {
		distance = r.camera.Target().Sub(r.eye).Len()
	}
	p.SetVec4("focus", mgl32.Vec4{distance, math32.Max(d.FocusRange, 1e-3), d.MaxRadius, 0})
	p.SetVec4("eye", r.eye.Vec4(1))
	p.SetVec2("texel", mgl32.Vec2{1 / float32(r.width), 1 / float32(r.height)})
	p.SetTexture("scene", r.lighting.Texture(framebuffer.RoleLighting))
	p.SetTexture("gPosition", r.gbufferTexture(framebuffer.RoleDeferredPosition))
	r.ran.dof = r.fullscreen(r.dof, p)
}

// readGBuffer reads one gbuffer texel. Failures are reported.
func (r *deferredRenderer) readGBuffer(x, y, index int) (mgl32.Vec4, bool) {
	if !r.gbuffer.Initialized() {
		return mgl32.Vec4{}, false
	}
	if x < 0 || y < 0 || x >= r.gbuffer.Width() || y >= r.gbuffer.Height() {
		diag.Report(&diag.PixelReadbackError{Target: r.gbuffer.Label(), X: x, Y: y,
			Err: fmt.Errorf("outside %dx%d", r.gbuffer.Width(), r.gbuffer.Height())})
		return mgl32.Vec4{}, false
	}
	v, err := r.gbuffer.ReadPixel(x, y, index)
	if err != nil {
		diag.Report(err)
		return mgl32.Vec4{}, false
	}
	return v, true
}

func (r *deferredRenderer) PositionAtPixel(x, y int) (mgl32.Vec3, bool) {
	p, ok := r.readGBuffer(x, y, gbufferPosition)
	if !ok || p.W() == 0 {
		return mgl32.Vec3{}, false
	}
	return p.Vec3(), true
}

func (r *deferredRenderer) MaterialAtPixel(x, y int) (MaterialSample, bool) {
	m, ok := r.readGBuffer(x, y, gbufferMaterial)
	if !ok {
		return MaterialSample{}, false
	}
	// The material attachment clears to zero and unpickable objects write id 0.
	id := uint32(math32.Max(math32.Round(m.W()), 0))
	if id == 0 {
		return MaterialSample{}, false
	}
	axis := HandleAxis(math32.Round(m.Z()))
	if axis < HandleAxisNone || axis > HandleAxisZ {
		axis = HandleAxisNone
	}
	return MaterialSample{
		Roughness: m.X(),
		Metallic:  m.Y(),
		Axis:      axis,
		ObjectID:  id,
	}, true
}

func (r *deferredRenderer) TextureTypeName(role framebuffer.Role) string {
	return r.names[role]
}

func (r *deferredRenderer) TextureType(name string) (framebuffer.Role, bool) {
	role, ok := r.byName[name]
	return role, ok
}

func (r *deferredRenderer) SSAOKernel() []mgl32.Vec4 {
	return append([]mgl32.Vec4(nil), r.kernel...)
}

func (r *deferredRenderer) Free() {
	if r.noise != nil {
		r.noise.Release()
		r.noise = nil
	}
	r.base.Free()
}
