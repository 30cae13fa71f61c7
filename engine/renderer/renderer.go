package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Strategy identifies a renderer implementation. The set is closed.
type Strategy int

const (
	// StrategyForward shades every object in one geometry pass.
	StrategyForward Strategy = iota

	// StrategyDeferred rasterizes surface attributes first and shades them in
	// screen space, followed by the post-processing chain.
	StrategyDeferred
)

func (s Strategy) String() string {
	switch s {
	case StrategyForward:
		return "forward"
	case StrategyDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy returns the strategy named s, case-insensitively.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(s) {
	case "forward":
		return StrategyForward, true
	case "deferred":
		return StrategyDeferred, true
	default:
		return 0, false
	}
}

// Renderer is the contract shared by every strategy.
//
// A frame is Prepare, any number of transform activations and overlay draws
// interleaved with Render, then Finish. Render runs the strategy's passes and
// never aborts: a failing pass is reported to the diagnostic sink and its
// contribution is left out. CheckError returns the first error of the frame.
type Renderer interface {
	// Strategy returns which implementation this is.
	Strategy() Strategy

	// Prepare binds the world's camera, recomputes the matrices and records the
	// transform stack depth Finish checks against.
	//
	// Parameters:
	//   - world: the world to render this frame
	//
	// Returns:
	//   - error: a *diag.ConfigurationError when the world or its camera is nil
	Prepare(world World) error

	// Render runs every pass of the strategy into its targets.
	Render()

	// Finish ends the overlay pass and releases the world.
	//
	// Returns:
	//   - error: a *diag.ConfigurationError when the transform stack depth differs
	//     from the depth at Prepare; the stack is restored to that depth
	Finish() error

	// Resized reallocates every viewport-sized target and recomputes the projection.
	//
	// Parameters:
	//   - width, height: the new viewport size in pixels
	//
	// Returns:
	//   - error: the first allocation error; passes whose targets failed are disabled
	Resized(width, height int) error

	Width() int
	Height() int

	// Projection, View and Final return the matrices computed at Prepare.
	// Final is Projection * View.
	Projection() mgl32.Mat4
	View() mgl32.Mat4
	Final() mgl32.Mat4

	// ActivateWorldTransform pushes the world-space final matrix.
	ActivateWorldTransform()

	// ActivateCanvasTransform pushes an orthographic pixel-space matrix with the
	// origin at the top-left corner.
	ActivateCanvasTransform()

	// DeactivateWorldTransform and DeactivateCanvasTransform pop the top matrix.
	// Popping an empty stack does nothing.
	DeactivateWorldTransform()
	DeactivateCanvasTransform()

	// Transform returns the matrix on top of the stack, or Final when the stack is empty.
	Transform() mgl32.Mat4

	// TransformDepth returns the number of pushed matrices.
	TransformDepth() int

	// UseScissor restricts drawing to rect, intersected with an enclosing scissor.
	UseScissor(rect common.Rect)
	StopScissor()

	// UseDepthTest enables depth testing and writing over the depth range [near, far].
	UseDepthTest(near, far float32)
	StopDepthTest()

	UseCulling()
	StopCulling()

	UseBlending()
	UseAdditiveBlending()
	StopBlending()

	UseWireframe()
	Fill()

	// Texture returns the texture of the target producing role, or nil when
	// this strategy does not produce it or its pass is disabled.
	//
	// Parameters:
	//   - role: the attachment role
	//
	// Returns:
	//   - device.Texture: the texture, or nil
	Texture(role framebuffer.Role) device.Texture

	// FrameBuffer returns the target producing role, or nil.
	FrameBuffer(role framebuffer.Role) framebuffer.FrameBuffer

	// Roles returns the roles this renderer produces, in role order.
	Roles() []framebuffer.Role

	// DrawLine draws a line segment on the final color target with the current transform.
	//
	// Parameters:
	//   - start, end: the segment end points
	//   - color: the RGBA line color
	DrawLine(start, end mgl32.Vec3, color mgl32.Vec4)

	// DrawPlane draws the unit XY quad transformed by model and the current transform.
	//
	// Parameters:
	//   - model: the quad's model matrix
	//   - color: the RGBA fill color
	DrawPlane(model mgl32.Mat4, color mgl32.Vec4)

	// CheckError returns the first error reported since Prepare, or nil.
	CheckError() error

	// Free releases every target and mesh owned by the renderer.
	Free()

	// targets returns every framebuffer the renderer created, exposed or not.
	targets() []framebuffer.FrameBuffer

	sealed()
}

// stateKind indexes the save stacks of the use/stop state pairs.
type stateKind int

const (
	stateScissor stateKind = iota
	stateDepth
	stateCull
	stateBlend
	stateWireframe
	stateKindCount
)

// sceneView is a camera used by a geometry pass.
type sceneView struct {
	viewProj mgl32.Mat4
	eye      mgl32.Vec3
	clip     mgl32.Vec4
	cull     device.CullMode
}

// base implements the strategy-independent half of Renderer. Strategies embed it.
type base struct {
	ctx      *renderContext
	dev      device.Device
	lib      programs.Library
	label    string
	settings Settings

	width, height int

	world      World
	camera     Camera
	projection mgl32.Mat4
	view       mgl32.Mat4
	final      mgl32.Mat4
	eye        mgl32.Vec3

	transforms    []mgl32.Mat4
	prepared      bool
	preparedDepth int

	saved      [stateKindCount][]device.State
	frameState device.State

	// roles maps each produced role to its target. owned also holds private
	// targets and is what Free releases.
	roles  map[framebuffer.Role]framebuffer.FrameBuffer
	owned  []framebuffer.FrameBuffer
	output framebuffer.FrameBuffer

	overlayOpen bool
	line        model.Model
	quad        model.Model

	frameErr error
	timer    PassTimer
	onDemand bool
}

var defaultMaterial = material.NewMaterial(material.WithName("default"))

func newBase(ctx *renderContext, cfg rendererConfig, width, height int) base {
	return base{
		ctx:        ctx,
		dev:        ctx.dev,
		lib:        ctx.lib,
		label:      cfg.label,
		settings:   cfg.settings,
		width:      max(width, 1),
		height:     max(height, 1),
		projection: mgl32.Ident4(),
		view:       mgl32.Ident4(),
		final:      mgl32.Ident4(),
		roles:      make(map[framebuffer.Role]framebuffer.FrameBuffer),
		timer:      cfg.timer,
		onDemand:   cfg.onDemand,
	}
}

func (b *base) sealed() {}

// report forwards err to the diagnostic sink and remembers the first error of the frame.
func (b *base) report(err error) {
	if err == nil {
		return
	}
	diag.Report(err)
	if b.frameErr == nil {
		b.frameErr = err
	}
}

// newTarget creates a framebuffer of w x h registered with the context and owned by b.
func (b *base) newTarget(name string, w, h int, clear mgl32.Vec4) framebuffer.FrameBuffer {
	options := []framebuffer.FrameBufferBuilderOption{
		framebuffer.WithLabel(b.label + "/" + name),
		framebuffer.WithSize(max(w, 1), max(h, 1)),
		framebuffer.WithClearColor(clear),
		framebuffer.WithRegistry(b.ctx.registry),
	}
	if b.onDemand {
		options = append(options, framebuffer.WithOnDemandUpdates())
	}
	fb := framebuffer.NewFrameBuffer(b.dev, options...)
	b.owned = append(b.owned, fb)
	return fb
}

func (b *base) targets() []framebuffer.FrameBuffer { return b.owned }

// expose publishes every attachment role of fb.
func (b *base) expose(fb framebuffer.FrameBuffer) {
	for _, a := range fb.Attachments() {
		b.roles[a.Role] = fb
	}
}

// dropTarget frees a target whose initialization failed and forgets it.
func (b *base) dropTarget(fb framebuffer.FrameBuffer) {
	for _, a := range fb.Attachments() {
		if b.roles[a.Role] == fb {
			delete(b.roles, a.Role)
		}
	}
	for i, o := range b.owned {
		if o == fb {
			b.owned = append(b.owned[:i], b.owned[i+1:]...)
			break
		}
	}
	fb.Free()
}

func (b *base) Width() int  { return b.width }
func (b *base) Height() int { return b.height }

func (b *base) Projection() mgl32.Mat4 { return b.projection }
func (b *base) View() mgl32.Mat4       { return b.view }
func (b *base) Final() mgl32.Mat4      { return b.final }

func (b *base) Prepare(world World) error {
	if world == nil {
		return diag.NewConfigurationError("Prepare", "%s: nil world", b.label)
	}
	cam := world.Camera()
	if cam == nil {
		return diag.NewConfigurationError("Prepare", "%s: world has no camera", b.label)
	}
	b.world = world
	b.camera = cam
	b.frameErr = nil
	b.updateMatrices()
	b.preparedDepth = len(b.transforms)
	b.prepared = true
	return nil
}

func (b *base) updateMatrices() {
	if b.camera == nil {
		return
	}
	b.projection = b.camera.Projection(float32(b.width) / float32(b.height))
	b.view = b.camera.View()
	b.final = b.projection.Mul4(b.view)
	b.eye = b.camera.Position()
}

func (b *base) Finish() error {
	b.endOverlay()
	var err error
	if b.prepared && len(b.transforms) != b.preparedDepth {
		err = diag.NewConfigurationError("Finish", "%s: transform stack depth is %d, was %d at Prepare",
			b.label, len(b.transforms), b.preparedDepth)
		b.report(err)
		if len(b.transforms) > b.preparedDepth {
			b.transforms = b.transforms[:b.preparedDepth]
		}
	}
	b.prepared = false
	b.world = nil
	b.camera = nil
	return err
}

// resizeTarget resizes one target and reports a failed reallocation.
func (b *base) resizeTarget(fb framebuffer.FrameBuffer, w, h int) error {
	if err := fb.Resize(max(w, 1), max(h, 1)); err != nil {
		b.report(err)
		return err
	}
	return nil
}

func (b *base) setSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return diag.NewConfigurationError("Resized", "%s: invalid size %dx%d", b.label, width, height)
	}
	b.width, b.height = width, height
	b.updateMatrices()
	return nil
}

func (b *base) ActivateWorldTransform() {
	b.transforms = append(b.transforms, b.final)
}

func (b *base) ActivateCanvasTransform() {
	b.transforms = append(b.transforms, common.CanvasOrtho(b.width, b.height))
}

func (b *base) DeactivateWorldTransform()  { b.pop() }
func (b *base) DeactivateCanvasTransform() { b.pop() }

func (b *base) pop() {
	if n := len(b.transforms); n > 0 {
		b.transforms = b.transforms[:n-1]
	}
}

func (b *base) Transform() mgl32.Mat4 {
	if n := len(b.transforms); n > 0 {
		return b.transforms[n-1]
	}
	return b.final
}

func (b *base) TransformDepth() int { return len(b.transforms) }

func (b *base) Texture(role framebuffer.Role) device.Texture {
	if fb := b.roles[role]; fb != nil {
		return fb.Texture(role)
	}
	return nil
}

func (b *base) FrameBuffer(role framebuffer.Role) framebuffer.FrameBuffer {
	return b.roles[role]
}

func (b *base) Roles() []framebuffer.Role {
	var out []framebuffer.Role
	for _, r := range framebuffer.Roles() {
		if _, ok := b.roles[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (b *base) CheckError() error { return b.frameErr }

// beginPasses is called at the start of Render. It returns false when the
// frame was not prepared.
func (b *base) beginPasses() bool {
	if !b.prepared || b.camera == nil {
		b.report(diag.NewConfigurationError("Render", "%s: Render called without Prepare", b.label))
		return false
	}
	b.endOverlay()
	b.frameState = b.dev.State()
	return true
}

// passClock measures consecutive passes for the pass timer.
type passClock struct {
	timer PassTimer
	last  time.Time
}

func (b *base) startClock() passClock {
	if b.timer == nil {
		return passClock{}
	}
	return passClock{timer: b.timer, last: time.Now()}
}

// lap reports the time since the previous lap as pass.
func (c *passClock) lap(pass string) {
	if c.timer == nil {
		return
	}
	now := time.Now()
	c.timer(pass, now.Sub(c.last))
	c.last = now
}

// endPasses restores the state the caller had before Render.
func (b *base) endPasses() {
	b.dev.EndPass()
	b.dev.UseProgram(nil, nil)
	b.dev.SetState(b.frameState)
}

// sceneState is the fixed-function state of geometry passes. Wireframe follows
// the caller's toggle.
func (b *base) sceneState(cull device.CullMode) device.State {
	s := device.DefaultState()
	s.DepthTest = true
	s.DepthWrite = true
	s.Cull = cull
	s.Wireframe = b.frameState.Wireframe
	return s
}

// visible returns the drawables of the world that can be drawn from viewProj.
func (b *base) visible(viewProj mgl32.Mat4) []Drawable {
	all := b.world.Drawables()
	out := make([]Drawable, 0, len(all))
	var frustum common.Frustum
	if b.settings.Culling {
		frustum = common.ExtractFrustum(viewProj)
	}
	for _, d := range all {
		if d == nil || !d.Visible() || d.Mesh() == nil {
			continue
		}
		if b.settings.Culling {
			if center, radius := d.Bounds(); radius > 0 && !frustum.IntersectsSphere(center, radius) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// drawScene draws every visible drawable with def. When custom is set, a
// drawable whose material carries a valid program is drawn with that program
// instead; setup configures each program the first time it is bound.
// It returns the number of draws issued.
func (b *base) drawScene(def shader.Program, v sceneView, custom bool, setup func(shader.Program)) int {
	b.dev.SetState(b.sceneState(v.cull))
	var bound shader.Program
	draws := 0
	for _, d := range b.visible(v.viewProj) {
		p := def
		mat := d.Material()
		if mat == nil {
			mat = defaultMaterial
		}
		if custom && mat.Program() != nil && mat.Program().Valid() {
			p = mat.Program()
		}
		if p != bound {
			if !p.Bind() {
				continue
			}
			p.SetMat4("viewProj", v.viewProj)
			p.SetVec4("cameraPos", v.eye.Vec4(1))
			p.SetVec4("clipPlane", v.clip)
			if setup != nil {
				setup(p)
			}
			bound = p
		}
		m := d.Model()
		p.SetMat4("model", m)
		p.SetMat4("normalMatrix", common.NormalMatrix(m))
		p.SetVec4("albedo", mat.BaseColor())
		p.SetVec4("material", mgl32.Vec4{mat.Roughness(), mat.Metallic(), float32(d.HandleAxis()), float32(d.ObjectID())})
		p.SetVec4("specular", mat.Specular().Vec4(mat.Shininess()/128))
		b.dev.Draw(d.Mesh())
		draws++
	}
	return draws
}

// mainView is the camera of the frame.
func (b *base) mainView() sceneView {
	return sceneView{viewProj: b.final, eye: b.eye, cull: device.CullBack}
}

// reflectionView mirrors the camera across the horizontal plane at the water
// level and clips everything below it.
func (b *base) reflectionView(aspect float32) sceneView {
	level := b.world.Environment().WaterLevel
	plane := mgl32.Vec4{0, 1, 0, -level}
	mirror := common.PlaneReflection(plane)
	proj := b.camera.Projection(aspect)
	return sceneView{
		viewProj: proj.Mul4(b.view).Mul4(mirror),
		eye:      mirror.Mul4x1(b.eye.Vec4(1)).Vec3(),
		clip:     plane,
		cull:     device.CullFront,
	}
}

// lightSetup holds the per-frame light parameters shared by the forward and
// lighting programs.
type lightSetup struct {
	direction mgl32.Vec3
	color     mgl32.Vec3
	viewProj  mgl32.Mat4
	shadows   bool
	bias      float32
}

func (b *base) lightSetup() lightSetup {
	l := b.world.Light()
	if l == nil || !l.Enabled() {
		return lightSetup{direction: mgl32.Vec3{0, -1, 0}, viewProj: mgl32.Ident4()}
	}
	return lightSetup{
		direction: l.Direction(),
		color:     l.Color().Mul(l.Intensity()),
		viewProj:  l.ViewProjection(b.camera.Target()),
		shadows:   l.CastsShadows(),
		bias:      l.ShadowBias(),
	}
}

// shadowResolution returns the edge length of the shadow map.
func (b *base) shadowResolution(l Light) int {
	if b.settings.Shadow.Resolution > 0 {
		return b.settings.Shadow.Resolution
	}
	if l != nil && l.ShadowResolution() > 0 {
		return l.ShadowResolution()
	}
	return 1024
}

// renderShadow renders scene depth from the light into fb. It returns false
// when no shadow map was produced this frame.
func (b *base) renderShadow(fb framebuffer.FrameBuffer, ls lightSetup) bool {
	if fb == nil || !fb.Initialized() || !ls.shadows {
		return false
	}
	p := b.lib.Program(programs.Shadow)
	if !p.Valid() {
		return false
	}
	if err := fb.Bind(true); err != nil {
		b.report(err)
		return false
	}
	b.drawScene(p, sceneView{viewProj: ls.viewProj, cull: device.CullBack}, false, nil)
	fb.Unbind()
	fb.Stamp(b.ctx.frame)
	return true
}

// bindShadow sets the shadow uniforms and map on p. Without a shadow map the
// neutral depth texture is bound and shadows are disabled.
func (b *base) bindShadow(p shader.Program, ls lightSetup, shadow device.Texture) {
	p.SetMat4("lightViewProj", ls.viewProj)
	if shadow == nil {
		p.SetVec4("shadowParams", mgl32.Vec4{0, ls.bias, 0, 0})
		p.SetTexture("shadowMap", b.ctx.neutralDepth)
		return
	}
	p.SetVec4("shadowParams", mgl32.Vec4{1, ls.bias, 0, 0})
	p.SetTexture("shadowMap", shadow)
}

// fog packs the environment fog into a vec4 of color and density.
func fog(env Environment) mgl32.Vec4 {
	return env.FogColor.Vec4(env.FogDensity)
}

// fullscreen binds fb, draws one fullscreen triangle with p and stamps fb.
// It returns false when nothing was drawn.
func (b *base) fullscreen(fb framebuffer.FrameBuffer, p shader.Program) bool {
	if fb == nil || !fb.Initialized() || p == nil {
		return false
	}
	if err := fb.Bind(true); err != nil {
		b.report(err)
		return false
	}
	b.dev.SetState(device.DefaultState())
	if !p.Bind() {
		fb.Unbind()
		return false
	}
	b.dev.DrawFullscreen()
	fb.Unbind()
	fb.Stamp(b.ctx.frame)
	return true
}

// clearTarget clears fb to color and stamps it, used when a pass has nothing to draw.
func (b *base) clearTarget(fb framebuffer.FrameBuffer, color mgl32.Vec4) {
	if fb == nil || !fb.Initialized() {
		return
	}
	fb.SetClearColor(color)
	if err := fb.Bind(true); err != nil {
		b.report(err)
		return
	}
	fb.Unbind()
	fb.Stamp(b.ctx.frame)
}

// composite writes the final color target from scene plus the optional
// post-processing layers. A nil layer contributes nothing. When the final
// program is unusable the scene is copied unchanged.
func (b *base) composite(scene, bloom, godray, flare device.Texture, weights mgl32.Vec4) {
	if b.output == nil || !b.output.Initialized() {
		return
	}
	black := b.ctx.black
	if scene == nil {
		b.clearTarget(b.output, b.world.Environment().Sky)
		return
	}
	p := b.lib.Program(programs.Final)
	if p.Valid() {
		p.SetTexture("scene", scene)
		p.SetTexture("bloomMap", common.Coalesce(bloom, black))
		p.SetTexture("godrayMap", common.Coalesce(godray, black))
		p.SetTexture("flareMap", common.Coalesce(flare, black))
		p.SetVec4("weights", weights.Vec3().Vec4(b.settings.Exposure))
		p.SetVec4("grade", mgl32.Vec4{b.settings.Gamma, 0, 0, 0})
		if b.fullscreen(b.output, p) {
			return
		}
	}
	cp := b.lib.Program(programs.Copy)
	cp.SetTexture("src", scene)
	if !b.fullscreen(b.output, cp) {
		b.clearTarget(b.output, b.world.Environment().Sky)
	}
}

// beginOverlay opens a pass on the final color target that keeps its contents.
func (b *base) beginOverlay() bool {
	if b.overlayOpen {
		return true
	}
	if b.output == nil || !b.output.Initialized() {
		return false
	}
	if err := b.output.Bind(false); err != nil {
		b.report(err)
		return false
	}
	b.overlayOpen = true
	return true
}

func (b *base) endOverlay() {
	if !b.overlayOpen {
		return
	}
	b.overlayOpen = false
	b.dev.UseProgram(nil, nil)
	b.output.Unbind()
}

func (b *base) drawOverlay(mesh device.Mesh, model mgl32.Mat4, color mgl32.Vec4) {
	p := b.lib.Program(programs.Overlay)
	if mesh == nil || !p.Valid() || !b.beginOverlay() {
		return
	}
	p.SetMat4("mvp", b.Transform().Mul4(model))
	p.SetVec4("color", color)
	p.Bind()
	b.dev.Draw(mesh)
}

func (b *base) DrawLine(start, end mgl32.Vec3, color mgl32.Vec4) {
	if b.line == nil {
		m, err := model.NewModel(b.dev, model.ShapeLine, model.WithName(b.label+"/line"))
		if err != nil {
			b.report(err)
			return
		}
		b.line = m
	}
	d := end.Sub(start)
	m := mgl32.Mat4{
		d.X(), d.Y(), d.Z(), 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		start.X(), start.Y(), start.Z(), 1,
	}
	b.drawOverlay(b.line.Mesh(), m, color)
}

func (b *base) DrawPlane(m mgl32.Mat4, color mgl32.Vec4) {
	if b.quad == nil {
		q, err := model.NewModel(b.dev, model.ShapeQuad, model.WithName(b.label+"/plane"))
		if err != nil {
			b.report(err)
			return
		}
		b.quad = q
	}
	b.drawOverlay(b.quad.Mesh(), m, color)
}

func (b *base) Free() {
	b.endOverlay()
	for _, fb := range b.owned {
		fb.Free()
	}
	b.owned = nil
	b.roles = make(map[framebuffer.Role]framebuffer.FrameBuffer)
	b.output = nil
	if b.line != nil {
		b.line.Release()
		b.line = nil
	}
	if b.quad != nil {
		b.quad.Release()
		b.quad = nil
	}
}
