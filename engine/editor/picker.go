// Package editor holds the scene editing tools that read back renderer
// output: object picking, axis-constrained dragging and buffer previews.
package editor

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit is the surface under the cursor in the last rendered frame.
type Hit struct {
	// X and Y are the pixel that was read, origin at the top-left.
	X, Y int

	// ObjectID is the picking identifier of the drawable, zero for unpickable objects.
	ObjectID uint32

	// Axis is the drag handle axis of the drawable, if it is a handle.
	Axis renderer.HandleAxis

	// Position is the world position rasterized at the pixel.
	Position mgl32.Vec3
}

// Picker resolves cursor positions against the last frame of a deferred renderer.
type Picker interface {
	// Pick reads the gbuffer under a cursor position.
	//
	// Parameters:
	//   - ndc: the cursor in normalized device coordinates, [-1, 1] with +Y up
	//
	// Returns:
	//   - Hit: the surface under the cursor
	//   - bool: false when the cursor is over the background
	Pick(ndc mgl32.Vec2) (Hit, bool)

	// DragPoint returns where the cursor ray meets the line through origin
	// along axis. The ray is intersected with the plane that contains the line
	// and faces the camera most directly; the plane is rasterized with the
	// raycast program and read back.
	//
	// Parameters:
	//   - ndc: the cursor in normalized device coordinates
	//   - origin: a point on the drag line, typically the dragged object's position
	//   - axis: the drag axis
	//
	// Returns:
	//   - mgl32.Vec3: the point on the drag line
	//   - bool: false for HandleAxisNone, when the camera looks along the axis,
	//     or when the cursor ray misses the plane
	DragPoint(ndc mgl32.Vec2, origin mgl32.Vec3, axis renderer.HandleAxis) (mgl32.Vec3, bool)

	// Free releases the raycast target and the plane mesh.
	Free()
}

type picker struct {
	ctx      renderer.RenderContext
	renderer renderer.DeferredRenderer
	label    string
	extent   float32

	raycast framebuffer.FrameBuffer
	quad    model.Model
}

var _ Picker = &picker{}

// NewPicker creates a picker reading from r.
//
// Parameters:
//   - ctx: the context r was created on
//   - r: a deferred renderer
//   - options: functional options
//
// Returns:
//   - Picker: the picker
//   - error: a *diag.ConfigurationError when r does not use the deferred strategy
func NewPicker(ctx renderer.RenderContext, r renderer.Renderer, options ...PickerBuilderOption) (Picker, error) {
	d, ok := renderer.AsDeferred(r)
	if !ok {
		return nil, diag.NewConfigurationError("NewPicker", "picking needs a deferred renderer")
	}
	p := &picker{
		ctx:      ctx,
		renderer: d,
		label:    "editor",
		extent:   1000,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *picker) Pick(ndc mgl32.Vec2) (Hit, bool) {
	x, y := common.NDCToPixel(ndc, p.renderer.Width(), p.renderer.Height())
	pos, ok := p.renderer.PositionAtPixel(x, y)
	if !ok {
		return Hit{}, false
	}
	hit := Hit{X: x, Y: y, Position: pos}
	if m, ok := p.renderer.MaterialAtPixel(x, y); ok {
		hit.ObjectID = m.ObjectID
		hit.Axis = m.Axis
	}
	return hit, true
}

func (p *picker) DragPoint(ndc mgl32.Vec2, origin mgl32.Vec3, axis renderer.HandleAxis) (mgl32.Vec3, bool) {
	dir := axis.Direction()
	if dir == (mgl32.Vec3{}) {
		return mgl32.Vec3{}, false
	}
	eye := p.renderer.View().Inv().Col(3).Vec3()
	toEye := eye.Sub(origin)
	normal := toEye.Sub(dir.Mul(dir.Dot(toEye)))
	if normal.Len() < 1e-4 {
		return mgl32.Vec3{}, false
	}
	normal = normal.Normalize()
	side := normal.Cross(dir)

	s := p.extent * 2
	planeModel := mgl32.Mat4FromCols(
		dir.Mul(s).Vec4(0),
		side.Mul(s).Vec4(0),
		normal.Vec4(0),
		origin.Vec4(1),
	)
	hit, ok := p.rasterize(ndc, planeModel)
	if !ok {
		return mgl32.Vec3{}, false
	}
	return origin.Add(dir.Mul(dir.Dot(hit.Sub(origin)))), true
}

// rasterize draws the unit quad transformed by planeModel into the raycast
// target and reads the world position under ndc.
func (p *picker) rasterize(ndc mgl32.Vec2, planeModel mgl32.Mat4) (mgl32.Vec3, bool) {
	prog := p.ctx.Library().Program(programs.Raycast)
	if prog == nil || !prog.Valid() {
		diag.Report(diag.NewConfigurationError("DragPoint", "raycast program unavailable"))
		return mgl32.Vec3{}, false
	}
	if err := p.ensureTargets(); err != nil {
		diag.Report(err)
		return mgl32.Vec3{}, false
	}

	dev := p.ctx.Device()
	if err := p.raycast.Bind(true); err != nil {
		diag.Report(err)
		return mgl32.Vec3{}, false
	}
	saved := dev.State()
	dev.SetState(device.DefaultState())
	if prog.Bind() {
		prog.SetMat4("viewProj", p.renderer.Final())
		prog.SetVec4("clipPlane", mgl32.Vec4{})
		prog.SetMat4("model", planeModel)
		prog.SetMat4("normalMatrix", common.NormalMatrix(planeModel))
		dev.Draw(p.quad.Mesh())
		prog.Unbind()
	}
	p.raycast.Unbind()
	dev.SetState(saved)
	p.raycast.Stamp(p.ctx.Frame())

	x, y := common.NDCToPixel(ndc, p.raycast.Width(), p.raycast.Height())
	texel, err := p.raycast.ReadPixel(x, y, 0)
	if err != nil {
		diag.Report(err)
		return mgl32.Vec3{}, false
	}
	if texel.W() == 0 {
		return mgl32.Vec3{}, false
	}
	return texel.Vec3(), true
}

// ensureTargets creates the raycast target and plane mesh on first use and
// keeps the target at the renderer's size.
func (p *picker) ensureTargets() error {
	w, h := p.renderer.Width(), p.renderer.Height()
	if p.quad == nil {
		q, err := model.NewModel(p.ctx.Device(), model.ShapeQuad, model.WithName(p.label+"/drag plane"))
		if err != nil {
			return err
		}
		p.quad = q
	}
	if p.raycast == nil {
		fb := framebuffer.NewFrameBuffer(p.ctx.Device(),
			framebuffer.WithLabel(p.label+"/raycast"),
			framebuffer.WithSize(w, h),
			framebuffer.WithOnDemandUpdates(),
			framebuffer.WithRegistry(p.ctx.Registry()),
		)
		if err := fb.AddFloatColorAttachment(framebuffer.RoleDeferredPosition); err != nil {
			return err
		}
		if err := fb.Init(); err != nil {
			fb.Free()
			return err
		}
		p.raycast = fb
		return nil
	}
	if p.raycast.Width() != w || p.raycast.Height() != h {
		return p.raycast.Resize(w, h)
	}
	return nil
}

func (p *picker) Free() {
	if p.raycast != nil {
		p.raycast.Free()
		p.raycast = nil
	}
	if p.quad != nil {
		p.quad.Release()
		p.quad = nil
	}
}
