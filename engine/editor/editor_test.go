package editor

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx renderer.RenderContext
	r   renderer.Renderer
	id  uint64
}

// renderCube draws one frame of a unit cube at the origin seen from eye.
func renderCube(t *testing.T, strategy renderer.Strategy, eye mgl32.Vec3) fixture {
	t.Helper()
	dev, err := device.New(device.BackendTypeSoftware, device.WithKernels(programs.Kernels()), device.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	ctx, err := renderer.NewRenderContext(dev)
	require.NoError(t, err)
	t.Cleanup(ctx.Free)

	cube, err := model.NewModel(dev, model.ShapeCube)
	require.NoError(t, err)
	t.Cleanup(cube.Release)

	s := scene.NewScene("editor", camera.NewCamera(
		camera.WithPosition(eye),
		camera.WithTarget(mgl32.Vec3{}),
		camera.WithClip(0.1, 50),
	), scene.WithLight(light.NewLight()))
	id := s.Add(game_object.NewGameObject(
		game_object.WithGeometry(cube),
		game_object.WithMaterial(material.NewMaterial()),
		game_object.WithHandleAxis(renderer.HandleAxisY),
	))

	settings := renderer.DefaultSettings()
	settings.Shadow.Enabled = false
	settings.Godray.Enabled = false
	r, err := ctx.NewRenderer(strategy, 32, 32, renderer.WithSettings(settings))
	require.NoError(t, err)

	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, r.Prepare(s))
	r.Render()
	require.NoError(t, r.Finish())
	return fixture{ctx: ctx, r: r, id: id}
}

// pixelCenterNDC returns the NDC of the center of the pixel NDCToPixel picks for ndc.
func pixelCenterNDC(ndc mgl32.Vec2, w, h int) mgl32.Vec2 {
	x := int((ndc.X() + 1) * 0.5 * float32(w))
	y := int((1 - (ndc.Y()+1)*0.5) * float32(h))
	return mgl32.Vec2{
		(float32(x)+0.5)/float32(w)*2 - 1,
		1 - (float32(y)+0.5)/float32(h)*2,
	}
}

// rayHitZ0 unprojects ndc through viewProj and intersects the ray with z = 0.
func rayHitZ0(viewProj mgl32.Mat4, ndc mgl32.Vec2) mgl32.Vec3 {
	inv := viewProj.Inv()
	a := inv.Mul4x1(mgl32.Vec4{ndc.X(), ndc.Y(), 0, 1})
	b := inv.Mul4x1(mgl32.Vec4{ndc.X(), ndc.Y(), 0.5, 1})
	p0 := a.Vec3().Mul(1 / a.W())
	p1 := b.Vec3().Mul(1 / b.W())
	t := -p0.Z() / (p1.Z() - p0.Z())
	return p0.Add(p1.Sub(p0).Mul(t))
}

func TestNewPickerNeedsDeferredRenderer(t *testing.T) {
	f := renderCube(t, renderer.StrategyForward, mgl32.Vec3{0, 0, 3})

	p, err := NewPicker(f.ctx, f.r)
	assert.Nil(t, p)
	var cfgErr *diag.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPickReadsObjectUnderCursor(t *testing.T) {
	f := renderCube(t, renderer.StrategyDeferred, mgl32.Vec3{0, 0, 3})
	p, err := NewPicker(f.ctx, f.r)
	require.NoError(t, err)
	t.Cleanup(p.Free)

	hit, ok := p.Pick(mgl32.Vec2{0, 0})
	require.True(t, ok)
	assert.Equal(t, 16, hit.X)
	assert.Equal(t, 16, hit.Y)
	assert.Equal(t, uint32(f.id), hit.ObjectID)
	assert.Equal(t, renderer.HandleAxisY, hit.Axis)
	assert.InDelta(t, 0.5, hit.Position.Z(), 0.02)

	_, ok = p.Pick(mgl32.Vec2{-0.99, 0.99})
	assert.False(t, ok, "corner is background")
}

func TestDragPointFollowsAxis(t *testing.T) {
	f := renderCube(t, renderer.StrategyDeferred, mgl32.Vec3{0, 0, 5})
	p, err := NewPicker(f.ctx, f.r, WithDragExtent(100), WithLabel("test"))
	require.NoError(t, err)
	t.Cleanup(p.Free)

	cursor := mgl32.Vec2{0.5, 0}
	want := rayHitZ0(f.r.Final(), pixelCenterNDC(cursor, 32, 32))

	got, ok := p.DragPoint(cursor, mgl32.Vec3{}, renderer.HandleAxisX)
	require.True(t, ok)
	assert.InDelta(t, want.X(), got.X(), 0.01)
	assert.Zero(t, got.Y())
	assert.Zero(t, got.Z())
	assert.Greater(t, got.X(), float32(0))

	_, ok = p.DragPoint(cursor, mgl32.Vec3{}, renderer.HandleAxisZ)
	assert.False(t, ok, "camera looks along the axis")

	_, ok = p.DragPoint(cursor, mgl32.Vec3{}, renderer.HandleAxisNone)
	assert.False(t, ok)
}

func TestPreviewSelectsBuffersByName(t *testing.T) {
	f := renderCube(t, renderer.StrategyDeferred, mgl32.Vec3{0, 0, 3})
	pv := NewPreview(f.ctx, f.r)

	assert.Equal(t, "Final Color", pv.Selected())
	names := pv.Names()
	assert.Contains(t, names, "Final Color")
	assert.Contains(t, names, "Deferred Position")
	assert.NotContains(t, names, "Shadow")

	var cfgErr *diag.ConfigurationError
	assert.ErrorAs(t, pv.Select("nope"), &cfgErr)
	assert.ErrorAs(t, pv.Select("Shadow"), &cfgErr, "shadows are disabled")
	assert.Equal(t, "Final Color", pv.Selected())

	full, err := pv.Thumbnail(32, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, full.Bounds().Dx())

	require.NoError(t, pv.Select("Deferred Position"))
	thumb, err := pv.Thumbnail(16, 12)
	require.NoError(t, err)
	assert.Equal(t, 16, thumb.Bounds().Dx())
	assert.Equal(t, 12, thumb.Bounds().Dy())

	_, err = pv.Thumbnail(0, 0)
	assert.ErrorAs(t, err, &cfgErr)
}
