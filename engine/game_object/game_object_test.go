package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCube(t *testing.T) model.Model {
	t.Helper()
	dev, err := device.New(device.BackendTypeSoftware, device.WithKernels(programs.Kernels()), device.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	m, err := model.NewModel(dev, model.ShapeCube)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func TestNewGameObjectDefaults(t *testing.T) {
	obj := NewGameObject(WithID(3))
	assert.True(t, obj.Enabled())
	assert.False(t, obj.Visible(), "an object without geometry is not drawn")
	assert.Nil(t, obj.Mesh())
	assert.Equal(t, uint32(3), obj.ObjectID())
	assert.Equal(t, renderer.HandleAxisNone, obj.HandleAxis())
	assert.Equal(t, mgl32.Ident4(), obj.Model())
}

func TestModelMatrixTracksTransform(t *testing.T) {
	obj := NewGameObject(WithPosition(mgl32.Vec3{1, 2, 3}), WithScale(mgl32.Vec3{2, 2, 2}))
	p := obj.Model().Mul4x1(mgl32.Vec4{0.5, 0, 0, 1})
	assert.InDelta(t, 2, p.X(), 1e-5)
	assert.InDelta(t, 2, p.Y(), 1e-5)
	assert.InDelta(t, 3, p.Z(), 1e-5)

	obj.SetPosition(mgl32.Vec3{})
	p = obj.Model().Mul4x1(mgl32.Vec4{0.5, 0, 0, 1})
	assert.InDelta(t, 1, p.X(), 1e-5, "setters invalidate the cached matrix")
}

func TestUpdateAdvancesRotation(t *testing.T) {
	obj := NewGameObject(WithRotationSpeed(mgl32.Vec3{0, 1, 0}))
	obj.Update(0.5)
	obj.Update(-1)
	assert.InDelta(t, 0.5, obj.Rotation().Y(), 1e-6)
}

func TestBoundsScaleWithLargestAxis(t *testing.T) {
	cube := newCube(t)
	obj := NewGameObject(WithGeometry(cube), WithPosition(mgl32.Vec3{4, 0, 0}), WithScale(mgl32.Vec3{1, -3, 2}))
	center, radius := obj.Bounds()
	assert.Equal(t, mgl32.Vec3{4, 0, 0}, center)
	assert.InDelta(t, cube.BoundingRadius()*3, radius, 1e-5)
	assert.True(t, obj.Visible())

	obj.SetEnabled(false)
	assert.False(t, obj.Visible())
}

func TestUnpickableObjectsWriteZero(t *testing.T) {
	obj := NewGameObject(WithID(9), WithPickable(false), WithHandleAxis(renderer.HandleAxisZ))
	assert.Zero(t, obj.ObjectID())
	assert.Equal(t, renderer.HandleAxisZ, obj.HandleAxis())
	obj.SetPickable(true)
	assert.Equal(t, uint32(9), obj.ObjectID())
}
