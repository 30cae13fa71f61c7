package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsIDsAndKeepsOrder(t *testing.T) {
	a := game_object.NewGameObject()
	b := game_object.NewGameObject(game_object.WithID(10))
	c := game_object.NewGameObject()
	gizmo := game_object.NewGameObject(game_object.WithEphemeral(true))

	s := NewScene("test", nil, WithObjects(a, b))
	assert.Equal(t, uint64(1), a.ID())
	assert.Equal(t, uint64(11), s.Add(c))
	s.Add(gizmo)
	assert.Zero(t, s.Add(nil))

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 1, s.CountEphemeral())
	assert.Same(t, b, s.Get(10))
	assert.Nil(t, s.Get(12))

	drawables := s.Drawables()
	require.Len(t, drawables, 4)
	assert.Equal(t, []renderer.Drawable{a, b, c, gizmo}, drawables)

	b.SetEnabled(false)
	s.Remove(1)
	s.ClearEphemeral()
	assert.Equal(t, []renderer.Drawable{c}, s.Drawables())

	s.Clear()
	assert.Zero(t, s.Count())
	assert.Empty(t, s.Drawables())
}

func TestNilCameraAndLightStayNil(t *testing.T) {
	s := NewScene("empty", nil)
	assert.Nil(t, s.Camera())
	assert.Nil(t, s.Light())
	assert.Equal(t, renderer.DefaultEnvironment(), s.Environment())

	s.SetCamera(camera.NewCamera())
	s.SetLight(light.NewLight())
	assert.NotNil(t, s.Camera())
	assert.NotNil(t, s.Light())
}

func TestUpdateAdvancesEveryEnabledObject(t *testing.T) {
	s := NewScene("spin", nil, WithUpdateWorkers(3))
	var objs []game_object.GameObject
	for range 150 {
		obj := game_object.NewGameObject(game_object.WithRotationSpeed(mgl32.Vec3{0, 2, 0}))
		objs = append(objs, obj)
		s.Add(obj)
	}
	objs[0].SetEnabled(false)

	s.Update(0.25)
	assert.Zero(t, objs[0].Rotation().Y())
	for _, obj := range objs[1:] {
		assert.InDelta(t, 0.5, obj.Rotation().Y(), 1e-6)
	}
}

func TestSceneRendersThroughDeferredPicking(t *testing.T) {
	dev, err := device.New(device.BackendTypeSoftware, device.WithKernels(programs.Kernels()), device.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	ctx, err := renderer.NewRenderContext(dev)
	require.NoError(t, err)
	t.Cleanup(ctx.Free)

	cube, err := model.NewModel(dev, model.ShapeCube)
	require.NoError(t, err)
	t.Cleanup(cube.Release)

	s := NewScene("pick", camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 0, 3}),
		camera.WithTarget(mgl32.Vec3{}),
		camera.WithClip(0.1, 20),
	), WithLight(light.NewLight()))
	id := s.Add(game_object.NewGameObject(
		game_object.WithGeometry(cube),
		game_object.WithMaterial(material.NewMaterial()),
		game_object.WithHandleAxis(renderer.HandleAxisX),
	))

	settings := renderer.DefaultSettings()
	settings.Shadow.Enabled = false
	settings.Godray.Enabled = false
	r, err := ctx.NewRenderer(renderer.StrategyDeferred, 32, 32, renderer.WithSettings(settings))
	require.NoError(t, err)

	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, r.Prepare(s))
	r.Render()
	require.NoError(t, r.Finish())

	d, ok := renderer.AsDeferred(r)
	require.True(t, ok)
	sample, ok := d.MaterialAtPixel(16, 16)
	require.True(t, ok)
	assert.Equal(t, uint32(id), sample.ObjectID)
	assert.Equal(t, renderer.HandleAxisX, sample.Axis)

	_, ok = d.MaterialAtPixel(0, 0)
	assert.False(t, ok, "background pixels are not pickable")
}
