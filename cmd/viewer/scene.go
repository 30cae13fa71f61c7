package main

import (
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// demo is the viewer's scene together with the meshes it owns.
type demo struct {
	scene   scene.Scene
	handles [3]game_object.GameObject
	models  []model.Model
}

// buildDemo uploads the demo meshes and lays out a ground plane, a row of
// spinning cubes, a sphere and three hidden drag handles.
func buildDemo(dev device.Device) (*demo, error) {
	d := &demo{}
	load := func(shape model.Shape, name string) (model.Model, error) {
		m, err := model.NewModel(dev, shape, model.WithName(name))
		if err != nil {
			return nil, err
		}
		d.models = append(d.models, m)
		return m, nil
	}

	cube, err := load(model.ShapeCube, "cube")
	if err != nil {
		d.release()
		return nil, err
	}
	sphere, err := load(model.ShapeSphere, "sphere")
	if err != nil {
		d.release()
		return nil, err
	}
	plane, err := load(model.ShapePlane, "ground")
	if err != nil {
		d.release()
		return nil, err
	}

	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{6, 4, 8}),
		camera.WithTarget(mgl32.Vec3{0, 0.5, 0}),
		camera.WithFov(mgl32.DegToRad(50)),
		camera.WithClip(0.1, 200),
	)
	sun := light.NewLight(
		light.WithDirection(mgl32.Vec3{-0.4, -1, -0.3}),
		light.WithIntensity(1.2),
		light.WithShadowVolume(12, 0.1, 60),
	)
	d.scene = scene.NewScene("viewer", cam, scene.WithActive(true), scene.WithLight(sun))

	d.scene.Add(game_object.NewGameObject(
		game_object.WithGeometry(plane),
		game_object.WithScale(mgl32.Vec3{20, 1, 20}),
		game_object.WithPickable(false),
		game_object.WithMaterial(material.NewMaterial(
			material.WithName("ground"),
			material.WithBaseColor(mgl32.Vec4{0.35, 0.4, 0.35, 1}),
			material.WithRoughness(0.9),
		)),
	))

	colors := []mgl32.Vec4{
		{0.8, 0.25, 0.2, 1},
		{0.9, 0.75, 0.3, 1},
		{0.25, 0.45, 0.85, 1},
	}
	for i, c := range colors {
		d.scene.Add(game_object.NewGameObject(
			game_object.WithGeometry(cube),
			game_object.WithPosition(mgl32.Vec3{float32(i-1) * 2, 0.5, 0}),
			game_object.WithRotationSpeed(mgl32.Vec3{0, 0.3 * float32(i+1), 0}),
			game_object.WithMaterial(material.NewMaterial(
				material.WithBaseColor(c),
				material.WithRoughness(0.5),
			)),
		))
	}

	d.scene.Add(game_object.NewGameObject(
		game_object.WithGeometry(sphere),
		game_object.WithPosition(mgl32.Vec3{0, 1, -2.5}),
		game_object.WithMaterial(material.NewMaterial(
			material.WithName("chrome"),
			material.WithBaseColor(mgl32.Vec4{0.9, 0.9, 0.95, 1}),
			material.WithMetallic(1),
			material.WithRoughness(0.15),
			material.WithSpecular(mgl32.Vec3{1, 1, 1}, 64),
		)),
	))

	for i, axis := range []renderer.HandleAxis{renderer.HandleAxisX, renderer.HandleAxisY, renderer.HandleAxisZ} {
		dir := axis.Direction()
		d.handles[i] = game_object.NewGameObject(
			game_object.WithGeometry(cube),
			game_object.WithEnabled(false),
			game_object.WithHandleAxis(axis),
			game_object.WithScale(dir.Mul(0.6).Add(mgl32.Vec3{0.08, 0.08, 0.08})),
			game_object.WithMaterial(material.NewMaterial(
				material.WithName("handle "+axis.String()),
				material.WithBaseColor(dir.Vec4(1)),
				material.WithRoughness(1),
			)),
		)
		d.scene.Add(d.handles[i])
	}
	return d, nil
}

// attachHandles shows the drag handles next to obj, or hides them for nil.
func (d *demo) attachHandles(obj game_object.GameObject) {
	for _, h := range d.handles {
		if obj == nil {
			h.SetEnabled(false)
			continue
		}
		dir := h.HandleAxis().Direction()
		h.SetPosition(obj.Position().Add(dir.Mul(0.9)))
		h.SetEnabled(true)
	}
}

// isHandle reports whether id belongs to one of the drag handles.
func (d *demo) isHandle(id uint64) bool {
	for _, h := range d.handles {
		if h.ID() == id {
			return true
		}
	}
	return false
}

func (d *demo) release() {
	if d.scene != nil {
		d.scene.Clear()
	}
	for _, m := range d.models {
		m.Release()
	}
	d.models = nil
}
