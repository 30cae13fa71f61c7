package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// facesOutward checks that every triangle winds counter-clockwise around the
// normals of its vertices.
func facesOutward(t *testing.T, g geometry) {
	t.Helper()
	for i := 0; i+2 < len(g.indices); i += 3 {
		a := g.vertices[g.indices[i]]
		b := g.vertices[g.indices[i+1]]
		c := g.vertices[g.indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		assert.Greater(t, n.Dot(a.Normal.Add(b.Normal).Add(c.Normal)), float32(0), "triangle %d", i/3)
	}
}

func TestCubeGeometry(t *testing.T) {
	g := build(ShapeCube, 0, mgl32.Vec4{1, 1, 1, 1})
	assert.Len(t, g.vertices, 24)
	assert.Len(t, g.indices, 36)
	assert.InDelta(t, 0.866, g.radius(), 1e-3)
	facesOutward(t, g)
}

func TestSphereGeometry(t *testing.T) {
	g := build(ShapeSphere, 8, mgl32.Vec4{1, 1, 1, 1})
	assert.Len(t, g.vertices, 9*17)
	assert.InDelta(t, 0.5, g.radius(), 1e-5)
	// degenerate pole triangles are skipped by the winding check
	for i := 0; i+2 < len(g.indices); i += 3 {
		a, b, c := g.vertices[g.indices[i]], g.vertices[g.indices[i+1]], g.vertices[g.indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if n.Len() < 1e-6 {
			continue
		}
		assert.Greater(t, n.Dot(a.Normal.Add(b.Normal).Add(c.Normal)), float32(0))
	}
}

func TestFlatShapesFaceTheirNormal(t *testing.T) {
	facesOutward(t, build(ShapePlane, 0, mgl32.Vec4{}))
	facesOutward(t, build(ShapeQuad, 0, mgl32.Vec4{}))

	line := build(ShapeLine, 0, mgl32.Vec4{})
	assert.Equal(t, device.TopologyLines, line.topology)
	assert.Equal(t, []uint32{0, 1}, line.indices)
}

func TestNewModelUploads(t *testing.T) {
	d, err := device.New(device.BackendTypeSoftware)
	require.NoError(t, err)
	defer d.Release()

	m, err := NewModel(d, ShapeCube, WithName("crate"))
	require.NoError(t, err)
	assert.Equal(t, "crate", m.Name())
	assert.Equal(t, 36, m.Mesh().IndexCount())
	assert.Equal(t, 24, m.VertexCount())

	custom, err := NewModel(d, ShapeCube, WithGeometry([]device.Vertex{
		{Position: mgl32.Vec3{2, 0, 0}}, {Position: mgl32.Vec3{0, 1, 0}}, {Position: mgl32.Vec3{0, 0, 0}},
	}, []uint32{0, 1, 2}, device.TopologyTriangles))
	require.NoError(t, err)
	assert.Equal(t, float32(2), custom.BoundingRadius())
	assert.Equal(t, "cube", custom.Name())
	m.Release()
	custom.Release()
}
