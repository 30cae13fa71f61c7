package model

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Shape selects a procedural mesh generator.
type Shape int

const (
	// ShapeCube is a unit cube centered on the origin with per-face normals.
	ShapeCube Shape = iota

	// ShapePlane is a unit square in the XZ plane facing +Y.
	ShapePlane

	// ShapeSphere is a UV sphere of radius 0.5.
	ShapeSphere

	// ShapeLine is a single segment from the origin to +X, drawn as lines.
	ShapeLine

	// ShapeQuad is a unit square in the XY plane facing +Z, used for overlays.
	ShapeQuad
)

func (s Shape) String() string {
	switch s {
	case ShapeCube:
		return "cube"
	case ShapePlane:
		return "plane"
	case ShapeSphere:
		return "sphere"
	case ShapeLine:
		return "line"
	case ShapeQuad:
		return "quad"
	default:
		return "unknown"
	}
}

// geometry is CPU-side mesh data before upload.
type geometry struct {
	vertices []device.Vertex
	indices  []uint32
	topology device.Topology
}

// radius returns the distance from the origin to the farthest vertex.
func (g geometry) radius() float32 {
	var r float32
	for _, v := range g.vertices {
		r = math32.Max(r, v.Position.Len())
	}
	return r
}

func build(shape Shape, segments int, color mgl32.Vec4) geometry {
	switch shape {
	case ShapePlane:
		return quadGeometry(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, color)
	case ShapeSphere:
		return sphereGeometry(segments, color)
	case ShapeLine:
		return geometry{
			vertices: []device.Vertex{
				{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, Color: color},
				{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 0}, Color: color},
			},
			indices:  []uint32{0, 1},
			topology: device.TopologyLines,
		}
	case ShapeQuad:
		return quadGeometry(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}, color)
	default:
		return cubeGeometry(color)
	}
}

// quadGeometry builds a unit square with the given normal. u and v span the
// square and u x v must point opposite the normal so the winding is counter-clockwise
// seen from the front.
func quadGeometry(normal, u, v mgl32.Vec3, color mgl32.Vec4) geometry {
	g := geometry{topology: device.TopologyTriangles}
	g.appendFace(normal.Mul(0), normal, u, v, color)
	return g
}

func cubeGeometry(color mgl32.Vec4) geometry {
	g := geometry{topology: device.TopologyTriangles}
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	}
	for _, f := range faces {
		g.appendFace(f.n.Mul(0.5), f.n, f.u, f.v, color)
	}
	return g
}

// appendFace adds a unit square centered at center. UV (0,0) is the corner at -u-v.
func (g *geometry) appendFace(center, normal, u, v mgl32.Vec3, color mgl32.Vec4) {
	base := uint32(len(g.vertices))
	corners := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, c := range corners {
		p := center.Add(u.Mul(c.X() - 0.5)).Add(v.Mul(c.Y() - 0.5))
		g.vertices = append(g.vertices, device.Vertex{Position: p, Normal: normal, UV: c, Color: color})
	}
	g.indices = append(g.indices, base, base+2, base+1, base, base+3, base+2)
}

func sphereGeometry(segments int, color mgl32.Vec4) geometry {
	if segments < 3 {
		segments = 3
	}
	rings := segments
	sectors := segments * 2
	g := geometry{topology: device.TopologyTriangles}
	for r := 0; r <= rings; r++ {
		theta := math32.Pi * float32(r) / float32(rings)
		for s := 0; s <= sectors; s++ {
			phi := 2 * math32.Pi * float32(s) / float32(sectors)
			n := mgl32.Vec3{
				math32.Sin(theta) * math32.Cos(phi),
				math32.Cos(theta),
				math32.Sin(theta) * math32.Sin(phi),
			}
			g.vertices = append(g.vertices, device.Vertex{
				Position: n.Mul(0.5),
				Normal:   n,
				UV:       mgl32.Vec2{float32(s) / float32(sectors), float32(r) / float32(rings)},
				Color:    color,
			})
		}
	}
	stride := uint32(sectors + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(sectors); s++ {
			a := r*stride + s
			b := a + stride
			g.indices = append(g.indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return g
}
