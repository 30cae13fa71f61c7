package model

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
)

// model is the implementation of the Model interface.
type model struct {
	name     string
	shape    Shape
	segments int
	color    mgl32.Vec4
	custom   *geometry

	mesh           device.Mesh
	boundingRadius float32
	vertexCount    int
}

// Model is a mesh uploaded to a device together with the bounds the renderer
// uses for frustum culling. Models are shared between game objects.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Mesh retrieves the uploaded device mesh.
	//
	// Returns:
	//   - device.Mesh: the mesh handle
	Mesh() device.Mesh

	// BoundingRadius returns the radius of the sphere around the model origin
	// that encloses every vertex, in model space.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// VertexCount returns the number of uploaded vertices.
	VertexCount() int

	// Release frees the device mesh.
	Release()
}

var _ Model = &model{}

// NewModel generates a procedural mesh and uploads it to dev.
//
// Parameters:
//   - dev: the device that owns the mesh
//   - shape: the generator to use; ignored when WithGeometry is given
//   - options: variadic list of ModelBuilderOption functions
//
// Returns:
//   - Model: the uploaded model
//   - error: the device error when the upload fails
func NewModel(dev device.Device, shape Shape, options ...ModelBuilderOption) (Model, error) {
	m := &model{
		shape:    shape,
		segments: 16,
		color:    mgl32.Vec4{1, 1, 1, 1},
	}
	for _, opt := range options {
		opt(m)
	}
	if m.name == "" {
		m.name = shape.String()
	}

	var g geometry
	if m.custom != nil {
		g = *m.custom
	} else {
		g = build(m.shape, m.segments, m.color)
	}
	mesh, err := dev.CreateMesh(device.MeshDescriptor{
		Label:    m.name,
		Vertices: g.vertices,
		Indices:  g.indices,
		Topology: g.topology,
	})
	if err != nil {
		return nil, err
	}
	m.mesh = mesh
	m.boundingRadius = g.radius()
	m.vertexCount = len(g.vertices)
	return m, nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() device.Mesh {
	return m.mesh
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) VertexCount() int {
	return m.vertexCount
}

func (m *model) Release() {
	if m.mesh != nil {
		m.mesh.Release()
		m.mesh = nil
	}
}
