package model

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model and its mesh label.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSegments is an option builder that sets the tessellation of curved shapes.
//
// Parameters:
//   - segments: ring count of a sphere; values below 3 are raised to 3
//
// Returns:
//   - ModelBuilderOption: a function that applies the segments option to a model
func WithSegments(segments int) ModelBuilderOption {
	return func(m *model) {
		m.segments = segments
	}
}

// WithVertexColor is an option builder that sets the color baked into every vertex.
func WithVertexColor(color mgl32.Vec4) ModelBuilderOption {
	return func(m *model) {
		m.color = color
	}
}

// WithGeometry is an option builder that uploads caller-provided vertices instead
// of a procedural shape.
//
// Parameters:
//   - vertices: the vertex list
//   - indices: the index list
//   - topology: triangles or lines
//
// Returns:
//   - ModelBuilderOption: a function that applies the geometry option to a model
func WithGeometry(vertices []device.Vertex, indices []uint32, topology device.Topology) ModelBuilderOption {
	return func(m *model) {
		m.custom = &geometry{vertices: vertices, indices: indices, topology: topology}
	}
}
