package material

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// material is the implementation of the Material interface.
type material struct {
	name      string
	baseColor mgl32.Vec4
	metallic  float32
	roughness float32
	specular  mgl32.Vec3
	shininess float32
	program   shader.Program
}

// Material defines the surface parameters a drawable is shaded with.
//
// Surface parameters are written into the per-object uniform block of the
// geometry and forward programs. A material may also carry its own program,
// which the forward strategy binds instead of the built-in forward program.
// The program must declare the same camera, object and light blocks.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo RGBA color of the material.
	//
	// Returns:
	//   - mgl32.Vec4: the base color as RGBA values
	BaseColor() mgl32.Vec4

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// Specular retrieves the specular reflectance color.
	//
	// Returns:
	//   - mgl32.Vec3: the specular color
	Specular() mgl32.Vec3

	// Shininess retrieves the Blinn-Phong exponent in [1, 128].
	Shininess() float32

	// Program retrieves the per-object program, or nil to use the strategy default.
	//
	// Returns:
	//   - shader.Program: the program handle, or nil
	Program() shader.Program

	// SetBaseColor sets the albedo RGBA color.
	//
	// Parameters:
	//   - c: the base color
	SetBaseColor(c mgl32.Vec4)

	// SetProgram assigns a per-object program. Passing nil restores the default.
	//
	// Parameters:
	//   - p: the program handle, or nil
	SetProgram(p shader.Program)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults are an opaque white rough dielectric with a faint specular highlight.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor: mgl32.Vec4{1, 1, 1, 1},
		metallic:  0.0,
		roughness: 1.0,
		specular:  mgl32.Vec3{0.1, 0.1, 0.1},
		shininess: 16,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() mgl32.Vec4 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Specular() mgl32.Vec3 {
	return m.specular
}

func (m *material) Shininess() float32 {
	return m.shininess
}

func (m *material) Program() shader.Program {
	return m.program
}

func (m *material) SetBaseColor(c mgl32.Vec4) {
	m.baseColor = c
}

func (m *material) SetProgram(p shader.Program) {
	m.program = p
}
