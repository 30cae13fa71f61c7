package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// HandleAxis tags the pixels of an editor drag handle so picking can tell
// which axis the cursor is over. It is written to the material attachment as
// an exact small integer.
type HandleAxis int

const (
	HandleAxisNone HandleAxis = iota
	HandleAxisX
	HandleAxisY
	HandleAxisZ
)

func (a HandleAxis) String() string {
	switch a {
	case HandleAxisX:
		return "X"
	case HandleAxisY:
		return "Y"
	case HandleAxisZ:
		return "Z"
	default:
		return "None"
	}
}

// Direction returns the unit world axis of a, or the zero vector for HandleAxisNone.
func (a HandleAxis) Direction() mgl32.Vec3 {
	switch a {
	case HandleAxisX:
		return mgl32.Vec3{1, 0, 0}
	case HandleAxisY:
		return mgl32.Vec3{0, 1, 0}
	case HandleAxisZ:
		return mgl32.Vec3{0, 0, 1}
	default:
		return mgl32.Vec3{}
	}
}

// Camera is the view source of a frame. The renderer holds it only between
// Prepare and Finish.
type Camera interface {
	View() mgl32.Mat4
	Projection(aspect float32) mgl32.Mat4
	Position() mgl32.Vec3
	Target() mgl32.Vec3
	Near() float32
	Far() float32
}

// Light is the primary directional light of a world.
type Light interface {
	Direction() mgl32.Vec3
	Color() mgl32.Vec3
	Intensity() float32
	Enabled() bool
	CastsShadows() bool
	ShadowBias() float32
	ShadowResolution() int
	ViewProjection(focus mgl32.Vec3) mgl32.Mat4
}

// Drawable is one visible world object.
type Drawable interface {
	// Mesh returns the mesh to draw, or nil to skip the object.
	Mesh() device.Mesh

	// Model returns the model-to-world matrix.
	Model() mgl32.Mat4

	// Material returns the surface parameters, or nil for the default material.
	Material() material.Material

	// ObjectID returns the picking identifier. Zero means "not pickable"
	// and is also the value of background pixels.
	ObjectID() uint32

	// HandleAxis returns the drag axis this object represents, if it is an editor handle.
	HandleAxis() HandleAxis

	// Bounds returns a world-space bounding sphere used for frustum culling.
	// A non-positive radius disables culling for the object.
	Bounds() (center mgl32.Vec3, radius float32)

	Visible() bool
}

// Environment holds the lighting, sky and fog parameters of a world.
type Environment struct {
	// Ambient is the ambient light color.
	Ambient mgl32.Vec3

	// Sky is written to every pixel no geometry covers.
	Sky mgl32.Vec4

	// FogColor and FogDensity configure exponential distance fog. Zero density disables fog.
	FogColor   mgl32.Vec3
	FogDensity float32

	// WaterLevel is the height of the horizontal reflection plane.
	WaterLevel float32

	// GodrayColor tints the light shafts.
	GodrayColor mgl32.Vec3
}

// DefaultEnvironment returns a daylight environment with no fog and the
// reflection plane at y = 0.
func DefaultEnvironment() Environment {
	return Environment{
		Ambient:     mgl32.Vec3{0.2, 0.2, 0.22},
		Sky:         mgl32.Vec4{0.45, 0.6, 0.8, 1},
		FogColor:    mgl32.Vec3{0.6, 0.65, 0.7},
		GodrayColor: mgl32.Vec3{1, 0.95, 0.8},
	}
}

// World is the read-only view of a scene the renderer consumes each frame.
type World interface {
	// Camera returns the active camera. A nil camera skips the frame.
	Camera() Camera

	// Light returns the primary light, or nil for ambient-only lighting.
	Light() Light

	Environment() Environment

	// Drawables returns the objects to draw this frame. The renderer does not
	// retain the slice past Finish.
	Drawables() []Drawable
}
