package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu *sync.RWMutex

	id        uint64
	enabled   atomic.Bool
	ephemeral bool
	pickable  bool
	axis      renderer.HandleAxis

	geometry model.Model
	mat      material.Material

	position      mgl32.Vec3
	scale         mgl32.Vec3
	rotation      mgl32.Vec3
	rotationSpeed mgl32.Vec3

	// cached model matrix, rebuilt when dirty
	matrix mgl32.Mat4
	dirty  bool
}

// GameObject is a world entity the renderer draws: a shared Model placed by
// its own transform, shaded by an optional Material, and tagged for editor
// picking. GameObject satisfies renderer.Drawable.
type GameObject interface {
	renderer.Drawable

	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Ephemeral returns whether this object is ephemeral.
	// Ephemeral objects are drawn but not persisted in the scene's registry.
	//
	// Returns:
	//   - bool: true if ephemeral
	Ephemeral() bool

	// Geometry returns the Model drawn by this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Geometry() model.Model

	// SetGeometry assigns the Model drawn by this object.
	//
	// Parameters:
	//   - m: the Model to associate
	SetGeometry(m model.Model)

	// SetMaterial replaces the object's surface parameters. Nil selects the
	// renderer's default material.
	//
	// Parameters:
	//   - m: the Material to use
	SetMaterial(m material.Material)

	// SetPickable controls whether picking reports this object. Unpickable
	// objects write object ID zero.
	//
	// Parameters:
	//   - pickable: true to report the object's ID
	SetPickable(pickable bool)

	// SetHandleAxis marks this object as an editor drag handle for axis.
	//
	// Parameters:
	//   - axis: the handle axis, or renderer.HandleAxisNone
	SetHandleAxis(axis renderer.HandleAxis)

	// Position returns the world position.
	Position() mgl32.Vec3

	// Rotation returns the Euler rotation in radians.
	Rotation() mgl32.Vec3

	// RotationSpeed returns the rotation added per second by Update.
	RotationSpeed() mgl32.Vec3

	// Scale returns the per-axis scale.
	Scale() mgl32.Vec3

	// SetPosition moves the object.
	//
	// Parameters:
	//   - p: the new world position
	SetPosition(p mgl32.Vec3)

	// SetRotation sets the Euler rotation in radians.
	//
	// Parameters:
	//   - r: the new rotation
	SetRotation(r mgl32.Vec3)

	// SetRotationSpeed sets the rotation added per second by Update.
	//
	// Parameters:
	//   - r: radians per second around each axis
	SetRotationSpeed(r mgl32.Vec3)

	// SetScale sets the per-axis scale.
	//
	// Parameters:
	//   - s: the new scale factors
	SetScale(s mgl32.Vec3)

	// Update advances the rotation by the rotation speed over deltaTime.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	Update(deltaTime float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
// Objects are enabled and pickable unless an option says otherwise.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		mu:       &sync.RWMutex{},
		pickable: true,
		scale:    mgl32.Vec3{1, 1, 1},
		dirty:    true,
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.id = id
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Ephemeral() bool {
	return g.ephemeral
}

func (g *gameObject) Geometry() model.Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.geometry
}

func (g *gameObject) SetGeometry(m model.Model) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.geometry = m
}

func (g *gameObject) Mesh() device.Mesh {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.geometry == nil {
		return nil
	}
	return g.geometry.Mesh()
}

func (g *gameObject) Material() material.Material {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mat
}

func (g *gameObject) SetMaterial(m material.Material) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mat = m
}

// ObjectID truncates the ID to 32 bits; IDs above 2048 lose precision in the
// picking channel.
func (g *gameObject) ObjectID() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.pickable {
		return 0
	}
	return uint32(g.id)
}

func (g *gameObject) SetPickable(pickable bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pickable = pickable
}

func (g *gameObject) HandleAxis() renderer.HandleAxis {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.axis
}

func (g *gameObject) SetHandleAxis(axis renderer.HandleAxis) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.axis = axis
}

func (g *gameObject) Visible() bool {
	return g.enabled.Load() && g.Mesh() != nil
}

func (g *gameObject) Model() mgl32.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modelLocked()
}

func (g *gameObject) modelLocked() mgl32.Mat4 {
	if g.dirty {
		g.matrix = common.ModelMatrix(g.position, g.rotation, g.scale)
		g.dirty = false
	}
	return g.matrix
}

// Bounds scales the model's bounding radius by the largest scale factor so
// the sphere stays conservative under rotation.
func (g *gameObject) Bounds() (mgl32.Vec3, float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.geometry == nil {
		return g.position, 0
	}
	s := max(abs(g.scale.X()), abs(g.scale.Y()), abs(g.scale.Z()))
	return g.position, g.geometry.BoundingRadius() * s
}

func (g *gameObject) Position() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position
}

func (g *gameObject) Rotation() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotation
}

func (g *gameObject) RotationSpeed() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotationSpeed
}

func (g *gameObject) Scale() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scale
}

func (g *gameObject) SetPosition(p mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = p
	g.dirty = true
}

func (g *gameObject) SetRotation(r mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = r
	g.dirty = true
}

func (g *gameObject) SetRotationSpeed(r mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = r
}

func (g *gameObject) SetScale(s mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = s
	g.dirty = true
}

func (g *gameObject) Update(deltaTime float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rotationSpeed == (mgl32.Vec3{}) || deltaTime <= 0 {
		return
	}
	g.rotation = g.rotation.Add(g.rotationSpeed.Mul(deltaTime))
	g.dirty = true
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
