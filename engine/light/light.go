package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	direction mgl32.Vec3
	color     mgl32.Vec3
	intensity float32
	enabled   bool

	castsShadows bool
	halfExtent   float32
	near         float32
	far          float32
	bias         float32
	resolution   int
}

// Light is the primary directional light of a world: the sun or moon. It has
// no position, only a direction, and lights every fragment without attenuation.
//
// The shadow pass renders depth from an orthographic camera placed along the
// light direction and centered on a focus point, usually the camera target.
type Light interface {
	// Direction returns the normalized direction the light travels in.
	//
	// Returns:
	//   - mgl32.Vec3: the light direction
	Direction() mgl32.Vec3

	// Color returns the linear RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Enabled returns whether this light contributes direct lighting.
	Enabled() bool

	// CastsShadows returns whether the renderer should run a shadow pass for this light.
	//
	// Returns:
	//   - bool: true if the light casts shadows and is enabled
	CastsShadows() bool

	// ShadowBias returns the constant depth bias applied to shadow comparisons.
	ShadowBias() float32

	// ShadowResolution returns the edge length in texels of the shadow map.
	ShadowResolution() int

	// ViewProjection returns the light-space view-projection matrix used by the
	// shadow pass and the lighting pass.
	//
	// Parameters:
	//   - focus: the world-space point the shadow volume is centered on
	//
	// Returns:
	//   - mgl32.Mat4: orthographic projection times the light view
	ViewProjection(focus mgl32.Vec3) mgl32.Mat4

	// SetDirection sets the direction of the light and normalizes it. A zero
	// vector is ignored.
	//
	// Parameters:
	//   - d: direction (will be normalized)
	SetDirection(d mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - c: color as (r, g, b)
	SetColor(c mgl32.Vec3)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetEnabled enables or disables the light for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetCastsShadows sets whether the light is eligible for shadow mapping.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new directional Light shining straight down with a white
// color, unit intensity, and shadows enabled.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:           &sync.Mutex{},
		direction:    mgl32.Vec3{0, -1, 0},
		color:        mgl32.Vec3{1, 1, 1},
		intensity:    1,
		enabled:      true,
		castsShadows: true,
		halfExtent:   DefaultShadowHalfExtent,
		near:         DefaultShadowNear,
		far:          DefaultShadowFar,
		bias:         DefaultShadowBias,
		resolution:   ShadowMapResolution,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *lightImpl) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled && l.castsShadows
}

func (l *lightImpl) ShadowBias() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bias
}

func (l *lightImpl) ShadowResolution() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolution
}

func (l *lightImpl) ViewProjection(focus mgl32.Vec3) mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()

	distance := (l.near + l.far) / 2
	eye := focus.Sub(l.direction.Mul(distance))
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(l.direction.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, focus, up)
	e := l.halfExtent
	return common.Ortho(-e, e, -e, e, l.near, l.far).Mul4(view)
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	if d.Len() == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = d.Normalize()
}

func (l *lightImpl) SetColor(c mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = c
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.castsShadows = castsShadows
}
