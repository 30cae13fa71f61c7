package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing; a zero vector is ignored.
//
// Parameters:
//   - d: the light direction
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(d mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		if d.Len() > 0 {
			l.direction = d.Normalize()
		}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - c: the color as (r, g, b)
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(c mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = c
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithCastsShadows is an option builder that sets whether the light casts shadows.
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithShadowVolume is an option builder that sets the orthographic shadow volume.
//
// Parameters:
//   - halfExtent: half the width and height of the volume in world units
//   - near: near plane distance along the light direction
//   - far: far plane distance along the light direction
//
// Returns:
//   - LightBuilderOption: a function that applies the volume option to a lightImpl
func WithShadowVolume(halfExtent, near, far float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.halfExtent = halfExtent
		l.near = near
		l.far = far
	}
}

// WithShadowBias is an option builder that sets the shadow depth bias.
func WithShadowBias(bias float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.bias = bias
	}
}

// WithShadowResolution is an option builder that sets the shadow map edge length.
// Non-positive values keep the default.
//
// Parameters:
//   - resolution: edge length in texels
//
// Returns:
//   - LightBuilderOption: a function that applies the resolution option to a lightImpl
func WithShadowResolution(resolution int) LightBuilderOption {
	return func(l *lightImpl) {
		if resolution > 0 {
			l.resolution = resolution
		}
	}
}
