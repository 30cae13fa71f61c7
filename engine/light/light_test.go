package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestViewProjectionCentersFocus(t *testing.T) {
	l := NewLight(WithDirection(mgl32.Vec3{-1, -2, -1}), WithShadowVolume(10, 0.1, 50))
	focus := mgl32.Vec3{3, 0, -2}

	clip := l.ViewProjection(focus).Mul4x1(focus.Vec4(1))
	assert.InDelta(t, 0, clip.X(), 1e-4)
	assert.InDelta(t, 0, clip.Y(), 1e-4)
	assert.Greater(t, clip.Z(), float32(0))
	assert.Less(t, clip.Z(), float32(1))

	// a point closer to the light has a smaller depth
	toward := focus.Sub(l.Direction().Mul(5))
	nearer := l.ViewProjection(focus).Mul4x1(toward.Vec4(1))
	assert.Less(t, nearer.Z(), clip.Z())
}

func TestStraightDownLightHasValidView(t *testing.T) {
	l := NewLight()
	m := l.ViewProjection(mgl32.Vec3{})
	for i := 0; i < 16; i++ {
		assert.False(t, math32.IsNaN(m[i]), "matrix has NaN")
	}
}

func TestDisabledLightCastsNoShadows(t *testing.T) {
	l := NewLight()
	assert.True(t, l.CastsShadows())
	l.SetEnabled(false)
	assert.False(t, l.CastsShadows())

	l.SetDirection(mgl32.Vec3{})
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, l.Direction())
}
