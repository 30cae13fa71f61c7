package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Perspective creates a right-handed perspective projection mapping view-space
// depth to the WebGPU clip range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport width divided by height
//   - near: distance to the near plane (must be > 0)
//   - far: distance to the far plane (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY*0.5)
	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Ortho creates a right-handed orthographic projection mapping view-space
// depth to the WebGPU clip range [0, 1].
//
// Parameters:
//   - left, right, bottom, top: the view volume extents
//   - near, far: distances to the near and far planes
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = 1 / (near - far)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = near / (near - far)
	return m
}

// CanvasOrtho returns the pixel-space projection used for canvas/overlay
// drawing: (0,0) is the top-left corner and (width,height) the bottom-right.
func CanvasOrtho(width, height int) mgl32.Mat4 {
	return Ortho(0, float32(width), float32(height), 0, -1, 1)
}

// ModelMatrix builds a model matrix from translation, Euler rotation (radians)
// and scale. Rotation order is Y * X * Z.
//
// Parameters:
//   - position: world translation
//   - rotation: Euler angles in radians (pitch, yaw, roll)
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: T * R * S
func ModelMatrix(position, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	r := mgl32.HomogRotate3DY(rotation.Y()).
		Mul4(mgl32.HomogRotate3DX(rotation.X())).
		Mul4(mgl32.HomogRotate3DZ(rotation.Z()))
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(r).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of model, expanded
// back to a 4x4 so it can share the mat4 uniform path.
func NormalMatrix(model mgl32.Mat4) mgl32.Mat4 {
	return model.Mat3().Inv().Transpose().Mat4()
}

// PlaneReflection returns the matrix that mirrors points across the plane
// n.x*x + n.y*y + n.z*z + d = 0 where plane = (n, d) and n is unit length.
func PlaneReflection(plane mgl32.Vec4) mgl32.Mat4 {
	a, b, c, d := plane[0], plane[1], plane[2], plane[3]
	return mgl32.Mat4{
		1 - 2*a*a, -2 * a * b, -2 * a * c, 0,
		-2 * a * b, 1 - 2*b*b, -2 * b * c, 0,
		-2 * a * c, -2 * b * c, 1 - 2*c*c, 0,
		-2 * a * d, -2 * b * d, -2 * c * d, 1,
	}
}

// NDCToPixel maps a normalized device coordinate in [-1, 1] (y up) to a pixel
// coordinate of a width x height image (y down). The result is clamped to the
// image bounds.
func NDCToPixel(ndc mgl32.Vec2, width, height int) (x, y int) {
	u := (ndc.X() + 1) * 0.5
	v := 1 - (ndc.Y()+1)*0.5
	x = int(math32.Floor(u * float32(width)))
	y = int(math32.Floor(v * float32(height)))
	return Clamp(x, 0, width-1), Clamp(y, 0, height-1)
}

// ProjectToScreen transforms a world-space point by viewProj and returns its
// texture-space coordinate (0,0 top-left). ok is false when the point is
// behind the viewer.
func ProjectToScreen(viewProj mgl32.Mat4, p mgl32.Vec3) (uv mgl32.Vec2, ok bool) {
	clip := viewProj.Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec2{}, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	return mgl32.Vec2{ndc.X()*0.5 + 0.5, 1 - (ndc.Y()*0.5 + 0.5)}, true
}
