package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	maxElevation = math32.Pi/2 - 0.01
	minRadius    = 0.05
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	fov  float32
	near float32
	far  float32
}

// Camera is a perspective camera looking from a position at a target.
// It is safe for concurrent use: input callbacks move it while the renderer reads it.
type Camera interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: the target position
	Target() mgl32.Vec3

	// Up returns the up vector used to build the view matrix.
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// View returns the world-to-view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	View() mgl32.Mat4

	// Projection returns the perspective projection for a viewport aspect ratio,
	// mapping depth to [0, 1].
	//
	// Parameters:
	//   - aspect: viewport width divided by height
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	Projection(aspect float32) mgl32.Mat4

	// SetPosition moves the eye.
	//
	// Parameters:
	//   - p: the new world-space eye position
	SetPosition(p mgl32.Vec3)

	// SetTarget moves the look-at point.
	//
	// Parameters:
	//   - t: the new world-space target
	SetTarget(t mgl32.Vec3)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// SetClip sets the near and far plane distances.
	//
	// Parameters:
	//   - near: near plane distance, > 0
	//   - far: far plane distance, > near
	SetClip(near, far float32)

	// Orbit rotates the eye around the target on a sphere. Elevation is clamped
	// short of the poles.
	//
	// Parameters:
	//   - dAzimuth: rotation around the up axis in radians
	//   - dElevation: rotation toward the up axis in radians
	Orbit(dAzimuth, dElevation float32)

	// Zoom moves the eye toward the target by delta times the current distance.
	//
	// Parameters:
	//   - delta: positive zooms in
	Zoom(delta float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at (0, 2, 6) looking at the origin with a 45 degree
// field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 2, 6},
		up:       mgl32.Vec3{0, 1, 0},
		fov:      mgl32.DegToRad(45),
		near:     0.1,
		far:      100,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mgl32.LookAtV(c.position, c.target, c.up)
}

func (c *cameraImpl) Projection(aspect float32) mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		aspect = 1
	}
	return common.Perspective(c.fov, aspect, c.near, c.far)
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

func (c *cameraImpl) SetTarget(t mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
}

func (c *cameraImpl) Orbit(dAzimuth, dElevation float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	radius, azimuth, elevation := c.spherical()
	elevation = common.Clamp(elevation+dElevation, -maxElevation, maxElevation)
	c.setSpherical(radius, azimuth+dAzimuth, elevation)
}

func (c *cameraImpl) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	radius, azimuth, elevation := c.spherical()
	c.setSpherical(math32.Max(radius*(1-delta), minRadius), azimuth, elevation)
}

// spherical returns the eye offset from the target in y-up spherical coordinates.
// Caller must hold the mutex.
func (c *cameraImpl) spherical() (radius, azimuth, elevation float32) {
	d := c.position.Sub(c.target)
	radius = d.Len()
	if radius == 0 {
		return 0, 0, 0
	}
	azimuth = math32.Atan2(d.X(), d.Z())
	elevation = math32.Asin(common.Clamp(d.Y()/radius, -1, 1))
	return radius, azimuth, elevation
}

// setSpherical places the eye around the target. Caller must hold the mutex.
func (c *cameraImpl) setSpherical(radius, azimuth, elevation float32) {
	horizontal := radius * math32.Cos(elevation)
	c.position = c.target.Add(mgl32.Vec3{
		horizontal * math32.Sin(azimuth),
		radius * math32.Sin(elevation),
		horizontal * math32.Cos(azimuth),
	})
}
