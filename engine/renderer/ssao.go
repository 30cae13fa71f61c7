package renderer

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxSSAOSamples is the capacity of the kernel array in the SSAO program.
const MaxSSAOSamples = 32

func ssaoRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GenerateSSAOKernel returns n sample offsets inside the unit hemisphere around
// +Z. Samples are pushed toward the origin so occlusion close to the surface
// weighs more. n is clamped to [1, MaxSSAOSamples].
//
// Parameters:
//   - n: the number of samples
//   - seed: the random seed; equal seeds give equal kernels
//
// Returns:
//   - []mgl32.Vec4: the offsets in xyz, w = 0
func GenerateSSAOKernel(n int, seed uint64) []mgl32.Vec4 {
	n = common.Clamp(n, 1, MaxSSAOSamples)
	rng := ssaoRand(seed)
	kernel := make([]mgl32.Vec4, n)
	for i := range kernel {
		v := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()}
		if v.Len() < 1e-4 {
			v = mgl32.Vec3{0, 0, 1}
		}
		v = v.Normalize().Mul(rng.Float32())
		t := float32(i) / float32(n)
		v = v.Mul(0.1 + 0.9*t*t)
		kernel[i] = v.Vec4(0)
	}
	return kernel
}

// GenerateSSAONoise returns size*size random rotation vectors in the XY plane,
// row-major, used to tile a noise texture that rotates the kernel per pixel.
//
// Parameters:
//   - size: the edge length of the noise tile, at least 1
//   - seed: the random seed
//
// Returns:
//   - []mgl32.Vec4: the rotation vectors in xy, z = 0, w = 1
func GenerateSSAONoise(size int, seed uint64) []mgl32.Vec4 {
	size = max(size, 1)
	rng := ssaoRand(seed + 1)
	noise := make([]mgl32.Vec4, size*size)
	for i := range noise {
		noise[i] = mgl32.Vec4{rng.Float32()*2 - 1, rng.Float32()*2 - 1, 0, 1}
	}
	return noise
}
