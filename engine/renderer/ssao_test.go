package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSAOKernelSamplesHemisphere(t *testing.T) {
	k := GenerateSSAOKernel(16, 3)
	require.Len(t, k, 16)
	for i, s := range k {
		assert.GreaterOrEqual(t, s.Z(), float32(0), "sample %d", i)
		assert.LessOrEqual(t, s.Vec3().Len(), float32(1), "sample %d", i)
		assert.Zero(t, s.W())
	}
	assert.Equal(t, k, GenerateSSAOKernel(16, 3))
	assert.NotEqual(t, k, GenerateSSAOKernel(16, 4))

	assert.Len(t, GenerateSSAOKernel(0, 1), 1)
	assert.Len(t, GenerateSSAOKernel(100, 1), MaxSSAOSamples)
}

func TestSSAONoiseRotatesAroundZ(t *testing.T) {
	n := GenerateSSAONoise(4, 1)
	require.Len(t, n, 16)
	for _, v := range n {
		assert.Zero(t, v.Z())
		assert.Equal(t, float32(1), v.W())
		assert.LessOrEqual(t, v.X(), float32(1))
		assert.GreaterOrEqual(t, v.X(), float32(-1))
	}
}
