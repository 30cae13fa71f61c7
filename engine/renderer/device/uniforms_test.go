package device

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float32Bytes(vs ...float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestUniformsDecodeLayout(t *testing.T) {
	layout := ProgramLayout{
		Uniforms: []UniformField{
			{Name: "normalMatrix", Block: "object", Type: UniformMat3, Offset: 0},
			{Name: "exposure", Block: "object", Type: UniformFloat, Offset: 48},
			{Name: "kernel", Block: "ssao", Type: UniformVec4, Offset: 0, ArrayLen: 2, Stride: 16},
		},
	}
	object := float32Bytes(
		1, 2, 3, 0,
		4, 5, 6, 0,
		7, 8, 9, 0,
		2.5,
	)
	ssao := float32Bytes(0.1, 0.2, 0.3, 0, 0.4, 0.5, 0.6, 0)
	u := NewUniforms(layout, map[string][]byte{"object": object, "ssao": ssao})

	assert.Equal(t, mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}, u.Mat3("normalMatrix"))
	assert.Equal(t, float32(2.5), u.Float("exposure"))
	assert.Equal(t, mgl32.Vec4{0.4, 0.5, 0.6, 0}, u.Vec4At("kernel", 1))
	assert.Equal(t, mgl32.Vec4{}, u.Vec4At("kernel", 2), "out of range element reads zero")
	assert.Equal(t, mgl32.Vec4{}, u.Vec4("exposure"), "type mismatch reads zero")
	assert.Equal(t, float32(0), u.Float("missing"))
}

func TestUniformsShortBlockReadsZero(t *testing.T) {
	layout := ProgramLayout{Uniforms: []UniformField{{Name: "view", Block: "camera", Type: UniformMat4}}}
	u := NewUniforms(layout, map[string][]byte{"camera": float32Bytes(1, 2, 3)})
	assert.Equal(t, mgl32.Mat4{}, u.Mat4("view"))
}

func TestHalfFloatRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -2, 0.5, 1024, 2047, 2048, 65504, 6.1035156e-05, 5.9604645e-08} {
		assert.Equal(t, v, halfToFloat32(float32ToHalf(v)), "value %v", v)
	}
	assert.True(t, math.IsInf(float64(halfToFloat32(float32ToHalf(1e6))), 1))
	assert.InDelta(t, 0.1, halfToFloat32(float32ToHalf(0.1)), 1e-4)
}

func TestCheckWGSL(t *testing.T) {
	err := checkWGSL(StageSource{Stage: StageFragment, Path: "bad.frag.wgsl", Code: "@fragment fn fs_main() {\n  let x = (1.0;\n}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.frag.wgsl:3: unexpected '}'")

	err = checkWGSL(StageSource{Stage: StageFragment, Path: "novs.wgsl", Code: flatVS})
	assert.ErrorContains(t, err, "@fragment")

	err = checkWGSL(StageSource{Stage: StageGeometry, Path: "lib.wgsl", Code: flatVS})
	assert.Error(t, err)

	err = checkWGSL(StageSource{Stage: StageVertex, Path: "c.wgsl", Code: "// { unbalanced in comment\n" + flatVS})
	assert.NoError(t, err)

	assert.Equal(t, "vs_main", EntryPoint(flatVS, StageVertex))
}

func TestSamplerFiltering(t *testing.T) {
	tex := &swTexture{
		desc:   TextureDescriptor{Width: 2, Height: 1, Format: TextureFormatRGBA16Float},
		texels: []mgl32.Vec4{{0, 0, 0, 1}, {1, 1, 1, 1}},
	}
	depth := &swTexture{
		desc:   TextureDescriptor{Width: 2, Height: 2, Format: TextureFormatDepth32Float},
		texels: []mgl32.Vec4{{0.2, 0, 0, 1}, {0.8, 0, 0, 1}, {0.8, 0, 0, 1}, {0.8, 0, 0, 1}},
	}
	s := swSampler{textures: map[string]*swTexture{"ramp": tex, "shadow": depth}}

	assert.InDelta(t, 0.5, s.Sample("ramp", mgl32.Vec2{0.5, 0.5})[0], 1e-6)
	assert.InDelta(t, 0, s.Sample("ramp", mgl32.Vec2{0, 0.5})[0], 1e-6)
	assert.InDelta(t, 1, s.Sample("ramp", mgl32.Vec2{1.5, 0.5})[0], 1e-6)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, s.Load("ramp", 5, 0))
	assert.Equal(t, mgl32.Vec4{}, s.Sample("missing", mgl32.Vec2{}))

	assert.InDelta(t, 0.75, s.SampleCompare("shadow", mgl32.Vec2{0.5, 0.5}, 0.5), 1e-6)
	assert.Equal(t, float32(1), s.SampleCompare("missing", mgl32.Vec2{}, 0.5))

	w, h := s.Size("shadow")
	assert.Equal(t, []int{2, 2}, []int{w, h})
}
