package device

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Uniforms is a read-only view of the uniform values of one draw, decoded
// through the program layout. Unknown names and mismatched types read as zero.
type Uniforms struct {
	fields map[string]UniformField
	blocks map[string][]byte
}

// NewUniforms builds a view over per-block byte snapshots.
//
// Parameters:
//   - layout: the program layout describing field offsets
//   - blocks: block name to the block bytes
//
// Returns:
//   - Uniforms: the decoded view
func NewUniforms(layout ProgramLayout, blocks map[string][]byte) Uniforms {
	fields := make(map[string]UniformField, len(layout.Uniforms))
	for _, f := range layout.Uniforms {
		fields[f.Name] = f
	}
	return Uniforms{fields: fields, blocks: blocks}
}

func (u Uniforms) bytes(name string, t UniformType, index int) []byte {
	f, ok := u.fields[name]
	if !ok || f.Type != t {
		return nil
	}
	off := f.Offset
	if f.ArrayLen > 0 {
		if index < 0 || index >= f.ArrayLen {
			return nil
		}
		off += uint64(index) * f.Stride
	} else if index != 0 {
		return nil
	}
	data := u.blocks[f.Block]
	size := uint64(UniformSize(t))
	if off+size > uint64(len(data)) {
		return nil
	}
	return data[off : off+size]
}

func f32At(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

// Float returns an f32 uniform.
func (u Uniforms) Float(name string) float32 {
	b := u.bytes(name, UniformFloat, 0)
	if b == nil {
		return 0
	}
	return f32At(b, 0)
}

// Int returns an i32 uniform.
func (u Uniforms) Int(name string) int32 {
	b := u.bytes(name, UniformInt, 0)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// Uint returns a u32 uniform.
func (u Uniforms) Uint(name string) uint32 {
	b := u.bytes(name, UniformUint, 0)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Vec2 returns a vec2<f32> uniform.
func (u Uniforms) Vec2(name string) mgl32.Vec2 {
	b := u.bytes(name, UniformVec2, 0)
	if b == nil {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{f32At(b, 0), f32At(b, 1)}
}

// Vec3 returns a vec3<f32> uniform.
func (u Uniforms) Vec3(name string) mgl32.Vec3 {
	b := u.bytes(name, UniformVec3, 0)
	if b == nil {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{f32At(b, 0), f32At(b, 1), f32At(b, 2)}
}

// Vec4 returns a vec4<f32> uniform.
func (u Uniforms) Vec4(name string) mgl32.Vec4 {
	return u.Vec4At(name, 0)
}

// Vec4At returns element i of an array<vec4<f32>, N> uniform, or the vec4 itself for i == 0.
func (u Uniforms) Vec4At(name string, i int) mgl32.Vec4 {
	b := u.bytes(name, UniformVec4, i)
	if b == nil {
		return mgl32.Vec4{}
	}
	return mgl32.Vec4{f32At(b, 0), f32At(b, 1), f32At(b, 2), f32At(b, 3)}
}

// IVec4 returns a vec4<i32> uniform.
func (u Uniforms) IVec4(name string) [4]int32 {
	b := u.bytes(name, UniformIVec4, 0)
	if b == nil {
		return [4]int32{}
	}
	var out [4]int32
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Mat3 returns a mat3x3<f32> uniform (columns padded to 16 bytes).
func (u Uniforms) Mat3(name string) mgl32.Mat3 {
	b := u.bytes(name, UniformMat3, 0)
	if b == nil {
		return mgl32.Mat3{}
	}
	var m mgl32.Mat3
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m[c*3+r] = f32At(b, c*4+r)
		}
	}
	return m
}

// Mat4 returns a mat4x4<f32> uniform.
func (u Uniforms) Mat4(name string) mgl32.Mat4 {
	return u.Mat4At(name, 0)
}

// Mat4At returns element i of an array<mat4x4<f32>, N> uniform.
func (u Uniforms) Mat4At(name string, i int) mgl32.Mat4 {
	b := u.bytes(name, UniformMat4, i)
	if b == nil {
		return mgl32.Mat4{}
	}
	var m mgl32.Mat4
	for k := range m {
		m[k] = f32At(b, k)
	}
	return m
}

// UniformSize returns the byte size of one value of type t in the uniform address space.
func UniformSize(t UniformType) int {
	switch t {
	case UniformFloat, UniformInt, UniformUint:
		return 4
	case UniformVec2, UniformIVec2:
		return 8
	case UniformVec3:
		return 12
	case UniformVec4, UniformIVec4:
		return 16
	case UniformMat3:
		return 48
	case UniformMat4:
		return 64
	default:
		return 0
	}
}
