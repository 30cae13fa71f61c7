package device

// UniformType is the declared WGSL type of a uniform.
type UniformType int

const (
	UniformFloat UniformType = iota
	UniformInt
	UniformUint
	UniformVec2
	UniformVec3
	UniformVec4
	UniformIVec2
	UniformIVec4
	UniformMat3
	UniformMat4
)

var uniformTypeNames = [...]string{
	UniformFloat: "f32",
	UniformInt:   "i32",
	UniformUint:  "u32",
	UniformVec2:  "vec2<f32>",
	UniformVec3:  "vec3<f32>",
	UniformVec4:  "vec4<f32>",
	UniformIVec2: "vec2<i32>",
	UniformIVec4: "vec4<i32>",
	UniformMat3:  "mat3x3<f32>",
	UniformMat4:  "mat4x4<f32>",
}

func (t UniformType) String() string {
	if int(t) < len(uniformTypeNames) {
		return uniformTypeNames[t]
	}
	return "unknown"
}

// UniformField is one named value inside a uniform block.
type UniformField struct {
	Name  string
	Block string
	Type  UniformType

	// Offset is the byte offset of the field inside its block.
	Offset uint64

	// ArrayLen is the element count of an array field, or 0 for a scalar field.
	ArrayLen int

	// Stride is the byte distance between array elements.
	Stride uint64
}

// BlockLayout is one `var<uniform>` declaration.
type BlockLayout struct {
	Name    string
	Group   int
	Binding int
	Size    uint64
}

// ResourceKind classifies a non-buffer binding.
type ResourceKind int

const (
	ResourceTexture ResourceKind = iota
	ResourceDepthTexture
	ResourceSampler
	ResourceComparisonSampler
)

// ResourceBinding is a texture or sampler declaration.
type ResourceBinding struct {
	Name    string
	Group   int
	Binding int
	Kind    ResourceKind
}

// ProgramLayout is the introspected interface of a program.
type ProgramLayout struct {
	Blocks    []BlockLayout
	Uniforms  []UniformField
	Resources []ResourceBinding

	// VertexInput is true when the vertex stage reads the mesh vertex layout.
	// Full-screen programs generate their vertices and leave it false.
	VertexInput bool

	// ColorTargets is the number of color outputs written by the fragment stage.
	ColorTargets int
}

// Block returns the block with the given name.
func (l ProgramLayout) Block(name string) (BlockLayout, bool) {
	for _, b := range l.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return BlockLayout{}, false
}

// Uniform returns the uniform with the given name.
func (l ProgramLayout) Uniform(name string) (UniformField, bool) {
	for _, u := range l.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return UniformField{}, false
}
