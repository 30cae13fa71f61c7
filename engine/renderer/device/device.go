// Package device abstracts the GPU used by the renderer. A Device owns textures,
// meshes, buffers and linked programs, records render passes, and reads texels
// back to the CPU. Two backends implement it: a WebGPU backend for on-screen
// rendering and a CPU software backend used for headless rendering and tests.
package device

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxColorTargets is the maximum number of color attachments a pass may bind.
const MaxColorTargets = 8

// Texture is a 2D GPU texture usable as a render attachment and as a sampled input.
type Texture interface {
	// Label returns the debug label given at creation.
	Label() string

	// Width returns the texture width in texels.
	Width() int

	// Height returns the texture height in texels.
	Height() int

	// Format returns the texel format.
	Format() TextureFormat

	// Release frees the GPU storage. Using the texture afterwards is invalid.
	Release()
}

// Mesh is an indexed vertex list uploaded to the GPU.
type Mesh interface {
	Label() string
	IndexCount() int
	Topology() Topology
	Release()
}

// Buffer is a GPU uniform buffer that can be bound to a program's uniform block.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// Module is a compiled shader stage.
type Module interface {
	Stage() Stage
	Path() string
	Release()
}

// Program is a linked set of shader stages.
type Program interface {
	Label() string
	Layout() ProgramLayout
	Release()
}

// BindingSource supplies the per-draw resources of the bound program. The device
// reads it at every draw so values set after UseProgram take effect on the next draw.
type BindingSource interface {
	// BlockData returns the CPU-side bytes of a uniform block, or nil when the
	// block is backed by a Buffer.
	BlockData(block string) []byte

	// BlockBuffer returns the GPU buffer bound to a uniform block, or nil.
	BlockBuffer(block string) Buffer

	// Texture returns the texture bound to a sampled texture binding, or nil.
	Texture(name string) Texture
}

// PassDescriptor describes the attachments of a render pass.
type PassDescriptor struct {
	Label string

	// Color are the color attachments in location order.
	Color []Texture

	// Depth is the optional depth attachment.
	Depth Texture

	// Clear selects clearing all attachments at pass start instead of loading them.
	Clear      bool
	ClearColor mgl32.Vec4
	ClearDepth float32
}

// Device is the GPU abstraction consumed by framebuffers, shader programs and renderers.
// Commands are recorded in submission order. A Device is not safe for concurrent use:
// rendering is single-threaded and driven by the frame pump.
type Device interface {
	// Backend returns the backend type implementing this device.
	Backend() BackendType

	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture label, size and format
	//
	// Returns:
	//   - Texture: the allocated texture
	//   - error: a *diag.GPUResourceError when the allocation fails
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads texels (row-major, top row first) to a color texture.
	// len(texels) must equal width*height.
	WriteTexture(tex Texture, texels []mgl32.Vec4) error

	// CreateMesh uploads an indexed mesh.
	CreateMesh(desc MeshDescriptor) (Mesh, error)

	// CreateBuffer allocates a uniform buffer of size bytes.
	CreateBuffer(label string, size uint64) (Buffer, error)

	// WriteBuffer copies data into buf at offset.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CompileStage compiles one shader stage.
	//
	// Parameters:
	//   - src: the stage kind, source path and WGSL code
	//
	// Returns:
	//   - Module: the compiled stage
	//   - error: the compiler log when compilation fails
	CompileStage(src StageSource) (Module, error)

	// LinkProgram links compiled stages into a program. geometry may be nil.
	//
	// Parameters:
	//   - desc: the program label and introspected layout
	//   - vertex, fragment: compiled stages, both required
	//   - geometry: optional library stage linked into the vertex stage
	//
	// Returns:
	//   - Program: the linked program
	//   - error: the linker log when linking fails
	LinkProgram(desc ProgramDescriptor, vertex, fragment, geometry Module) (Program, error)

	// BeginPass starts a render pass on the given attachments, ending any open pass.
	BeginPass(desc PassDescriptor) error

	// EndPass ends the open pass. It is a no-op when no pass is open.
	EndPass()

	// SetState replaces the fixed-function state used by subsequent draws.
	SetState(s State)

	// State returns the current fixed-function state.
	State() State

	// UseProgram binds a program and its resource source for subsequent draws.
	// Passing a nil program unbinds.
	UseProgram(p Program, src BindingSource)

	// Program returns the bound program, or nil.
	Program() Program

	// Draw draws mesh with the bound program into the open pass.
	Draw(mesh Mesh)

	// DrawFullscreen draws one screen-covering triangle with the bound program.
	DrawFullscreen()

	// Flush submits all recorded work.
	Flush() error

	// ReadPixel blocks until recorded work completes and returns one texel.
	ReadPixel(tex Texture, x, y int) (mgl32.Vec4, error)

	// ReadTexture blocks until recorded work completes and returns every texel,
	// row-major with the top row first.
	ReadTexture(tex Texture) ([]mgl32.Vec4, error)

	// ConfigureSurface resizes the presentation surface. Headless devices ignore it.
	ConfigureSurface(width, height int) error

	// Present copies tex to the presentation surface and displays it.
	Present(tex Texture) error

	// Release frees every device-owned resource.
	Release()
}

// Stage identifies a shader stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageGeometry
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	default:
		return "unknown"
	}
}

// StageSource is the source text of one stage.
type StageSource struct {
	Stage Stage
	Path  string
	Code  string
}

// ProgramDescriptor describes a program to link.
type ProgramDescriptor struct {
	Label  string
	Layout ProgramLayout
}

// Topology is the primitive topology of a mesh.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

// Vertex is the single vertex layout used by every mesh program:
// location 0 position, 1 normal, 2 uv, 3 color.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    mgl32.Vec4
}

// VertexStride is the byte size of one marshaled Vertex.
const VertexStride = 48

// MeshDescriptor describes a mesh upload.
type MeshDescriptor struct {
	Label    string
	Vertices []Vertex
	Indices  []uint32
	Topology Topology
}

// CullMode selects which faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// BlendMode selects the color blend equation.
type BlendMode int

const (
	// BlendNone writes the source color.
	BlendNone BlendMode = iota
	// BlendAlpha computes src*a + dst*(1-a).
	BlendAlpha
	// BlendAdditive computes src*a + dst.
	BlendAdditive
)

// State is the fixed-function state applied to draws.
type State struct {
	ScissorEnabled bool
	Scissor        common.Rect

	DepthTest  bool
	DepthWrite bool
	// DepthNear and DepthFar map clip depth [0, 1] into this window range.
	DepthNear float32
	DepthFar  float32

	Cull      CullMode
	Blend     BlendMode
	Wireframe bool
}

// DefaultState returns the state of a freshly created device: every test off
// and the full depth range.
func DefaultState() State {
	return State{DepthNear: 0, DepthFar: 1}
}

// BackendType selects the device implementation.
type BackendType int

const (
	// BackendTypeWGPU renders through WebGPU.
	BackendTypeWGPU BackendType = iota
	// BackendTypeSoftware renders on the CPU without a window.
	BackendTypeSoftware
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// ParseBackendType maps a configuration string to a BackendType.
func ParseBackendType(s string) (BackendType, bool) {
	switch s {
	case "wgpu", "":
		return BackendTypeWGPU, true
	case "software":
		return BackendTypeSoftware, true
	default:
		return BackendTypeWGPU, false
	}
}
