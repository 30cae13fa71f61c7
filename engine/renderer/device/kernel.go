package device

import "github.com/go-gl/mathgl/mgl32"

// Varyings is the fixed set of values a software vertex kernel passes to the
// fragment kernel. They are interpolated perspective-correctly.
type Varyings struct {
	// Position is the clip-space position.
	Position mgl32.Vec4
	WorldPos mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    mgl32.Vec4
	Extra    mgl32.Vec4
}

func (v Varyings) scale(s float32) Varyings {
	return Varyings{
		Position: v.Position.Mul(s),
		WorldPos: v.WorldPos.Mul(s),
		Normal:   v.Normal.Mul(s),
		UV:       v.UV.Mul(s),
		Color:    v.Color.Mul(s),
		Extra:    v.Extra.Mul(s),
	}
}

func (v Varyings) add(o Varyings) Varyings {
	return Varyings{
		Position: v.Position.Add(o.Position),
		WorldPos: v.WorldPos.Add(o.WorldPos),
		Normal:   v.Normal.Add(o.Normal),
		UV:       v.UV.Add(o.UV),
		Color:    v.Color.Add(o.Color),
		Extra:    v.Extra.Add(o.Extra),
	}
}

// lerpVaryings returns a + (b-a)*t.
func lerpVaryings(a, b Varyings, t float32) Varyings {
	return a.scale(1 - t).add(b.scale(t))
}

// Sampler gives fragment kernels access to the textures bound to the draw.
type Sampler interface {
	// Sample reads a texture with bilinear filtering and clamp-to-edge addressing.
	// uv (0,0) is the top-left corner.
	Sample(name string, uv mgl32.Vec2) mgl32.Vec4

	// SampleCompare returns the fraction of the 2x2 depth footprint around uv
	// whose depth is greater than or equal to ref.
	SampleCompare(name string, uv mgl32.Vec2, ref float32) float32

	// Load reads one texel without filtering. Out-of-range coordinates are clamped.
	Load(name string, x, y int) mgl32.Vec4

	// Size returns the texture dimensions, or zeros when the name is unbound.
	Size(name string) (int, int)
}

// Fragment is the per-pixel input and output of a fragment kernel.
type Fragment struct {
	X, Y int

	// Coord is the pixel center in framebuffer space.
	Coord mgl32.Vec2

	// Depth is the window-space depth of the fragment.
	Depth float32

	FrontFacing bool
	In          Varyings
	Uniforms    Uniforms
	Textures    Sampler

	// Out holds one color per bound color attachment.
	Out [MaxColorTargets]mgl32.Vec4

	discarded bool
}

// Discard drops the fragment. No attachment is written.
func (f *Fragment) Discard() {
	f.discarded = true
}

// VertexKernel transforms one vertex. It must set Varyings.Position to the clip-space position.
type VertexKernel func(v Vertex, u Uniforms) Varyings

// FragmentKernel shades one fragment by writing Out or calling Discard.
type FragmentKernel func(f *Fragment)

// Kernel is the CPU counterpart of a WGSL program, run by the software backend.
// Kernels must not retain or mutate shared state: fragments run concurrently.
type Kernel struct {
	Vertex   VertexKernel
	Fragment FragmentKernel
}
