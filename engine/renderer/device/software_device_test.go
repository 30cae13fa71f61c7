package device

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	flatVS = "@vertex fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(p, 1.0); }"
	flatFS = "@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }"
)

var testKernels = map[string]Kernel{
	"flat": {
		Vertex: func(v Vertex, _ Uniforms) Varyings {
			return Varyings{Position: v.Position.Vec4(1), Color: v.Color, UV: v.UV}
		},
		Fragment: func(f *Fragment) { f.Out[0] = f.In.Color },
	},
	"uv": {
		Vertex: func(v Vertex, _ Uniforms) Varyings {
			return Varyings{Position: v.Position.Vec4(1), UV: v.UV}
		},
		Fragment: func(f *Fragment) { f.Out[0] = mgl32.Vec4{f.In.UV.X(), f.In.UV.Y(), 0, 1} },
	},
	"tint": {
		Vertex: func(v Vertex, _ Uniforms) Varyings {
			return Varyings{Position: v.Position.Vec4(1)}
		},
		Fragment: func(f *Fragment) { f.Out[0] = f.Uniforms.Vec4("tint") },
	},
	"discard": {
		Vertex: func(v Vertex, _ Uniforms) Varyings {
			return Varyings{Position: v.Position.Vec4(1)}
		},
		Fragment: func(f *Fragment) {
			if f.X < 2 {
				f.Discard()
				return
			}
			f.Out[0] = mgl32.Vec4{1, 1, 1, 1}
		},
	},
}

type testSource struct {
	blocks   map[string][]byte
	textures map[string]Texture
}

func (s testSource) BlockData(block string) []byte { return s.blocks[block] }
func (s testSource) BlockBuffer(string) Buffer      { return nil }
func (s testSource) Texture(name string) Texture    { return s.textures[name] }

func newTestDevice(t *testing.T, opts ...DeviceBuilderOption) *softwareDevice {
	t.Helper()
	d, err := New(BackendTypeSoftware, append([]DeviceBuilderOption{WithKernels(testKernels), WithWorkers(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d.(*softwareDevice)
}

func link(t *testing.T, d Device, label string, layout ProgramLayout) Program {
	t.Helper()
	vs, err := d.CompileStage(StageSource{Stage: StageVertex, Path: label + ".vert.wgsl", Code: flatVS})
	require.NoError(t, err)
	fs, err := d.CompileStage(StageSource{Stage: StageFragment, Path: label + ".frag.wgsl", Code: flatFS})
	require.NoError(t, err)
	p, err := d.LinkProgram(ProgramDescriptor{Label: label, Layout: layout}, vs, fs, nil)
	require.NoError(t, err)
	return p
}

func quad(t *testing.T, d Device, z float32, c mgl32.Vec4, clockwise bool) Mesh {
	t.Helper()
	idx := []uint32{0, 1, 2, 0, 2, 3}
	if clockwise {
		idx = []uint32{0, 2, 1, 0, 3, 2}
	}
	m, err := d.CreateMesh(MeshDescriptor{
		Label: "quad",
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-1, -1, z}, Color: c},
			{Position: mgl32.Vec3{1, -1, z}, Color: c},
			{Position: mgl32.Vec3{1, 1, z}, Color: c},
			{Position: mgl32.Vec3{-1, 1, z}, Color: c},
		},
		Indices: idx,
	})
	require.NoError(t, err)
	return m
}

func colorTarget(t *testing.T, d Device, w, h int, f TextureFormat) Texture {
	t.Helper()
	tex, err := d.CreateTexture(TextureDescriptor{Label: "color", Width: w, Height: h, Format: f})
	require.NoError(t, err)
	return tex
}

func pixel(t *testing.T, d Device, tex Texture, x, y int) mgl32.Vec4 {
	t.Helper()
	c, err := d.ReadPixel(tex, x, y)
	require.NoError(t, err)
	return c
}

func assertColor(t *testing.T, want, got mgl32.Vec4, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "component %d of %v", i, got)
	}
}

func TestCreateTextureRejectsBadSizes(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateTexture(TextureDescriptor{Label: "empty", Width: 0, Height: 4, Format: TextureFormatRGBA8})
	var gre *diag.GPUResourceError
	require.ErrorAs(t, err, &gre)
	assert.Equal(t, "empty", gre.Resource)
}

func TestAllocationFaultIsWrapped(t *testing.T) {
	boom := errors.New("out of memory")
	d := newTestDevice(t, WithAllocationFault(func(desc TextureDescriptor) error {
		if desc.Label == "ssao" {
			return boom
		}
		return nil
	}))
	_, err := d.CreateTexture(TextureDescriptor{Label: "ssao", Width: 4, Height: 4, Format: TextureFormatRGBA8})
	require.ErrorIs(t, err, boom)

	_, err = d.CreateTexture(TextureDescriptor{Label: "albedo", Width: 4, Height: 4, Format: TextureFormatRGBA8})
	assert.NoError(t, err)
}

func TestDepthTexturesStartAtFarPlane(t *testing.T) {
	d := newTestDevice(t)
	depth, err := d.CreateTexture(TextureDescriptor{Label: "depth", Width: 2, Height: 2, Format: TextureFormatDepth32Float})
	require.NoError(t, err)
	assert.Equal(t, float32(1), pixel(t, d, depth, 1, 1)[0])
}

func TestBeginPassValidatesAttachments(t *testing.T) {
	d := newTestDevice(t)
	a := colorTarget(t, d, 4, 4, TextureFormatRGBA8)
	b := colorTarget(t, d, 8, 4, TextureFormatRGBA8)

	err := d.BeginPass(PassDescriptor{Label: "mismatch", Color: []Texture{a, b}})
	var ce *diag.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "8x4")

	err = d.BeginPass(PassDescriptor{Label: "none"})
	require.ErrorAs(t, err, &ce)

	err = d.BeginPass(PassDescriptor{Label: "depth-as-color", Depth: a})
	require.ErrorAs(t, err, &ce)
}

func TestClearPassWritesEveryAttachment(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 4, 4, TextureFormatRGBA16Float)
	depth, err := d.CreateTexture(TextureDescriptor{Label: "depth", Width: 4, Height: 4, Format: TextureFormatDepth32Float})
	require.NoError(t, err)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Depth: depth, Clear: true,
		ClearColor: mgl32.Vec4{0.25, 0.5, 0.75, 1}, ClearDepth: 0.5}))
	d.EndPass()

	assertColor(t, mgl32.Vec4{0.25, 0.5, 0.75, 1}, pixel(t, d, c, 3, 3), 1e-6)
	assert.Equal(t, float32(0.5), pixel(t, d, depth, 0, 0)[0])
}

func TestDepthTestKeepsNearestSurface(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 8, 8, TextureFormatRGBA8)
	depth, err := d.CreateTexture(TextureDescriptor{Label: "depth", Width: 8, Height: 8, Format: TextureFormatDepth32Float})
	require.NoError(t, err)
	p := link(t, d, "flat", ProgramLayout{VertexInput: true, ColorTargets: 1})

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Depth: depth, Clear: true, ClearDepth: 1}))
	d.SetState(State{DepthTest: true, DepthWrite: true, DepthFar: 1, Cull: CullBack})
	d.UseProgram(p, nil)
	d.Draw(quad(t, d, 0.5, mgl32.Vec4{1, 0, 0, 1}, false))
	d.Draw(quad(t, d, 0.8, mgl32.Vec4{0, 1, 0, 1}, false))
	d.Draw(quad(t, d, 0.2, mgl32.Vec4{0, 0, 1, 1}, false))
	d.EndPass()

	assertColor(t, mgl32.Vec4{0, 0, 1, 1}, pixel(t, d, c, 4, 4), 1e-6)
	assert.InDelta(t, 0.2, pixel(t, d, depth, 4, 4)[0], 1e-6)
}

func TestCullModes(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 8, 8, TextureFormatRGBA8)
	p := link(t, d, "flat", ProgramLayout{VertexInput: true, ColorTargets: 1})
	back := quad(t, d, 0.5, mgl32.Vec4{1, 1, 1, 1}, true)

	draw := func(cull CullMode) mgl32.Vec4 {
		require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
		d.SetState(State{DepthFar: 1, Cull: cull})
		d.UseProgram(p, nil)
		d.Draw(back)
		d.EndPass()
		return pixel(t, d, c, 4, 4)
	}

	assertColor(t, mgl32.Vec4{}, draw(CullBack), 0)
	assertColor(t, mgl32.Vec4{1, 1, 1, 1}, draw(CullFront), 0)
	assertColor(t, mgl32.Vec4{1, 1, 1, 1}, draw(CullNone), 0)
}

func TestAlphaAndAdditiveBlending(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 4, 4, TextureFormatRGBA16Float)
	p := link(t, d, "flat", ProgramLayout{VertexInput: true, ColorTargets: 1})
	half := quad(t, d, 0.5, mgl32.Vec4{1, 0, 0, 0.5}, false)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true, ClearColor: mgl32.Vec4{1, 1, 1, 1}}))
	d.SetState(State{DepthFar: 1, Blend: BlendAlpha})
	d.UseProgram(p, nil)
	d.Draw(half)
	d.EndPass()
	assertColor(t, mgl32.Vec4{1, 0.5, 0.5, 0.75}, pixel(t, d, c, 1, 1), 1e-6)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true, ClearColor: mgl32.Vec4{0, 0.25, 0, 0}}))
	d.SetState(State{DepthFar: 1, Blend: BlendAdditive})
	d.Draw(half)
	d.EndPass()
	assertColor(t, mgl32.Vec4{0.5, 0.25, 0, 0.5}, pixel(t, d, c, 1, 1), 1e-6)
}

func TestScissorLimitsWrites(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 8, 8, TextureFormatRGBA8)
	p := link(t, d, "flat", ProgramLayout{VertexInput: true, ColorTargets: 1})

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.SetState(State{DepthFar: 1, ScissorEnabled: true, Scissor: common.Rect{X: 0, Y: 0, Width: 4, Height: 8}})
	d.UseProgram(p, nil)
	d.Draw(quad(t, d, 0.5, mgl32.Vec4{1, 1, 1, 1}, false))
	d.EndPass()

	assertColor(t, mgl32.Vec4{1, 1, 1, 1}, pixel(t, d, c, 2, 4), 0)
	assertColor(t, mgl32.Vec4{}, pixel(t, d, c, 6, 4), 0)
}

func TestDiscardSkipsWrites(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 4, 4, TextureFormatRGBA8)
	p := link(t, d, "discard", ProgramLayout{ColorTargets: 1})

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.SetState(DefaultState())
	d.UseProgram(p, nil)
	d.DrawFullscreen()
	d.EndPass()

	assertColor(t, mgl32.Vec4{}, pixel(t, d, c, 1, 0), 0)
	assertColor(t, mgl32.Vec4{1, 1, 1, 1}, pixel(t, d, c, 2, 0), 0)
}

func TestFullscreenUVsStartTopLeft(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 4, 4, TextureFormatRGBA16Float)
	p := link(t, d, "uv", ProgramLayout{ColorTargets: 1})

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.SetState(State{DepthFar: 1, Cull: CullBack})
	d.UseProgram(p, nil)
	d.DrawFullscreen()
	d.EndPass()

	assertColor(t, mgl32.Vec4{0.125, 0.125, 0, 1}, pixel(t, d, c, 0, 0), 1e-5)
	assertColor(t, mgl32.Vec4{0.875, 0.625, 0, 1}, pixel(t, d, c, 3, 2), 1e-5)
}

func TestBandedRasterMatchesSingleBand(t *testing.T) {
	render := func(workers int) []mgl32.Vec4 {
		d := newTestDevice(t, WithWorkers(workers))
		c := colorTarget(t, d, 64, 64, TextureFormatRGBA16Float)
		p := link(t, d, "uv", ProgramLayout{ColorTargets: 1})
		require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
		d.UseProgram(p, nil)
		d.DrawFullscreen()
		d.EndPass()
		out, err := d.ReadTexture(c)
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, render(1), render(4))
}

func TestUniformsReachFragments(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 2, 2, TextureFormatRGBA16Float)
	layout := ProgramLayout{
		Blocks:       []BlockLayout{{Name: "params", Size: 16}},
		Uniforms:     []UniformField{{Name: "tint", Block: "params", Type: UniformVec4}},
		ColorTargets: 1,
	}
	p := link(t, d, "tint", layout)

	src := testSource{blocks: map[string][]byte{"params": float32Bytes(0.1, 0.2, 0.3, 1)}}
	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.UseProgram(p, src)
	d.DrawFullscreen()
	d.EndPass()

	assertColor(t, mgl32.Vec4{0.1, 0.2, 0.3, 1}, pixel(t, d, c, 1, 1), 1e-6)
}

func TestMissingTextureSkipsDraw(t *testing.T) {
	var reported []error
	diag.SetSink(func(err error) { reported = append(reported, err) })
	t.Cleanup(func() { diag.SetSink(nil); diag.ResetOnce("") })

	d := newTestDevice(t)
	c := colorTarget(t, d, 2, 2, TextureFormatRGBA8)
	layout := ProgramLayout{Resources: []ResourceBinding{{Name: "gAlbedo", Kind: ResourceTexture}}, ColorTargets: 1}
	p := link(t, d, "uv", layout)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.UseProgram(p, testSource{})
	d.DrawFullscreen()
	d.DrawFullscreen()
	d.EndPass()

	assertColor(t, mgl32.Vec4{}, pixel(t, d, c, 0, 0), 0)
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0].Error(), "gAlbedo")
}

func TestLinesAndWireframe(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 8, 8, TextureFormatRGBA8)
	p := link(t, d, "flat", ProgramLayout{VertexInput: true, ColorTargets: 1})
	white := mgl32.Vec4{1, 1, 1, 1}

	line, err := d.CreateMesh(MeshDescriptor{
		Label:    "line",
		Vertices: []Vertex{{Position: mgl32.Vec3{-1, 0, 0.5}, Color: white}, {Position: mgl32.Vec3{1, 0, 0.5}, Color: white}},
		Indices:  []uint32{0, 1},
		Topology: TopologyLines,
	})
	require.NoError(t, err)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.SetState(DefaultState())
	d.UseProgram(p, nil)
	d.Draw(line)
	d.EndPass()
	assertColor(t, white, pixel(t, d, c, 3, 4), 0)
	assertColor(t, mgl32.Vec4{}, pixel(t, d, c, 3, 2), 0)

	require.NoError(t, d.BeginPass(PassDescriptor{Color: []Texture{c}, Clear: true}))
	d.SetState(State{DepthFar: 1, Wireframe: true})
	d.Draw(quad(t, d, 0.5, white, false))
	d.EndPass()
	assertColor(t, mgl32.Vec4{}, pixel(t, d, c, 1, 2), 0)
	assertColor(t, white, pixel(t, d, c, 0, 3), 0)
}

func TestReadPixelOutOfBounds(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 4, 4, TextureFormatRGBA8)
	_, err := d.ReadPixel(c, 4, 0)
	var pre *diag.PixelReadbackError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, 4, pre.X)
}

func TestLinkRequiresKernel(t *testing.T) {
	d := newTestDevice(t)
	vs, err := d.CompileStage(StageSource{Stage: StageVertex, Code: flatVS})
	require.NoError(t, err)
	fs, err := d.CompileStage(StageSource{Stage: StageFragment, Code: flatFS})
	require.NoError(t, err)

	_, err = d.LinkProgram(ProgramDescriptor{Label: "unknown"}, vs, fs, nil)
	assert.ErrorContains(t, err, `"unknown"`)

	_, err = d.LinkProgram(ProgramDescriptor{Label: "flat"}, fs, vs, nil)
	assert.ErrorContains(t, err, "vertex")
}

func TestPresentKeepsLastFrame(t *testing.T) {
	d := newTestDevice(t)
	c := colorTarget(t, d, 2, 2, TextureFormatRGBA8)
	require.NoError(t, d.WriteTexture(c, []mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 1, 1}}))
	require.NoError(t, d.Present(c))

	img := d.LastFrame()
	require.NotNil(t, img)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).G)
	assert.Equal(t, uint8(255), img.RGBAAt(0, 1).B)
}
