package shader

import (
	"image/color"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameDecl = `
struct Frame {
    mvp: mat4x4f,
    tint: vec4f,
    time: f32,
    flags: vec4i,
    kernel: array<vec4f, 2>,
    bones: array<mat4x4f, 2>,
    normalMatrix: mat3x3f,
}
@group(0) @binding(0) var<uniform> frame: Frame;
`

const tintVS = frameDecl + `
@vertex
fn vs_main(@location(0) position: vec3f) -> @builtin(position) vec4f {
    return frame.mvp * vec4f(position, 1.0);
}
`

const tintFS = frameDecl + `
struct Grade {
    gain: f32,
}
@group(0) @binding(1) var<uniform> grade: Grade;

@fragment
fn fs_main() -> @location(0) vec4f {
    return frame.tint * grade.gain;
}
`

const gradedFS = frameDecl + `
struct Grade {
    gain: f32,
    lift: f32,
}
@group(0) @binding(1) var<uniform> grade: Grade;

@fragment
fn fs_main() -> @location(0) vec4f {
    return frame.tint * grade.gain + grade.lift;
}
`

const brokenFS = `
@fragment
fn fs_main() -> @location(0) vec4f {
    return vec4f(1.0);
`

const transformLib = `
struct Camera {
    viewProj: mat4x4f,
}
@group(1) @binding(0) var<uniform> camera: Camera;

fn transform(p: vec3f) -> vec4f {
    return camera.viewProj * vec4f(p, 1.0);
}
`

const texturedVS = `
struct Out {
    @builtin(position) pos: vec4f,
    @location(0) uv: vec2f,
}

@vertex
fn vs_main(@location(0) position: vec3f, @location(2) uv: vec2f) -> Out {
    var o: Out;
    o.pos = transform(position);
    o.uv = uv;
    return o;
}
`

const texturedFS = `
@group(0) @binding(0) var albedo: texture_2d<f32>;
@group(0) @binding(1) var albedoSampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2f) -> @location(0) vec4f {
    return textureSample(albedo, albedoSampler, uv);
}
`

var programKernels = map[string]device.Kernel{
	"tint": {
		Vertex: func(v device.Vertex, u device.Uniforms) device.Varyings {
			return device.Varyings{Position: u.Mat4("mvp").Mul4x1(v.Position.Vec4(1))}
		},
		Fragment: func(f *device.Fragment) {
			f.Out[0] = f.Uniforms.Vec4("tint").Mul(f.Uniforms.Float("gain"))
		},
	},
	"textured": {
		Vertex: func(v device.Vertex, u device.Uniforms) device.Varyings {
			return device.Varyings{Position: u.Mat4("viewProj").Mul4x1(v.Position.Vec4(1)), UV: v.UV}
		},
		Fragment: func(f *device.Fragment) {
			f.Out[0] = f.Textures.Sample("albedo", f.In.UV)
		},
	},
}

func testLoader() MapLoader {
	return MapLoader{
		"tint.vert.wgsl":         tintVS,
		"tint.frag.wgsl":         tintFS,
		"broken.frag.wgsl":       brokenFS,
		"textured.vert.wgsl":     texturedVS,
		"textured.frag.wgsl":     texturedFS,
		"lib/transform.wgsl":     transformLib,
		"nokernel.frag.wgsl":     tintFS,
		"badlink.frag.wgsl":      "@fragment fn fs_main(@location(3) n: vec3f) -> @location(0) vec4f { return vec4f(n, 1.0); }",
		"badgeometry.lib.wgsl":   "@vertex fn extra() -> @builtin(position) vec4f { return vec4f(0.0); }",
		"brokenvertex.vert.wgsl": "@vertex fn vs_main( -> @builtin(position) vec4f { return vec4f(0.0); }",
	}
}

func newProgramDevice(t *testing.T) device.Device {
	t.Helper()
	d, err := device.New(device.BackendTypeSoftware, device.WithKernels(programKernels), device.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

// captureReports routes the diagnostic sink into a slice for the duration of the test.
func captureReports(t *testing.T) func() []error {
	t.Helper()
	var mu sync.Mutex
	var got []error
	diag.ResetOnce("")
	diag.SetSink(func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})
	t.Cleanup(func() {
		diag.SetSink(nil)
		diag.ResetOnce("")
	})
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), got...)
	}
}

func loadTint(t *testing.T, d device.Device, loader MapLoader) Program {
	t.Helper()
	p := NewProgram(d, "tint", WithLoader(loader))
	require.NoError(t, p.Load())
	return p
}

func uniformsOf(p Program) device.Uniforms {
	blocks := map[string][]byte{}
	for _, b := range p.Layout().Blocks {
		blocks[b.Name] = p.BlockData(b.Name)
	}
	return device.NewUniforms(p.Layout(), blocks)
}

func drawFullQuad(t *testing.T, d device.Device, p Program) mgl32.Vec4 {
	t.Helper()
	target, err := d.CreateTexture(device.TextureDescriptor{Label: "target", Width: 4, Height: 4, Format: device.TextureFormatRGBA8})
	require.NoError(t, err)
	defer target.Release()
	mesh, err := d.CreateMesh(device.MeshDescriptor{
		Label: "quad",
		Vertices: []device.Vertex{
			{Position: mgl32.Vec3{-1, -1, 0.5}},
			{Position: mgl32.Vec3{1, -1, 0.5}},
			{Position: mgl32.Vec3{1, 1, 0.5}},
			{Position: mgl32.Vec3{-1, 1, 0.5}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	})
	require.NoError(t, err)
	defer mesh.Release()

	require.NoError(t, d.BeginPass(device.PassDescriptor{Label: "test", Color: []device.Texture{target}, Clear: true}))
	if p != nil {
		require.True(t, p.Bind())
	}
	d.Draw(mesh)
	d.EndPass()

	c, err := d.ReadPixel(target, 1, 1)
	require.NoError(t, err)
	return c
}

func TestProgramLoadAndDraw(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())

	assert.True(t, p.Valid())
	assert.Equal(t, uint64(1), p.Generation())
	assert.Equal(t, []string{"tint.vert.wgsl", "tint.frag.wgsl"}, p.Sources())

	p.SetMat4("mvp", mgl32.Ident4())
	p.SetVec4("tint", mgl32.Vec4{0, 1, 0, 1})
	p.SetFloat("gain", 1)

	c := drawFullQuad(t, d, p)
	assert.InDelta(t, 0, c[0], 1e-2)
	assert.InDelta(t, 1, c[1], 1e-2)
	assert.InDelta(t, 1, c[3], 1e-2)
}

func TestProgramSetters(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())

	p.SetFloat("time", 2.5)
	p.SetIVec4("flags", [4]int32{1, -2, 3, 4})
	p.SetVec4Array("kernel", []mgl32.Vec4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}})
	bone := mgl32.Translate3D(1, 2, 3)
	p.SetMat4Array("bones", []mgl32.Mat4{mgl32.Ident4(), bone})
	normal := mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}
	p.SetMat3("normalMatrix", normal)
	p.SetColor("tint", color.NRGBA{R: 255, A: 128})

	u := uniformsOf(p)
	assert.Equal(t, float32(2.5), u.Float("time"))
	assert.Equal(t, [4]int32{1, -2, 3, 4}, u.IVec4("flags"))
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 0}, u.Vec4At("kernel", 1))
	assert.Equal(t, bone, u.Mat4At("bones", 1))
	assert.Equal(t, normal, u.Mat3("normalMatrix"))
	tint := u.Vec4("tint")
	assert.InDelta(t, 1, tint[0], 1e-4)
	assert.InDelta(t, 128.0/255, tint[3], 1e-3)

	assert.Empty(t, reports())
}

func TestProgramTypeMismatchIsNoop(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())

	p.SetVec4("tint", mgl32.Vec4{1, 2, 3, 4})
	p.SetFloat("tint", 9)
	p.SetVec4("kernel", mgl32.Vec4{1, 1, 1, 1})
	p.SetFloat("tint", 9)

	assert.Equal(t, mgl32.Vec4{1, 2, 3, 4}, uniformsOf(p).Vec4("tint"))
	assert.Equal(t, mgl32.Vec4{}, uniformsOf(p).Vec4At("kernel", 0))

	got := reports()
	require.Len(t, got, 2)
	for _, err := range got {
		var ce *diag.ConfigurationError
		assert.ErrorAs(t, err, &ce)
	}
}

func TestUnknownUniformDoesNotCorruptTable(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())

	before := p.Layout()
	p.SetVec4("tint", mgl32.Vec4{0.25, 0.5, 0.75, 1})
	p.SetVec4("tnit", mgl32.Vec4{9, 9, 9, 9})
	p.SetVec4("tnit", mgl32.Vec4{9, 9, 9, 9})
	p.SetFloat("exposure", 3)

	assert.Equal(t, before, p.Layout())
	_, ok := p.Uniform("tnit")
	assert.False(t, ok)
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0.75, 1}, uniformsOf(p).Vec4("tint"))

	got := reports()
	require.Len(t, got, 2, "each missing name warns once")
	var w *diag.MissingUniformWarning
	require.ErrorAs(t, got[0], &w)
	assert.Equal(t, "tint", w.Program)
	assert.Equal(t, "tnit", w.Name)
	assert.True(t, diag.IsWarning(got[1]))

	// reload re-arms the warning
	require.NoError(t, p.Reload())
	p.SetVec4("tnit", mgl32.Vec4{})
	assert.Len(t, reports(), 3)
}

func TestFragmentCompileFailureLeavesProgramUnusable(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	good := loadTint(t, d, testLoader())
	good.SetMat4("mvp", mgl32.Ident4())
	good.SetVec4("tint", mgl32.Vec4{1, 0, 0, 1})
	good.SetFloat("gain", 1)
	require.True(t, good.Bind())
	bound := d.Program()

	broken := NewProgram(d, "broken", WithLoader(testLoader()), WithVertexPath("tint.vert.wgsl"))
	err := broken.Load()

	var ce *diag.ShaderCompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fragment", ce.Stage)
	assert.Equal(t, "broken.frag.wgsl", ce.Path)
	assert.Contains(t, ce.Log, "unclosed '{'")
	require.Len(t, reports(), 1)
	assert.ErrorAs(t, reports()[0], &ce)

	assert.False(t, broken.Valid())
	assert.False(t, broken.Bind())
	assert.Same(t, bound, d.Program(), "bind on an invalid program changes nothing")

	broken.SetFloat("gain", 2)
	broken.BindBuffer("frame", nil)
	assert.Len(t, reports(), 1, "setters on an invalid program are silent no-ops")

	c := drawFullQuad(t, d, good)
	assert.InDelta(t, 1, c[0], 1e-2)
	assert.InDelta(t, 0, c[1], 1e-2)
}

func TestStagesCompileInOrder(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)

	p := NewProgram(d, "tint", WithLoader(testLoader()),
		WithVertexPath("brokenvertex.vert.wgsl"), WithFragmentPath("broken.frag.wgsl"))
	var ce *diag.ShaderCompileError
	require.ErrorAs(t, p.Load(), &ce)
	assert.Equal(t, "vertex", ce.Stage)

	p = NewProgram(d, "tint", WithLoader(testLoader()), WithGeometryPath("badgeometry.lib.wgsl"))
	require.ErrorAs(t, p.Load(), &ce)
	assert.Equal(t, "geometry", ce.Stage)
	assert.Equal(t, "badgeometry.lib.wgsl", ce.Path)

	p = NewProgram(d, "tint", WithLoader(testLoader()), WithFragmentPath("missing.frag.wgsl"))
	require.ErrorAs(t, p.Load(), &ce)
	assert.Equal(t, "fragment", ce.Stage)
	assert.Contains(t, ce.Log, "file does not exist")
}

func TestLinkFailures(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)

	p := NewProgram(d, "tint", WithLoader(testLoader()), WithFragmentPath("badlink.frag.wgsl"))
	var le *diag.ShaderLinkError
	require.ErrorAs(t, p.Load(), &le)
	assert.Contains(t, le.Log, "@location(3)")
	assert.False(t, p.Valid())

	p = NewProgram(d, "nokernel", WithLoader(testLoader()), WithVertexPath("tint.vert.wgsl"))
	require.ErrorAs(t, p.Load(), &le)
	assert.Contains(t, le.Log, "no software kernel")
}

func TestReloadKeepsHandle(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)
	loader := testLoader()
	p := loadTint(t, d, loader)
	require.True(t, p.Bind())
	first := d.Program()

	_, ok := p.Uniform("lift")
	require.False(t, ok)

	loader["tint.frag.wgsl"] = gradedFS
	require.NoError(t, p.Reload())

	assert.Equal(t, uint64(2), p.Generation())
	_, ok = p.Uniform("lift")
	assert.True(t, ok)
	assert.NotSame(t, first, d.Program(), "the bound record is replaced")
	_, ok = d.Program().Layout().Uniform("lift")
	assert.True(t, ok)

	loader["tint.frag.wgsl"] = brokenFS
	var ce *diag.ShaderCompileError
	require.ErrorAs(t, p.Reload(), &ce)
	assert.True(t, p.Valid(), "a failed reload keeps the previous record")
	assert.Equal(t, uint64(2), p.Generation())
	_, ok = p.Uniform("lift")
	assert.True(t, ok)
}

func TestReloadIsAtomicForReaders(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)
	loader := testLoader()
	p := loadTint(t, d, loader)

	small := len(p.Layout().Uniforms)
	loader["tint.frag.wgsl"] = gradedFS
	require.NoError(t, p.Reload())
	large := len(p.Layout().Uniforms)
	require.Equal(t, small+1, large)

	done := make(chan struct{})
	var wg sync.WaitGroup
	var torn int
	var mu sync.Mutex
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				n := len(p.Layout().Uniforms)
				if n != small && n != large {
					mu.Lock()
					torn++
					mu.Unlock()
				}
				p.Uniform("tint")
			}
		}()
	}
	for i := range 20 {
		if i%2 == 0 {
			loader["tint.frag.wgsl"] = tintFS
		} else {
			loader["tint.frag.wgsl"] = gradedFS
		}
		require.NoError(t, p.Reload())
	}
	close(done)
	wg.Wait()
	assert.Zero(t, torn)
}

func TestFreeInvalidatesHandle(t *testing.T) {
	captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())
	require.True(t, p.Bind())

	p.Free()
	assert.False(t, p.Valid())
	assert.Nil(t, d.Program())
	assert.False(t, p.Bind())
	assert.Nil(t, p.BlockData("frame"))
	p.Free()

	require.NoError(t, p.Load())
	assert.True(t, p.Valid())
	assert.Equal(t, uint64(2), p.Generation())
}

func TestBindBuffer(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	p := loadTint(t, d, testLoader())

	block, ok := p.Layout().Block("frame")
	require.True(t, ok)

	buf, err := d.CreateBuffer("frame", block.Size)
	require.NoError(t, err)
	p.BindBuffer("frame", buf)
	assert.Nil(t, p.BlockData("frame"))
	assert.Same(t, buf, p.BlockBuffer("frame"))

	p.BindBuffer("frame", nil)
	assert.NotNil(t, p.BlockData("frame"))
	assert.Nil(t, p.BlockBuffer("frame"))
	assert.Empty(t, reports())

	small, err := d.CreateBuffer("small", 16)
	require.NoError(t, err)
	p.BindBuffer("frame", small)
	assert.Nil(t, p.BlockBuffer("frame"))
	var ce *diag.ConfigurationError
	require.Len(t, reports(), 1)
	assert.ErrorAs(t, reports()[0], &ce)

	p.BindBuffer("lights", buf)
	p.BindBuffer("lights", buf)
	require.Len(t, reports(), 2)
	var w *diag.MissingUniformBlockWarning
	assert.ErrorAs(t, reports()[1], &w)
}

func TestGeometryLibraryAndTextures(t *testing.T) {
	reports := captureReports(t)
	d := newProgramDevice(t)
	p := NewProgram(d, "textured", WithLoader(testLoader()), WithGeometryPath("lib/transform.wgsl"))
	require.NoError(t, p.Load())

	layout := p.Layout()
	assert.True(t, layout.VertexInput)
	_, ok := layout.Uniform("viewProj")
	assert.True(t, ok, "uniforms of the geometry library are introspected")
	assert.Equal(t, []string{"textured.vert.wgsl", "textured.frag.wgsl", "lib/transform.wgsl"}, p.Sources())

	tex, err := d.CreateTexture(device.TextureDescriptor{Label: "albedo", Width: 1, Height: 1, Format: device.TextureFormatRGBA8})
	require.NoError(t, err)
	require.NoError(t, d.WriteTexture(tex, []mgl32.Vec4{{0, 0, 1, 1}}))
	p.SetTexture("albedo", tex)
	assert.Same(t, tex, p.Texture("albedo"))

	p.SetMat4("viewProj", mgl32.Ident4())
	c := drawFullQuad(t, d, p)
	assert.InDelta(t, 1, c[2], 1e-2)

	p.SetTexture("albedoSampler", tex)
	p.SetTexture("normals", tex)
	assert.Len(t, reports(), 2)

	p.SetTexture("albedo", nil)
	assert.Nil(t, p.Texture("albedo"))
}
