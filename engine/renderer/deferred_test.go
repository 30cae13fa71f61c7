package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeferred(t *testing.T, ctx RenderContext, s Settings) DeferredRenderer {
	t.Helper()
	d, ok := AsDeferred(newTestRenderer(t, ctx, StrategyDeferred, s))
	require.True(t, ok)
	return d
}

// lightingOnly keeps the passes that feed the lighting target and drops the
// post-processing chain.
func lightingOnly() Settings {
	s := testSettings()
	s.Bloom.Enabled = false
	s.Godray.Enabled = false
	s.DOF.Enabled = false
	s.LensFlare.Enabled = false
	return s
}

func TestSSAOAllocationFailureDegradesGracefully(t *testing.T) {
	reps := captureReports(t)

	failing := newTestContext(t, failLabels("/ssao"))
	degraded := newTestDeferred(t, failing, lightingOnly())
	assert.Contains(t, reps.gpuResources(), "renderer/ssao/noise")
	assert.Nil(t, degraded.Texture(framebuffer.RoleSSAO))
	assert.Nil(t, degraded.Texture(framebuffer.RoleSSAOBlur))

	noSSAO := lightingOnly()
	noSSAO.SSAO.Enabled = false
	disabledCtx := newTestContext(t)
	disabled := newTestDeferred(t, disabledCtx, noSSAO)

	fullCtx := newTestContext(t)
	full := newTestDeferred(t, fullCtx, lightingOnly())
	require.NotNil(t, full.Texture(framebuffer.RoleSSAOBlur))

	renderFrame(t, failing, degraded, newTestWorld(t, failing.Device()))
	renderFrame(t, disabledCtx, disabled, newTestWorld(t, disabledCtx.Device()))
	renderFrame(t, fullCtx, full, newTestWorld(t, fullCtx.Device()))

	final := readRole(t, failing, degraded, framebuffer.RoleFinalColor)
	require.Len(t, final, testWidth*testHeight)

	got := readRole(t, failing, degraded, framebuffer.RoleLighting)
	unoccluded := readRole(t, disabledCtx, disabled, framebuffer.RoleLighting)
	occluded := readRole(t, fullCtx, full, framebuffer.RoleLighting)

	assert.Equal(t, unoccluded, got, "failed SSAO must light exactly like disabled SSAO")
	darker := 0
	for i := range got {
		for c := 0; c < 3; c++ {
			require.GreaterOrEqual(t, got[i][c], occluded[i][c]-1e-3, "texel %d channel %d", i, c)
		}
		if got[i].X() > occluded[i].X()+1e-3 {
			darker++
		}
	}
	assert.Positive(t, darker, "occlusion darkens some pixels of the full pipeline")
}

func TestLightingNeverReadsStaleGBuffer(t *testing.T) {
	captureReports(t)
	ctx := newTestContext(t)
	r := newTestDeferred(t, ctx, lightingOnly())
	w := newTestWorld(t, ctx.Device())
	sky := w.env.Sky

	renderFrame(t, ctx, r, w)
	center := (testHeight/2)*testWidth + testWidth/2
	lit := readRole(t, ctx, r, framebuffer.RoleLighting)
	require.Greater(t, mgl32.Abs(lit[center].X()-sky.X()), float32(0.01), "the cube covers the center")

	gbuffer := ctx.Library().Program(programs.GBuffer)
	gbuffer.Free()
	require.NoError(t, r.Prepare(w))
	r.Render()
	require.NoError(t, r.Finish())
	for i, c := range readRole(t, ctx, r, framebuffer.RoleLighting) {
		assertColor(t, sky, c, 2e-3)
		if t.Failed() {
			t.Fatalf("texel %d kept last frame's geometry", i)
		}
	}
	_, ok := r.PositionAtPixel(testWidth/2, testHeight/2)
	assert.False(t, ok)

	require.NoError(t, gbuffer.Load())
	renderFrame(t, ctx, r, w)
	assert.Equal(t, lit, readRole(t, ctx, r, framebuffer.RoleLighting))
}

func TestEmptyWorldLightsToSky(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestDeferred(t, ctx, lightingOnly())
	w := newTestWorld(t, ctx.Device())

	renderFrame(t, ctx, r, w)
	w.drawables = nil
	renderFrame(t, ctx, r, w)
	for _, c := range readRole(t, ctx, r, framebuffer.RoleLighting) {
		assertColor(t, w.env.Sky, c, 2e-3)
	}
}

func TestPickingReadsObjectIDAndAxis(t *testing.T) {
	reps := captureReports(t)
	ctx := newTestContext(t)
	r := newTestDeferred(t, ctx, lightingOnly())
	w := newTestWorld(t, ctx.Device())
	renderFrame(t, ctx, r, w)

	m, ok := r.MaterialAtPixel(testWidth/2, testHeight/2)
	require.True(t, ok)
	assert.Equal(t, uint32(7), m.ObjectID)
	assert.Equal(t, HandleAxisY, m.Axis)
	assert.InDelta(t, 1, m.Roughness, 1e-3)

	p, ok := r.PositionAtPixel(testWidth/2, testHeight/2)
	require.True(t, ok)
	assert.InDelta(t, 0, p.X(), 0.1)
	assert.LessOrEqual(t, p.Y(), float32(1.01))
	assert.GreaterOrEqual(t, p.Y(), float32(-0.01))

	m, ok = r.MaterialAtPixel(2, testHeight-2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), m.ObjectID)
	assert.Equal(t, HandleAxisNone, m.Axis)

	_, ok = r.PositionAtPixel(testWidth/2, 0)
	assert.False(t, ok, "the top row is sky")

	_, ok = r.MaterialAtPixel(testWidth, 0)
	assert.False(t, ok)
	var readback *diag.PixelReadbackError
	for _, err := range reps.all() {
		if errors.As(err, &readback) {
			break
		}
	}
	require.NotNil(t, readback)
	assert.Equal(t, testWidth, readback.X)
}

func TestDeferredRoleNameTable(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestDeferred(t, ctx, testSettings())

	for _, role := range deferredRoles {
		name := r.TextureTypeName(role)
		require.NotEmpty(t, name, role.String())
		back, ok := r.TextureType(name)
		require.True(t, ok)
		assert.Equal(t, role, back)
	}
	assert.Empty(t, r.TextureTypeName(framebuffer.RoleRenderColor))
	_, ok := r.TextureType("Render Color")
	assert.False(t, ok)
	_, ok = r.TextureType("nope")
	assert.False(t, ok)
}

func TestDeferredRolesFollowSettings(t *testing.T) {
	ctx := newTestContext(t)

	r := newTestDeferred(t, ctx, lightingOnly())
	roles := r.Roles()
	for _, role := range []framebuffer.Role{
		framebuffer.RoleFinalColor, framebuffer.RoleDeferredAlbedo, framebuffer.RoleDeferredPosition,
		framebuffer.RoleDeferredNormal, framebuffer.RoleDeferredMaterial, framebuffer.RoleDeferredDepth,
		framebuffer.RoleDeferredSpecular, framebuffer.RoleLighting, framebuffer.RoleShadow,
		framebuffer.RoleSSAO, framebuffer.RoleSSAOBlur, framebuffer.RoleReflection,
	} {
		assert.Contains(t, roles, role)
	}
	assert.NotContains(t, roles, framebuffer.RoleBloom)
	assert.NotContains(t, roles, framebuffer.RoleDOF)
	assert.NotContains(t, roles, framebuffer.RoleBlurScratch, "the blur scratch target is private")
	assert.Nil(t, r.FrameBuffer(framebuffer.RoleBlurScratch))

	s := testSettings()
	s.Godray.Enabled = true
	s.DOF.Enabled = true
	s.LensFlare.Enabled = true
	full := newTestDeferred(t, ctx, s)
	roles = full.Roles()
	for _, role := range []framebuffer.Role{
		framebuffer.RoleBloom, framebuffer.RoleGodray, framebuffer.RoleDOF, framebuffer.RoleLensFlare,
	} {
		assert.Contains(t, roles, role)
	}
	assert.NotContains(t, roles, framebuffer.RoleBlurScratch)

	// Every role is carried by exactly one of the renderer's targets.
	carriers := map[framebuffer.Role]int{}
	for _, fb := range full.targets() {
		for _, a := range fb.Attachments() {
			carriers[a.Role]++
		}
	}
	for role, n := range carriers {
		assert.Equal(t, 1, n, "role %s", role)
	}
	assert.Contains(t, full.FrameBuffer(framebuffer.RoleBloom).Label(), "/bloom")
}

func TestRequiredTargetFailureFailsConstruction(t *testing.T) {
	captureReports(t)
	ctx := newTestContext(t, failLabels("/gbuffer/"))

	_, err := ctx.NewRenderer(StrategyDeferred, testWidth, testHeight, WithSettings(testSettings()))
	var gre *diag.GPUResourceError
	require.ErrorAs(t, err, &gre)
	assert.Contains(t, gre.Resource, "renderer/gbuffer/")
	assert.Zero(t, ctx.Registry().Len())
}

func TestPostProcessingChainRuns(t *testing.T) {
	captureReports(t)
	ctx := newTestContext(t)
	s := testSettings()
	s.Bloom.Threshold = 0.2
	s.Godray.Enabled = true
	s.DOF.Enabled = true
	s.LensFlare.Enabled = true
	r := newTestDeferred(t, ctx, s)
	w := newTestWorld(t, ctx.Device())
	w.light = nil

	renderFrame(t, ctx, r, w)
	require.NoError(t, r.CheckError())
	dr := r.(*deferredRenderer)
	assert.True(t, dr.ran.geometry)
	assert.True(t, dr.ran.ssao)
	assert.True(t, dr.ran.reflection)
	assert.True(t, dr.ran.bloom)
	assert.True(t, dr.ran.flare)
	assert.True(t, dr.ran.dof)
	assert.False(t, dr.ran.shadow, "no light, no shadow map")
	assert.False(t, dr.ran.godray, "no light, no light shafts")

	for _, role := range []framebuffer.Role{framebuffer.RoleBloom, framebuffer.RoleLensFlare, framebuffer.RoleDOF} {
		assert.Equal(t, ctx.Frame(), r.FrameBuffer(role).Generation(), role.String())
	}
}

func TestGodraysNeedVisibleLight(t *testing.T) {
	ctx := newTestContext(t)
	s := lightingOnly()
	s.Godray.Enabled = true
	r := newTestDeferred(t, ctx, s)
	dr := r.(*deferredRenderer)
	w := newTestWorld(t, ctx.Device())

	renderFrame(t, ctx, r, w)
	assert.False(t, dr.ran.godray, "the sun is behind the camera")

	w.light = &fixedLight{dir: mgl32.Vec3{0, 0.3, 1}.Normalize()}
	renderFrame(t, ctx, r, w)
	assert.True(t, dr.ran.godray)
}

// fixedLight shines toward dir without shadows.
type fixedLight struct {
	dir mgl32.Vec3
}

func (l *fixedLight) Direction() mgl32.Vec3                { return l.dir }
func (l *fixedLight) Color() mgl32.Vec3                    { return mgl32.Vec3{1, 1, 1} }
func (l *fixedLight) Intensity() float32                   { return 1 }
func (l *fixedLight) Enabled() bool                        { return true }
func (l *fixedLight) CastsShadows() bool                   { return false }
func (l *fixedLight) ShadowBias() float32                  { return 0 }
func (l *fixedLight) ShadowResolution() int                { return 0 }
func (l *fixedLight) ViewProjection(mgl32.Vec3) mgl32.Mat4 { return mgl32.Ident4() }

func TestUnknownUniformKeepsOutput(t *testing.T) {
	reps := captureReports(t)
	ctx := newTestContext(t)
	r := newTestDeferred(t, ctx, lightingOnly())
	w := newTestWorld(t, ctx.Device())

	renderFrame(t, ctx, r, w)
	want := readRole(t, ctx, r, framebuffer.RoleLighting)

	lighting := ctx.Library().Program(programs.Lighting)
	lighting.SetVec4("fogColour", mgl32.Vec4{1, 0, 0, 1})
	lighting.SetVec4("fogColour", mgl32.Vec4{1, 0, 0, 1})
	renderFrame(t, ctx, r, w)
	assert.Equal(t, want, readRole(t, ctx, r, framebuffer.RoleLighting))

	warnings := 0
	for _, err := range reps.all() {
		if _, ok := err.(*diag.MissingUniformWarning); ok {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestSSAOKernelIsExposed(t *testing.T) {
	ctx := newTestContext(t)
	s := lightingOnly()
	s.SSAO.Samples = 8
	r := newTestDeferred(t, ctx, s)

	k := r.SSAOKernel()
	require.Len(t, k, 8)
	assert.Equal(t, GenerateSSAOKernel(8, s.SSAO.Seed), k)
	k[0] = mgl32.Vec4{}
	assert.NotEqual(t, k[0], r.SSAOKernel()[0])
}

// readbackCounter counts the blocking texel reads issued to the device.
type readbackCounter struct {
	device.Device
	reads int
}

func (d *readbackCounter) ReadPixel(tex device.Texture, x, y int) (mgl32.Vec4, error) {
	d.reads++
	return d.Device.ReadPixel(tex, x, y)
}

func TestMaterialAtPixelReadsOnlyMaterial(t *testing.T) {
	dev := &readbackCounter{Device: newTestDevice(t)}
	ctx, err := NewRenderContext(dev)
	require.NoError(t, err)
	t.Cleanup(ctx.Free)
	r := newTestDeferred(t, ctx, lightingOnly())
	w := newTestWorld(t, dev)
	w.drawables[0].(*testDrawable).id = 0
	renderFrame(t, ctx, r, w)

	dev.reads = 0
	m, ok := r.MaterialAtPixel(testWidth/2, testHeight/2)
	require.True(t, ok)
	assert.Equal(t, uint32(7), m.ObjectID)
	assert.Equal(t, 1, dev.reads, "one readback per query")

	_, ok = r.MaterialAtPixel(testWidth/2, 0)
	assert.False(t, ok, "the cleared background has id 0")
	assert.Equal(t, 2, dev.reads)

	_, ok = r.MaterialAtPixel(2, testHeight-2)
	assert.False(t, ok, "the ground is not pickable")
	_, ok = r.PositionAtPixel(2, testHeight-2)
	assert.True(t, ok, "but it still has a position")
}
