package renderer

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardRendersScene(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRenderer(t, ctx, StrategyForward, testSettings())
	w := newTestWorld(t, ctx.Device())

	assert.Equal(t, StrategyForward, r.Strategy())
	assert.Equal(t, []framebuffer.Role{
		framebuffer.RoleFinalColor, framebuffer.RoleRenderColor, framebuffer.RoleRenderDepth,
		framebuffer.RoleReflection, framebuffer.RoleShadow, framebuffer.RoleReflectionDepth,
	}, r.Roles())
	_, ok := AsDeferred(r)
	assert.False(t, ok)

	renderFrame(t, ctx, r, w)
	require.NoError(t, r.CheckError())

	scene := readRole(t, ctx, r, framebuffer.RoleRenderColor)
	center := scene[(testHeight/2)*testWidth+testWidth/2]
	top := scene[testWidth/2]
	assertColor(t, w.env.Sky, top, 2e-3)
	assert.Greater(t, center.X(), center.Z(), "the red cube covers the center")

	final := readRole(t, ctx, r, framebuffer.RoleFinalColor)
	assert.NotEqual(t, final[testWidth/2], final[(testHeight/2)*testWidth+testWidth/2])
}

func TestForwardShadowDarkensGround(t *testing.T) {
	ctx := newTestContext(t)
	lit := testSettings()
	lit.Shadow.Enabled = false
	unshadowed := newTestRenderer(t, ctx, StrategyForward, lit)
	shadowed := newTestRenderer(t, ctx, StrategyForward, testSettings())
	w := newTestWorld(t, ctx.Device())

	// Both renderers draw in one frame; a second BeginFrame would clear the
	// first one's targets.
	require.NoError(t, ctx.BeginFrame())
	for _, r := range []Renderer{unshadowed, shadowed} {
		require.NoError(t, r.Prepare(w))
		r.Render()
		require.NoError(t, r.Finish())
	}
	a := readRole(t, ctx, unshadowed, framebuffer.RoleRenderColor)
	b := readRole(t, ctx, shadowed, framebuffer.RoleRenderColor)

	darker := 0
	for i := range a {
		require.LessOrEqual(t, b[i].X(), a[i].X()+1e-3, "texel %d", i)
		if b[i].X() < a[i].X()-1e-3 {
			darker++
		}
	}
	assert.Positive(t, darker, "the cube casts a shadow")
	assert.Less(t, darker, len(a)/2, "only the ground around the cube is shadowed")
}

func TestForwardDegradesWithoutOptionalTargets(t *testing.T) {
	reps := captureReports(t)
	failing := newTestContext(t, failLabels("/shadow/", "/reflection/"))
	degraded := newTestRenderer(t, failing, StrategyForward, testSettings())
	assert.ElementsMatch(t, []string{"renderer/shadow/Shadow", "renderer/reflection/Reflection"}, reps.gpuResources())
	assert.Nil(t, degraded.Texture(framebuffer.RoleShadow))
	assert.Nil(t, degraded.Texture(framebuffer.RoleReflection))

	plainCtx := newTestContext(t)
	s := testSettings()
	s.Shadow.Enabled = false
	s.Reflection.Enabled = false
	plain := newTestRenderer(t, plainCtx, StrategyForward, s)

	renderFrame(t, failing, degraded, newTestWorld(t, failing.Device()))
	renderFrame(t, plainCtx, plain, newTestWorld(t, plainCtx.Device()))
	assert.Equal(t,
		readRole(t, plainCtx, plain, framebuffer.RoleFinalColor),
		readRole(t, failing, degraded, framebuffer.RoleFinalColor))
}

func TestForwardResizeScalesReflection(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRenderer(t, ctx, StrategyForward, testSettings())

	require.NoError(t, r.Resized(40, 20))
	assert.Equal(t, 40, r.Texture(framebuffer.RoleRenderColor).Width())
	assert.Equal(t, 20, r.Texture(framebuffer.RoleFinalColor).Height())
	assert.Equal(t, 20, r.Texture(framebuffer.RoleReflection).Width())
	assert.Equal(t, 10, r.Texture(framebuffer.RoleReflectionDepth).Height())
	assert.Equal(t, 128, r.Texture(framebuffer.RoleShadow).Width())
}

func TestOverlayDrawsOnFinalColor(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRenderer(t, ctx, StrategyForward, testSettings())
	w := newTestWorld(t, ctx.Device())

	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, r.Prepare(w))
	r.Render()
	r.ActivateCanvasTransform()
	r.DrawPlane(mgl32.Translate3D(16, 12, 0).Mul4(mgl32.Scale3D(8, 8, 1)), mgl32.Vec4{0, 1, 0, 1})
	r.DrawLine(mgl32.Vec3{0, 40.5, 0}, mgl32.Vec3{64, 40.5, 0}, mgl32.Vec4{0, 0, 1, 1})
	r.DeactivateCanvasTransform()
	require.NoError(t, r.Finish())

	final := readRole(t, ctx, r, framebuffer.RoleFinalColor)
	assertColor(t, mgl32.Vec4{0, 1, 0, 1}, final[12*testWidth+16], 1e-2)
	assertColor(t, mgl32.Vec4{0, 0, 1, 1}, final[40*testWidth+32], 1e-2)
	assert.NotEqual(t, mgl32.Vec4{0, 1, 0, 1}, final[30*testWidth+40])
}

func TestPassTimerSeesEveryForwardPass(t *testing.T) {
	ctx := newTestContext(t)
	var passes []string
	r, err := ctx.NewRenderer(StrategyForward, testWidth, testHeight,
		WithSettings(testSettings()),
		WithPassTimer(func(pass string, elapsed time.Duration) {
			assert.GreaterOrEqual(t, elapsed, time.Duration(0))
			passes = append(passes, pass)
		}),
	)
	require.NoError(t, err)

	renderFrame(t, ctx, r, newTestWorld(t, ctx.Device()))
	assert.Equal(t, []string{"shadow", "reflection", "forward", "final"}, passes)
}
