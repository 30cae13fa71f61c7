package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 32
	testHeight = 24
)

func newTestContext(t *testing.T) renderer.RenderContext {
	t.Helper()
	dev, err := device.New(device.BackendTypeSoftware, device.WithKernels(programs.Kernels()), device.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	ctx, err := renderer.NewRenderContext(dev)
	require.NoError(t, err)
	return ctx
}

func newTestScene(t *testing.T, dev device.Device) scene.Scene {
	t.Helper()
	cube, err := model.NewModel(dev, model.ShapeCube)
	require.NoError(t, err)
	t.Cleanup(cube.Release)
	return scene.NewScene("test", camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 1, 3}),
		camera.WithTarget(mgl32.Vec3{}),
	),
		scene.WithLight(light.NewLight()),
		scene.WithObjects(game_object.NewGameObject(game_object.WithGeometry(cube))),
	)
}

func testSettings() renderer.Settings {
	s := renderer.DefaultSettings()
	s.Shadow.Resolution = 64
	s.Godray.Enabled = false
	return s
}

func TestNewEngineRequiresContext(t *testing.T) {
	_, err := NewEngine(nil)
	require.Error(t, err)
}

func TestRenderFrameSkipsCleanOnDemandViewports(t *testing.T) {
	ctx := newTestContext(t)
	s := newTestScene(t, ctx.Device())

	preview := framebuffer.NewFrameBuffer(ctx.Device(),
		framebuffer.WithLabel("preview"),
		framebuffer.WithSize(testWidth, testHeight),
		framebuffer.WithOnDemandUpdates(),
		framebuffer.WithRegistry(ctx.Registry()),
	)
	require.NoError(t, preview.AddColorAttachment(framebuffer.RoleFinalColor))
	require.NoError(t, preview.Init())

	main, err := renderer.NewViewport(ctx, s,
		renderer.WithViewportStrategy(renderer.StrategyForward),
		renderer.WithViewportSize(testWidth, testHeight),
		renderer.WithRendererOptions(renderer.WithSettings(testSettings())),
	)
	require.NoError(t, err)
	onDemand, err := renderer.NewViewport(ctx, s,
		renderer.WithViewportStrategy(renderer.StrategyForward),
		renderer.WithViewportSize(testWidth, testHeight),
		renderer.WithOutput(preview),
		renderer.WithOnDemand(true),
		renderer.WithRendererOptions(renderer.WithLabel("preview"), renderer.WithSettings(testSettings())),
	)
	require.NoError(t, err)

	var frames atomic.Int32
	e, err := NewEngine(ctx, WithViewport(1, onDemand), WithViewport(0, main))
	require.NoError(t, err)
	e.SetRenderCallback(func(float32) { frames.Add(1) })
	defer e.Close()

	require.NoError(t, e.RenderFrame(0))
	first, err := ctx.Device().ReadTexture(preview.Texture(framebuffer.RoleFinalColor))
	require.NoError(t, err)
	idleFinal := onDemand.Renderer().Texture(framebuffer.RoleFinalColor)
	before, err := ctx.Device().ReadTexture(idleFinal)
	require.NoError(t, err)
	require.NoError(t, e.RenderFrame(0.016))

	assert.Equal(t, uint64(2), main.Renderer().FrameBuffer(framebuffer.RoleFinalColor).Generation())
	assert.Equal(t, uint64(1), preview.Generation(), "a clean on-demand viewport is not redrawn")
	second, err := ctx.Device().ReadTexture(preview.Texture(framebuffer.RoleFinalColor))
	require.NoError(t, err)
	assert.Equal(t, first, second, "the preview keeps its last image")
	after, err := ctx.Device().ReadTexture(idleFinal)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the idle renderer keeps its final color")

	onDemand.MarkDirty()
	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, uint64(3), preview.Generation())
	assert.Equal(t, int32(3), frames.Load())
}

func TestRunStopsOnQuit(t *testing.T) {
	ctx := newTestContext(t)
	e, err := NewEngine(ctx, WithTickRate(1000), WithRenderFrameLimit(500))
	require.NoError(t, err)
	defer e.Close()

	var ticks atomic.Int32
	e.SetTickCallback(func(float32) {
		if ticks.Add(1) == 3 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestCloseFreesRegistry(t *testing.T) {
	ctx := newTestContext(t)
	v, err := renderer.NewViewport(ctx, newTestScene(t, ctx.Device()),
		renderer.WithViewportSize(testWidth, testHeight),
		renderer.WithRendererOptions(renderer.WithSettings(testSettings())),
	)
	require.NoError(t, err)
	e, err := NewEngine(ctx, WithViewport(0, v))
	require.NoError(t, err)
	require.NotZero(t, ctx.Registry().Len())

	e.Close()
	e.Close()
	assert.Zero(t, ctx.Registry().Len())
	assert.Empty(t, e.Viewports())
}
