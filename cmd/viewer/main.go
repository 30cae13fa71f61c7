// Command viewer renders a small demo scene with the settings of a TOML
// configuration file. With the wgpu backend it opens a window and supports
// picking and dragging objects; with the software backend it renders a fixed
// number of frames headless and can write any buffer to a PNG.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/editor"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

type options struct {
	config  string
	frames  int
	out     string
	buffer  string
	verbose bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "TOML configuration file (defaults apply when empty)")
	flag.IntVar(&opts.frames, "frames", 30, "frames rendered by the software backend")
	flag.StringVar(&opts.out, "out", "", "PNG the software backend writes after the last frame")
	flag.StringVar(&opts.buffer, "buffer", "Final Color", "buffer written to -out")
	flag.BoolVar(&opts.verbose, "v", false, "log debug output and per-pass timings")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	diag.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(opts); err != nil {
		diag.Logger().Error("viewer failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return err
		}
	}

	var win window.Window
	devOpts := cfg.DeviceOptions()
	if cfg.Backend() == device.BackendTypeWGPU {
		w, err := window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithSizeLimits(320, 200, 0, 0),
		)
		if err != nil {
			return err
		}
		win = w
		devOpts = append(devOpts, device.WithSurface(win.SurfaceDescriptor(), win.Width(), win.Height()))
	} else {
		devOpts = append(devOpts, device.WithKernels(programs.Kernels()))
	}

	dev, err := device.New(cfg.Backend(), devOpts...)
	if err != nil {
		closeWindow(win)
		return err
	}
	defer dev.Release()

	ctx, err := renderer.NewRenderContext(dev, cfg.ContextOptions()...)
	if err != nil {
		closeWindow(win)
		return err
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithTickRate(60),
		engine.WithProfiling(opts.verbose),
		engine.WithProfilerInterval(2 * time.Second),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	}
	eng, err := engine.NewEngine(ctx, engineOpts...)
	if err != nil {
		ctx.Free()
		closeWindow(win)
		return err
	}
	defer eng.Close()

	d, err := buildDemo(dev)
	if err != nil {
		return err
	}
	defer d.release()

	width, height := cfg.Window.Width, cfg.Window.Height
	if win != nil {
		width, height = win.Width(), win.Height()
	}
	vp, err := renderer.NewViewport(ctx, d.scene,
		renderer.WithViewportStrategy(cfg.Strategy()),
		renderer.WithViewportSize(width, height),
		renderer.WithRendererOptions(
			renderer.WithLabel("viewer"),
			renderer.WithSettings(cfg.Settings()),
			renderer.WithPassTimer(eng.Profiler().Record),
		),
	)
	if err != nil {
		return err
	}
	eng.AddViewport(0, vp)
	diag.Logger().Info("viewer ready",
		slog.String("backend", cfg.Backend().String()),
		slog.String("strategy", cfg.Strategy().String()),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	if win == nil {
		return runHeadless(eng, ctx, vp, d, opts)
	}

	session := newEditSession(ctx, vp, d, win)
	defer session.free()
	eng.SetTickCallback(d.scene.Update)
	eng.Run()
	return nil
}

// runHeadless pumps opts.frames frames at a fixed step and optionally writes
// the requested buffer of the last one.
func runHeadless(eng engine.Engine, ctx renderer.RenderContext, vp renderer.Viewport, d *demo, opts options) error {
	const step = float32(1.0 / 60)
	for i := range opts.frames {
		d.scene.Update(step)
		if err := eng.RenderFrame(step); err != nil {
			diag.Logger().Warn("frame finished with errors", slog.Int("frame", i), slog.String("error", err.Error()))
		}
	}
	if opts.out == "" {
		return nil
	}

	pv := editor.NewPreview(ctx, vp.Renderer())
	if err := pv.Select(opts.buffer); err != nil {
		return err
	}
	r := vp.Renderer()
	if err := writeThumbnail(pv, opts.out, r.Width(), r.Height()); err != nil {
		return err
	}
	diag.Logger().Info("wrote buffer", slog.String("buffer", opts.buffer), slog.String("path", opts.out))
	return nil
}

func closeWindow(w window.Window) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		diag.Logger().Warn("close window", slog.String("error", err.Error()))
	}
}
