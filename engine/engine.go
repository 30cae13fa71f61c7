package engine

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// engine implements the Engine interface.
// The tick loop runs on its own goroutine; frames are pumped on the thread
// that called Run, which owns the window and the device.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	closeOnce   sync.Once

	window window.Window
	ctx    renderer.RenderContext

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	viewports map[int]renderer.Viewport

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastRender       time.Time
}

// Engine is the main entry point for the engine.
// It owns the window, the render context and the viewports, and pumps
// frames: every frame starts on the context, then each viewport that needs
// an update runs prepare, render and present in ascending key order.
type Engine interface {
	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Context returns the render context frames are pumped on.
	//
	// Returns:
	//   - renderer.RenderContext: the context
	Context() renderer.RenderContext

	// Profiler returns the engine profiler. Its Record method can be passed to
	// renderer.WithPassTimer.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing, and scene updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each pumped frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddViewport registers a viewport at the given z-index key.
	// Viewports are drawn in ascending key order.
	//
	// Parameters:
	//   - key: the z-index determining draw order (lower draws first)
	//   - v: the Viewport to register
	AddViewport(key int, v renderer.Viewport)

	// RemoveViewport removes the viewport at the given key without freeing it.
	//
	// Parameters:
	//   - key: the z-index of the viewport to remove
	RemoveViewport(key int)

	// Viewport retrieves the viewport registered at the given key, or nil.
	//
	// Parameters:
	//   - key: the z-index of the viewport to retrieve
	//
	// Returns:
	//   - renderer.Viewport: the viewport at the key, or nil if not found
	Viewport(key int) renderer.Viewport

	// Viewports returns a copy of all registered viewports keyed by z-index.
	//
	// Returns:
	//   - map[int]renderer.Viewport: a copy of the viewports map
	Viewports() map[int]renderer.Viewport

	// RenderFrame pumps one frame. Viewports whose ShouldUpdate is false are
	// skipped. A failing viewport does not stop the others.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the previous frame in seconds
	//
	// Returns:
	//   - error: the joined errors of this frame
	RenderFrame(deltaTime float32) error

	// Run starts the tick loop and pumps frames until the window closes or
	// Quit is called. Run must be called from the thread that created the
	// window and the device.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Close stops the engine and frees every viewport, the render context
	// (and with it the framebuffer registry) and the window.
	Close()
}

// NewEngine creates a new Engine drawing with ctx.
//
// Parameters:
//   - ctx: the render context
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: a *diag.ConfigurationError if ctx is nil
func NewEngine(ctx renderer.RenderContext, options ...EngineBuilderOption) (Engine, error) {
	if ctx == nil {
		return nil, diag.NewConfigurationError("NewEngine", "nil render context")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		ctx:             ctx,
		viewports:       make(map[int]renderer.Viewport),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e, nil
}

// resize follows the window: the surface is reconfigured and every viewport
// takes the new size.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if err := e.ctx.Device().ConfigureSurface(width, height); err != nil {
		diag.Report(err)
	}
	for _, v := range e.Viewports() {
		if err := v.Resize(width, height); err != nil {
			diag.Logger().Warn("viewport resize failed", slog.String("error", err.Error()))
		}
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Context() renderer.RenderContext {
	return e.ctx
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()

	e.lastRender = time.Now()
	if e.window != nil {
		e.window.SetUpdateCallback(e.pump)
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		for !e.quitting() {
			e.pump()
		}
	}
	e.wg.Wait()
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// pump renders one frame and applies the frame limit.
func (e *engine) pump() {
	if e.quitting() {
		return
	}
	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if err := e.RenderFrame(dt); err != nil {
		diag.Logger().Debug("frame finished with errors", slog.String("error", err.Error()))
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) RenderFrame(deltaTime float32) error {
	errFrame := e.ctx.BeginFrame()

	viewports := e.Viewports()
	errs := []error{errFrame}
	for _, k := range slices.Sorted(maps.Keys(viewports)) {
		v := viewports[k]
		if !v.ShouldUpdate() {
			continue
		}
		errs = append(errs, v.Frame())
	}

	if e.renderCallback != nil {
		e.renderCallback(deltaTime)
	}
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
	return errors.Join(errs...)
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

func (e *engine) Close() {
	e.closeOnce.Do(func() {
		e.signalQuit()
		e.wg.Wait()

		for _, v := range e.Viewports() {
			v.Free()
		}
		e.mu.Lock()
		clear(e.viewports)
		e.mu.Unlock()

		e.ctx.Free()
		if e.window != nil {
			if err := e.window.Close(); err != nil {
				diag.Logger().Warn("close window", slog.String("error", err.Error()))
			}
		}
	})
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		e.engineTickRate = newRate
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameInterval(fps)
}

func (e *engine) AddViewport(key int, v renderer.Viewport) {
	if v == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewports[key] = v
}

func (e *engine) RemoveViewport(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.viewports, key)
}

func (e *engine) Viewport(key int) renderer.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewports[key]
}

func (e *engine) Viewports() map[int]renderer.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.viewports)
}
