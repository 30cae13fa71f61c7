package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// EngineBuilderOption configures an Engine created by NewEngine.
type EngineBuilderOption func(*engine)

// WithProfiling turns the periodic frame and pass statistics log on or off.
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets how often the tick callback runs.
//
// Parameters:
//   - fps: ticks per second; values <= 0 select 60
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow makes Run pump frames from the window's message loop and keeps
// the surface and viewports sized to the window. Without a window Run
// pumps frames until Quit.
//
// Parameters:
//   - w: an open window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithViewport registers v under key; see Engine.AddViewport.
func WithViewport(key int, v renderer.Viewport) EngineBuilderOption {
	return func(e *engine) {
		if v != nil {
			e.viewports[key] = v
		}
	}
}

// WithRenderFrameLimit caps the pumped frame rate.
//
// Parameters:
//   - fps: maximum frames per second; 0 leaves the pump uncapped
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameInterval(fps)
	}
}

// WithProfilerInterval sets how often the profiler logs when profiling is enabled.
func WithProfilerInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		profiler.WithInterval(d)(e.profiler)
	}
}

// tickInterval converts a tick rate to a ticker period, defaulting to 60Hz.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// frameInterval converts a frame cap to a minimum frame duration; zero means uncapped.
func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
