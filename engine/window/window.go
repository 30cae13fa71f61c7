// Package window opens the native window the viewer renders into and turns
// its input events into callbacks. The platform side is GLFW; the surface
// descriptor it produces is what the wgpu device presents to.
package window

import (
	"runtime"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// MouseButton identifies a mouse button in input callbacks.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Window is a native window with input callbacks. All methods must be called
// from the goroutine that created it; callbacks run on that goroutine during
// ProcessMessages.
type Window interface {
	// SetUpdateCallback sets the function called once per message loop iteration,
	// after pending events were dispatched.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta, positive away from the user
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key presses and repeats.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key releases.
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseButtonCallback sets the callback for mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the button, whether it was pressed, and the cursor position in pixels
	SetMouseButtonCallback(callback func(button MouseButton, pressed bool, x, y int32))

	// SetMouseMoveCallback sets the callback for cursor movement.
	SetMouseMoveCallback(callback func(x, y int32))

	// CursorNDC returns the last cursor position in normalized device
	// coordinates: [-1, 1] on both axes with +Y up.
	//
	// Returns:
	//   - mgl32.Vec2: the cursor position
	CursorNDC() mgl32.Vec2

	// SurfaceDescriptor returns the descriptor a wgpu surface is created from,
	// or nil once the window is closed.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is open and not asked to close.
	IsRunning() bool

	// Close destroys the window. Closing twice is a no-op.
	Close() error

	// ProcessMessages polls events and calls the update callback until the
	// window is closed.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// sizeLimits bounds interactive resizing. Zero means unbounded.
type sizeLimits struct {
	minWidth, minHeight int
	maxWidth, maxHeight int
}

// clamp fits a requested size into the limits.
func (l sizeLimits) clamp(width, height int) (int, int) {
	width = max(width, l.minWidth)
	height = max(height, l.minHeight)
	if l.maxWidth > 0 {
		width = min(width, l.maxWidth)
	}
	if l.maxHeight > 0 {
		height = min(height, l.maxHeight)
	}
	return width, height
}

type engineWindow struct {
	title        string
	width        int // framebuffer size, updated on resize
	height       int
	limits       sizeLimits
	resizable    bool
	escapeCloses bool

	// internalWindow is the *glfwWindow once the platform window exists.
	internalWindow any

	onUpdate      func()
	onResize      func(width, height int)
	onScroll      func(delta float32)
	onKeyDown     func(keyCode uint32)
	onKeyUp       func(keyCode uint32)
	onMouseButton func(button MouseButton, pressed bool, x, y int32)
	onMouseMove   func(x, y int32)

	// cursorX and cursorY hold the last cursor position in pixels.
	cursorX, cursorY float64
}

var _ Window = &engineWindow{}

// NewWindow opens a window. It locks the calling goroutine to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the opened window
//   - error: a *diag.ConfigurationError for a non-positive size, or the
//     platform error when the window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:        "oxy-render",
		width:        1280,
		height:       720,
		limits:       sizeLimits{minWidth: 320, minHeight: 200},
		resizable:    true,
		escapeCloses: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.width <= 0 || w.height <= 0 {
		return nil, diag.NewConfigurationError("NewWindow", "invalid size %dx%d", w.width, w.height)
	}
	w.width, w.height = w.limits.clamp(w.width, w.height)
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func())                  { w.onUpdate = callback }
func (w *engineWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *engineWindow) SetScrollCallback(callback func(delta float32))     { w.onScroll = callback }
func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32))   { w.onKeyDown = callback }
func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32))     { w.onKeyUp = callback }
func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32))     { w.onMouseMove = callback }

func (w *engineWindow) SetMouseButtonCallback(callback func(button MouseButton, pressed bool, x, y int32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) CursorNDC() mgl32.Vec2 {
	return cursorToNDC(w.cursorX, w.cursorY, w.width, w.height)
}

// cursorToNDC maps a pixel position with a top-left origin to normalized
// device coordinates, sampling pixel centers.
func cursorToNDC(x, y float64, width, height int) mgl32.Vec2 {
	if width <= 0 || height <= 0 {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{
		float32(2*(x+0.5)/float64(width) - 1),
		float32(1 - 2*(y+0.5)/float64(height)),
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for platformProcessMessages(w) {
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int  { return w.width }
func (w *engineWindow) Height() int { return w.height }
