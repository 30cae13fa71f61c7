package framebuffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
)

// AttachmentKind is the storage class of an attachment.
type AttachmentKind int

const (
	// AttachmentColor is an 8-bit per channel color attachment.
	AttachmentColor AttachmentKind = iota
	// AttachmentFloatColor is a half-float color attachment.
	AttachmentFloatColor
	// AttachmentDepth is a 32-bit float depth attachment.
	AttachmentDepth
)

// Format returns the texture format backing the attachment kind.
func (k AttachmentKind) Format() device.TextureFormat {
	switch k {
	case AttachmentFloatColor:
		return device.TextureFormatRGBA16Float
	case AttachmentDepth:
		return device.TextureFormatDepth32Float
	default:
		return device.TextureFormatRGBA8
	}
}

// Attachment is one declared attachment of a FrameBuffer.
type Attachment struct {
	Role Role
	Kind AttachmentKind

	// Texture is nil until the framebuffer is initialized.
	Texture device.Texture
}

// FrameBuffer is a render target made of role-tagged attachments that share one resolution.
type FrameBuffer interface {
	// Label returns the framebuffer label used in diagnostics.
	Label() string

	// AddColorAttachment declares an RGBA8 color attachment.
	//
	// Parameters:
	//   - role: the role tag of the attachment, unique within the framebuffer
	//
	// Returns:
	//   - error: a ConfigurationError if the framebuffer is initialized or the role is taken
	AddColorAttachment(role Role) error

	// AddFloatColorAttachment declares an RGBA16Float color attachment.
	//
	// Parameters:
	//   - role: the role tag of the attachment, unique within the framebuffer
	//
	// Returns:
	//   - error: a ConfigurationError if the framebuffer is initialized or the role is taken
	AddFloatColorAttachment(role Role) error

	// AddDepthAttachment declares the Depth32Float attachment. A framebuffer holds at most one.
	//
	// Parameters:
	//   - role: the role tag of the attachment, unique within the framebuffer
	//
	// Returns:
	//   - error: a ConfigurationError if the framebuffer is initialized, the role is taken
	//     or a depth attachment already exists
	AddDepthAttachment(role Role) error

	// Init allocates every declared attachment at the current resolution. When an
	// allocation fails the textures created so far are released and the
	// framebuffer stays uninitialized.
	//
	// Returns:
	//   - error: a GPUResourceError on allocation failure, a ConfigurationError when
	//     called twice or with no attachments
	Init() error

	// Initialized reports whether Init succeeded and Free has not been called.
	Initialized() bool

	// Resize reallocates every attachment at the new resolution, keeping the roles.
	// An uninitialized framebuffer only records the new size.
	//
	// Parameters:
	//   - width, height: the new resolution in pixels
	//
	// Returns:
	//   - error: a GPUResourceError if reallocation fails, leaving the framebuffer uninitialized
	Resize(width, height int) error

	// Width returns the resolution width in pixels.
	Width() int

	// Height returns the resolution height in pixels.
	Height() int

	// Attachments returns the declared attachments in declaration order.
	Attachments() []Attachment

	// Texture returns the texture of the attachment with the given role.
	//
	// Parameters:
	//   - role: the role tag
	//
	// Returns:
	//   - device.Texture: the texture, or nil if the role is not declared or the framebuffer is not initialized
	Texture(role Role) device.Texture

	// HasRole reports whether an attachment with the role is declared.
	HasRole(role Role) bool

	// Bind directs subsequent draws at this framebuffer's attachments, ending any
	// pass open on the device.
	//
	// Parameters:
	//   - clear: whether to clear the attachments first
	//
	// Returns:
	//   - error: a ConfigurationError if the framebuffer is not initialized, or the device error
	Bind(clear bool) error

	// Unbind ends the pass opened by Bind.
	Unbind()

	// Clear clears every attachment to the clear values.
	//
	// Returns:
	//   - error: a ConfigurationError if the framebuffer is not initialized, or the device error
	Clear() error

	// SetClearColor sets the color used by Clear and Bind(true).
	SetClearColor(c mgl32.Vec4)

	// ReadPixel reads one texel back to the CPU. This blocks on the device.
	//
	// Parameters:
	//   - x, y: the pixel coordinate, origin at the top-left
	//   - index: the attachment index in declaration order
	//
	// Returns:
	//   - mgl32.Vec4: the texel; depth attachments return the depth in X
	//   - error: a PixelReadbackError on an invalid index, coordinate or readback failure
	ReadPixel(x, y, index int) (mgl32.Vec4, error)

	// Dirty reports whether anything was drawn since the last Clear.
	Dirty() bool

	// MarkDirty requests a redraw on the next frame.
	MarkDirty()

	// ShouldUpdate reports whether the framebuffer needs redrawing this frame.
	ShouldUpdate() bool

	// Stamp records that the contents were completely written during frame.
	// It also satisfies a pending MarkDirty.
	//
	// Parameters:
	//   - frame: the frame number
	Stamp(frame uint64)

	// Generation returns the frame passed to the last Stamp, or 0.
	Generation() uint64

	// Free releases every attachment texture. The declared roles are kept.
	Free()
}

type frameBuffer struct {
	dev   device.Device
	label string

	width, height int
	attachments   []Attachment
	initialized   bool

	clearColor mgl32.Vec4
	dirty      bool
	stale      bool
	alwaysDraw bool
	generation uint64
	registry   *Registry
}

var _ FrameBuffer = &frameBuffer{}

// NewFrameBuffer creates an uninitialized framebuffer on dev.
//
// Parameters:
//   - dev: the device that allocates the attachments
//   - options: functional options
//
// Returns:
//   - FrameBuffer: the framebuffer; declare attachments then call Init
func NewFrameBuffer(dev device.Device, options ...FrameBufferBuilderOption) FrameBuffer {
	fb := &frameBuffer{
		dev:        dev,
		label:      "framebuffer",
		width:      1,
		height:     1,
		stale:      true,
		alwaysDraw: true,
	}
	for _, opt := range options {
		opt(fb)
	}
	if fb.registry != nil {
		fb.registry.Register(fb)
	}
	return fb
}

func (f *frameBuffer) Label() string { return f.label }

func (f *frameBuffer) AddColorAttachment(role Role) error {
	return f.addAttachment("AddColorAttachment", role, AttachmentColor)
}

func (f *frameBuffer) AddFloatColorAttachment(role Role) error {
	return f.addAttachment("AddFloatColorAttachment", role, AttachmentFloatColor)
}

func (f *frameBuffer) AddDepthAttachment(role Role) error {
	return f.addAttachment("AddDepthAttachment", role, AttachmentDepth)
}

func (f *frameBuffer) addAttachment(op string, role Role, kind AttachmentKind) error {
	if f.initialized {
		return diag.NewConfigurationError(op, "%s: target already initialized", f.label)
	}
	if !role.Valid() {
		return diag.NewConfigurationError(op, "%s: invalid role %d", f.label, int(role))
	}
	colors := 0
	for _, a := range f.attachments {
		if a.Role == role {
			return diag.NewConfigurationError(op, "%s: role %s already declared", f.label, role)
		}
		if kind == AttachmentDepth && a.Kind == AttachmentDepth {
			return diag.NewConfigurationError(op, "%s: depth attachment already declared", f.label)
		}
		if a.Kind != AttachmentDepth {
			colors++
		}
	}
	if kind != AttachmentDepth && colors == device.MaxColorTargets {
		return diag.NewConfigurationError(op, "%s: more than %d color attachments", f.label, device.MaxColorTargets)
	}
	f.attachments = append(f.attachments, Attachment{Role: role, Kind: kind})
	return nil
}

func (f *frameBuffer) Init() error {
	if f.initialized {
		return diag.NewConfigurationError("Init", "%s: target already initialized", f.label)
	}
	if len(f.attachments) == 0 {
		return diag.NewConfigurationError("Init", "%s: no attachments declared", f.label)
	}
	return f.allocate()
}

func (f *frameBuffer) allocate() error {
	for i := range f.attachments {
		a := &f.attachments[i]
		tex, err := f.dev.CreateTexture(device.TextureDescriptor{
			Label:  fmt.Sprintf("%s/%s", f.label, a.Role),
			Width:  f.width,
			Height: f.height,
			Format: a.Kind.Format(),
		})
		if err != nil {
			f.releaseTextures()
			var gre *diag.GPUResourceError
			if !errors.As(err, &gre) {
				err = &diag.GPUResourceError{Resource: fmt.Sprintf("%s/%s", f.label, a.Role), Width: f.width, Height: f.height, Err: err}
			}
			return err
		}
		a.Texture = tex
	}
	f.initialized = true
	f.dirty = false
	f.stale = true
	return nil
}

func (f *frameBuffer) releaseTextures() {
	for i := range f.attachments {
		if f.attachments[i].Texture != nil {
			f.attachments[i].Texture.Release()
			f.attachments[i].Texture = nil
		}
	}
	f.initialized = false
}

func (f *frameBuffer) Initialized() bool { return f.initialized }

func (f *frameBuffer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return diag.NewConfigurationError("Resize", "%s: invalid size %dx%d", f.label, width, height)
	}
	if width == f.width && height == f.height {
		return nil
	}
	f.width, f.height = width, height
	if !f.initialized {
		return nil
	}
	f.releaseTextures()
	return f.allocate()
}

func (f *frameBuffer) Width() int  { return f.width }
func (f *frameBuffer) Height() int { return f.height }

func (f *frameBuffer) Attachments() []Attachment {
	return append([]Attachment(nil), f.attachments...)
}

func (f *frameBuffer) Texture(role Role) device.Texture {
	for _, a := range f.attachments {
		if a.Role == role {
			return a.Texture
		}
	}
	return nil
}

func (f *frameBuffer) HasRole(role Role) bool {
	for _, a := range f.attachments {
		if a.Role == role {
			return true
		}
	}
	return false
}

func (f *frameBuffer) passDescriptor(clear bool) device.PassDescriptor {
	desc := device.PassDescriptor{
		Label:      f.label,
		Clear:      clear,
		ClearColor: f.clearColor,
		ClearDepth: 1,
	}
	for _, a := range f.attachments {
		if a.Kind == AttachmentDepth {
			desc.Depth = a.Texture
		} else {
			desc.Color = append(desc.Color, a.Texture)
		}
	}
	return desc
}

func (f *frameBuffer) Bind(clear bool) error {
	if !f.initialized {
		return diag.NewConfigurationError("Bind", "%s: target not initialized", f.label)
	}
	if err := f.dev.BeginPass(f.passDescriptor(clear)); err != nil {
		return err
	}
	f.dirty = true
	return nil
}

func (f *frameBuffer) Unbind() {
	f.dev.EndPass()
}

func (f *frameBuffer) Clear() error {
	if !f.initialized {
		return diag.NewConfigurationError("Clear", "%s: target not initialized", f.label)
	}
	if err := f.dev.BeginPass(f.passDescriptor(true)); err != nil {
		return err
	}
	f.dev.EndPass()
	f.dirty = false
	return nil
}

func (f *frameBuffer) SetClearColor(c mgl32.Vec4) { f.clearColor = c }

func (f *frameBuffer) ReadPixel(x, y, index int) (mgl32.Vec4, error) {
	if index < 0 || index >= len(f.attachments) {
		return mgl32.Vec4{}, &diag.PixelReadbackError{Target: f.label, X: x, Y: y,
			Err: fmt.Errorf("attachment index %d out of range [0,%d)", index, len(f.attachments))}
	}
	tex := f.attachments[index].Texture
	if tex == nil {
		return mgl32.Vec4{}, &diag.PixelReadbackError{Target: f.label, X: x, Y: y, Err: errors.New("target not initialized")}
	}
	return f.dev.ReadPixel(tex, x, y)
}

func (f *frameBuffer) Dirty() bool { return f.dirty }

func (f *frameBuffer) MarkDirty() { f.stale = true }

func (f *frameBuffer) ShouldUpdate() bool {
	return f.initialized && (f.alwaysDraw || f.stale)
}

func (f *frameBuffer) Stamp(frame uint64) {
	f.generation = frame
	f.stale = false
}

func (f *frameBuffer) Generation() uint64 { return f.generation }

func (f *frameBuffer) Free() {
	f.releaseTextures()
	if f.registry != nil {
		f.registry.Unregister(f)
	}
}
