package editor

import (
	"image"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/framebuffer"
	"golang.org/x/image/draw"
)

// Preview selects one of a renderer's buffers by display name and turns it
// into a thumbnail, so intermediate passes can be inspected in the editor.
type Preview interface {
	// Names returns the display names of every buffer the renderer produces,
	// in role order.
	Names() []string

	// Select makes name the previewed buffer.
	//
	// Parameters:
	//   - name: a name returned by Names
	//
	// Returns:
	//   - error: a *diag.ConfigurationError for a name the renderer does not produce
	Select(name string) error

	// Selected returns the name of the previewed buffer.
	Selected() string

	// Thumbnail reads the previewed buffer back and scales it to width x height.
	// Depth buffers become grayscale.
	//
	// Parameters:
	//   - width, height: the thumbnail size in pixels
	//
	// Returns:
	//   - *image.RGBA: the thumbnail
	//   - error: a *diag.ConfigurationError for an invalid size or a disabled
	//     buffer, or the readback error
	Thumbnail(width, height int) (*image.RGBA, error)
}

type preview struct {
	dev      device.Device
	renderer renderer.Renderer
	selected framebuffer.Role
}

var _ Preview = &preview{}

// NewPreview creates a preview of r's final color.
//
// Parameters:
//   - ctx: the context r was created on
//   - r: the renderer to inspect
//
// Returns:
//   - Preview: the preview
func NewPreview(ctx renderer.RenderContext, r renderer.Renderer) Preview {
	return &preview{
		dev:      ctx.Device(),
		renderer: r,
		selected: framebuffer.RoleFinalColor,
	}
}

// name uses the deferred role table when there is one.
func (p *preview) name(role framebuffer.Role) string {
	if d, ok := renderer.AsDeferred(p.renderer); ok {
		return d.TextureTypeName(role)
	}
	return role.String()
}

// role accepts only names of buffers the renderer currently produces.
func (p *preview) role(name string) (framebuffer.Role, bool) {
	var (
		role framebuffer.Role
		ok   bool
	)
	if d, isDeferred := renderer.AsDeferred(p.renderer); isDeferred {
		role, ok = d.TextureType(name)
	} else {
		role, ok = framebuffer.RoleByName(name)
	}
	if !ok || p.renderer.FrameBuffer(role) == nil {
		return 0, false
	}
	return role, true
}

func (p *preview) Names() []string {
	roles := p.renderer.Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, p.name(role))
	}
	return names
}

func (p *preview) Select(name string) error {
	role, ok := p.role(name)
	if !ok {
		return diag.NewConfigurationError("Select", "unknown buffer %q", name)
	}
	p.selected = role
	return nil
}

func (p *preview) Selected() string {
	return p.name(p.selected)
}

func (p *preview) Thumbnail(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, diag.NewConfigurationError("Thumbnail", "invalid size %dx%d", width, height)
	}
	tex := p.renderer.Texture(p.selected)
	if tex == nil {
		return nil, diag.NewConfigurationError("Thumbnail", "buffer %q is not available", p.Selected())
	}
	texels, err := p.dev.ReadTexture(tex)
	if err != nil {
		return nil, err
	}
	src := device.ToImage(texels, tex.Width(), tex.Height(), tex.Format())
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}
