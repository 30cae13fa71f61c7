// Package programs holds the built-in WGSL programs of the renderer together
// with the CPU kernels the software device runs in their place.
package programs

import (
	"embed"
	"io/fs"
)

// Built-in program names. A name is both the Library key and the software kernel label.
const (
	GBuffer   = "gbuffer"
	Shadow    = "shadow"
	Forward   = "forward"
	Raycast   = "raycast"
	Overlay   = "overlay"
	SSAO      = "ssao"
	Blur      = "blur"
	Lighting  = "lighting"
	Bright    = "bright"
	Godray    = "godray"
	LensFlare = "lens_flare"
	DOF       = "dof"
	Final     = "final"
	Copy      = "copy"
)

const (
	meshVertex       = "mesh.vert.wgsl"
	fullscreenVertex = "fullscreen.vert.wgsl"
)

// Descriptor names the stage sources of one program.
type Descriptor struct {
	Name     string
	Vertex   string
	Fragment string
}

var descriptors = []Descriptor{
	{Name: GBuffer, Vertex: meshVertex, Fragment: "gbuffer.frag.wgsl"},
	{Name: Shadow, Vertex: meshVertex, Fragment: "shadow.frag.wgsl"},
	{Name: Forward, Vertex: meshVertex, Fragment: "forward.frag.wgsl"},
	{Name: Raycast, Vertex: meshVertex, Fragment: "raycast.frag.wgsl"},
	{Name: Overlay, Vertex: "overlay.vert.wgsl", Fragment: "overlay.frag.wgsl"},
	{Name: SSAO, Vertex: fullscreenVertex, Fragment: "ssao.frag.wgsl"},
	{Name: Blur, Vertex: fullscreenVertex, Fragment: "blur.frag.wgsl"},
	{Name: Lighting, Vertex: fullscreenVertex, Fragment: "lighting.frag.wgsl"},
	{Name: Bright, Vertex: fullscreenVertex, Fragment: "bright.frag.wgsl"},
	{Name: Godray, Vertex: fullscreenVertex, Fragment: "godray.frag.wgsl"},
	{Name: LensFlare, Vertex: fullscreenVertex, Fragment: "lens_flare.frag.wgsl"},
	{Name: DOF, Vertex: fullscreenVertex, Fragment: "dof.frag.wgsl"},
	{Name: Final, Vertex: fullscreenVertex, Fragment: "final.frag.wgsl"},
	{Name: Copy, Vertex: fullscreenVertex, Fragment: "copy.frag.wgsl"},
}

// Descriptors returns the stage sources of every built-in program.
func Descriptors() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

//go:embed wgsl
var embedded embed.FS

// Sources returns the embedded WGSL tree. Stage paths in Descriptors and
// include paths are relative to its root.
func Sources() fs.FS {
	// fs.Sub only fails on an invalid directory name.
	sub, _ := fs.Sub(embedded, "wgsl")
	return sub
}
