package device

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/go-gl/mathgl/mgl32"
)

type swTexture struct {
	desc     TextureDescriptor
	texels   []mgl32.Vec4
	released bool
}

func (t *swTexture) Label() string         { return t.desc.Label }
func (t *swTexture) Width() int            { return t.desc.Width }
func (t *swTexture) Height() int           { return t.desc.Height }
func (t *swTexture) Format() TextureFormat { return t.desc.Format }
func (t *swTexture) Release() {
	t.released = true
	t.texels = nil
}

// store quantizes c to the texture format and writes it at index i.
func (t *swTexture) store(i int, c mgl32.Vec4) {
	switch t.desc.Format {
	case TextureFormatRGBA8:
		for k := range c {
			c[k] = quantizeUnorm8(c[k])
		}
	case TextureFormatDepth32Float:
		c = mgl32.Vec4{c[0], 0, 0, 1}
	}
	t.texels[i] = c
}

type swMesh struct {
	label    string
	vertices []Vertex
	indices  []uint32
	edges    []uint32
	topology Topology
}

func (m *swMesh) Label() string      { return m.label }
func (m *swMesh) IndexCount() int    { return len(m.indices) }
func (m *swMesh) Topology() Topology { return m.topology }
func (m *swMesh) Release()           { m.vertices, m.indices, m.edges = nil, nil, nil }

type swBuffer struct {
	label string
	data  []byte
}

func (b *swBuffer) Label() string { return b.label }
func (b *swBuffer) Size() uint64  { return uint64(len(b.data)) }
func (b *swBuffer) Release()      { b.data = nil }

type swModule struct {
	stage Stage
	path  string
	code  string
}

func (m *swModule) Stage() Stage { return m.stage }
func (m *swModule) Path() string { return m.path }
func (m *swModule) Release()     {}

type swProgram struct {
	label  string
	layout ProgramLayout
	kernel Kernel
}

func (p *swProgram) Label() string         { return p.label }
func (p *swProgram) Layout() ProgramLayout { return p.layout }
func (p *swProgram) Release()              {}

type swPass struct {
	desc   PassDescriptor
	color  []*swTexture
	depth  *swTexture
	width  int
	height int
}

// softwareDevice is the CPU implementation of Device. Every command executes
// immediately; rasterization is split into row bands run on a worker pool.
type softwareDevice struct {
	opts *deviceOptions

	poolOnce sync.Once
	pool     worker.DynamicWorkerPool
	taskID   int

	state   State
	pass    *swPass
	program *swProgram
	source  BindingSource

	presented *image.RGBA
}

var _ Device = &softwareDevice{}

func newSoftwareDevice(o *deviceOptions) *softwareDevice {
	return &softwareDevice{
		opts:  o,
		state: DefaultState(),
	}
}

// workerPool lazily starts the rasterization pool.
func (d *softwareDevice) workerPool() worker.DynamicWorkerPool {
	d.poolOnce.Do(func() {
		d.pool = worker.NewDynamicWorkerPool(d.opts.workers, 256, 1*time.Second)
	})
	return d.pool
}

func (d *softwareDevice) Backend() BackendType { return BackendTypeSoftware }

func (d *softwareDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, &diag.GPUResourceError{Resource: desc.Label, Width: desc.Width, Height: desc.Height,
			Err: errors.New("texture size must be positive")}
	}
	if d.opts.allocFault != nil {
		if err := d.opts.allocFault(desc); err != nil {
			return nil, &diag.GPUResourceError{Resource: desc.Label, Width: desc.Width, Height: desc.Height, Err: err}
		}
	}
	t := &swTexture{desc: desc, texels: make([]mgl32.Vec4, desc.Width*desc.Height)}
	if desc.Format.IsDepth() {
		for i := range t.texels {
			t.texels[i] = mgl32.Vec4{1, 0, 0, 1}
		}
	}
	return t, nil
}

func (d *softwareDevice) WriteTexture(tex Texture, texels []mgl32.Vec4) error {
	t, err := asSWTexture(tex)
	if err != nil {
		return err
	}
	if len(texels) != len(t.texels) {
		return fmt.Errorf("write %s: got %d texels, want %d", t.desc.Label, len(texels), len(t.texels))
	}
	for i, c := range texels {
		t.store(i, c)
	}
	return nil
}

func (d *softwareDevice) CreateMesh(desc MeshDescriptor) (Mesh, error) {
	if err := validateMesh(desc); err != nil {
		return nil, err
	}
	m := &swMesh{
		label:    desc.Label,
		vertices: append([]Vertex(nil), desc.Vertices...),
		indices:  append([]uint32(nil), desc.Indices...),
		topology: desc.Topology,
	}
	if desc.Topology == TopologyTriangles {
		m.edges = wireframeEdges(desc.Indices)
	}
	return m, nil
}

func (d *softwareDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	return &swBuffer{label: label, data: make([]byte, size)}, nil
}

func (d *softwareDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*swBuffer)
	if !ok {
		return fmt.Errorf("buffer %T does not belong to the software device", buf)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write %s: %d bytes at %d overflows size %d", b.label, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *softwareDevice) CompileStage(src StageSource) (Module, error) {
	if err := checkWGSL(src); err != nil {
		return nil, err
	}
	return &swModule{stage: src.Stage, path: src.Path, code: src.Code}, nil
}

func (d *softwareDevice) LinkProgram(desc ProgramDescriptor, vertex, fragment, geometry Module) (Program, error) {
	if vertex == nil || vertex.Stage() != StageVertex {
		return nil, errors.New("missing vertex stage")
	}
	if fragment == nil || fragment.Stage() != StageFragment {
		return nil, errors.New("missing fragment stage")
	}
	if geometry != nil && geometry.Stage() != StageGeometry {
		return nil, fmt.Errorf("stage %s passed as geometry", geometry.Stage())
	}
	k, ok := d.opts.kernels[desc.Label]
	if !ok || k.Vertex == nil || k.Fragment == nil {
		return nil, fmt.Errorf("no software kernel registered for program %q", desc.Label)
	}
	return &swProgram{label: desc.Label, layout: desc.Layout, kernel: k}, nil
}

func (d *softwareDevice) BeginPass(desc PassDescriptor) error {
	d.EndPass()

	p := &swPass{desc: desc}
	for _, c := range desc.Color {
		t, err := asSWTexture(c)
		if err != nil {
			return err
		}
		if t.desc.Format.IsDepth() {
			return diag.NewConfigurationError("BeginPass", "depth texture %q bound as color attachment", t.desc.Label)
		}
		p.color = append(p.color, t)
	}
	if len(p.color) > MaxColorTargets {
		return diag.NewConfigurationError("BeginPass", "%d color attachments exceed the limit of %d", len(p.color), MaxColorTargets)
	}
	if desc.Depth != nil {
		t, err := asSWTexture(desc.Depth)
		if err != nil {
			return err
		}
		if !t.desc.Format.IsDepth() {
			return diag.NewConfigurationError("BeginPass", "color texture %q bound as depth attachment", t.desc.Label)
		}
		p.depth = t
	}
	if err := p.resolveSize(); err != nil {
		return err
	}

	if desc.Clear {
		for _, t := range p.color {
			for i := range t.texels {
				t.store(i, desc.ClearColor)
			}
		}
		if p.depth != nil {
			for i := range p.depth.texels {
				p.depth.texels[i] = mgl32.Vec4{desc.ClearDepth, 0, 0, 1}
			}
		}
	}
	d.pass = p
	return nil
}

func (p *swPass) resolveSize() error {
	all := append([]*swTexture(nil), p.color...)
	if p.depth != nil {
		all = append(all, p.depth)
	}
	if len(all) == 0 {
		return diag.NewConfigurationError("BeginPass", "pass %q has no attachments", p.desc.Label)
	}
	p.width, p.height = all[0].desc.Width, all[0].desc.Height
	for _, t := range all[1:] {
		if t.desc.Width != p.width || t.desc.Height != p.height {
			return diag.NewConfigurationError("BeginPass", "attachment %q is %dx%d, pass %q is %dx%d",
				t.desc.Label, t.desc.Width, t.desc.Height, p.desc.Label, p.width, p.height)
		}
	}
	return nil
}

func (d *softwareDevice) EndPass() {
	d.pass = nil
}

func (d *softwareDevice) SetState(s State) { d.state = s }

func (d *softwareDevice) State() State { return d.state }

func (d *softwareDevice) UseProgram(p Program, src BindingSource) {
	if p == nil {
		d.program, d.source = nil, nil
		return
	}
	sp, ok := p.(*swProgram)
	if !ok {
		diag.Report(diag.NewConfigurationError("UseProgram", "program %T does not belong to the software device", p))
		return
	}
	d.program, d.source = sp, src
}

func (d *softwareDevice) Program() Program {
	if d.program == nil {
		return nil
	}
	return d.program
}

func (d *softwareDevice) Flush() error { return nil }

func (d *softwareDevice) ReadPixel(tex Texture, x, y int) (mgl32.Vec4, error) {
	t, err := asSWTexture(tex)
	if err != nil {
		return mgl32.Vec4{}, &diag.PixelReadbackError{X: x, Y: y, Err: err}
	}
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return mgl32.Vec4{}, &diag.PixelReadbackError{Target: t.desc.Label, X: x, Y: y,
			Err: fmt.Errorf("outside %dx%d", t.desc.Width, t.desc.Height)}
	}
	return t.texels[y*t.desc.Width+x], nil
}

func (d *softwareDevice) ReadTexture(tex Texture) ([]mgl32.Vec4, error) {
	t, err := asSWTexture(tex)
	if err != nil {
		return nil, err
	}
	return append([]mgl32.Vec4(nil), t.texels...), nil
}

func (d *softwareDevice) ConfigureSurface(width, height int) error { return nil }

func (d *softwareDevice) Present(tex Texture) error {
	t, err := asSWTexture(tex)
	if err != nil {
		return err
	}
	d.presented = ToImage(t.texels, t.desc.Width, t.desc.Height, t.desc.Format)
	return nil
}

// LastFrame returns the image most recently passed to Present, or nil.
func (d *softwareDevice) LastFrame() *image.RGBA {
	return d.presented
}

func (d *softwareDevice) Release() {
	d.pass = nil
	d.program, d.source = nil, nil
}

func asSWTexture(tex Texture) (*swTexture, error) {
	t, ok := tex.(*swTexture)
	if !ok || t == nil {
		return nil, fmt.Errorf("texture %T does not belong to the software device", tex)
	}
	if t.released {
		return nil, fmt.Errorf("texture %q used after release", t.desc.Label)
	}
	return t, nil
}

func validateMesh(desc MeshDescriptor) error {
	per := 3
	if desc.Topology == TopologyLines {
		per = 2
	}
	if len(desc.Indices)%per != 0 {
		return fmt.Errorf("mesh %q: %d indices is not a multiple of %d", desc.Label, len(desc.Indices), per)
	}
	for _, i := range desc.Indices {
		if int(i) >= len(desc.Vertices) {
			return fmt.Errorf("mesh %q: index %d out of range (%d vertices)", desc.Label, i, len(desc.Vertices))
		}
	}
	return nil
}

// wireframeEdges converts a triangle list into a line list without duplicate edges.
func wireframeEdges(indices []uint32) []uint32 {
	seen := make(map[[2]uint32]struct{}, len(indices))
	out := make([]uint32, 0, len(indices)*2)
	for t := 0; t+2 < len(indices); t += 3 {
		tri := [3]uint32{indices[t], indices[t+1], indices[t+2]}
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			key := [2]uint32{min(a, b), max(a, b)}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a, b)
		}
	}
	return out
}

func quantizeUnorm8(v float32) float32 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(int(v*255+0.5)) / 255
}
