package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/naga"
)

const uniformAlignment = 256

var wgpuFormats = map[TextureFormat]wgpu.TextureFormat{
	TextureFormatRGBA8:        wgpu.TextureFormatRGBA8Unorm,
	TextureFormatRGBA16Float:  wgpu.TextureFormatRGBA16Float,
	TextureFormatDepth32Float: wgpu.TextureFormatDepth32Float,
}

type wgTexture struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgTexture) Label() string         { return t.desc.Label }
func (t *wgTexture) Width() int            { return t.desc.Width }
func (t *wgTexture) Height() int           { return t.desc.Height }
func (t *wgTexture) Format() TextureFormat { return t.desc.Format }
func (t *wgTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgMesh struct {
	label      string
	vertices   *wgpu.Buffer
	indices    *wgpu.Buffer
	edges      *wgpu.Buffer
	indexCount int
	edgeCount  int
	topology   Topology
}

func (m *wgMesh) Label() string      { return m.label }
func (m *wgMesh) IndexCount() int    { return m.indexCount }
func (m *wgMesh) Topology() Topology { return m.topology }
func (m *wgMesh) Release() {
	for _, b := range []*wgpu.Buffer{m.vertices, m.indices, m.edges} {
		if b != nil {
			b.Release()
		}
	}
	m.vertices, m.indices, m.edges = nil, nil, nil
}

type wgBuffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
}

func (b *wgBuffer) Label() string { return b.label }
func (b *wgBuffer) Size() uint64  { return b.size }
func (b *wgBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgModule struct {
	stage Stage
	path  string
	code  string
}

func (m *wgModule) Stage() Stage { return m.stage }
func (m *wgModule) Path() string { return m.path }
func (m *wgModule) Release()     {}

// wgpuDevice implements Device on WebGPU. Commands are recorded into a lazily
// created encoder and submitted on Flush, readback or Present.
type wgpuDevice struct {
	opts *deviceOptions

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int

	linearSampler  *wgpu.Sampler
	nearestSampler *wgpu.Sampler
	compareSampler *wgpu.Sampler

	encoder  *wgpu.CommandEncoder
	pass     *wgpu.RenderPassEncoder
	passDesc PassDescriptor
	passW    int
	passH    int

	state   State
	program *wgProgram
	source  BindingSource

	arena      *wgpu.Buffer
	arenaSize  uint64
	arenaUsed  uint64
	transient  []*wgpu.BindGroup
	blit       *wgProgram
	blitLayout *wgpu.BindGroupLayout
}

var _ Device = &wgpuDevice{}

func newWGPUDevice(o *deviceOptions) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		opts:     o,
		instance: wgpu.CreateInstance(nil),
		state:    DefaultState(),
	}
	if o.surface != nil {
		d.surface = d.instance.CreateSurface(o.surface)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: o.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-render device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.createSamplers(); err != nil {
		return nil, err
	}

	d.arenaSize = common.AlignUp(uniformAlignment, uint64(max(1, o.uniformArenaKB))*1024)
	d.arena, err = dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "uniform arena",
		Size:  d.arenaSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &diag.GPUResourceError{Resource: "uniform arena", Err: err}
	}

	if d.surface != nil && o.surfaceWidth > 0 && o.surfaceHeight > 0 {
		if err := d.ConfigureSurface(o.surfaceWidth, o.surfaceHeight); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *wgpuDevice) createSamplers() error {
	var err error
	d.linearSampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "linear sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}
	d.nearestSampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "nearest sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}
	d.compareSampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "comparison sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	return err
}

func (d *wgpuDevice) Backend() BackendType { return BackendTypeWGPU }

func (d *wgpuDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	format, ok := wgpuFormats[desc.Format]
	if !ok || desc.Width <= 0 || desc.Height <= 0 {
		return nil, &diag.GPUResourceError{Resource: desc.Label, Width: desc.Width, Height: desc.Height,
			Err: fmt.Errorf("invalid texture %s %dx%d", desc.Format, desc.Width, desc.Height)}
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, &diag.GPUResourceError{Resource: desc.Label, Width: desc.Width, Height: desc.Height, Err: err}
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, &diag.GPUResourceError{Resource: desc.Label, Width: desc.Width, Height: desc.Height, Err: err}
	}
	return &wgTexture{desc: desc, texture: tex, view: view}, nil
}

func (d *wgpuDevice) WriteTexture(tex Texture, texels []mgl32.Vec4) error {
	t, err := asWGTexture(tex)
	if err != nil {
		return err
	}
	if t.desc.Format.IsDepth() {
		return fmt.Errorf("write %s: depth textures are written by render passes only", t.desc.Label)
	}
	if len(texels) != t.desc.Width*t.desc.Height {
		return fmt.Errorf("write %s: got %d texels, want %d", t.desc.Label, len(texels), t.desc.Width*t.desc.Height)
	}

	bpt := t.desc.Format.BytesPerTexel()
	data := make([]byte, len(texels)*bpt)
	for i, c := range texels {
		encodeTexel(data[i*bpt:], t.desc.Format, c)
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.desc.Width * bpt),
			RowsPerImage: uint32(t.desc.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.desc.Width),
			Height:             uint32(t.desc.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (d *wgpuDevice) CreateMesh(desc MeshDescriptor) (Mesh, error) {
	if err := validateMesh(desc); err != nil {
		return nil, err
	}
	m := &wgMesh{label: desc.Label, indexCount: len(desc.Indices), topology: desc.Topology}

	var err error
	if m.vertices, err = d.uploadBuffer(desc.Label+" vertices", marshalVertices(desc.Vertices), wgpu.BufferUsageVertex); err != nil {
		return nil, err
	}
	if m.indices, err = d.uploadBuffer(desc.Label+" indices", marshalIndices(desc.Indices), wgpu.BufferUsageIndex); err != nil {
		m.Release()
		return nil, err
	}
	if desc.Topology == TopologyTriangles {
		edges := wireframeEdges(desc.Indices)
		m.edgeCount = len(edges)
		if m.edges, err = d.uploadBuffer(desc.Label+" edges", marshalIndices(edges), wgpu.BufferUsageIndex); err != nil {
			m.Release()
			return nil, err
		}
	}
	return m, nil
}

func (d *wgpuDevice) uploadBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := common.AlignUp(4, uint64(max(len(data), 4)))
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		padded := make([]byte, size)
		copy(padded, data)
		d.queue.WriteBuffer(buf, 0, padded)
	}
	return buf, nil
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  common.AlignUp(16, size),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgBuffer{label: label, size: size, buffer: buf}, nil
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgBuffer)
	if !ok || b.buffer == nil {
		return fmt.Errorf("buffer %T does not belong to the WebGPU device", buf)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write %s: %d bytes at %d overflows size %d", b.label, len(data), offset, b.size)
	}
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

// CompileStage validates the stage source. Vertex stages are validated again
// at link time once the geometry library is prepended.
func (d *wgpuDevice) CompileStage(src StageSource) (Module, error) {
	if err := checkWGSL(src); err != nil {
		return nil, err
	}
	if src.Stage == StageFragment {
		if _, err := naga.Compile(src.Code); err != nil {
			return nil, err
		}
	}
	return &wgModule{stage: src.Stage, path: src.Path, code: src.Code}, nil
}

func (d *wgpuDevice) BeginPass(desc PassDescriptor) error {
	d.EndPass()

	w, h := -1, -1
	colors := make([]wgpu.RenderPassColorAttachment, 0, len(desc.Color))
	load := wgpu.LoadOpLoad
	if desc.Clear {
		load = wgpu.LoadOpClear
	}
	for _, c := range desc.Color {
		t, err := asWGTexture(c)
		if err != nil {
			return err
		}
		if t.desc.Format.IsDepth() {
			return diag.NewConfigurationError("BeginPass", "depth texture %q bound as color attachment", t.desc.Label)
		}
		if err := matchSize(desc.Label, t, &w, &h); err != nil {
			return err
		}
		cc := desc.ClearColor
		colors = append(colors, wgpu.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     load,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(cc[0]), G: float64(cc[1]), B: float64(cc[2]), A: float64(cc[3])},
		})
	}
	if len(colors) > MaxColorTargets {
		return diag.NewConfigurationError("BeginPass", "%d color attachments exceed the limit of %d", len(colors), MaxColorTargets)
	}

	rp := &wgpu.RenderPassDescriptor{Label: desc.Label, ColorAttachments: colors}
	if desc.Depth != nil {
		t, err := asWGTexture(desc.Depth)
		if err != nil {
			return err
		}
		if !t.desc.Format.IsDepth() {
			return diag.NewConfigurationError("BeginPass", "color texture %q bound as depth attachment", t.desc.Label)
		}
		if err := matchSize(desc.Label, t, &w, &h); err != nil {
			return err
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.view,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.ClearDepth,
		}
	}
	if w < 0 {
		return diag.NewConfigurationError("BeginPass", "pass %q has no attachments", desc.Label)
	}

	if err := d.ensureEncoder(); err != nil {
		return err
	}
	d.pass = d.encoder.BeginRenderPass(rp)
	d.passDesc, d.passW, d.passH = desc, w, h
	return nil
}

func matchSize(pass string, t *wgTexture, w, h *int) error {
	if *w < 0 {
		*w, *h = t.desc.Width, t.desc.Height
		return nil
	}
	if t.desc.Width != *w || t.desc.Height != *h {
		return diag.NewConfigurationError("BeginPass", "attachment %q is %dx%d, pass %q is %dx%d",
			t.desc.Label, t.desc.Width, t.desc.Height, pass, *w, *h)
	}
	return nil
}

func (d *wgpuDevice) ensureEncoder() error {
	if d.encoder != nil {
		return nil
	}
	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	d.encoder = enc
	return nil
}

func (d *wgpuDevice) EndPass() {
	if d.pass == nil {
		return
	}
	d.pass.End()
	d.pass.Release()
	d.pass = nil
}

// resumePass submits recorded work and reopens the current pass with its
// contents loaded. Used when the uniform arena is exhausted mid-pass.
func (d *wgpuDevice) resumePass() error {
	desc := d.passDesc
	if err := d.Flush(); err != nil {
		return err
	}
	desc.Clear = false
	return d.BeginPass(desc)
}

func (d *wgpuDevice) SetState(s State) { d.state = s }

func (d *wgpuDevice) State() State { return d.state }

func (d *wgpuDevice) UseProgram(p Program, src BindingSource) {
	if p == nil {
		d.program, d.source = nil, nil
		return
	}
	wp, ok := p.(*wgProgram)
	if !ok {
		diag.Report(diag.NewConfigurationError("UseProgram", "program %T does not belong to the WebGPU device", p))
		return
	}
	d.program, d.source = wp, src
}

func (d *wgpuDevice) Program() Program {
	if d.program == nil {
		return nil
	}
	return d.program
}

func (d *wgpuDevice) Flush() error {
	d.EndPass()
	if d.encoder == nil {
		return nil
	}
	cb, err := d.encoder.Finish(nil)
	d.encoder.Release()
	d.encoder = nil
	if err != nil {
		d.releaseTransient()
		return err
	}
	d.queue.Submit(cb)
	cb.Release()
	d.releaseTransient()
	return nil
}

func (d *wgpuDevice) releaseTransient() {
	for _, bg := range d.transient {
		bg.Release()
	}
	d.transient = d.transient[:0]
	d.arenaUsed = 0
}

func (d *wgpuDevice) ConfigureSurface(width, height int) error {
	if d.surface == nil {
		return nil
	}
	if width <= 0 || height <= 0 {
		return diag.NewConfigurationError("ConfigureSurface", "invalid surface size %dx%d", width, height)
	}
	capabilities := d.surface.GetCapabilities(d.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	d.surfaceFormat = capabilities.Formats[0]
	presentMode := wgpu.PresentModeFifo
	if d.opts.presentMode == PresentModeImmediate {
		presentMode = wgpu.PresentModeImmediate
	}
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.surfaceWidth, d.surfaceHeight = width, height
	return nil
}

func (d *wgpuDevice) Release() {
	d.EndPass()
	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	d.releaseTransient()
	if d.blit != nil {
		d.blit.Release()
	}
	if d.blitLayout != nil {
		d.blitLayout.Release()
	}
	for _, s := range []*wgpu.Sampler{d.linearSampler, d.nearestSampler, d.compareSampler} {
		if s != nil {
			s.Release()
		}
	}
	if d.arena != nil {
		d.arena.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

// samplerFor picks the sampler bound to a named sampler slot.
func (d *wgpuDevice) samplerFor(r ResourceBinding) *wgpu.Sampler {
	if r.Kind == ResourceComparisonSampler {
		return d.compareSampler
	}
	name := strings.ToLower(r.Name)
	if strings.Contains(name, "point") || strings.Contains(name, "nearest") {
		return d.nearestSampler
	}
	return d.linearSampler
}

func asWGTexture(tex Texture) (*wgTexture, error) {
	t, ok := tex.(*wgTexture)
	if !ok || t == nil {
		return nil, fmt.Errorf("texture %T does not belong to the WebGPU device", tex)
	}
	if t.texture == nil {
		return nil, fmt.Errorf("texture %q used after release", t.desc.Label)
	}
	return t, nil
}

func marshalVertices(vs []Vertex) []byte {
	out := make([]byte, len(vs)*VertexStride)
	for i, v := range vs {
		b := out[i*VertexStride:]
		fields := [12]float32{
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1],
			v.Color[0], v.Color[1], v.Color[2], v.Color[3],
		}
		for k, f := range fields {
			binary.LittleEndian.PutUint32(b[k*4:], math.Float32bits(f))
		}
	}
	return out
}

func marshalIndices(idx []uint32) []byte {
	out := make([]byte, len(idx)*4)
	for i, v := range idx {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func encodeTexel(dst []byte, f TextureFormat, c mgl32.Vec4) {
	switch f {
	case TextureFormatRGBA8:
		for k := 0; k < 4; k++ {
			dst[k] = unorm8(c[k])
		}
	case TextureFormatRGBA16Float:
		for k := 0; k < 4; k++ {
			binary.LittleEndian.PutUint16(dst[k*2:], float32ToHalf(c[k]))
		}
	case TextureFormatDepth32Float:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(c[0]))
	}
}

func decodeTexel(src []byte, f TextureFormat) mgl32.Vec4 {
	switch f {
	case TextureFormatRGBA8:
		return mgl32.Vec4{float32(src[0]) / 255, float32(src[1]) / 255, float32(src[2]) / 255, float32(src[3]) / 255}
	case TextureFormatRGBA16Float:
		var c mgl32.Vec4
		for k := 0; k < 4; k++ {
			c[k] = halfToFloat32(binary.LittleEndian.Uint16(src[k*2:]))
		}
		return c
	case TextureFormatDepth32Float:
		return mgl32.Vec4{math.Float32frombits(binary.LittleEndian.Uint32(src)), 0, 0, 1}
	}
	return mgl32.Vec4{}
}
