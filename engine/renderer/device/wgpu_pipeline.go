package device

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// pipelineKey identifies one render pipeline variant of a program.
type pipelineKey struct {
	colors    [MaxColorTargets]TextureFormat
	numColors int
	depth     TextureFormat
	hasDepth  bool
	blend     BlendMode
	cull      CullMode
	depthTest bool
	depthMask bool
	lines     bool
}

type wgProgram struct {
	label  string
	layout ProgramLayout

	vs, fs           *wgpu.ShaderModule
	vsEntry, fsEntry string

	groups         []*wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipelines      map[pipelineKey]*wgpu.RenderPipeline
}

func (p *wgProgram) Label() string         { return p.label }
func (p *wgProgram) Layout() ProgramLayout { return p.layout }
func (p *wgProgram) Release() {
	for _, rp := range p.pipelines {
		rp.Release()
	}
	p.pipelines = nil
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	for _, g := range p.groups {
		if g != nil {
			g.Release()
		}
	}
	p.groups = nil
	for _, m := range []*wgpu.ShaderModule{p.vs, p.fs} {
		if m != nil {
			m.Release()
		}
	}
	p.vs, p.fs = nil, nil
}

// LinkProgram prepends the geometry library to the vertex stage, validates the
// combined source and builds the bind group layouts from the program layout.
func (d *wgpuDevice) LinkProgram(desc ProgramDescriptor, vertex, fragment, geometry Module) (Program, error) {
	vm, ok := vertex.(*wgModule)
	if !ok || vm.stage != StageVertex {
		return nil, fmt.Errorf("missing vertex stage")
	}
	fm, ok := fragment.(*wgModule)
	if !ok || fm.stage != StageFragment {
		return nil, fmt.Errorf("missing fragment stage")
	}
	vsCode := vm.code
	if geometry != nil {
		gm, ok := geometry.(*wgModule)
		if !ok || gm.stage != StageGeometry {
			return nil, fmt.Errorf("stage %s passed as geometry", geometry.Stage())
		}
		vsCode = gm.code + "\n" + vm.code
	}
	if _, err := naga.Compile(vsCode); err != nil {
		return nil, fmt.Errorf("vertex stage with geometry library: %w", err)
	}

	p := &wgProgram{
		label:     desc.Label,
		layout:    desc.Layout,
		vsEntry:   EntryPoint(vm.code, StageVertex),
		fsEntry:   EntryPoint(fm.code, StageFragment),
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}

	var err error
	p.vs, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label + " vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: vsCode},
	})
	if err != nil {
		return nil, err
	}
	p.fs, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label + " fragment",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fm.code},
	})
	if err != nil {
		p.Release()
		return nil, err
	}

	descs := bindGroupLayoutDescriptors(desc.Label, desc.Layout)
	p.groups = make([]*wgpu.BindGroupLayout, len(descs))
	for g := range descs {
		p.groups[g], err = d.device.CreateBindGroupLayout(&descs[g])
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
	}
	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// bindGroupLayoutDescriptors groups the layout's blocks and resources by bind group.
// Groups without bindings get an empty layout so indices stay dense.
func bindGroupLayoutDescriptors(label string, l ProgramLayout) []wgpu.BindGroupLayoutDescriptor {
	maxGroup := -1
	for _, b := range l.Blocks {
		maxGroup = max(maxGroup, b.Group)
	}
	for _, r := range l.Resources {
		maxGroup = max(maxGroup, r.Group)
	}
	out := make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	for g := range out {
		out[g].Label = fmt.Sprintf("%s group %d", label, g)
	}
	for _, b := range l.Blocks {
		e := wgpu.BindGroupLayoutEntry{Binding: uint32(b.Binding), Visibility: visibility}
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		e.Buffer.MinBindingSize = b.Size
		out[b.Group].Entries = append(out[b.Group].Entries, e)
	}
	for _, r := range l.Resources {
		e := wgpu.BindGroupLayoutEntry{Binding: uint32(r.Binding), Visibility: visibility}
		switch r.Kind {
		case ResourceTexture:
			e.Texture.SampleType = wgpu.TextureSampleTypeFloat
			e.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case ResourceDepthTexture:
			e.Texture.SampleType = wgpu.TextureSampleTypeDepth
			e.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case ResourceSampler:
			e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case ResourceComparisonSampler:
			e.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
		out[r.Group].Entries = append(out[r.Group].Entries, e)
	}
	for g := range out {
		sort.Slice(out[g].Entries, func(i, j int) bool { return out[g].Entries[i].Binding < out[g].Entries[j].Binding })
	}
	return out
}

func (d *wgpuDevice) currentKey(lines bool) pipelineKey {
	k := pipelineKey{
		blend:     d.state.Blend,
		cull:      d.state.Cull,
		depthTest: d.state.DepthTest,
		depthMask: d.state.DepthWrite,
		lines:     lines,
	}
	for i, c := range d.passDesc.Color {
		k.colors[i] = c.Format()
		k.numColors++
	}
	if d.passDesc.Depth != nil {
		k.depth, k.hasDepth = d.passDesc.Depth.Format(), true
	}
	return k
}

func (d *wgpuDevice) pipelineFor(p *wgProgram, k pipelineKey) (*wgpu.RenderPipeline, error) {
	if rp, ok := p.pipelines[k]; ok {
		return rp, nil
	}

	targets := make([]wgpu.ColorTargetState, k.numColors)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{Format: wgpuFormats[k.colors[i]], WriteMask: wgpu.ColorWriteMaskAll}
		switch k.blend {
		case BlendAlpha:
			targets[i].Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
				Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			}
		case BlendAdditive:
			targets[i].Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
				Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
			}
		}
	}

	topology := wgpu.PrimitiveTopologyTriangleList
	if k.lines {
		topology = wgpu.PrimitiveTopologyLineList
	}
	cull := wgpu.CullModeNone
	switch k.cull {
	case CullBack:
		cull = wgpu.CullModeBack
	case CullFront:
		cull = wgpu.CullModeFront
	}

	var buffers []wgpu.VertexBufferLayout
	if p.layout.VertexInput {
		buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: VertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
			},
		}}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.label + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.vs,
			EntryPoint: p.vsEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fs,
			EntryPoint: p.fsEntry,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if k.hasDepth {
		compare := wgpu.CompareFunctionLess
		if !k.depthTest {
			compare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpuFormats[k.depth],
			DepthWriteEnabled: k.depthTest && k.depthMask,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	rp, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, err
	}
	p.pipelines[k] = rp
	return rp, nil
}

func (d *wgpuDevice) Draw(mesh Mesh) {
	m, ok := mesh.(*wgMesh)
	if !ok || m.vertices == nil {
		diag.Report(diag.NewConfigurationError("Draw", "mesh %T does not belong to the WebGPU device", mesh))
		return
	}
	lines := m.topology == TopologyLines || d.state.Wireframe
	if !d.prepareDraw("Draw", lines) {
		return
	}
	d.pass.SetVertexBuffer(0, m.vertices, 0, wgpu.WholeSize)
	switch {
	case m.topology == TopologyLines:
		d.pass.SetIndexBuffer(m.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		d.pass.DrawIndexed(uint32(m.indexCount), 1, 0, 0, 0)
	case d.state.Wireframe:
		d.pass.SetIndexBuffer(m.edges, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		d.pass.DrawIndexed(uint32(m.edgeCount), 1, 0, 0, 0)
	default:
		d.pass.SetIndexBuffer(m.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		d.pass.DrawIndexed(uint32(m.indexCount), 1, 0, 0, 0)
	}
}

func (d *wgpuDevice) DrawFullscreen() {
	saved := d.state
	d.state.Cull = CullNone
	ok := d.prepareDraw("DrawFullscreen", false)
	d.state = saved
	if !ok {
		return
	}
	d.pass.Draw(3, 1, 0, 0)
}

// prepareDraw binds the pipeline, uniform blocks, textures and samplers of the
// current program. It reports false when the draw must be skipped.
func (d *wgpuDevice) prepareDraw(op string, lines bool) bool {
	if d.pass == nil {
		diag.Report(diag.NewConfigurationError(op, "no render pass is open"))
		return false
	}
	if d.program == nil {
		diag.Report(diag.NewConfigurationError(op, "no program is bound"))
		return false
	}
	p := d.program

	need := uint64(0)
	for _, b := range p.layout.Blocks {
		need += common.AlignUp(uniformAlignment, b.Size)
	}
	if need > d.arenaSize {
		diag.Report(diag.NewConfigurationError(op, "program %q needs %d uniform bytes, arena holds %d", p.label, need, d.arenaSize))
		return false
	}
	if d.arenaUsed+need > d.arenaSize {
		if err := d.resumePass(); err != nil {
			diag.Report(err)
			return false
		}
	}

	rp, err := d.pipelineFor(p, d.currentKey(lines))
	if err != nil {
		diag.Report(fmt.Errorf("program %q: %w", p.label, err))
		return false
	}

	entries := make([][]wgpu.BindGroupEntry, len(p.groups))
	for _, b := range p.layout.Blocks {
		e := wgpu.BindGroupEntry{Binding: uint32(b.Binding), Size: b.Size}
		if buf, ok := d.sourceBuffer(b.Name); ok {
			e.Buffer = buf
		} else {
			data := make([]byte, b.Size)
			if d.source != nil {
				copy(data, d.source.BlockData(b.Name))
			}
			e.Buffer, e.Offset = d.arena, d.arenaUsed
			d.queue.WriteBuffer(d.arena, d.arenaUsed, data)
			d.arenaUsed += common.AlignUp(uniformAlignment, b.Size)
		}
		entries[b.Group] = append(entries[b.Group], e)
	}
	for _, r := range p.layout.Resources {
		e := wgpu.BindGroupEntry{Binding: uint32(r.Binding)}
		switch r.Kind {
		case ResourceSampler, ResourceComparisonSampler:
			e.Sampler = d.samplerFor(r)
		default:
			var tex Texture
			if d.source != nil {
				tex = d.source.Texture(r.Name)
			}
			t, err := asWGTexture(tex)
			if err != nil {
				diag.WarnOnce(p.label+"/texture/"+r.Name,
					diag.NewConfigurationError(op, "program %q: texture %q is not bound", p.label, r.Name))
				return false
			}
			e.TextureView = t.view
		}
		entries[r.Group] = append(entries[r.Group], e)
	}

	d.pass.SetPipeline(rp)
	for g, layout := range p.groups {
		bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.label, g),
			Layout:  layout,
			Entries: entries[g],
		})
		if err != nil {
			diag.Report(fmt.Errorf("program %q: bind group %d: %w", p.label, g, err))
			return false
		}
		d.transient = append(d.transient, bg)
		d.pass.SetBindGroup(uint32(g), bg, nil)
	}

	if d.state.ScissorEnabled {
		r := d.state.Scissor
		r.Width = min(r.X+r.Width, d.passW) - max(r.X, 0)
		r.Height = min(r.Y+r.Height, d.passH) - max(r.Y, 0)
		r.X, r.Y = max(r.X, 0), max(r.Y, 0)
		if r.Empty() {
			return false
		}
		d.pass.SetScissorRect(uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height))
	} else {
		d.pass.SetScissorRect(0, 0, uint32(d.passW), uint32(d.passH))
	}
	d.pass.SetViewport(0, 0, float32(d.passW), float32(d.passH), d.state.DepthNear, d.state.DepthFar)
	return true
}

func (d *wgpuDevice) sourceBuffer(block string) (*wgpu.Buffer, bool) {
	if d.source == nil {
		return nil, false
	}
	b, ok := d.source.BlockBuffer(block).(*wgBuffer)
	if !ok || b == nil || b.buffer == nil {
		return nil, false
	}
	return b.buffer, true
}
