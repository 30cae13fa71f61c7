package device

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const rowAlignment = 256

func (d *wgpuDevice) ReadPixel(tex Texture, x, y int) (mgl32.Vec4, error) {
	t, err := asWGTexture(tex)
	if err != nil {
		return mgl32.Vec4{}, &diag.PixelReadbackError{X: x, Y: y, Err: err}
	}
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return mgl32.Vec4{}, &diag.PixelReadbackError{Target: t.desc.Label, X: x, Y: y,
			Err: errors.New("coordinate outside the texture")}
	}
	data, err := d.copyRegion(t, x, y, 1, 1)
	if err != nil {
		return mgl32.Vec4{}, &diag.PixelReadbackError{Target: t.desc.Label, X: x, Y: y, Err: err}
	}
	return decodeTexel(data, t.desc.Format), nil
}

func (d *wgpuDevice) ReadTexture(tex Texture) ([]mgl32.Vec4, error) {
	t, err := asWGTexture(tex)
	if err != nil {
		return nil, err
	}
	w, h := t.desc.Width, t.desc.Height
	data, err := d.copyRegion(t, 0, 0, w, h)
	if err != nil {
		return nil, &diag.PixelReadbackError{Target: t.desc.Label, Err: err}
	}
	bpt := t.desc.Format.BytesPerTexel()
	stride := int(common.AlignUp(rowAlignment, uint64(w*bpt)))
	out := make([]mgl32.Vec4, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			out[row*w+col] = decodeTexel(data[row*stride+col*bpt:], t.desc.Format)
		}
	}
	return out, nil
}

// copyRegion submits pending work, copies a texture region into a mappable
// buffer and blocks until it can be read. Rows in the result are padded to 256 bytes.
func (d *wgpuDevice) copyRegion(t *wgTexture, x, y, w, h int) ([]byte, error) {
	if err := d.Flush(); err != nil {
		return nil, err
	}
	bpt := t.desc.Format.BytesPerTexel()
	stride := common.AlignUp(rowAlignment, uint64(w*bpt))
	size := stride * uint64(h)

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: t.desc.Label + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	aspect := wgpu.TextureAspectAll
	if t.desc.Format.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(x), Y: uint32(y)},
			Aspect:   aspect,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(stride),
				RowsPerImage: uint32(h),
			},
		},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, err
	}
	d.queue.Submit(cb)
	cb.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New("buffer map was not successful")
	}
	mapped := buf.GetMappedRange(0, uint(size))
	out := append([]byte(nil), mapped...)
	buf.Unmap()
	return out, nil
}

const blitWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOut {
    var out: VertexOut;
    let p = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    out.position = vec4<f32>(p * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(p.x, 1.0 - p.y);
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return textureSample(src, srcSampler, in.uv);
}
`

// blitPipeline lazily builds the pipeline that copies a color texture to the surface.
func (d *wgpuDevice) blitPipeline() (*wgpu.RenderPipeline, error) {
	key := pipelineKey{}
	if d.blit != nil {
		if rp, ok := d.blit.pipelines[key]; ok {
			return rp, nil
		}
	}
	mod, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "present blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitWGSL},
	})
	if err != nil {
		return nil, err
	}
	layouts := bindGroupLayoutDescriptors("present blit", ProgramLayout{Resources: []ResourceBinding{
		{Name: "src", Group: 0, Binding: 0, Kind: ResourceTexture},
		{Name: "srcSampler", Group: 0, Binding: 1, Kind: ResourceSampler},
	}})
	d.blitLayout, err = d.device.CreateBindGroupLayout(&layouts[0])
	if err != nil {
		mod.Release()
		return nil, err
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "present blit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.blitLayout},
	})
	if err != nil {
		mod.Release()
		return nil, err
	}
	rp, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "present blit",
		Layout: pl,
		Vertex: wgpu.VertexState{Module: mod, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{{Format: d.surfaceFormat, WriteMask: wgpu.ColorWriteMaskAll}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList, FrontFace: wgpu.FrontFaceCCW, CullMode: wgpu.CullModeNone},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		mod.Release()
		pl.Release()
		return nil, err
	}
	d.blit = &wgProgram{label: "present blit", vs: mod, pipelineLayout: pl,
		pipelines: map[pipelineKey]*wgpu.RenderPipeline{key: rp}}
	return rp, nil
}

func (d *wgpuDevice) Present(tex Texture) error {
	if d.surface == nil {
		return d.Flush()
	}
	t, err := asWGTexture(tex)
	if err != nil {
		return err
	}
	if t.desc.Format.IsDepth() {
		return diag.NewConfigurationError("Present", "depth texture %q cannot be presented", t.desc.Label)
	}
	if err := d.Flush(); err != nil {
		return err
	}
	rp, err := d.blitPipeline()
	if err != nil {
		return err
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "present blit",
		Layout: d.blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: t.view},
			{Binding: 1, Sampler: d.linearSampler},
		},
	})
	if err != nil {
		return err
	}
	defer bg.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "present",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{A: 1},
		}},
	})
	pass.SetPipeline(rp)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return err
	}
	d.queue.Submit(cb)
	cb.Release()
	d.surface.Present()
	return nil
}
