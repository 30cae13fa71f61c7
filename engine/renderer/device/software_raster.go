package device

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// minBandRows is the smallest band height worth handing to a worker.
const minBandRows = 16

// drawContext is everything one draw needs, resolved once before rasterization.
type drawContext struct {
	pass     *swPass
	state    State
	kernel   Kernel
	uniforms Uniforms
	samplers swSampler
	clip     common.Rect
}

// screenVertex is a post-divide vertex. v holds varyings premultiplied by invW.
type screenVertex struct {
	x, y, z float32
	invW    float32
	v       Varyings
}

func (d *softwareDevice) Draw(mesh Mesh) {
	m, ok := mesh.(*swMesh)
	if !ok || m == nil {
		diag.Report(diag.NewConfigurationError("Draw", "mesh %T does not belong to the software device", mesh))
		return
	}
	ctx, ok := d.prepareDraw("Draw")
	if !ok {
		return
	}

	out := make([]Varyings, len(m.vertices))
	for i, v := range m.vertices {
		out[i] = ctx.kernel.Vertex(v, ctx.uniforms)
	}

	switch {
	case m.topology == TopologyLines:
		d.rasterLines(ctx, out, m.indices)
	case ctx.state.Wireframe:
		d.rasterLines(ctx, out, m.edges)
	default:
		d.rasterTriangles(ctx, out, m.indices)
	}
}

// fullscreenVertices cover the viewport with one triangle; uv (0,0) is top-left.
var fullscreenVertices = [3]Vertex{
	{Position: mgl32.Vec3{-1, -1, 0}, UV: mgl32.Vec2{0, 1}},
	{Position: mgl32.Vec3{3, -1, 0}, UV: mgl32.Vec2{2, 1}},
	{Position: mgl32.Vec3{-1, 3, 0}, UV: mgl32.Vec2{0, -1}},
}

func (d *softwareDevice) DrawFullscreen() {
	ctx, ok := d.prepareDraw("DrawFullscreen")
	if !ok {
		return
	}
	out := make([]Varyings, 3)
	for i, v := range fullscreenVertices {
		out[i] = ctx.kernel.Vertex(v, ctx.uniforms)
	}
	// Full-screen passes never cull.
	ctx.state.Cull = CullNone
	d.rasterTriangles(ctx, out, []uint32{0, 1, 2})
}

func (d *softwareDevice) prepareDraw(op string) (*drawContext, bool) {
	if d.pass == nil {
		diag.Report(diag.NewConfigurationError(op, "no render pass is open"))
		return nil, false
	}
	if d.program == nil {
		diag.Report(diag.NewConfigurationError(op, "no program is bound"))
		return nil, false
	}

	layout := d.program.layout
	blocks := make(map[string][]byte, len(layout.Blocks))
	for _, b := range layout.Blocks {
		var data []byte
		if d.source != nil {
			if buf, ok := d.source.BlockBuffer(b.Name).(*swBuffer); ok && buf != nil {
				data = buf.data
			} else {
				data = d.source.BlockData(b.Name)
			}
		}
		blocks[b.Name] = append([]byte(nil), data...)
	}

	textures := make(map[string]*swTexture)
	for _, r := range layout.Resources {
		if r.Kind != ResourceTexture && r.Kind != ResourceDepthTexture {
			continue
		}
		var tex Texture
		if d.source != nil {
			tex = d.source.Texture(r.Name)
		}
		t, err := asSWTexture(tex)
		if err != nil {
			diag.WarnOnce(d.program.label+"/texture/"+r.Name,
				diag.NewConfigurationError(op, "program %q: texture %q is not bound", d.program.label, r.Name))
			return nil, false
		}
		for _, c := range d.pass.color {
			if c == t {
				diag.Report(diag.NewConfigurationError(op, "texture %q is both sampled and a render attachment", t.desc.Label))
				return nil, false
			}
		}
		textures[r.Name] = t
	}

	clip := common.Rect{Width: d.pass.width, Height: d.pass.height}
	if d.state.ScissorEnabled {
		clip = clip.Intersect(d.state.Scissor)
	}
	if clip.Empty() {
		return nil, false
	}

	return &drawContext{
		pass:     d.pass,
		state:    d.state,
		kernel:   d.program.kernel,
		uniforms: NewUniforms(layout, blocks),
		samplers: swSampler{textures: textures},
		clip:     clip,
	}, true
}

// parallelRows runs fn over horizontal bands of [y0, y1) on the worker pool.
// Bands are disjoint so writes never overlap.
func (d *softwareDevice) parallelRows(y0, y1 int, fn func(y0, y1 int)) {
	rows := y1 - y0
	bands := min(d.opts.workers, rows/minBandRows)
	if bands <= 1 {
		fn(y0, y1)
		return
	}

	pool := d.workerPool()
	per := (rows + bands - 1) / bands
	var wg sync.WaitGroup
	for start := y0; start < y1; start += per {
		end := min(y1, start+per)
		lo, hi := start, end
		wg.Add(1)
		id := d.taskID
		d.taskID++
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (ctx *drawContext) toScreen(v Varyings) screenVertex {
	p := v.Position
	invW := 1 / p.W()
	ndcX, ndcY, ndcZ := p.X()*invW, p.Y()*invW, p.Z()*invW
	w, h := float32(ctx.pass.width), float32(ctx.pass.height)
	return screenVertex{
		x:    (ndcX*0.5 + 0.5) * w,
		y:    (1 - (ndcY*0.5 + 0.5)) * h,
		z:    ndcZ,
		invW: invW,
		v:    v.scale(invW),
	}
}

// clipNear clips a polygon against the z >= 0 clip plane.
func clipNear(poly []Varyings) []Varyings {
	const eps = 1e-6
	out := make([]Varyings, 0, len(poly)+2)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		da, db := a.Position.Z(), b.Position.Z()
		if da >= -eps {
			out = append(out, a)
		}
		if (da >= -eps) != (db >= -eps) {
			t := da / (da - db)
			out = append(out, lerpVaryings(a, b, t))
		}
	}
	return out
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (d *softwareDevice) rasterTriangles(ctx *drawContext, verts []Varyings, indices []uint32) {
	type tri struct {
		v     [3]screenVertex
		area  float32
		front bool
	}
	tris := make([]tri, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		poly := clipNear([]Varyings{verts[indices[i]], verts[indices[i+1]], verts[indices[i+2]]})
		if len(poly) < 3 {
			continue
		}
		s0 := ctx.toScreen(poly[0])
		for k := 1; k+1 < len(poly); k++ {
			s1, s2 := ctx.toScreen(poly[k]), ctx.toScreen(poly[k+1])
			area := edge(s0.x, s0.y, s1.x, s1.y, s2.x, s2.y)
			if area == 0 || math32.IsNaN(area) {
				continue
			}
			// Counter-clockwise in NDC (y up) is clockwise on screen (y down).
			front := area < 0
			if (ctx.state.Cull == CullBack && !front) || (ctx.state.Cull == CullFront && front) {
				continue
			}
			tris = append(tris, tri{v: [3]screenVertex{s0, s1, s2}, area: area, front: front})
		}
	}
	if len(tris) == 0 {
		return
	}

	d.parallelRows(ctx.clip.Y, ctx.clip.Y+ctx.clip.Height, func(y0, y1 int) {
		frag := &Fragment{Uniforms: ctx.uniforms, Textures: ctx.samplers}
		for _, t := range tris {
			a, b, c := t.v[0], t.v[1], t.v[2]
			minX := max(ctx.clip.X, int(math32.Floor(min(a.x, b.x, c.x))))
			maxX := min(ctx.clip.X+ctx.clip.Width-1, int(math32.Ceil(max(a.x, b.x, c.x))))
			minY := max(y0, int(math32.Floor(min(a.y, b.y, c.y))))
			maxY := min(y1-1, int(math32.Ceil(max(a.y, b.y, c.y))))

			for py := minY; py <= maxY; py++ {
				cy := float32(py) + 0.5
				for px := minX; px <= maxX; px++ {
					cx := float32(px) + 0.5
					w0 := edge(b.x, b.y, c.x, c.y, cx, cy) / t.area
					w1 := edge(c.x, c.y, a.x, a.y, cx, cy) / t.area
					w2 := edge(a.x, a.y, b.x, b.y, cx, cy) / t.area
					if w0 < 0 || w1 < 0 || w2 < 0 {
						continue
					}
					z := w0*a.z + w1*b.z + w2*c.z
					invW := w0*a.invW + w1*b.invW + w2*c.invW
					in := a.v.scale(w0).add(b.v.scale(w1)).add(c.v.scale(w2)).scale(1 / invW)
					ctx.shade(frag, px, py, z, t.front, in)
				}
			}
		}
	})
}

func (d *softwareDevice) rasterLines(ctx *drawContext, verts []Varyings, indices []uint32) {
	type seg struct{ a, b screenVertex }
	segs := make([]seg, 0, len(indices)/2)
	for i := 0; i+1 < len(indices); i += 2 {
		poly := clipNear([]Varyings{verts[indices[i]], verts[indices[i+1]]})
		if len(poly) < 2 {
			continue
		}
		segs = append(segs, seg{ctx.toScreen(poly[0]), ctx.toScreen(poly[1])})
	}
	if len(segs) == 0 {
		return
	}

	d.parallelRows(ctx.clip.Y, ctx.clip.Y+ctx.clip.Height, func(y0, y1 int) {
		frag := &Fragment{Uniforms: ctx.uniforms, Textures: ctx.samplers}
		for _, s := range segs {
			dx, dy := s.b.x-s.a.x, s.b.y-s.a.y
			steps := int(math32.Ceil(max(math32.Abs(dx), math32.Abs(dy))))
			if steps == 0 {
				steps = 1
			}
			lastX, lastY := -1, -1
			for i := 0; i <= steps; i++ {
				t := float32(i) / float32(steps)
				px := int(math32.Floor(s.a.x + dx*t))
				py := int(math32.Floor(s.a.y + dy*t))
				if px == lastX && py == lastY {
					continue
				}
				lastX, lastY = px, py
				if py < y0 || py >= y1 || !ctx.clip.Contains(px, py) {
					continue
				}
				z := s.a.z + (s.b.z-s.a.z)*t
				invW := s.a.invW + (s.b.invW-s.a.invW)*t
				in := s.a.v.scale(1 - t).add(s.b.v.scale(t)).scale(1 / invW)
				ctx.shade(frag, px, py, z, true, in)
			}
		}
	})
}

// shade runs the depth test, the fragment kernel, and the attachment writes for one pixel.
func (ctx *drawContext) shade(frag *Fragment, px, py int, z float32, front bool, in Varyings) {
	if z < 0 || z > 1 {
		return
	}
	st := ctx.state
	depth := st.DepthNear + z*(st.DepthFar-st.DepthNear)
	idx := py*ctx.pass.width + px

	if st.DepthTest && ctx.pass.depth != nil {
		if depth >= ctx.pass.depth.texels[idx][0] {
			return
		}
	}

	frag.X, frag.Y = px, py
	frag.Coord = mgl32.Vec2{float32(px) + 0.5, float32(py) + 0.5}
	frag.Depth = depth
	frag.FrontFacing = front
	frag.In = in
	frag.Out = [MaxColorTargets]mgl32.Vec4{}
	frag.discarded = false
	ctx.kernel.Fragment(frag)
	if frag.discarded {
		return
	}

	if st.DepthTest && st.DepthWrite && ctx.pass.depth != nil {
		ctx.pass.depth.texels[idx] = mgl32.Vec4{depth, 0, 0, 1}
	}
	for i, t := range ctx.pass.color {
		src := frag.Out[i]
		switch st.Blend {
		case BlendAlpha:
			dst := t.texels[idx]
			a := src[3]
			src = src.Mul(a).Add(dst.Mul(1 - a))
		case BlendAdditive:
			dst := t.texels[idx]
			a := src[3]
			src = mgl32.Vec4{src[0]*a + dst[0], src[1]*a + dst[1], src[2]*a + dst[2], dst[3] + a}
		}
		t.store(idx, src)
	}
}
