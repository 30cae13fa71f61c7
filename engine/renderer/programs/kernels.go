package programs

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Kernels returns the software kernel of every built-in program, keyed by program name.
// Pass it to device.WithKernels when creating a software device.
func Kernels() map[string]device.Kernel {
	return map[string]device.Kernel{
		GBuffer:   {Vertex: meshVertexKernel, Fragment: gbufferFragment},
		Shadow:    {Vertex: meshVertexKernel, Fragment: shadowFragment},
		Forward:   {Vertex: meshVertexKernel, Fragment: forwardFragment},
		Raycast:   {Vertex: meshVertexKernel, Fragment: raycastFragment},
		Overlay:   {Vertex: overlayVertex, Fragment: overlayFragment},
		SSAO:      {Vertex: fullscreenKernel, Fragment: ssaoFragment},
		Blur:      {Vertex: fullscreenKernel, Fragment: blurFragment},
		Lighting:  {Vertex: fullscreenKernel, Fragment: lightingFragment},
		Bright:    {Vertex: fullscreenKernel, Fragment: brightFragment},
		Godray:    {Vertex: fullscreenKernel, Fragment: godrayFragment},
		LensFlare: {Vertex: fullscreenKernel, Fragment: lensFlareFragment},
		DOF:       {Vertex: fullscreenKernel, Fragment: dofFragment},
		Final:     {Vertex: fullscreenKernel, Fragment: finalFragment},
		Copy:      {Vertex: fullscreenKernel, Fragment: copyFragment},
	}
}

func meshVertexKernel(v device.Vertex, u device.Uniforms) device.Varyings {
	world := u.Mat4("model").Mul4x1(v.Position.Vec4(1))
	return device.Varyings{
		Position: u.Mat4("viewProj").Mul4x1(world),
		WorldPos: world.Vec3(),
		Normal:   u.Mat4("normalMatrix").Mul4x1(v.Normal.Vec4(0)).Vec3(),
		UV:       v.UV,
	}
}

func fullscreenKernel(v device.Vertex, _ device.Uniforms) device.Varyings {
	return device.Varyings{Position: v.Position.Vec4(1), UV: v.UV}
}

func clipped(f *device.Fragment) bool {
	return f.In.WorldPos.Vec4(1).Dot(f.Uniforms.Vec4("clipPlane")) < 0
}

func gbufferFragment(f *device.Fragment) {
	if clipped(f) {
		f.Discard()
		return
	}
	f.Out[0] = f.Uniforms.Vec4("albedo")
	f.Out[1] = f.In.WorldPos.Vec4(1)
	f.Out[2] = normalize(f.In.Normal).Vec4(1)
	f.Out[3] = f.Uniforms.Vec4("material")
	f.Out[4] = f.Uniforms.Vec4("specular")
}

func shadowFragment(f *device.Fragment) {
	if clipped(f) {
		f.Discard()
	}
}

func raycastFragment(f *device.Fragment) {
	f.Out[0] = f.In.WorldPos.Vec4(1)
}

func forwardFragment(f *device.Fragment) {
	if clipped(f) {
		f.Discard()
		return
	}
	u := f.Uniforms
	albedo := u.Vec4("albedo")
	eye := u.Vec4("cameraPos").Vec3()
	color := shade(albedo.Vec3(), normalize(f.In.Normal), f.In.WorldPos, eye, u.Vec4("specular"),
		u.Vec4("lightDir").Vec3(), u.Vec4("lightColor").Vec3(), u.Vec4("ambient").Vec3(),
		shadowFactor(f, f.In.WorldPos), 1)

	features := u.Vec4("lightFeatures")
	if features.X() > 0 {
		uv := mgl32.Vec2{f.Coord.X() / features.Y(), f.Coord.Y() / features.Z()}
		material := u.Vec4("material")
		reflectivity := material.Y() * (1 - material.X())
		color = mix3(color, f.Textures.Sample("reflectionMap", uv).Vec3(), reflectivity)
	}
	color = applyFog(color, u.Vec4("fog"), eye.Sub(f.In.WorldPos).Len())
	f.Out[0] = color.Vec4(albedo.W())
}

func overlayVertex(v device.Vertex, u device.Uniforms) device.Varyings {
	return device.Varyings{Position: u.Mat4("mvp").Mul4x1(v.Position.Vec4(1))}
}

func overlayFragment(f *device.Fragment) {
	f.Out[0] = f.Uniforms.Vec4("color")
}

// maxSSAOSamples matches the ssaoKernel array length in ssao.frag.wgsl.
const maxSSAOSamples = 32

func ssaoFragment(f *device.Fragment) {
	u, tex := f.Uniforms, f.Textures
	p := tex.Load("gPosition", f.X, f.Y)
	if p.W() == 0 {
		f.Out[0] = mgl32.Vec4{1, 1, 1, 1}
		return
	}
	n := normalize(tex.Load("gNormal", f.X, f.Y).Vec3())
	nw, nh := tex.Size("noise")
	rnd := tex.Load("noise", f.X%max(nw, 1), f.Y%max(nh, 1)).Vec3()
	t := rnd.Sub(n.Mul(rnd.Dot(n)))
	if t.Dot(t) < 1e-6 {
		t = mgl32.Vec3{1, 0, 0}
		if math32.Abs(n.X()) > 0.9 {
			t = mgl32.Vec3{0, 1, 0}
		}
		t = t.Sub(n.Mul(t.Dot(n)))
	}
	t = normalize(t)
	tbn := mgl32.Mat3FromCols(t, n.Cross(t), n)

	params := u.Vec4("ssaoParams")
	radius, bias := params.X(), params.Y()
	count := min(int(params.W()), maxSSAOSamples)
	view, proj := u.Mat4("view"), u.Mat4("projection")
	depth := view.Mul4x1(p.Vec3().Vec4(1)).Z()

	var occlusion float32
	for i := 0; i < count; i++ {
		s := p.Vec3().Add(tbn.Mul3x1(u.Vec4At("ssaoKernel", i).Vec3()).Mul(radius))
		viewS := view.Mul4x1(s.Vec4(1))
		clip := proj.Mul4x1(viewS)
		if clip.W() <= 0 {
			continue
		}
		uv := ndcToUV(clip.X()/clip.W(), clip.Y()/clip.W())
		if !insideUnit(uv) {
			continue
		}
		q := loadUV(tex, "gPosition", uv)
		if q.W() == 0 {
			continue
		}
		sceneDepth := view.Mul4x1(q.Vec3().Vec4(1)).Z()
		rangeCheck := smoothstep(0, 1, radius/math32.Max(math32.Abs(depth-sceneDepth), 1e-4))
		if sceneDepth >= viewS.Z()+bias {
			occlusion += rangeCheck
		}
	}
	ao := clamp01(1 - occlusion/float32(max(count, 1))*params.Z())
	f.Out[0] = mgl32.Vec4{ao, ao, ao, 1}
}

var blurWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

func blurFragment(f *device.Fragment) {
	dir := f.Uniforms.Vec2("direction")
	uv := f.In.UV
	color := f.Textures.Sample("src", uv).Mul(blurWeights[0])
	for i := 1; i < len(blurWeights); i++ {
		offset := dir.Mul(float32(i))
		color = color.Add(f.Textures.Sample("src", uv.Add(offset)).Mul(blurWeights[i]))
		color = color.Add(f.Textures.Sample("src", uv.Sub(offset)).Mul(blurWeights[i]))
	}
	f.Out[0] = color
}

func lightingFragment(f *device.Fragment) {
	u, tex := f.Uniforms, f.Textures
	p := tex.Load("gPosition", f.X, f.Y)
	if p.W() == 0 {
		f.Out[0] = u.Vec4("skyColor")
		return
	}
	albedo := tex.Load("gAlbedo", f.X, f.Y)
	n := normalize(tex.Load("gNormal", f.X, f.Y).Vec3())
	material := tex.Load("gMaterial", f.X, f.Y)
	specular := tex.Load("gSpecular", f.X, f.Y)
	eye := u.Vec4("eye").Vec3()

	features := u.Vec4("features")
	ao := float32(1)
	if features.X() > 0 {
		ao = tex.Load("ssaoMap", f.X, f.Y).X()
	}
	color := shade(albedo.Vec3(), n, p.Vec3(), eye, specular, u.Vec4("lightDir").Vec3(),
		u.Vec4("lightColor").Vec3(), u.Vec4("ambient").Vec3(), shadowFactor(f, p.Vec3()), ao)

	if features.Y() > 0 {
		reflectivity := material.Y() * (1 - material.X())
		color = mix3(color, tex.Sample("reflectionMap", f.In.UV).Vec3(), reflectivity)
	}
	color = applyFog(color, u.Vec4("fog"), eye.Sub(p.Vec3()).Len())
	f.Out[0] = color.Vec4(1)
}

func brightFragment(f *device.Fragment) {
	c := f.Textures.Sample("src", f.In.UV)
	if c.Vec3().Dot(luma) <= f.Uniforms.Float("threshold") {
		f.Out[0] = mgl32.Vec4{0, 0, 0, 1}
		return
	}
	f.Out[0] = c.Vec3().Vec4(1)
}

// godraySamples matches GODRAY_SAMPLES in godray.frag.wgsl.
const godraySamples = 48

func godrayFragment(f *device.Fragment) {
	u := f.Uniforms
	light := u.Vec4("lightScreen")
	if light.Z() <= 0 {
		f.Out[0] = mgl32.Vec4{0, 0, 0, 1}
		return
	}
	params := u.Vec4("godrayParams")
	delta := f.In.UV.Sub(mgl32.Vec2{light.X(), light.Y()}).Mul(params.X() / godraySamples)
	coord := f.In.UV
	illumination := float32(1)
	var sum float32
	for i := 0; i < godraySamples; i++ {
		coord = coord.Sub(delta)
		unblocked := 1 - loadUV(f.Textures, "gPosition", coord).W()
		sum += unblocked * illumination * params.Y()
		illumination *= params.Z()
	}
	rays := u.Vec4("godrayColor").Vec3().Mul(sum * params.W() * light.Z())
	f.Out[0] = rays.Vec4(1)
}

// maxGhosts matches MAX_GHOSTS in lens_flare.frag.wgsl.
const maxGhosts = 8

func flareWeight(uv mgl32.Vec2, power float32) float32 {
	d := mgl32.Vec2{0.5, 0.5}.Sub(uv).Len() / 0.70710678
	return math32.Pow(math32.Max(1-d, 0), power)
}

func lensFlareFragment(f *device.Fragment) {
	params := f.Uniforms.Vec4("flareParams")
	texcoord := mgl32.Vec2{1 - f.In.UV.X(), 1 - f.In.UV.Y()}
	ghostVec := mgl32.Vec2{0.5, 0.5}.Sub(texcoord).Mul(params.Y())
	ghosts := min(int(params.X()), maxGhosts)

	var result mgl32.Vec3
	for i := 0; i < ghosts; i++ {
		o := texcoord.Add(ghostVec.Mul(float32(i)))
		offset := mgl32.Vec2{fract(o.X()), fract(o.Y())}
		result = result.Add(f.Textures.Sample("src", offset).Vec3().Mul(flareWeight(offset, 10)))
	}

	g := ghostVec.Add(mgl32.Vec2{1e-6, 1e-6})
	dir := g.Mul(1 / g.Len())
	h := texcoord.Add(dir.Mul(params.Z()))
	haloUV := mgl32.Vec2{fract(h.X()), fract(h.Y())}
	result = result.Add(f.Textures.Sample("src", haloUV).Vec3().Mul(flareWeight(haloUV, 5)))

	f.Out[0] = result.Mul(params.W()).Vec4(1)
}

// dofRing matches DOF_RING in dof.frag.wgsl.
const dofRing = 8

func dofFragment(f *device.Fragment) {
	u, tex := f.Uniforms, f.Textures
	focus := u.Vec4("focus")
	texel := u.Vec2("texel")
	p := tex.Load("gPosition", f.X, f.Y)
	dist := float32(1e4)
	if p.W() > 0 {
		dist = p.Vec3().Sub(u.Vec4("eye").Vec3()).Len()
	}
	coc := clamp01(math32.Abs(dist-focus.X())/math32.Max(focus.Y(), 1e-4)) * focus.Z()

	color := tex.Sample("scene", f.In.UV)
	total := float32(1)
	for ring := 1; ring <= 2; ring++ {
		r := coc * float32(ring) * 0.5
		for i := 0; i < dofRing; i++ {
			a := float32(i)*0.78539816 + float32(ring)*0.39269908
			offset := mgl32.Vec2{math32.Cos(a) * r * texel.X(), math32.Sin(a) * r * texel.Y()}
			color = color.Add(tex.Sample("scene", f.In.UV.Add(offset)))
			total++
		}
	}
	f.Out[0] = color.Mul(1 / total)
}

func finalFragment(f *device.Fragment) {
	u, tex := f.Uniforms, f.Textures
	weights := u.Vec4("weights")
	base := tex.Sample("scene", f.In.UV)
	c := base.Vec3()
	c = c.Add(tex.Sample("bloomMap", f.In.UV).Vec3().Mul(weights.X()))
	c = c.Add(tex.Sample("godrayMap", f.In.UV).Vec3().Mul(weights.Y()))
	c = c.Add(tex.Sample("flareMap", f.In.UV).Vec3().Mul(weights.Z()))
	if exposure := weights.W(); exposure > 0 {
		for i := range c {
			c[i] = 1 - math32.Exp(-c[i]*exposure)
		}
	}
	if gamma := u.Vec4("grade").X(); gamma > 0 {
		for i := range c {
			c[i] = math32.Pow(math32.Max(c[i], 0), 1/gamma)
		}
	}
	f.Out[0] = c.Vec4(base.W())
}

func copyFragment(f *device.Fragment) {
	f.Out[0] = f.Textures.Sample("src", f.In.UV)
}
