package programs

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var luma = mgl32.Vec3{0.2126, 0.7152, 0.0722}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func mix3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}

func fract(v float32) float32 {
	return v - math32.Floor(v)
}

func smoothstep(e0, e1, x float32) float32 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func insideUnit(uv mgl32.Vec2) bool {
	return uv.X() >= 0 && uv.X() <= 1 && uv.Y() >= 0 && uv.Y() <= 1
}

// ndcToUV maps normalized device xy to texture space, (0,0) top-left.
func ndcToUV(x, y float32) mgl32.Vec2 {
	return mgl32.Vec2{x*0.5 + 0.5, 0.5 - y*0.5}
}

// loadUV reads the texel under uv without filtering.
func loadUV(s device.Sampler, name string, uv mgl32.Vec2) mgl32.Vec4 {
	w, h := s.Size(name)
	return s.Load(name, int(uv.X()*float32(w)), int(uv.Y()*float32(h)))
}

// shadowFactor returns the lit fraction of p from the shadow map, 1 when
// shadows are disabled or p falls outside the light volume.
func shadowFactor(f *device.Fragment, p mgl32.Vec3) float32 {
	params := f.Uniforms.Vec4("shadowParams")
	if params.X() <= 0 {
		return 1
	}
	clip := f.Uniforms.Mat4("lightViewProj").Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return 1
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	uv := ndcToUV(ndc.X(), ndc.Y())
	if !insideUnit(uv) || ndc.Z() > 1 {
		return 1
	}
	return f.Textures.SampleCompare("shadowMap", uv, ndc.Z()-params.Y())
}

// shade is Blinn-Phong with an ambient term scaled by ambient occlusion.
func shade(albedo, n, p, eye mgl32.Vec3, specular mgl32.Vec4, lightDir, lightColor, ambient mgl32.Vec3, visibility, ao float32) mgl32.Vec3 {
	l := normalize(lightDir.Mul(-1))
	v := normalize(eye.Sub(p))
	h := normalize(l.Add(v))
	ndl := math32.Max(n.Dot(l), 0)
	shininess := math32.Max(specular.W()*128, 1)
	var spec float32
	if ndl > 0 {
		spec = math32.Pow(math32.Max(n.Dot(h), 0), shininess)
	}
	direct := mul3(albedo.Mul(ndl).Add(specular.Vec3().Mul(spec)), lightColor).Mul(visibility)
	return mul3(ambient, albedo).Mul(ao).Add(direct)
}

// applyFog blends toward fog.rgb with exponential density fog.a.
func applyFog(color mgl32.Vec3, fog mgl32.Vec4, distance float32) mgl32.Vec3 {
	f := math32.Exp(-fog.W() * distance)
	return mix3(fog.Vec3(), color, f)
}
