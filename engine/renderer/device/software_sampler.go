package device

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// swSampler resolves texture names to the textures bound for one draw.
type swSampler struct {
	textures map[string]*swTexture
}

var _ Sampler = swSampler{}

func (s swSampler) texel(t *swTexture, x, y int) mgl32.Vec4 {
	x = min(max(x, 0), t.desc.Width-1)
	y = min(max(y, 0), t.desc.Height-1)
	return t.texels[y*t.desc.Width+x]
}

func (s swSampler) Sample(name string, uv mgl32.Vec2) mgl32.Vec4 {
	t, ok := s.textures[name]
	if !ok {
		return mgl32.Vec4{}
	}
	fx := uv.X()*float32(t.desc.Width) - 0.5
	fy := uv.Y()*float32(t.desc.Height) - 0.5
	if math32.IsNaN(fx) || math32.IsNaN(fy) {
		return mgl32.Vec4{}
	}
	x0, y0 := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)

	c00 := s.texel(t, ix, iy)
	c10 := s.texel(t, ix+1, iy)
	c01 := s.texel(t, ix, iy+1)
	c11 := s.texel(t, ix+1, iy+1)
	top := c00.Mul(1 - tx).Add(c10.Mul(tx))
	bottom := c01.Mul(1 - tx).Add(c11.Mul(tx))
	return top.Mul(1 - ty).Add(bottom.Mul(ty))
}

func (s swSampler) SampleCompare(name string, uv mgl32.Vec2, ref float32) float32 {
	t, ok := s.textures[name]
	if !ok {
		return 1
	}
	fx := uv.X()*float32(t.desc.Width) - 0.5
	fy := uv.Y()*float32(t.desc.Height) - 0.5
	ix, iy := int(math32.Floor(fx)), int(math32.Floor(fy))

	var lit float32
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			if ref <= s.texel(t, ix+dx, iy+dy)[0] {
				lit++
			}
		}
	}
	return lit / 4
}

func (s swSampler) Load(name string, x, y int) mgl32.Vec4 {
	t, ok := s.textures[name]
	if !ok {
		return mgl32.Vec4{}
	}
	return s.texel(t, x, y)
}

func (s swSampler) Size(name string) (int, int) {
	t, ok := s.textures[name]
	if !ok {
		return 0, 0
	}
	return t.desc.Width, t.desc.Height
}
