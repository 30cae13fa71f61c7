package device

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
)

// ToImage converts texels read from a texture into an 8-bit RGBA image.
// Color values are clamped to [0, 1]; depth textures become grayscale.
//
// Parameters:
//   - texels: row-major texels, top row first
//   - width, height: the texture dimensions
//   - format: the texture format the texels were read from
//
// Returns:
//   - *image.RGBA: the converted image
func ToImage(texels []mgl32.Vec4, width, height int, format TextureFormat) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if i >= len(texels) {
				return img
			}
			c := texels[i]
			if format.IsDepth() {
				c = mgl32.Vec4{c[0], c[0], c[0], 1}
			}
			img.SetRGBA(x, y, color.RGBA{
				R: unorm8(c[0]),
				G: unorm8(c[1]),
				B: unorm8(c[2]),
				A: unorm8(c[3]),
			})
		}
	}
	return img
}

func unorm8(v float32) uint8 {
	return uint8(quantizeUnorm8(v)*255 + 0.5)
}
