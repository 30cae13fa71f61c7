package device

import "fmt"

// TextureFormat is the texel format of a texture.
type TextureFormat int

const (
	// TextureFormatRGBA8 is 8-bit unsigned normalized RGBA.
	TextureFormatRGBA8 TextureFormat = iota
	// TextureFormatRGBA16Float is half-float RGBA, used for HDR and world-space data.
	TextureFormatRGBA16Float
	// TextureFormatDepth32Float is a 32-bit float depth buffer.
	TextureFormatDepth32Float
)

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "rgba8unorm"
	case TextureFormatRGBA16Float:
		return "rgba16float"
	case TextureFormatDepth32Float:
		return "depth32float"
	default:
		return fmt.Sprintf("TextureFormat(%d)", int(f))
	}
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth32Float
}

// IsFloat reports whether the format stores unclamped floating point color.
func (f TextureFormat) IsFloat() bool {
	return f == TextureFormatRGBA16Float
}

// BytesPerTexel returns the storage size of one texel.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

// TextureDescriptor describes a texture allocation.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
}
