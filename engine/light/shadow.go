package light

// Shadow volume defaults of NewLight. The volume is an orthographic box of
// half-extent DefaultShadowHalfExtent around the focus point, looking along
// the light direction.
const (
	// ShadowMapResolution is the edge length of the shadow depth texture in texels.
	ShadowMapResolution = 2048

	DefaultShadowHalfExtent float32 = 40
	DefaultShadowNear       float32 = 0.1
	DefaultShadowFar        float32 = 200

	// DefaultShadowBias is subtracted from the receiver depth before the comparison.
	DefaultShadowBias float32 = 0.002
)
