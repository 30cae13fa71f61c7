package renderer

// ShadowSettings configures the shadow pass.
type ShadowSettings struct {
	Enabled bool

	// Resolution overrides the light's shadow map size when positive.
	Resolution int
}

// SSAOSettings configures screen-space ambient occlusion.
type SSAOSettings struct {
	Enabled bool

	// Samples is the hemisphere kernel size, at most MaxSSAOSamples.
	Samples int

	// NoiseSize is the edge length of the tiling rotation noise texture.
	NoiseSize int

	Radius    float32
	Bias      float32
	Intensity float32

	// Seed makes the kernel and noise reproducible.
	Seed uint64
}

// ReflectionSettings configures the planar reflection pass.
type ReflectionSettings struct {
	Enabled bool

	// Scale is the reflection target size relative to the viewport, in (0, 1].
	Scale float32
}

// BloomSettings configures the bright-pass bloom.
type BloomSettings struct {
	Enabled   bool
	Threshold float32
	Intensity float32
}

// GodraySettings configures radial light shafts.
type GodraySettings struct {
	Enabled  bool
	Density  float32
	Weight   float32
	Decay    float32
	Exposure float32
}

// DOFSettings configures the depth-of-field blur.
type DOFSettings struct {
	Enabled bool

	// FocusDistance is the in-focus distance from the camera. Zero focuses on
	// the camera target.
	FocusDistance float32
	FocusRange    float32
	MaxRadius     float32
}

// LensFlareSettings configures ghosts and halo generated from the bloom bright-pass.
type LensFlareSettings struct {
	Enabled   bool
	Ghosts    int
	Dispersal float32
	HaloWidth float32
	Intensity float32
}

// Settings holds the per-pass parameters of a renderer. Forward renderers use
// only Shadow, Reflection, Exposure, Gamma and Culling.
type Settings struct {
	Shadow     ShadowSettings
	SSAO       SSAOSettings
	Reflection ReflectionSettings
	Bloom      BloomSettings
	Godray     GodraySettings
	DOF        DOFSettings
	LensFlare  LensFlareSettings

	// Exposure enables exponential tone mapping when positive.
	Exposure float32

	// Gamma applies gamma correction when positive.
	Gamma float32

	// Culling enables frustum culling of drawables.
	Culling bool
}

// DefaultSettings returns the settings a renderer starts with: every pass on
// except depth of field and lens flare.
func DefaultSettings() Settings {
	return Settings{
		Shadow: ShadowSettings{Enabled: true},
		SSAO: SSAOSettings{
			Enabled:   true,
			Samples:   16,
			NoiseSize: 4,
			Radius:    0.5,
			Bias:      0.025,
			Intensity: 1,
			Seed:      1,
		},
		Reflection: ReflectionSettings{Enabled: true, Scale: 0.5},
		Bloom:      BloomSettings{Enabled: true, Threshold: 1, Intensity: 0.6},
		Godray:     GodraySettings{Enabled: true, Density: 0.9, Weight: 0.02, Decay: 0.96, Exposure: 0.6},
		DOF:        DOFSettings{FocusRange: 10, MaxRadius: 4},
		LensFlare:  LensFlareSettings{Ghosts: 4, Dispersal: 0.35, HaloWidth: 0.45, Intensity: 0.3},
		Exposure:   1,
		Gamma:      2.2,
		Culling:    true,
	}
}
