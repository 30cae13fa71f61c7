// Package config reads the TOML file that configures the viewer: the window,
// the GPU backend, the render strategy with its per-pass parameters, and the
// shader source directory.
package config

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root of a configuration file.
type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Shaders  Shaders  `toml:"shaders"`
}

// Window configures the native window and its surface.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`

	// PresentMode is "fifo" (vsync) or "immediate".
	PresentMode string `toml:"present_mode"`
}

// Renderer selects the backend and strategy and holds the pass parameters.
type Renderer struct {
	// Backend is "wgpu" or "software".
	Backend string `toml:"backend"`

	// Strategy is "deferred" or "forward".
	Strategy string `toml:"strategy"`

	// Workers is the software rasterizer parallelism. Zero keeps the device default.
	Workers int `toml:"workers"`

	Exposure float32 `toml:"exposure"`
	Gamma    float32 `toml:"gamma"`
	Culling  bool    `toml:"culling"`

	Shadow     Shadow     `toml:"shadow"`
	SSAO       SSAO       `toml:"ssao"`
	Reflection Reflection `toml:"reflection"`
	Bloom      Bloom      `toml:"bloom"`
	Godray     Godray     `toml:"godray"`
	DOF        DOF        `toml:"dof"`
	LensFlare  LensFlare  `toml:"lens_flare"`
}

type Shadow struct {
	Enabled    bool `toml:"enabled"`
	Resolution int  `toml:"resolution"`
}

type SSAO struct {
	Enabled   bool    `toml:"enabled"`
	Samples   int     `toml:"samples"`
	NoiseSize int     `toml:"noise_size"`
	Radius    float32 `toml:"radius"`
	Bias      float32 `toml:"bias"`
	Intensity float32 `toml:"intensity"`
	Seed      uint64  `toml:"seed"`
}

type Reflection struct {
	Enabled bool    `toml:"enabled"`
	Scale   float32 `toml:"scale"`
}

type Bloom struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float32 `toml:"threshold"`
	Intensity float32 `toml:"intensity"`
}

type Godray struct {
	Enabled  bool    `toml:"enabled"`
	Density  float32 `toml:"density"`
	Weight   float32 `toml:"weight"`
	Decay    float32 `toml:"decay"`
	Exposure float32 `toml:"exposure"`
}

type DOF struct {
	Enabled       bool    `toml:"enabled"`
	FocusDistance float32 `toml:"focus_distance"`
	FocusRange    float32 `toml:"focus_range"`
	MaxRadius     float32 `toml:"max_radius"`
}

type LensFlare struct {
	Enabled   bool    `toml:"enabled"`
	Ghosts    int     `toml:"ghosts"`
	Dispersal float32 `toml:"dispersal"`
	HaloWidth float32 `toml:"halo_width"`
	Intensity float32 `toml:"intensity"`
}

// Shaders points the render context at shader sources on disk.
type Shaders struct {
	// Dir replaces the embedded sources when set.
	Dir string `toml:"dir"`

	// HotReload reloads programs whose sources under Dir change.
	HotReload bool `toml:"hot_reload"`
}

// Default returns the configuration used for every key a file leaves out.
//
// Returns:
//   - *Config: a valid configuration
func Default() *Config {
	s := renderer.DefaultSettings()
	return &Config{
		Window: Window{
			Title:       "oxy-render",
			Width:       1280,
			Height:      720,
			PresentMode: "fifo",
		},
		Renderer: Renderer{
			Backend:    device.BackendTypeWGPU.String(),
			Strategy:   renderer.StrategyDeferred.String(),
			Exposure:   s.Exposure,
			Gamma:      s.Gamma,
			Culling:    s.Culling,
			Shadow:     Shadow(s.Shadow),
			SSAO:       SSAO(s.SSAO),
			Reflection: Reflection(s.Reflection),
			Bloom:      Bloom(s.Bloom),
			Godray:     Godray(s.Godray),
			DOF:        DOF(s.DOF),
			LensFlare:  LensFlare(s.LensFlare),
		},
	}
}

// Load reads and validates the configuration file at path.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - *Config: the configuration, defaults filled in
//   - error: a *diag.ConfigurationError when the file cannot be read, decoded or validated
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.NewConfigurationError("config.Load", "%v", err)
	}
	return Parse(data)
}

// Parse decodes a TOML document over Default and validates the result.
// Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - *Config: the configuration
//   - error: a *diag.ConfigurationError describing the first problem found
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var decErr *toml.DecodeError
		if errors.As(err, &decErr) {
			row, col := decErr.Position()
			return nil, diag.NewConfigurationError("config.Parse", "line %d column %d: %v", row, col, decErr)
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, diag.NewConfigurationError("config.Parse", "unknown keys: %s", strictErr.String())
		}
		return nil, diag.NewConfigurationError("config.Parse", "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
//
// Returns:
//   - error: a *diag.ConfigurationError naming the offending key, or nil
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return diag.NewConfigurationError("config.Validate", key+": "+format, args...)
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window", "size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if _, ok := parsePresentMode(c.Window.PresentMode); !ok {
		return invalid("window.present_mode", "unknown mode %q", c.Window.PresentMode)
	}

	r := &c.Renderer
	if _, ok := device.ParseBackendType(r.Backend); !ok {
		return invalid("renderer.backend", "unknown backend %q", r.Backend)
	}
	if _, ok := renderer.ParseStrategy(r.Strategy); !ok {
		return invalid("renderer.strategy", "unknown strategy %q", r.Strategy)
	}
	if r.Workers < 0 {
		return invalid("renderer.workers", "%d is negative", r.Workers)
	}
	if r.Shadow.Resolution < 0 {
		return invalid("renderer.shadow.resolution", "%d is negative", r.Shadow.Resolution)
	}
	if r.SSAO.Enabled {
		if r.SSAO.Samples < 1 || r.SSAO.Samples > renderer.MaxSSAOSamples {
			return invalid("renderer.ssao.samples", "%d is outside [1, %d]", r.SSAO.Samples, renderer.MaxSSAOSamples)
		}
		if r.SSAO.NoiseSize < 1 {
			return invalid("renderer.ssao.noise_size", "%d must be positive", r.SSAO.NoiseSize)
		}
	}
	if r.Reflection.Enabled && (r.Reflection.Scale <= 0 || r.Reflection.Scale > 1) {
		return invalid("renderer.reflection.scale", "%g is outside (0, 1]", r.Reflection.Scale)
	}
	if r.LensFlare.Ghosts < 0 {
		return invalid("renderer.lens_flare.ghosts", "%d is negative", r.LensFlare.Ghosts)
	}
	if c.Shaders.HotReload && c.Shaders.Dir == "" {
		return invalid("shaders.hot_reload", "needs shaders.dir")
	}
	return nil
}

// Settings converts the renderer section to renderer settings.
func (c *Config) Settings() renderer.Settings {
	r := c.Renderer
	return renderer.Settings{
		Shadow:     renderer.ShadowSettings(r.Shadow),
		SSAO:       renderer.SSAOSettings(r.SSAO),
		Reflection: renderer.ReflectionSettings(r.Reflection),
		Bloom:      renderer.BloomSettings(r.Bloom),
		Godray:     renderer.GodraySettings(r.Godray),
		DOF:        renderer.DOFSettings(r.DOF),
		LensFlare:  renderer.LensFlareSettings(r.LensFlare),
		Exposure:   r.Exposure,
		Gamma:      r.Gamma,
		Culling:    r.Culling,
	}
}

// Backend returns the configured device backend.
func (c *Config) Backend() device.BackendType {
	b, _ := device.ParseBackendType(c.Renderer.Backend)
	return b
}

// Strategy returns the configured render strategy.
func (c *Config) Strategy() renderer.Strategy {
	s, _ := renderer.ParseStrategy(c.Renderer.Strategy)
	return s
}

// DeviceOptions returns the device options the configuration implies. The
// caller adds the surface and the software kernels.
//
// Returns:
//   - []device.DeviceBuilderOption: the options to pass to device.New
func (c *Config) DeviceOptions() []device.DeviceBuilderOption {
	mode, _ := parsePresentMode(c.Window.PresentMode)
	opts := []device.DeviceBuilderOption{device.WithPresentMode(mode)}
	if c.Renderer.Workers > 0 {
		opts = append(opts, device.WithWorkers(c.Renderer.Workers))
	}
	return opts
}

// ContextOptions returns the render context options of the shaders section.
//
// Returns:
//   - []renderer.RenderContextBuilderOption: the options to pass to renderer.NewRenderContext
func (c *Config) ContextOptions() []renderer.RenderContextBuilderOption {
	if c.Shaders.Dir == "" {
		return nil
	}
	return []renderer.RenderContextBuilderOption{
		renderer.WithShaderDir(c.Shaders.Dir),
		renderer.WithHotReload(c.Shaders.HotReload),
	}
}

func parsePresentMode(s string) (device.PresentMode, bool) {
	switch strings.ToLower(s) {
	case "fifo", "":
		return device.PresentModeFifo, true
	case "immediate":
		return device.PresentModeImmediate, true
	default:
		return device.PresentModeFifo, false
	}
}
