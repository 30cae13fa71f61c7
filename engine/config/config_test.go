package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewerConfig = `
[window]
title = "viewer"
width = 800
height = 600
present_mode = "immediate"

[renderer]
backend = "software"
strategy = "forward"
workers = 3

[renderer.ssao]
samples = 8
radius = 0.75

[renderer.dof]
enabled = true
focus_distance = 4.0

[renderer.lens_flare]
enabled = true
ghosts = 6

[shaders]
dir = "shaders"
hot_reload = true
`

func TestDefaultIsValidAndMatchesRendererDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, renderer.DefaultSettings(), cfg.Settings())
	assert.Equal(t, device.BackendTypeWGPU, cfg.Backend())
	assert.Equal(t, renderer.StrategyDeferred, cfg.Strategy())
	assert.Nil(t, cfg.ContextOptions())
	assert.Len(t, cfg.DeviceOptions(), 1)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(viewerConfig))
	require.NoError(t, err)

	assert.Equal(t, "viewer", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, device.BackendTypeSoftware, cfg.Backend())
	assert.Equal(t, renderer.StrategyForward, cfg.Strategy())
	assert.Len(t, cfg.DeviceOptions(), 2)
	assert.Len(t, cfg.ContextOptions(), 2)

	s := cfg.Settings()
	def := renderer.DefaultSettings()
	assert.Equal(t, 8, s.SSAO.Samples)
	assert.Equal(t, float32(0.75), s.SSAO.Radius)
	assert.Equal(t, def.SSAO.Bias, s.SSAO.Bias, "keys left out keep their default")
	assert.True(t, s.DOF.Enabled)
	assert.Equal(t, float32(4), s.DOF.FocusDistance)
	assert.Equal(t, def.DOF.FocusRange, s.DOF.FocusRange)
	assert.Equal(t, 6, s.LensFlare.Ghosts)
	assert.Equal(t, def.Shadow, s.Shadow)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"syntax":          "[window\nwidth = 1",
		"unknown key":     "[window]\nfullscreen = true",
		"size":            "[window]\nwidth = 0",
		"present mode":    "[window]\npresent_mode = \"mailbox\"",
		"backend":         "[renderer]\nbackend = \"vulkan\"",
		"strategy":        "[renderer]\nstrategy = \"tiled\"",
		"workers":         "[renderer]\nworkers = -1",
		"ssao samples":    "[renderer.ssao]\nsamples = 64",
		"ssao noise":      "[renderer.ssao]\nnoise_size = 0",
		"reflection":      "[renderer.reflection]\nscale = 1.5",
		"shadow":          "[renderer.shadow]\nresolution = -2",
		"ghosts":          "[renderer.lens_flare]\nghosts = -1",
		"reload sans dir": "[shaders]\nhot_reload = true",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte(doc))
			assert.Nil(t, cfg)
			var cfgErr *diag.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestDisabledPassesSkipRangeChecks(t *testing.T) {
	cfg, err := Parse([]byte("[renderer.ssao]\nenabled = false\nsamples = 0\n[renderer.reflection]\nenabled = false\nscale = 0.0"))
	require.NoError(t, err)
	assert.False(t, cfg.Settings().SSAO.Enabled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.toml")
	require.NoError(t, os.WriteFile(path, []byte(viewerConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shaders", cfg.Shaders.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	var cfgErr *diag.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestShippedViewerConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "cmd", "viewer", "viewer.toml"))
	require.NoError(t, err)
	assert.Equal(t, renderer.StrategyDeferred, cfg.Strategy())
	assert.Equal(t, renderer.DefaultSettings().SSAO, cfg.Settings().SSAO)
}
