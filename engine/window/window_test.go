package window

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCursorToNDC(t *testing.T) {
	tests := []struct {
		name          string
		x, y          float64
		width, height int
		want          mgl32.Vec2
	}{
		{"top left pixel", 0, 0, 4, 2, mgl32.Vec2{-0.75, 0.5}},
		{"bottom right pixel", 3, 1, 4, 2, mgl32.Vec2{0.75, -0.5}},
		{"zero size", 10, 10, 0, 0, mgl32.Vec2{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cursorToNDC(tt.x, tt.y, tt.width, tt.height)
			assert.InDelta(t, tt.want.X(), got.X(), 1e-6)
			assert.InDelta(t, tt.want.Y(), got.Y(), 1e-6)
		})
	}
}

func TestSizeLimitsClamp(t *testing.T) {
	tests := []struct {
		name          string
		limits        sizeLimits
		width, height int
		wantW, wantH  int
	}{
		{"inside", sizeLimits{minWidth: 320, minHeight: 200}, 800, 600, 800, 600},
		{"below minimum", sizeLimits{minWidth: 320, minHeight: 200}, 100, 50, 320, 200},
		{"unbounded maximum", sizeLimits{}, 7680, 4320, 7680, 4320},
		{"above maximum", sizeLimits{maxWidth: 1600, maxHeight: 1200}, 1920, 1080, 1600, 1080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.limits.clamp(tt.width, tt.height)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{}
	for _, opt := range []WindowBuilderOption{
		WithTitle("viewer"),
		WithSize(640, 480),
		WithSizeLimits(-1, 100, 1920, 0),
		WithResizable(false),
		WithEscapeCloses(false),
	} {
		opt(w)
	}
	assert.Equal(t, "viewer", w.title)
	assert.Equal(t, 640, w.width)
	assert.Equal(t, 480, w.height)
	assert.Equal(t, sizeLimits{minHeight: 100, maxWidth: 1920}, w.limits)
	assert.False(t, w.resizable)
	assert.False(t, w.escapeCloses)
}

func TestUnopenedWindowIsNotRunning(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
}
