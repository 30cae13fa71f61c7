package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/stretchr/testify/assert"
)

func TestRecordAveragesPasses(t *testing.T) {
	p := NewProfiler()
	p.Record("lighting", 2*time.Millisecond)
	p.Record("lighting", 4*time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, p.PassAverage("lighting"))
	assert.Zero(t, p.PassAverage("bloom"))
}

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Hour))
	assert.False(t, p.Tick())
}

func TestTickLogsAndResetsPasses(t *testing.T) {
	var buf bytes.Buffer
	diag.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { diag.SetLogger(nil) })

	p := NewProfiler(WithInterval(0))
	p.Record("ssao", time.Millisecond)
	assert.True(t, p.Tick())

	out := buf.String()
	assert.Contains(t, out, "frame stats")
	assert.Contains(t, out, "pass=ssao")
	assert.Equal(t, 1, strings.Count(out, "pass stats"))
	assert.Zero(t, p.PassAverage("ssao"), "a report starts a new window")
}
