package shader

import (
	"encoding/binary"
	"image/color"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
)

// record is one successfully linked program together with its introspected
// tables and the values set on it. A record is replaced as a whole on reload.
type record struct {
	program    device.Program
	layout     device.ProgramLayout
	uniforms   map[string]device.UniformField
	blocks     map[string]device.BlockLayout
	resources  map[string]device.ResourceBinding
	generation uint64

	mu       sync.RWMutex
	data     map[string][]byte
	buffers  map[string]device.Buffer
	textures map[string]device.Texture
}

// program is the implementation of the Program interface.
type program struct {
	dev          device.Device
	name         string
	loader       SourceLoader
	vertexPath   string
	fragmentPath string
	geometryPath string

	rec atomic.Pointer[record]

	loadMu      sync.Mutex
	generation  uint64
	lastSources []string
}

// Program is a stable handle to a linked vertex/fragment (+geometry library) program.
// Renderers hold the handle across reloads; only the record behind it changes.
// A handle without a valid record is unusable: Bind and every setter are no-ops.
type Program interface {
	device.BindingSource

	// Name returns the program name, also used as the software kernel key.
	Name() string

	// Load compiles the vertex, fragment and optional geometry stages in that
	// order, introspects the interface and links the program. On success the new
	// record replaces the current one. On failure the error is reported to the
	// diagnostic sink and any previous record stays in place.
	//
	// Returns:
	//   - error: a *diag.ShaderCompileError or *diag.ShaderLinkError
	Load() error

	// Reload re-reads every source and loads again. Missing-name warnings are re-armed.
	//
	// Returns:
	//   - error: the Load error, if any
	Reload() error

	// Free releases the current record. The handle stays usable for a later Load.
	Free()

	// Valid reports whether the program has a linked record.
	Valid() bool

	// Generation increments on every successful load.
	Generation() uint64

	// Bind makes the program current on its device.
	//
	// Returns:
	//   - bool: false when the program is invalid and nothing was bound
	Bind() bool

	// Unbind clears the device program if this program is bound.
	Unbind()

	// Layout returns the introspected layout of the current record.
	Layout() device.ProgramLayout

	// Uniform returns the table entry for name.
	Uniform(name string) (device.UniformField, bool)

	// Sources returns every source path read by the most recent load attempt,
	// including includes.
	Sources() []string

	SetFloat(name string, v float32)
	SetInt(name string, v int32)
	SetUint(name string, v uint32)
	SetVec2(name string, v mgl32.Vec2)
	SetVec3(name string, v mgl32.Vec3)
	SetVec4(name string, v mgl32.Vec4)
	SetIVec2(name string, v [2]int32)
	SetIVec4(name string, v [4]int32)
	SetMat3(name string, v mgl32.Mat3)
	SetMat4(name string, v mgl32.Mat4)

	// SetMat4Array writes up to the declared length of an array<mat4x4<f32>, N> uniform.
	SetMat4Array(name string, v []mgl32.Mat4)

	// SetVec4Array writes up to the declared length of an array<vec4<f32>, N> uniform.
	SetVec4Array(name string, v []mgl32.Vec4)

	// SetColor writes a color as a straight-alpha vec4<f32> in [0,1].
	SetColor(name string, c color.Color)

	// BindBuffer backs a uniform block with a GPU buffer instead of the values
	// set on the program. A nil buffer restores the program values.
	//
	// Parameters:
	//   - block: the uniform block variable name
	//   - buf: the buffer, at least as large as the block
	BindBuffer(block string, buf device.Buffer)

	// SetTexture binds a texture to a sampled texture binding. A nil texture unbinds it.
	//
	// Parameters:
	//   - name: the texture variable name
	//   - tex: the texture
	SetTexture(name string, tex device.Texture)
}

var _ Program = &program{}

// NewProgram creates an unloaded program handle. Stage paths default to
// "<name>.vert.wgsl" and "<name>.frag.wgsl" with no geometry library.
//
// Parameters:
//   - dev: the device the program compiles and binds on
//   - name: the program name
//   - opts: optional configuration
//
// Returns:
//   - Program: the handle, not yet loaded
func NewProgram(dev device.Device, name string, opts ...ProgramBuilderOption) Program {
	p := &program{
		dev:          dev,
		name:         name,
		loader:       FSLoader{},
		vertexPath:   name + ".vert.wgsl",
		fragmentPath: name + ".frag.wgsl",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Load() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	rec, err := p.build()
	if err != nil {
		diag.Report(err)
		return err
	}

	p.generation++
	rec.generation = p.generation
	old := p.rec.Swap(rec)
	if old != nil {
		if p.dev.Program() == old.program {
			p.dev.UseProgram(rec.program, p)
		}
		old.program.Release()
	}
	diag.Logger().Debug("program loaded", "program", p.name, "generation", rec.generation,
		"blocks", len(rec.layout.Blocks), "uniforms", len(rec.layout.Uniforms))
	return nil
}

func (p *program) Reload() error {
	diag.ResetOnce(p.name + "/")
	return p.Load()
}

func (p *program) Free() {
	old := p.rec.Swap(nil)
	if old == nil {
		return
	}
	if p.dev.Program() == old.program {
		p.dev.UseProgram(nil, nil)
	}
	old.program.Release()
}

func (p *program) Valid() bool {
	return p.rec.Load() != nil
}

func (p *program) Generation() uint64 {
	if rec := p.rec.Load(); rec != nil {
		return rec.generation
	}
	return 0
}

func (p *program) Bind() bool {
	rec := p.rec.Load()
	if rec == nil {
		return false
	}
	p.dev.UseProgram(rec.program, p)
	return true
}

func (p *program) Unbind() {
	rec := p.rec.Load()
	if rec != nil && p.dev.Program() == rec.program {
		p.dev.UseProgram(nil, nil)
	}
}

func (p *program) Layout() device.ProgramLayout {
	if rec := p.rec.Load(); rec != nil {
		return rec.layout
	}
	return device.ProgramLayout{}
}

func (p *program) Uniform(name string) (device.UniformField, bool) {
	rec := p.rec.Load()
	if rec == nil {
		return device.UniformField{}, false
	}
	f, ok := rec.uniforms[name]
	return f, ok
}

func (p *program) Sources() []string {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	paths := append([]string(nil), p.lastSources...)
	for _, s := range []string{p.vertexPath, p.fragmentPath, p.geometryPath} {
		if s != "" && !slices.Contains(paths, s) {
			paths = append(paths, s)
		}
	}
	return paths
}

func (p *program) BlockData(block string) []byte {
	rec := p.rec.Load()
	if rec == nil {
		return nil
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	if rec.buffers[block] != nil {
		return nil
	}
	data, ok := rec.data[block]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

func (p *program) BlockBuffer(block string) device.Buffer {
	rec := p.rec.Load()
	if rec == nil {
		return nil
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.buffers[block]
}

func (p *program) Texture(name string) device.Texture {
	rec := p.rec.Load()
	if rec == nil {
		return nil
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.textures[name]
}

func (p *program) SetFloat(name string, v float32) {
	p.set(name, device.UniformFloat, false, floatBytes(v))
}

func (p *program) SetInt(name string, v int32) {
	p.set(name, device.UniformInt, false, uintBytes(uint32(v)))
}

func (p *program) SetUint(name string, v uint32) {
	p.set(name, device.UniformUint, false, uintBytes(v))
}

func (p *program) SetVec2(name string, v mgl32.Vec2) {
	p.set(name, device.UniformVec2, false, floatBytes(v[:]...))
}

func (p *program) SetVec3(name string, v mgl32.Vec3) {
	p.set(name, device.UniformVec3, false, floatBytes(v[:]...))
}

func (p *program) SetVec4(name string, v mgl32.Vec4) {
	p.set(name, device.UniformVec4, false, floatBytes(v[:]...))
}

func (p *program) SetIVec2(name string, v [2]int32) {
	p.set(name, device.UniformIVec2, false, uintBytes(uint32(v[0]), uint32(v[1])))
}

func (p *program) SetIVec4(name string, v [4]int32) {
	p.set(name, device.UniformIVec4, false, uintBytes(uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3])))
}

// SetMat3 pads each column to 16 bytes to match the mat3x3<f32> layout.
func (p *program) SetMat3(name string, v mgl32.Mat3) {
	p.set(name, device.UniformMat3, false, floatBytes(
		v[0], v[1], v[2], 0,
		v[3], v[4], v[5], 0,
		v[6], v[7], v[8], 0,
	))
}

func (p *program) SetMat4(name string, v mgl32.Mat4) {
	p.set(name, device.UniformMat4, false, floatBytes(v[:]...))
}

func (p *program) SetMat4Array(name string, v []mgl32.Mat4) {
	vals := make([]float32, 0, len(v)*16)
	for _, m := range v {
		vals = append(vals, m[:]...)
	}
	p.set(name, device.UniformMat4, true, floatBytes(vals...))
}

func (p *program) SetVec4Array(name string, v []mgl32.Vec4) {
	vals := make([]float32, 0, len(v)*4)
	for _, e := range v {
		vals = append(vals, e[:]...)
	}
	p.set(name, device.UniformVec4, true, floatBytes(vals...))
}

func (p *program) SetColor(name string, c color.Color) {
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	p.SetVec4(name, mgl32.Vec4{
		float32(n.R) / 0xffff,
		float32(n.G) / 0xffff,
		float32(n.B) / 0xffff,
		float32(n.A) / 0xffff,
	})
}

func (p *program) BindBuffer(block string, buf device.Buffer) {
	rec := p.rec.Load()
	if rec == nil {
		return
	}
	b, ok := rec.blocks[block]
	if !ok {
		diag.WarnOnce(p.name+"/block/"+block, &diag.MissingUniformBlockWarning{Program: p.name, Name: block})
		return
	}
	if buf != nil && buf.Size() < b.Size {
		diag.Report(diag.NewConfigurationError("BindBuffer", "buffer %q of %d bytes is smaller than block %q of program %q (%d bytes)",
			buf.Label(), buf.Size(), block, p.name, b.Size))
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if buf == nil {
		delete(rec.buffers, block)
		return
	}
	rec.buffers[block] = buf
}

func (p *program) SetTexture(name string, tex device.Texture) {
	rec := p.rec.Load()
	if rec == nil {
		return
	}
	r, ok := rec.resources[name]
	if !ok || (r.Kind != device.ResourceTexture && r.Kind != device.ResourceDepthTexture) {
		diag.WarnOnce(p.name+"/"+name, &diag.MissingUniformWarning{Program: p.name, Name: name})
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if tex == nil {
		delete(rec.textures, name)
		return
	}
	rec.textures[name] = tex
}

// set writes value bytes into the block that owns name. Array values are
// truncated to the declared length.
func (p *program) set(name string, t device.UniformType, array bool, value []byte) {
	rec := p.rec.Load()
	if rec == nil {
		return
	}
	f, ok := rec.uniforms[name]
	if !ok {
		diag.WarnOnce(p.name+"/"+name, &diag.MissingUniformWarning{Program: p.name, Name: name})
		return
	}
	if f.Type != t || (f.ArrayLen > 0) != array {
		diag.WarnOnce(p.name+"/type/"+name, diag.NewConfigurationError("SetUniform",
			"uniform %q of program %q is %s, set as %s", name, p.name, describeType(f.Type, f.ArrayLen), describeType(t, boolToLen(array))))
		return
	}

	if array {
		maxLen := uint64(f.ArrayLen) * f.Stride
		if uint64(len(value)) > maxLen {
			value = value[:maxLen]
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	data := rec.data[f.Block]
	if f.Offset+uint64(len(value)) > uint64(len(data)) {
		return
	}
	copy(data[f.Offset:], value)
}

// build compiles, introspects and links a fresh record from the current sources.
func (p *program) build() (*record, error) {
	pp := NewPreProcessor(p.loader)
	var sources []string
	defer func() { p.lastSources = sources }()

	type stage struct {
		kind device.Stage
		path string
	}
	stages := []stage{{device.StageVertex, p.vertexPath}, {device.StageFragment, p.fragmentPath}}
	if p.geometryPath != "" {
		stages = append(stages, stage{device.StageGeometry, p.geometryPath})
	}

	modules := make([]device.Module, len(stages))
	codes := make([]string, len(stages))
	defer func() {
		for _, m := range modules {
			if m != nil {
				m.Release()
			}
		}
	}()

	for i, s := range stages {
		code, files, err := pp.Process(s.path)
		sources = append(sources, files...)
		if err != nil {
			return nil, &diag.ShaderCompileError{Program: p.name, Stage: s.kind.String(), Path: s.path, Log: err.Error()}
		}
		m, err := p.dev.CompileStage(device.StageSource{Stage: s.kind, Path: s.path, Code: code})
		if err != nil {
			return nil, &diag.ShaderCompileError{Program: p.name, Stage: s.kind.String(), Path: s.path, Log: err.Error()}
		}
		modules[i] = m
		codes[i] = code
	}

	vertexCode := codes[0]
	var geometry device.Module
	if len(stages) == 3 {
		vertexCode = codes[2] + "\n" + codes[0]
		geometry = modules[2]
	}
	layout, err := Introspect(vertexCode, codes[1])
	if err != nil {
		return nil, &diag.ShaderLinkError{Program: p.name, Log: err.Error()}
	}

	linked, err := p.dev.LinkProgram(device.ProgramDescriptor{Label: p.name, Layout: layout}, modules[0], modules[1], geometry)
	if err != nil {
		return nil, &diag.ShaderLinkError{Program: p.name, Log: err.Error()}
	}

	rec := &record{
		program:   linked,
		layout:    layout,
		uniforms:  make(map[string]device.UniformField, len(layout.Uniforms)),
		blocks:    make(map[string]device.BlockLayout, len(layout.Blocks)),
		resources: make(map[string]device.ResourceBinding, len(layout.Resources)),
		data:      make(map[string][]byte, len(layout.Blocks)),
		buffers:   make(map[string]device.Buffer),
		textures:  make(map[string]device.Texture),
	}
	for _, u := range layout.Uniforms {
		rec.uniforms[u.Name] = u
	}
	for _, b := range layout.Blocks {
		rec.blocks[b.Name] = b
		rec.data[b.Name] = make([]byte, b.Size)
	}
	for _, r := range layout.Resources {
		rec.resources[r.Name] = r
	}
	return rec, nil
}

func floatBytes(v ...float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func uintBytes(v ...uint32) []byte {
	b := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(b[i*4:], u)
	}
	return b
}

func boolToLen(array bool) int {
	if array {
		return 1
	}
	return 0
}

func describeType(t device.UniformType, arrayLen int) string {
	if arrayLen > 0 {
		return "array<" + t.String() + ">"
	}
	return t.String()
}
