package shader

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
)

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)

	// attributeRegex matches any attribute with optional arguments
	attributeRegex = regexp.MustCompile(`@\w+(?:\([^)]*\))?\s*`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?s)(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexSignatureRegex captures the name, parameter list and return type of the @vertex entry point
	vertexSignatureRegex = regexp.MustCompile(`@vertex\s+fn\s+(\w+)\s*\(((?:[^()]|\([^()]*\))*)\)\s*(?:->\s*([^{]*?))?\s*\{`)

	// fragmentSignatureRegex captures the name, parameter list and return type of the @fragment entry point
	fragmentSignatureRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)\s*\(((?:[^()]|\([^()]*\))*)\)\s*(?:->\s*([^{]*?))?\s*\{`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> camera: CameraUniform;
	// or handle types: @group(2) @binding(0) var diffuseTexture: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// stageInfo is the parsed interface of one stage source
type stageInfo struct {
	structs map[string]parsedStruct
	sizes   map[string]wgslTypeLayout
	vars    []parsedVar
	entry   parsedEntry
}

// Introspect derives the program layout from the processed vertex and fragment
// sources. The vertex source must already contain any geometry library code.
// It records uniform blocks with their fields, textures and samplers, whether
// the vertex stage reads mesh vertices, and the number of fragment color outputs.
// Every fragment @location input must be written by the vertex stage.
//
// Parameters:
//   - vertex: the vertex stage source
//   - fragment: the fragment stage source
//
// Returns:
//   - device.ProgramLayout: the introspected layout
//   - error: the first interface mismatch found, used as the link log
func Introspect(vertex, fragment string) (device.ProgramLayout, error) {
	var layout device.ProgramLayout

	vs, err := parseStage(vertex, device.StageVertex)
	if err != nil {
		return layout, err
	}
	fs, err := parseStage(fragment, device.StageFragment)
	if err != nil {
		return layout, err
	}

	if err := collectBindings(&layout, vs, fs); err != nil {
		return layout, err
	}

	vsInputs, err := flattenLocations(vs.entry.params, vs.structs)
	if err != nil {
		return layout, fmt.Errorf("vertex entry %s: %w", vs.entry.name, err)
	}
	if err := checkMeshVertexInputs(vsInputs); err != nil {
		return layout, fmt.Errorf("vertex entry %s: %w", vs.entry.name, err)
	}
	layout.VertexInput = len(vsInputs) > 0

	vsOutputs, err := entryOutputs(vs.entry, vs.structs)
	if err != nil {
		return layout, fmt.Errorf("vertex entry %s: %w", vs.entry.name, err)
	}
	fsInputs, err := flattenLocations(fs.entry.params, fs.structs)
	if err != nil {
		return layout, fmt.Errorf("fragment entry %s: %w", fs.entry.name, err)
	}
	if err := checkStageLink(vsOutputs, fsInputs); err != nil {
		return layout, err
	}

	fsOutputs, err := entryOutputs(fs.entry, fs.structs)
	if err != nil {
		return layout, fmt.Errorf("fragment entry %s: %w", fs.entry.name, err)
	}
	for _, out := range fsOutputs {
		if out.location >= device.MaxColorTargets {
			return layout, fmt.Errorf("fragment output %q uses @location(%d), the limit is %d targets", out.name, out.location, device.MaxColorTargets)
		}
		if out.location+1 > layout.ColorTargets {
			layout.ColorTargets = out.location + 1
		}
	}
	return layout, nil
}

// parseStage extracts structs, module-scope bindings and the entry point of one stage.
func parseStage(source string, stage device.Stage) (*stageInfo, error) {
	cleaned := stripComments(source)

	structs := parseStructBlocks(cleaned)
	info := &stageInfo{
		structs: make(map[string]parsedStruct, len(structs)),
		sizes:   computeStructSizes(structs),
	}
	for _, ps := range structs {
		info.structs[ps.name] = ps
	}

	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		info.vars = append(info.vars, parsedVar{
			group:        group,
			binding:      binding,
			addressSpace: strings.Join(strings.Fields(m[3]), ""),
			name:         strings.TrimSpace(m[4]),
			typeName:     normalizeType(m[5]),
		})
	}

	entry, ok := parseEntry(cleaned, stage)
	if !ok {
		return nil, fmt.Errorf("no %s entry point", stage)
	}
	info.entry = entry
	return info, nil
}

// parseEntry parses the signature of the entry point of the given stage.
//
// Parameters:
//   - source: comment-free WGSL source
//   - stage: device.StageVertex or device.StageFragment
//
// Returns:
//   - parsedEntry: the entry signature
//   - bool: false if the stage declares no entry point
func parseEntry(source string, stage device.Stage) (parsedEntry, bool) {
	re := vertexSignatureRegex
	if stage == device.StageFragment {
		re = fragmentSignatureRegex
	}
	m := re.FindStringSubmatch(source)
	if m == nil {
		return parsedEntry{}, false
	}

	e := parsedEntry{name: m[1], params: parseStructFields(m[2]), returnLocation: -1}
	ret := strings.TrimSpace(m[3])
	if ret != "" {
		if lm := locationRegex.FindStringSubmatch(ret); lm != nil {
			e.returnLocation, _ = strconv.Atoi(lm[1])
		}
		if builtinRegex.MatchString(ret) {
			e.returnLocation = -2
		}
		e.returnType = normalizeType(attributeRegex.ReplaceAllString(ret, ""))
	}
	return e, true
}

// parseStructBlocks finds every struct declaration in the source
//
// Parameters:
//   - source: comment-free WGSL source
//
// Returns:
//   - []parsedStruct: all struct blocks in declaration order
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses a struct body or parameter list into individual fields,
// extracting @location and @builtin attributes along with the field name and type
//
// Parameters:
//   - body: the content between { and } of a struct declaration, or between ( and ) of a signature
//
// Returns:
//   - []parsedField: all fields found
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = normalizeType(fm[2])

		fields = append(fields, field)
	}

	return fields
}

// flattenLocations expands entry parameters into their @location inputs. Struct
// parameters contribute their @location fields. Builtins are dropped.
func flattenLocations(params []parsedField, structs map[string]parsedStruct) ([]parsedField, error) {
	var out []parsedField
	for _, p := range params {
		switch {
		case p.isBuiltin:
		case p.location >= 0:
			out = append(out, p)
		default:
			ps, ok := structs[p.typeName]
			if !ok {
				return nil, fmt.Errorf("parameter %q has no @location or @builtin and type %s is not a struct", p.name, p.typeName)
			}
			for _, f := range ps.fields {
				if f.location >= 0 && !f.isBuiltin {
					out = append(out, f)
				}
			}
		}
	}
	return out, nil
}

// entryOutputs returns the @location outputs of an entry point.
func entryOutputs(e parsedEntry, structs map[string]parsedStruct) ([]parsedField, error) {
	switch {
	case e.returnType == "" || e.returnLocation == -2:
		return nil, nil
	case e.returnLocation >= 0:
		return []parsedField{{name: "return", typeName: e.returnType, location: e.returnLocation}}, nil
	}
	ps, ok := structs[e.returnType]
	if !ok {
		return nil, fmt.Errorf("return type %s is not a struct and has no @location", e.returnType)
	}
	return flattenLocations([]parsedField{{name: "return", typeName: ps.name, location: -1}}, structs)
}

// checkStageLink verifies that every fragment input is written by the vertex stage with the same type.
func checkStageLink(vsOutputs, fsInputs []parsedField) error {
	written := make(map[int]parsedField, len(vsOutputs))
	for _, o := range vsOutputs {
		written[o.location] = o
	}
	for _, in := range fsInputs {
		o, ok := written[in.location]
		if !ok {
			return fmt.Errorf("fragment input %q reads @location(%d), which the vertex stage does not write", in.name, in.location)
		}
		if o.typeName != in.typeName {
			return fmt.Errorf("fragment input %q at @location(%d) has type %s, the vertex stage writes %s", in.name, in.location, in.typeName, o.typeName)
		}
	}
	return nil
}

// collectBindings merges the module-scope bindings of both stages into layout.
// A binding declared in both stages must agree on name and type.
func collectBindings(layout *device.ProgramLayout, stages ...*stageInfo) error {
	type slot struct{ group, binding int }
	type decl struct {
		v  parsedVar
		st *stageInfo
	}
	seen := make(map[slot]decl)
	byName := make(map[string]slot)
	uniformBlock := make(map[string]string)

	for _, st := range stages {
		for _, v := range st.vars {
			key := slot{v.group, v.binding}
			if prev, ok := seen[key]; ok {
				if prev.v.name != v.name || prev.v.typeName != v.typeName || prev.v.addressSpace != v.addressSpace {
					return fmt.Errorf("@group(%d) @binding(%d) declared as %q and %q", v.group, v.binding, prev.v.name, v.name)
				}
				if !slices.Equal(prev.st.structs[v.typeName].fields, st.structs[v.typeName].fields) {
					return fmt.Errorf("binding %q: stages declare different %s structs", v.name, v.typeName)
				}
				continue
			}
			if other, ok := byName[v.name]; ok {
				return fmt.Errorf("binding %q declared at @group(%d) @binding(%d) and @group(%d) @binding(%d)", v.name, other.group, other.binding, v.group, v.binding)
			}
			seen[key] = decl{v, st}
			byName[v.name] = key

			switch v.addressSpace {
			case "uniform":
				if err := addUniformBlock(layout, st, v, uniformBlock); err != nil {
					return err
				}
			case "":
				kind, err := classifyResource(v.typeName)
				if err != nil {
					return fmt.Errorf("binding %q: %w", v.name, err)
				}
				layout.Resources = append(layout.Resources, device.ResourceBinding{
					Name:    v.name,
					Group:   v.group,
					Binding: v.binding,
					Kind:    kind,
				})
			default:
				return fmt.Errorf("binding %q: address space %q is not supported", v.name, v.addressSpace)
			}
		}
	}

	sort.Slice(layout.Blocks, func(i, j int) bool {
		a, b := layout.Blocks[i], layout.Blocks[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Binding < b.Binding
	})
	sort.Slice(layout.Resources, func(i, j int) bool {
		a, b := layout.Resources[i], layout.Resources[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Binding < b.Binding
	})
	return nil
}

// addUniformBlock records a var<uniform> block and its settable fields. A block of a
// struct type exposes one uniform per field. A block of a plain type exposes itself.
func addUniformBlock(layout *device.ProgramLayout, st *stageInfo, v parsedVar, owners map[string]string) error {
	blockLayout, ok := resolveTypeLayout(v.typeName, st.sizes)
	if !ok {
		return fmt.Errorf("uniform block %q: cannot resolve type %s", v.name, v.typeName)
	}
	layout.Blocks = append(layout.Blocks, device.BlockLayout{
		Name:    v.name,
		Group:   v.group,
		Binding: v.binding,
		Size:    common.AlignUp(16, blockLayout.size),
	})

	var fields []parsedField
	var offsets []uint64
	if ps, ok := st.structs[v.typeName]; ok {
		_, offsets, _ = computeStructLayout(ps, st.sizes)
		fields = ps.fields
	} else {
		fields = []parsedField{{name: v.name, typeName: v.typeName, location: -1}}
		offsets = []uint64{0}
	}

	for i, f := range fields {
		u, ok := uniformField(f.typeName)
		if !ok {
			continue
		}
		if owner, dup := owners[f.name]; dup {
			return fmt.Errorf("uniform %q declared in blocks %q and %q", f.name, owner, v.name)
		}
		owners[f.name] = v.name
		u.Name = f.name
		u.Block = v.name
		u.Offset = offsets[i]
		layout.Uniforms = append(layout.Uniforms, u)
	}
	return nil
}

// uniformField classifies a settable field type. Arrays are settable when their
// element is vec4<f32> or mat4x4<f32>.
func uniformField(typeName string) (device.UniformField, bool) {
	if t, ok := wgslUniformTypeMap[typeName]; ok {
		return device.UniformField{Type: t}, true
	}
	elem, n, ok := parseArrayType(typeName)
	if !ok || n == 0 {
		return device.UniformField{}, false
	}
	switch elem {
	case "vec4<f32>":
		return device.UniformField{Type: device.UniformVec4, ArrayLen: n, Stride: 16}, true
	case "mat4x4<f32>":
		return device.UniformField{Type: device.UniformMat4, ArrayLen: n, Stride: 64}, true
	}
	return device.UniformField{}, false
}
