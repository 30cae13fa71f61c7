package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
)

// wgslPrimitiveLayoutMap maps canonical WGSL scalar, vector and matrix type names
// to their byte size and alignment per the WGSL specification.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec3<f32>": {12, 16},
	"vec4<f32>": {16, 16},
	"vec2<i32>": {8, 8},
	"vec3<i32>": {12, 16},
	"vec4<i32>": {16, 16},
	"vec2<u32>": {8, 8},
	"vec3<u32>": {12, 16},
	"vec4<u32>": {16, 16},

	// matCxR<f32>: C columns of vecR<f32>, stride = roundUp(align(vecR), size(vecR))
	"mat2x2<f32>": {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

// wgslAliasMap maps the predeclared shorthand aliases to canonical type names
var wgslAliasMap = map[string]string{
	"vec2f":   "vec2<f32>",
	"vec3f":   "vec3<f32>",
	"vec4f":   "vec4<f32>",
	"vec2i":   "vec2<i32>",
	"vec3i":   "vec3<i32>",
	"vec4i":   "vec4<i32>",
	"vec2u":   "vec2<u32>",
	"vec3u":   "vec3<u32>",
	"vec4u":   "vec4<u32>",
	"mat2x2f": "mat2x2<f32>",
	"mat3x3f": "mat3x3<f32>",
	"mat4x4f": "mat4x4<f32>",
}

// wgslUniformTypeMap maps canonical type names to the setter type they accept
var wgslUniformTypeMap = map[string]device.UniformType{
	"f32":         device.UniformFloat,
	"i32":         device.UniformInt,
	"u32":         device.UniformUint,
	"vec2<f32>":   device.UniformVec2,
	"vec3<f32>":   device.UniformVec3,
	"vec4<f32>":   device.UniformVec4,
	"vec2<i32>":   device.UniformIVec2,
	"vec4<i32>":   device.UniformIVec4,
	"mat3x3<f32>": device.UniformMat3,
	"mat4x4<f32>": device.UniformMat4,
}

// meshVertexLayout is the device.Vertex layout every mesh program must read
var meshVertexLayout = []vertexAttribute{
	{location: 0, types: []string{"vec3<f32>", "vec4<f32>"}},
	{location: 1, types: []string{"vec3<f32>"}},
	{location: 2, types: []string{"vec2<f32>"}},
	{location: 3, types: []string{"vec4<f32>"}},
}

// normalizeType canonicalizes a WGSL type name: whitespace is removed and
// shorthand aliases are expanded, recursively inside template parameters.
//
// Parameters:
//   - typeName: the type as written in source, e.g. "array<vec4f, 64>"
//
// Returns:
//   - string: the canonical form, e.g. "array<vec4<f32>,64>"
func normalizeType(typeName string) string {
	t := strings.Join(strings.Fields(typeName), "")
	if alias, ok := wgslAliasMap[t]; ok {
		return alias
	}
	base, params := splitTypeParams(t)
	if params == "" {
		return t
	}
	parts := splitAtTopLevelCommas(params)
	for i, p := range parts {
		parts[i] = normalizeType(p)
	}
	return base + "<" + strings.Join(parts, ",") + ">"
}

// resolveTypeLayout resolves a canonical WGSL type name to its size and alignment using
// primitives and previously-computed struct layouts. Handles fixed-size arrays
// (array<T, N>) and returns false for runtime-sized arrays or unknown types.
//
// Parameters:
//   - typeName: the canonical type name to resolve
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: true if the type could be resolved
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elem, count, ok := parseArrayType(typeName)
	if !ok || count == 0 {
		return wgslTypeLayout{}, false
	}
	elemLayout, ok := resolveTypeLayout(elem, knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := common.AlignUp(elemLayout.align, elemLayout.size)
	return wgslTypeLayout{uint64(count) * stride, elemLayout.align}, true
}

// parseArrayType splits "array<T,N>" into T and N. Runtime-sized arrays return a count of 0.
//
// Parameters:
//   - typeName: the canonical type name
//
// Returns:
//   - string: the element type
//   - int: the element count, or 0 for a runtime-sized array
//   - bool: false if typeName is not an array
func parseArrayType(typeName string) (string, int, bool) {
	base, params := splitTypeParams(typeName)
	if base != "array" || params == "" {
		return "", 0, false
	}
	parts := splitAtTopLevelCommas(params)
	elem := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return elem, 0, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || n < 0 {
		return "", 0, false
	}
	return elem, n, true
}

// computeStructLayout computes the byte size and alignment of a single WGSL struct using
// WGSL struct layout rules: each field is placed at the next aligned offset, and the total
// size is rounded up to the struct's alignment (max alignment of all fields).
// Fields with @builtin attributes are skipped as they are not part of the buffer layout.
//
// Parameters:
//   - ps: the parsed struct whose layout to compute
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the computed layout
//   - []uint64: the byte offset of each field, in field order
//   - bool: true if all fields could be resolved
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, []uint64, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)
	offsets := make([]uint64, len(ps.fields))

	for i, field := range ps.fields {
		if field.isBuiltin {
			continue
		}

		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, nil, false
		}

		offset = common.AlignUp(fieldLayout.align, offset)
		offsets[i] = offset
		offset += fieldLayout.size

		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}
	}

	size := common.AlignUp(maxAlign, offset)
	return wgslTypeLayout{size, maxAlign}, offsets, true
}

// computeStructSizes computes the byte size and alignment of all parsed WGSL structs.
// It resolves dependencies between structs iteratively, handling cases where one struct
// contains fields typed as another struct.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]wgslTypeLayout: a map from struct name to computed layout
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := make([]parsedStruct, len(structs))
	copy(remaining, structs)

	for {
		progress := false
		next := remaining[:0]

		for _, ps := range remaining {
			if layout, _, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
				progress = true
			} else {
				next = append(next, ps)
			}
		}

		remaining = next
		if !progress || len(remaining) == 0 {
			break
		}
	}

	return resolved
}

// classifyResource maps a handle-typed declaration to its resource kind.
//
// Parameters:
//   - typeName: the canonical WGSL type of the binding
//
// Returns:
//   - device.ResourceKind: the resource kind
//   - error: an error for storage textures, arrays, cubes and other unsupported handles
func classifyResource(typeName string) (device.ResourceKind, error) {
	base, params := splitTypeParams(typeName)
	switch base {
	case "texture_2d":
		if params != "f32" {
			return 0, fmt.Errorf("sampled texture type %q is not supported", typeName)
		}
		return device.ResourceTexture, nil
	case "texture_depth_2d":
		return device.ResourceDepthTexture, nil
	case "sampler":
		return device.ResourceSampler, nil
	case "sampler_comparison":
		return device.ResourceComparisonSampler, nil
	default:
		return 0, fmt.Errorf("resource type %q is not supported", typeName)
	}
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "texture_depth_2d" (no params) returns ("texture_depth_2d", "").
//
// Parameters:
//   - typeName: the WGSL type string to split
//
// Returns:
//   - base: the type name before the first angle bracket
//   - params: the content between the outer angle brackets, or empty if none
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	base = strings.TrimSpace(before)
	params = strings.TrimSuffix(strings.TrimSpace(after), ">")
	params = strings.TrimSpace(params)
	return base, params
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested per the WGSL specification.
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source so they
// do not interfere with struct and field parsing
func stripLineComments(source string) string {
	var sb strings.Builder
	lines := strings.SplitSeq(source, "\n")
	for line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments per the WGSL specification
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// isVertexInputStruct returns true if the struct is a pure vertex input, meaning
// it has at least one @location field and zero @builtin fields. This distinguishes
// vertex input structs from vertex output structs which mix @location with @builtin(position).
//
// Parameters:
//   - ps: the parsed struct to check
//
// Returns:
//   - bool: true if this is a vertex input struct
func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// checkMeshVertexInputs verifies that vertex inputs read locations of the shared
// mesh vertex layout with compatible types.
//
// Parameters:
//   - inputs: the @location inputs of the vertex entry point
//
// Returns:
//   - error: an error naming the first incompatible input
func checkMeshVertexInputs(inputs []parsedField) error {
	for _, in := range inputs {
		if in.location < 0 || in.location >= len(meshVertexLayout) {
			return fmt.Errorf("vertex input %q uses @location(%d), the mesh layout has locations 0-%d", in.name, in.location, len(meshVertexLayout)-1)
		}
		attr := meshVertexLayout[in.location]
		compatible := false
		for _, t := range attr.types {
			if t == in.typeName {
				compatible = true
				break
			}
		}
		if !compatible {
			return fmt.Errorf("vertex input %q at @location(%d) has type %s, want %s", in.name, in.location, in.typeName, strings.Join(attr.types, " or "))
		}
	}
	return nil
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets
// or parentheses. This correctly handles WGSL types like array<FrustumPlane, 6> and
// attributes like @interpolate(flat, center).
//
// Parameters:
//   - s: the string to split
//
// Returns:
//   - []string: substrings between top-level commas
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
