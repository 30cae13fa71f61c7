// annotations.go defines the @oxy: annotation syntax understood by the pre-processor.
// Annotations are single-line WGSL comments, so annotated sources stay valid WGSL
// for editors and external validators.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude splices the source of include/<name>.wgsl at the annotation site.
	//
	// Syntax: //@oxy:include <name>
	//
	// Example: //@oxy:include camera
	AnnotationTypeInclude AnnotationType = "include"
)

// includeNameRegex restricts include names to path-safe identifiers.
var includeNameRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+(?:/[A-Za-z0-9_\-]+)*$`)

// Annotation is one parsed @oxy: comment.
type Annotation struct {
	Type AnnotationType
	Arg  string
	Line int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !includeNameRegex.MatchString(args[1]) {
			return nil, fmt.Errorf("line %d: invalid include name %q", lineNum, args[1])
		}
		return &Annotation{Type: AnnotationTypeInclude, Arg: args[1], Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
