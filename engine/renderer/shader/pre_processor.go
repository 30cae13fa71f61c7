// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations and splices shared WGSL snippets from the
// include/ directory of the source loader. Every file read while processing a
// stage is recorded so the watcher can map edited files back to programs.
package shader

import (
	"fmt"
	"slices"
	"strings"
)

// maxIncludeDepth bounds nested includes.
const maxIncludeDepth = 8

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	loader SourceLoader
}

// PreProcessor resolves @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process loads the source at p and replaces every @oxy:include line with the
	// processed source of include/<name>.wgsl. Each include is spliced at most
	// once per stage. Include cycles and unknown includes are errors.
	//
	// Parameters:
	//   - p: the loader path of the stage source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - []string: every loader path read, p first
	//   - error: a load or annotation error prefixed with the offending path
	Process(p string) (string, []string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that reads through loader.
//
// Parameters:
//   - loader: the source loader used for stage and include files
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(loader SourceLoader) PreProcessor {
	return &preProcessor{loader: loader}
}

// IncludePath returns the loader path of a named include.
func IncludePath(name string) string {
	return "include/" + name + ".wgsl"
}

func (p *preProcessor) Process(path string) (string, []string, error) {
	st := &processState{seen: make(map[string]bool)}
	out, err := p.process(path, st, nil)
	if err != nil {
		return "", st.files, err
	}
	return out, st.files, nil
}

type processState struct {
	seen  map[string]bool
	files []string
}

func (p *preProcessor) process(path string, st *processState, stack []string) (string, error) {
	if len(stack) > maxIncludeDepth {
		return "", fmt.Errorf("%s: includes nested deeper than %d", path, maxIncludeDepth)
	}

	source, err := p.loader.Load(path)
	if err != nil {
		return "", err
	}
	st.seen[path] = true
	st.files = append(st.files, path)
	stack = append(stack, path)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			inc := IncludePath(a.Arg)
			if st.seen[inc] {
				if slices.Contains(stack, inc) {
					return "", fmt.Errorf("%s: include cycle %s", path, strings.Join(append(stack, inc), " -> "))
				}
				// already spliced earlier in this stage
				out = append(out, "")
				continue
			}
			body, err := p.process(inc, st, stack)
			if err != nil {
				return "", fmt.Errorf("%s: line %d: %w", path, a.Line, err)
			}
			out = append(out, body)
		default:
			return "", fmt.Errorf("%s: line %d: unknown annotation type %q", path, a.Line, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

