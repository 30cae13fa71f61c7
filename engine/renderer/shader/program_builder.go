package shader

// ProgramBuilderOption is a functional option for configuring a Program.
type ProgramBuilderOption func(*program)

// WithLoader sets the source loader used for stage and include files.
//
// Parameters:
//   - loader: the source loader
//
// Returns:
//   - ProgramBuilderOption: a function that applies the loader to a program
func WithLoader(loader SourceLoader) ProgramBuilderOption {
	return func(p *program) {
		p.loader = loader
	}
}

// WithVertexPath overrides the vertex stage source path.
//
// Parameters:
//   - path: the loader path of the vertex stage
//
// Returns:
//   - ProgramBuilderOption: a function that applies the path to a program
func WithVertexPath(path string) ProgramBuilderOption {
	return func(p *program) {
		p.vertexPath = path
	}
}

// WithFragmentPath overrides the fragment stage source path.
//
// Parameters:
//   - path: the loader path of the fragment stage
//
// Returns:
//   - ProgramBuilderOption: a function that applies the path to a program
func WithFragmentPath(path string) ProgramBuilderOption {
	return func(p *program) {
		p.fragmentPath = path
	}
}

// WithGeometryPath sets the optional geometry library. Its functions and
// bindings are linked into the vertex stage. An empty path removes it.
//
// Parameters:
//   - path: the loader path of the geometry library
//
// Returns:
//   - ProgramBuilderOption: a function that applies the path to a program
func WithGeometryPath(path string) ProgramBuilderOption {
	return func(p *program) {
		p.geometryPath = path
	}
}
