package renderer

import "github.com/Carmen-Shannon/oxy-render/engine/renderer/programs"

// RenderContextBuilderOption is a functional option applied to a render context during
// construction via NewRenderContext.
type RenderContextBuilderOption func(*renderContext)

// WithLibrary uses an already loaded shader library instead of loading the
// built-in one. The context does not free it.
//
// Parameters:
//   - lib: the loaded library
//
// Returns:
//   - RenderContextBuilderOption: a function that applies the library option to a render context
func WithLibrary(lib programs.Library) RenderContextBuilderOption {
	return func(c *renderContext) {
		c.lib = lib
	}
}

// WithShaderDir loads the shader library from a directory on disk instead of
// the embedded sources. The directory must mirror the embedded layout.
//
// Parameters:
//   - dir: the shader directory
//
// Returns:
//   - RenderContextBuilderOption: a function that applies the shader directory option to a render context
func WithShaderDir(dir string) RenderContextBuilderOption {
	return func(c *renderContext) {
		c.shaderDir = dir
	}
}

// WithHotReload watches the shader directory and reloads changed programs at
// the start of each frame. It has no effect without WithShaderDir.
func WithHotReload(enabled bool) RenderContextBuilderOption {
	return func(c *renderContext) {
		c.hotReload = enabled
	}
}
