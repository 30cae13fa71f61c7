package shader

import (
	"fmt"
	"io/fs"
	"path"
)

// SourceLoader resolves a path-like key to WGSL source text.
type SourceLoader interface {
	// Load returns the source stored under p.
	//
	// Parameters:
	//   - p: a slash-separated source path, e.g. "deferred/lighting.frag.wgsl"
	//
	// Returns:
	//   - string: the source text
	//   - error: an error if the source does not exist or cannot be read
	Load(p string) (string, error)
}

// FSLoader loads sources from an fs.FS, either the embedded built-in programs
// or an os.DirFS rooted at a shader directory for live editing.
type FSLoader struct {
	FS fs.FS
}

var _ SourceLoader = FSLoader{}

// NewFSLoader creates a loader over fsys.
func NewFSLoader(fsys fs.FS) FSLoader {
	return FSLoader{FS: fsys}
}

func (l FSLoader) Load(p string) (string, error) {
	if l.FS == nil {
		return "", fmt.Errorf("load %q: no file system", p)
	}
	clean := path.Clean(p)
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("load %q: invalid path", p)
	}
	data, err := fs.ReadFile(l.FS, clean)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MapLoader serves sources from memory. Missing keys fail with fs.ErrNotExist.
type MapLoader map[string]string

var _ SourceLoader = MapLoader{}

func (m MapLoader) Load(p string) (string, error) {
	src, ok := m[p]
	if !ok {
		return "", fmt.Errorf("load %q: %w", p, fs.ErrNotExist)
	}
	return src, nil
}
