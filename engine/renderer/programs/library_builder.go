package programs

import (
	"io/fs"
	"os"
)

// LibraryBuilderOption configures a Library created by NewLibrary.
type LibraryBuilderOption func(*library)

// WithSourceFS reads program sources from fsys instead of the embedded tree.
// fsys must hold the same file names, including include/.
//
// Parameters:
//   - fsys: the source file system
//
// Returns:
//   - LibraryBuilderOption: a function that applies the source option
func WithSourceFS(fsys fs.FS) LibraryBuilderOption {
	return func(l *library) {
		if fsys != nil {
			l.src = fsys
		}
	}
}

// WithSourceDir reads program sources from a directory on disk, used for live
// shader editing together with a shader.Watcher rooted at the same directory.
func WithSourceDir(dir string) LibraryBuilderOption {
	return func(l *library) {
		if dir != "" {
			l.src = os.DirFS(dir)
		}
	}
}
