package programs

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// library is the implementation of the Library interface.
type library struct {
	dev      device.Device
	src      fs.FS
	programs map[string]shader.Program
	order    []string
}

// Library owns one shader.Program handle per built-in program. Renderers look
// programs up by name and keep the handle; reloads swap what is behind it.
type Library interface {
	// Load loads every program. A program that fails stays invalid and the
	// passes using it degrade; the others are still loaded.
	//
	// Returns:
	//   - error: the joined load errors, or nil
	Load() error

	// Program returns the handle of a built-in program.
	//
	// Parameters:
	//   - name: one of the program name constants
	//
	// Returns:
	//   - shader.Program: the handle, or nil for an unknown name
	Program(name string) shader.Program

	// Names returns the program names in load order.
	Names() []string

	// Watch registers every program with w for hot reload.
	//
	// Parameters:
	//   - w: a watcher rooted at the directory the library reads from
	//
	// Returns:
	//   - error: the joined watch errors, or nil
	Watch(w *shader.Watcher) error

	// Free releases every program record. The handles stay valid for a later Load.
	Free()
}

var _ Library = &library{}

// NewLibrary creates the handles of every built-in program on dev without loading them.
// Sources default to the embedded WGSL tree.
//
// Parameters:
//   - dev: the device the programs compile and bind on
//   - options: functional options
//
// Returns:
//   - Library: the library; call Load before rendering
func NewLibrary(dev device.Device, options ...LibraryBuilderOption) Library {
	l := &library{
		dev:      dev,
		src:      Sources(),
		programs: make(map[string]shader.Program, len(descriptors)),
	}
	for _, opt := range options {
		opt(l)
	}

	loader := shader.NewFSLoader(l.src)
	for _, s := range descriptors {
		l.programs[s.Name] = shader.NewProgram(dev, s.Name,
			shader.WithLoader(loader),
			shader.WithVertexPath(s.Vertex),
			shader.WithFragmentPath(s.Fragment),
		)
		l.order = append(l.order, s.Name)
	}
	return l
}

func (l *library) Load() error {
	var errs []error
	loaded := 0
	for _, name := range l.order {
		if err := l.programs[name].Load(); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	diag.Logger().Debug("shader library loaded",
		slog.Int("programs", loaded),
		slog.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

func (l *library) Program(name string) shader.Program {
	return l.programs[name]
}

func (l *library) Names() []string {
	return append([]string(nil), l.order...)
}

func (l *library) Watch(w *shader.Watcher) error {
	var errs []error
	for _, name := range l.order {
		if err := w.Watch(l.programs[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *library) Free() {
	for _, name := range l.order {
		l.programs[name].Free()
	}
}
