package shader

import (
	"errors"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads programs whose source files change on disk. File events are
// collected in the background; reloads run on the goroutine that calls Poll,
// which must be the goroutine that owns the device.
type Watcher struct {
	root string
	fsw  *fsnotify.Watcher

	mu       sync.Mutex
	programs []Program
	dirs     map[string]bool
	dirty    map[Program]bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher starts watching shader sources below root. Program source paths
// are interpreted relative to root, matching an FSLoader over os.DirFS(root).
//
// Parameters:
//   - root: the shader directory
//
// Returns:
//   - *Watcher: the running watcher
//   - error: an error if the file system watcher cannot be created
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:  root,
		fsw:   fsw,
		dirs:  make(map[string]bool),
		dirty: make(map[Program]bool),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch registers p. Directories holding its sources are added to the watch set.
//
// Parameters:
//   - p: the program to reload on source changes
//
// Returns:
//   - error: an error if a source directory cannot be watched
func (w *Watcher) Watch(p Program) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.programs, p) {
		w.programs = append(w.programs, p)
	}
	var errs []error
	for _, src := range p.Sources() {
		dir := filepath.Join(w.root, filepath.FromSlash(path.Dir(src)))
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		w.dirs[dir] = true
	}
	return errors.Join(errs...)
}

// MarkChanged flags every watched program that reads src for reload.
//
// Parameters:
//   - src: a source path relative to the watcher root
//
// Returns:
//   - int: the number of programs flagged
func (w *Watcher) MarkChanged(src string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, p := range w.programs {
		if slices.Contains(p.Sources(), src) {
			w.dirty[p] = true
			n++
		}
	}
	return n
}

// Poll reloads every flagged program. A failed reload keeps the previous
// record and is reported by the program.
//
// Returns:
//   - int: the number of programs reloaded successfully
func (w *Watcher) Poll() int {
	w.mu.Lock()
	var pending []Program
	for _, p := range w.programs {
		if w.dirty[p] {
			pending = append(pending, p)
		}
	}
	clear(w.dirty)
	w.mu.Unlock()

	ok := 0
	for _, p := range pending {
		if err := p.Reload(); err == nil {
			ok++
		}
	}
	// a failed load can pull in new includes, so refresh the watch set
	for _, p := range pending {
		if err := w.Watch(p); err != nil {
			diag.Logger().Warn("shader watch", "program", p.Name(), "err", err)
		}
	}
	return ok
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				continue
			}
			if n := w.MarkChanged(filepath.ToSlash(rel)); n > 0 {
				diag.Logger().Debug("shader source changed", "path", rel, "programs", n)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			diag.Logger().Warn("shader watcher", "err", err)
		}
	}
}
