package main

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/editor"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const thumbnailSize = 256

// editSession wires window input to the editor tools: left click selects an
// object, dragging a handle moves the selection along the handle's axis, Tab
// cycles the previewed buffer and P writes it to a PNG.
type editSession struct {
	demo    *demo
	win     window.Window
	picker  editor.Picker
	preview editor.Preview

	selected game_object.GameObject
	dragAxis renderer.HandleAxis
	offset   mgl32.Vec3
}

// newEditSession registers the input callbacks on win. Picking is only
// available with the deferred strategy; other strategies get the preview keys.
func newEditSession(ctx renderer.RenderContext, vp renderer.Viewport, d *demo, win window.Window) *editSession {
	s := &editSession{
		demo:    d,
		win:     win,
		preview: editor.NewPreview(ctx, vp.Renderer()),
	}
	if p, err := editor.NewPicker(ctx, vp.Renderer(), editor.WithLabel("viewer")); err == nil {
		s.picker = p
		win.SetMouseButtonCallback(s.onMouseButton)
		win.SetMouseMoveCallback(s.onMouseMove)
	} else {
		diag.Logger().Info("picking disabled", slog.String("reason", err.Error()))
	}
	win.SetKeyDownCallback(s.onKeyDown)
	return s
}

func (s *editSession) onMouseButton(button window.MouseButton, pressed bool, _, _ int32) {
	if button != window.MouseButtonLeft {
		return
	}
	if !pressed {
		s.dragAxis = renderer.HandleAxisNone
		return
	}

	ndc := s.win.CursorNDC()
	hit, ok := s.picker.Pick(ndc)
	if !ok || hit.ObjectID == 0 {
		s.selectObject(nil)
		return
	}
	if hit.Axis != renderer.HandleAxisNone && s.selected != nil {
		p, ok := s.picker.DragPoint(ndc, s.selected.Position(), hit.Axis)
		if !ok {
			return
		}
		s.dragAxis = hit.Axis
		s.offset = s.selected.Position().Sub(p)
		return
	}
	if id := uint64(hit.ObjectID); !s.demo.isHandle(id) {
		s.selectObject(s.demo.scene.Get(id))
	}
}

func (s *editSession) onMouseMove(_, _ int32) {
	if s.dragAxis == renderer.HandleAxisNone || s.selected == nil {
		return
	}
	p, ok := s.picker.DragPoint(s.win.CursorNDC(), s.selected.Position(), s.dragAxis)
	if !ok {
		return
	}
	s.selected.SetPosition(p.Add(s.offset))
	s.demo.attachHandles(s.selected)
}

func (s *editSession) selectObject(obj game_object.GameObject) {
	s.selected = obj
	s.dragAxis = renderer.HandleAxisNone
	s.demo.attachHandles(obj)
	if obj != nil {
		diag.Logger().Info("selected", slog.Uint64("id", obj.ID()))
	}
}

func (s *editSession) onKeyDown(key uint32) {
	switch glfw.Key(key) {
	case glfw.KeyTab:
		names := s.preview.Names()
		if len(names) == 0 {
			return
		}
		next := names[(slices.Index(names, s.preview.Selected())+1)%len(names)]
		if err := s.preview.Select(next); err != nil {
			diag.Report(err)
			return
		}
		diag.Logger().Info("preview", slog.String("buffer", next))
	case glfw.KeyP:
		name := strings.ToLower(strings.ReplaceAll(s.preview.Selected(), " ", "_")) + ".png"
		if err := writeThumbnail(s.preview, name, thumbnailSize, thumbnailSize); err != nil {
			diag.Logger().Warn("write preview", slog.String("error", err.Error()))
			return
		}
		diag.Logger().Info("preview written", slog.String("path", name))
	}
}

func (s *editSession) free() {
	if s.picker != nil {
		s.picker.Free()
	}
}

// writeThumbnail encodes the previewed buffer scaled to width x height.
func writeThumbnail(pv editor.Preview, path string, width, height int) error {
	img, err := pv.Thumbnail(width, height)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
