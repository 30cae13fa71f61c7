package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
)

// use saves the current device state on the stack of kind and applies fn to a copy.
func (b *base) use(kind stateKind, fn func(s *device.State)) {
	cur := b.dev.State()
	b.saved[kind] = append(b.saved[kind], cur)
	fn(&cur)
	b.dev.SetState(cur)
}

// stop restores the fields of kind from the most recent use of that kind.
// Fields owned by other kinds keep their current values. A stop without a
// matching use does nothing.
func (b *base) stop(kind stateKind) {
	stack := b.saved[kind]
	n := len(stack)
	if n == 0 {
		return
	}
	prev := stack[n-1]
	b.saved[kind] = stack[:n-1]

	cur := b.dev.State()
	switch kind {
	case stateScissor:
		cur.ScissorEnabled, cur.Scissor = prev.ScissorEnabled, prev.Scissor
	case stateDepth:
		cur.DepthTest, cur.DepthWrite = prev.DepthTest, prev.DepthWrite
		cur.DepthNear, cur.DepthFar = prev.DepthNear, prev.DepthFar
	case stateCull:
		cur.Cull = prev.Cull
	case stateBlend:
		cur.Blend = prev.Blend
	case stateWireframe:
		cur.Wireframe = prev.Wireframe
	}
	b.dev.SetState(cur)
}

func (b *base) UseScissor(rect common.Rect) {
	b.use(stateScissor, func(s *device.State) {
		if s.ScissorEnabled {
			rect = rect.Intersect(s.Scissor)
		}
		s.ScissorEnabled = true
		s.Scissor = rect
	})
}

func (b *base) StopScissor() { b.stop(stateScissor) }

func (b *base) UseDepthTest(near, far float32) {
	b.use(stateDepth, func(s *device.State) {
		s.DepthTest = true
		s.DepthWrite = true
		s.DepthNear = common.Clamp(near, 0, 1)
		s.DepthFar = common.Clamp(far, 0, 1)
	})
}

func (b *base) StopDepthTest() { b.stop(stateDepth) }

func (b *base) UseCulling() {
	b.use(stateCull, func(s *device.State) { s.Cull = device.CullBack })
}

func (b *base) StopCulling() { b.stop(stateCull) }

func (b *base) UseBlending() {
	b.use(stateBlend, func(s *device.State) { s.Blend = device.BlendAlpha })
}

func (b *base) UseAdditiveBlending() {
	b.use(stateBlend, func(s *device.State) { s.Blend = device.BlendAdditive })
}

func (b *base) StopBlending() { b.stop(stateBlend) }

func (b *base) UseWireframe() {
	b.use(stateWireframe, func(s *device.State) { s.Wireframe = true })
}

func (b *base) Fill() { b.stop(stateWireframe) }
