package framebuffer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/device"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, opts ...device.DeviceBuilderOption) device.Device {
	t.Helper()
	d, err := device.New(device.BackendTypeSoftware, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func TestInitAndResizeKeepRoles(t *testing.T) {
	fb := NewFrameBuffer(newDevice(t), WithLabel("render"), WithSize(800, 600))
	require.NoError(t, fb.AddColorAttachment(RoleRenderColor))
	require.NoError(t, fb.AddDepthAttachment(RoleRenderDepth))
	require.NoError(t, fb.Init())

	for _, role := range []Role{RoleRenderColor, RoleRenderDepth} {
		tex := fb.Texture(role)
		require.NotNil(t, tex, role.String())
		assert.Equal(t, 800, tex.Width())
		assert.Equal(t, 600, tex.Height())
	}
	assert.Nil(t, fb.Texture(RoleSSAO))

	require.NoError(t, fb.Resize(400, 300))
	for _, role := range []Role{RoleRenderColor, RoleRenderDepth} {
		tex := fb.Texture(role)
		require.NotNil(t, tex, role.String())
		assert.Equal(t, 400, tex.Width())
		assert.Equal(t, 300, tex.Height())
	}
	roles := []Role{}
	for _, a := range fb.Attachments() {
		roles = append(roles, a.Role)
	}
	assert.Equal(t, []Role{RoleRenderColor, RoleRenderDepth}, roles)
}

func TestAttachmentDeclarationRules(t *testing.T) {
	fb := NewFrameBuffer(newDevice(t), WithLabel("gbuffer"), WithSize(4, 4))
	require.NoError(t, fb.AddColorAttachment(RoleDeferredAlbedo))

	var ce *diag.ConfigurationError
	require.ErrorAs(t, fb.AddFloatColorAttachment(RoleDeferredAlbedo), &ce)
	require.NoError(t, fb.AddDepthAttachment(RoleDeferredDepth))
	require.ErrorAs(t, fb.AddDepthAttachment(RoleRenderDepth), &ce)
	require.ErrorAs(t, fb.AddColorAttachment(Role(99)), &ce)

	require.NoError(t, fb.Init())
	err := fb.AddColorAttachment(RoleDeferredNormal)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "already initialized")
	require.ErrorAs(t, fb.Init(), &ce)
}

func TestInitWithoutAttachmentsFails(t *testing.T) {
	var ce *diag.ConfigurationError
	assert.ErrorAs(t, NewFrameBuffer(newDevice(t)).Init(), &ce)
}

func TestInitFailureLeavesTargetUnusable(t *testing.T) {
	boom := errors.New("vram exhausted")
	dev := newDevice(t, device.WithAllocationFault(func(desc device.TextureDescriptor) error {
		if desc.Format == device.TextureFormatDepth32Float {
			return boom
		}
		return nil
	}))
	fb := NewFrameBuffer(dev, WithLabel("ssao"), WithSize(8, 8))
	require.NoError(t, fb.AddColorAttachment(RoleSSAO))
	require.NoError(t, fb.AddDepthAttachment(RoleDeferredDepth))

	err := fb.Init()
	var gre *diag.GPUResourceError
	require.ErrorAs(t, err, &gre)
	require.ErrorIs(t, err, boom)
	assert.False(t, fb.Initialized())
	assert.Nil(t, fb.Texture(RoleSSAO))
	assert.False(t, fb.ShouldUpdate())

	var ce *diag.ConfigurationError
	assert.ErrorAs(t, fb.Bind(true), &ce)
}

func TestReadPixel(t *testing.T) {
	fb := NewFrameBuffer(newDevice(t), WithSize(4, 4), WithClearColor(mgl32.Vec4{0.25, 0.5, 1, 1}))
	require.NoError(t, fb.AddFloatColorAttachment(RoleDeferredPosition))
	require.NoError(t, fb.AddDepthAttachment(RoleDeferredDepth))
	require.NoError(t, fb.Init())
	require.NoError(t, fb.Clear())

	c, err := fb.ReadPixel(1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 1, 1}, c)

	d, err := fb.ReadPixel(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(1), d[0])

	var pre *diag.PixelReadbackError
	_, err = fb.ReadPixel(0, 0, 2)
	require.ErrorAs(t, err, &pre)
	_, err = fb.ReadPixel(4, 0, 0)
	require.ErrorAs(t, err, &pre)
}

func TestDirtyAndUpdateTracking(t *testing.T) {
	fb := NewFrameBuffer(newDevice(t), WithSize(2, 2), WithOnDemandUpdates())
	require.NoError(t, fb.AddColorAttachment(RoleFinalColor))
	require.NoError(t, fb.Init())

	assert.True(t, fb.ShouldUpdate(), "fresh targets need a first draw")
	require.NoError(t, fb.Bind(false))
	fb.Unbind()
	assert.True(t, fb.Dirty())
	fb.Stamp(7)
	assert.Equal(t, uint64(7), fb.Generation())
	assert.False(t, fb.ShouldUpdate())

	fb.MarkDirty()
	assert.True(t, fb.ShouldUpdate())
	require.NoError(t, fb.Clear())
	assert.False(t, fb.Dirty())
}

func TestRegistryClearAllAndFree(t *testing.T) {
	dev := newDevice(t)
	reg := NewRegistry()
	a := NewFrameBuffer(dev, WithLabel("a"), WithSize(2, 2), WithRegistry(reg), WithClearColor(mgl32.Vec4{0, 0, 0, 1}))
	b := NewFrameBuffer(dev, WithLabel("b"), WithSize(2, 2), WithRegistry(reg))
	require.NoError(t, a.AddColorAttachment(RoleLighting))
	require.NoError(t, b.AddColorAttachment(RoleBloom))
	require.NoError(t, a.Init())
	require.NoError(t, b.Init())
	reg.Register(a)
	assert.Equal(t, 2, reg.Len())

	require.NoError(t, a.Bind(false))
	require.NoError(t, dev.WriteTexture(a.Texture(RoleLighting), []mgl32.Vec4{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}}))
	a.Unbind()

	require.NoError(t, reg.ClearAll())
	assert.False(t, a.Dirty())
	c, err := a.ReadPixel(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, c)

	b.Free()
	assert.Equal(t, 1, reg.Len())

	reg.Free()
	assert.Equal(t, 0, reg.Len())
	assert.False(t, a.Initialized())
	assert.Nil(t, a.Texture(RoleLighting))
}

func TestRegistryKeepsUpToDateOnDemandTargets(t *testing.T) {
	dev := newDevice(t)
	reg := NewRegistry()
	fb := NewFrameBuffer(dev, WithSize(1, 1), WithRegistry(reg), WithOnDemandUpdates())
	require.NoError(t, fb.AddColorAttachment(RoleFinalColor))
	require.NoError(t, fb.Init())

	require.NoError(t, fb.Bind(false))
	require.NoError(t, dev.WriteTexture(fb.Texture(RoleFinalColor), []mgl32.Vec4{{1, 0, 0, 1}}))
	fb.Unbind()
	fb.Stamp(1)

	require.NoError(t, reg.ClearAll())
	assert.True(t, fb.Dirty())
	c, err := fb.ReadPixel(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, c)

	fb.MarkDirty()
	require.NoError(t, reg.ClearAll())
	assert.False(t, fb.Dirty())
}

func TestRoleNameTableIsBijective(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Roles() {
		name := RoleName(r)
		require.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true

		back, ok := RoleByName(name)
		require.True(t, ok)
		assert.Equal(t, r, back)
	}
	assert.Len(t, seen, int(roleCount))

	_, ok := RoleByName("Velocity")
	assert.False(t, ok)
	assert.Equal(t, "", RoleName(Role(-1)))
	assert.Equal(t, RoleFinalColor, Roles()[0])
	assert.Equal(t, RoleLighting, Roles()[16])
	assert.Equal(t, "Blur Scratch", RoleName(RoleBlurScratch))
}
