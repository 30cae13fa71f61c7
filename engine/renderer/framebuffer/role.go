package framebuffer

// Role is the semantic tag of an attachment. Renderers and tools fetch pass
// outputs by role instead of by attachment index.
type Role int

const (
	RoleFinalColor Role = iota
	RoleRenderColor
	RoleRenderDepth
	RoleDeferredAlbedo
	RoleDeferredPosition
	RoleDeferredNormal
	RoleDeferredMaterial
	RoleDeferredDepth
	RoleDeferredSpecular
	RoleReflection
	RoleShadow
	RoleSSAO
	RoleSSAOBlur
	RoleGodray
	RoleBloom
	RoleDOF
	RoleLighting
	RoleLensFlare
	RoleReflectionDepth
	// RoleBlurScratch tags the horizontal half of a separable blur. Renderers
	// never expose it.
	RoleBlurScratch

	roleCount
)

var roleNames = [roleCount]string{
	RoleFinalColor:       "Final Color",
	RoleRenderColor:      "Render Color",
	RoleRenderDepth:      "Render Depth",
	RoleDeferredAlbedo:   "Deferred Albedo",
	RoleDeferredPosition: "Deferred Position",
	RoleDeferredNormal:   "Deferred Normal",
	RoleDeferredMaterial: "Deferred Material",
	RoleDeferredDepth:    "Deferred Depth",
	RoleDeferredSpecular: "Deferred Specular",
	RoleReflection:       "Reflection",
	RoleShadow:           "Shadow",
	RoleSSAO:             "SSAO",
	RoleSSAOBlur:         "SSAO Blur",
	RoleGodray:           "Godray",
	RoleBloom:            "Bloom",
	RoleDOF:              "Depth Of Field",
	RoleLighting:         "Lighting",
	RoleLensFlare:        "Lens Flare",
	RoleReflectionDepth:  "Reflection Depth",
	RoleBlurScratch:      "Blur Scratch",
}

var rolesByName = func() map[string]Role {
	m := make(map[string]Role, roleCount)
	for r, n := range roleNames {
		m[n] = Role(r)
	}
	return m
}()

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r >= 0 && r < roleCount
}

func (r Role) String() string {
	if !r.Valid() {
		return "Unknown"
	}
	return roleNames[r]
}

// RoleName returns the display name of a role, or "" for an invalid role.
//
// Parameters:
//   - r: the role
//
// Returns:
//   - string: the unique name of the role
func RoleName(r Role) string {
	if !r.Valid() {
		return ""
	}
	return roleNames[r]
}

// RoleByName is the inverse of RoleName.
//
// Parameters:
//   - name: a name previously returned by RoleName
//
// Returns:
//   - Role: the role with that name
//   - bool: false if no role has that name
func RoleByName(name string) (Role, bool) {
	r, ok := rolesByName[name]
	return r, ok
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, roleCount)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}
