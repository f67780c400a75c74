// Package toolbar carries the editing session of a request and produces the
// metadata the editor front end consumes.
package toolbar

import "strings"

const (
	PermAddPlugin  = "add_plugin"
	PermEditStatic = "edit_static_placeholder"
)

// Viewer is the user a page is rendered for. A nil Viewer is anonymous.
type Viewer struct {
	Name        string
	Staff       bool
	Permissions []string
}

// Has reports whether the viewer was granted perm.
func (v *Viewer) Has(perm string) bool {
	if v == nil {
		return false
	}
	for _, p := range v.Permissions {
		if strings.EqualFold(strings.TrimSpace(p), perm) {
			return true
		}
	}
	return false
}

// IsStaff reports whether the viewer is a staff member; nil viewers are not.
func (v *Viewer) IsStaff() bool {
	return v != nil && v.Staff
}

// CanAddPlugin accepts the blanket add permission or the one scoped to pluginType.
func (v *Viewer) CanAddPlugin(pluginType string) bool {
	return v.Has(PermAddPlugin) || v.Has(PermAddPlugin+":"+pluginType)
}

// CanEditStatic reports whether the viewer may edit static placeholder drafts.
func (v *Viewer) CanEditStatic() bool {
	return v.Has(PermEditStatic)
}
