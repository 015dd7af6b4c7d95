package workspace

import (
	"encoding/json"
	"sort"
	"strings"
)

// AdminRole grants everything inside a member workspace.
const AdminRole = "Admin"

// LegacyPermissions is the flat per-account permission set that predates
// workspace-scoped roles. It is only consulted when no active workspace
// grants the action.
type LegacyPermissions struct {
	Role        string              `json:"role"`
	Permissions map[string]struct{} `json:"-"`
	IsOwner     bool                `json:"isOwner"`
}

// NewLegacyPermissions builds a legacy set from a permission list.
func NewLegacyPermissions(role string, isOwner bool, perms ...string) *LegacyPermissions {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = struct{}{}
		}
	}
	return &LegacyPermissions{Role: role, Permissions: set, IsOwner: isOwner}
}

// Has reports whether the legacy set grants action.
func (l *LegacyPermissions) Has(action string) bool {
	if l == nil {
		return false
	}
	if l.IsOwner {
		return true
	}
	_, ok := l.Permissions[action]
	return ok
}

// List returns the permission names, unordered.
func (l *LegacyPermissions) List() []string {
	if l == nil || len(l.Permissions) == 0 {
		return nil
	}
	out := make([]string, 0, len(l.Permissions))
	for p := range l.Permissions {
		out = append(out, p)
	}
	return out
}

type legacyJSON struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsOwner     bool     `json:"isOwner"`
}

// MarshalJSON encodes the permission set as a sorted list.
func (l LegacyPermissions) MarshalJSON() ([]byte, error) {
	perms := l.List()
	sort.Strings(perms)
	return json.Marshal(legacyJSON{Role: l.Role, Permissions: perms, IsOwner: l.IsOwner})
}

// UnmarshalJSON decodes the backend's list form.
func (l *LegacyPermissions) UnmarshalJSON(b []byte) error {
	var raw legacyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = *NewLegacyPermissions(raw.Role, raw.IsOwner, raw.Permissions...)
	return nil
}

// Clone deep-copies the legacy set.
func (l *LegacyPermissions) Clone() *LegacyPermissions {
	if l == nil {
		return nil
	}
	c := *l
	c.Permissions = make(map[string]struct{}, len(l.Permissions))
	for p := range l.Permissions {
		c.Permissions[p] = struct{}{}
	}
	return &c
}

// Evaluator answers permission questions. Workspace-scoped roles take
// precedence; the legacy set keeps working during migration.
type Evaluator struct {
	Active *Workspace
	Legacy *LegacyPermissions
}

// HasPermission reports whether the actor may perform action.
func (e Evaluator) HasPermission(action string) bool {
	if e.Active != nil {
		if e.Active.Kind == KindOwner || normalizeRole(e.Active.Role) == "admin" {
			return true
		}
	}
	if e.Legacy != nil {
		return e.Legacy.Has(action)
	}
	return false
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
