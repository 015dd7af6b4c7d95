// Package workspace builds the profile contexts an actor can act within and
// answers permission questions against the active one.
package workspace

import (
	"errors"
	"strings"
)

// ErrNeedsOnboarding signals that the backend knows no profile or context for
// the actor. Callers redirect to profile completion instead of rendering an
// empty workspace list.
var ErrNeedsOnboarding = errors.New("workspace: actor needs onboarding")

// Kind distinguishes an owned company profile from a team membership.
type Kind string

const (
	KindOwner  Kind = "OWNER"
	KindMember Kind = "MEMBER"
)

// OwnerRole is the role label of the owned workspace.
const OwnerRole = "Owner"

// Profile is a company profile as returned by the context endpoint.
type Profile struct {
	DocumentID string         `json:"documentId"`
	Name       string         `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Membership is one team membership record.
type Membership struct {
	Role           string   `json:"role"`
	CompanyProfile *Profile `json:"company_profile"`
}

// Graph is the workspace/context payload for one actor.
type Graph struct {
	Exists      bool               `json:"exists"`
	OwnProfile  *Profile           `json:"ownProfile,omitempty"`
	Memberships []Membership       `json:"memberships,omitempty"`
	Legacy      *LegacyPermissions `json:"legacy,omitempty"`
}

// Workspace is one context the actor can act as.
type Workspace struct {
	Label   string  `json:"label"`
	Kind    Kind    `json:"kind"`
	Role    string  `json:"role"`
	Profile Profile `json:"profile"`
}

// ID is the workspace identity: its profile document id.
func (w Workspace) ID() string { return w.Profile.DocumentID }

// Resolution is the outcome of one resolve.
type Resolution struct {
	Workspaces []Workspace
	Active     *Workspace
}

// Resolve builds the workspace sequence and selects the active entry,
// keeping previousID selected when it is still present.
func Resolve(g Graph, previousID string) (Resolution, error) {
	ws, err := Build(g)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Workspaces: ws, Active: Select(ws, previousID)}, nil
}

// Build returns the owned workspace first, then one workspace per membership
// in the order received. Memberships without a usable company profile are
// skipped.
func Build(g Graph) ([]Workspace, error) {
	if !g.Exists {
		return nil, ErrNeedsOnboarding
	}
	out := make([]Workspace, 0, len(g.Memberships)+1)
	if g.OwnProfile != nil && strings.TrimSpace(g.OwnProfile.DocumentID) != "" {
		out = append(out, Workspace{
			Label:   label(*g.OwnProfile),
			Kind:    KindOwner,
			Role:    OwnerRole,
			Profile: cloneProfile(*g.OwnProfile),
		})
	}
	for _, m := range g.Memberships {
		if m.CompanyProfile == nil || strings.TrimSpace(m.CompanyProfile.DocumentID) == "" {
			continue
		}
		out = append(out, Workspace{
			Label:   label(*m.CompanyProfile),
			Kind:    KindMember,
			Role:    m.Role,
			Profile: cloneProfile(*m.CompanyProfile),
		})
	}
	return out, nil
}

// Select picks the active workspace by identity. The returned pointer refers
// to a copy of the refreshed entry, never to a value from an older sequence.
func Select(ws []Workspace, previousID string) *Workspace {
	if len(ws) == 0 {
		return nil
	}
	if previousID != "" {
		for i := range ws {
			if ws[i].ID() == previousID {
				sel := ws[i]
				return &sel
			}
		}
	}
	sel := ws[0]
	return &sel
}

// Find returns the workspace with the given identity.
func Find(ws []Workspace, id string) (Workspace, bool) {
	for _, w := range ws {
		if w.ID() == id {
			return w, true
		}
	}
	return Workspace{}, false
}

// Clone deep-copies a workspace slice.
func Clone(ws []Workspace) []Workspace {
	if ws == nil {
		return nil
	}
	out := make([]Workspace, len(ws))
	for i, w := range ws {
		w.Profile = cloneProfile(w.Profile)
		out[i] = w
	}
	return out
}

func label(p Profile) string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return p.DocumentID
}

func cloneProfile(p Profile) Profile {
	if p.Attributes != nil {
		attrs := make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		p.Attributes = attrs
	}
	return p
}
