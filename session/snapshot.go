package session

import (
	"encoding/json"
	"time"

	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
)

// Snapshot is the read-only view of a session. Every read returns a deep
// copy; a Snapshot never changes after it is handed out.
type Snapshot struct {
	Actor           identity.Actor                `json:"actor"`
	Status          entitlements.MembershipStatus `json:"status"`
	Plans           []entitlements.Plan           `json:"plans"`
	Subscriptions   []entitlements.Subscription   `json:"subscriptions"`
	Transactions    []sources.Transaction         `json:"transactions"`
	ActiveProfile   string                        `json:"active_profile,omitempty"`
	Workspaces      []workspace.Workspace         `json:"workspaces"`
	ActiveWorkspace *workspace.Workspace          `json:"active_workspace,omitempty"`
	Legacy          *workspace.LegacyPermissions  `json:"legacy,omitempty"`
	NeedsOnboarding bool                          `json:"needs_onboarding"`
	Loading         bool                          `json:"loading"`
	Error           string                        `json:"error,omitempty"`
	Degraded        []string                      `json:"degraded,omitempty"`
	PassID          string                        `json:"pass_id,omitempty"`
	UpdatedAt       time.Time                     `json:"updated_at"`
}

// emptySnapshot is the unauthenticated shape.
func emptySnapshot() Snapshot {
	return Snapshot{Status: entitlements.FreeStatus()}
}

// HasPermission evaluates action against the snapshot's active workspace and
// legacy permission set.
func (s Snapshot) HasPermission(action string) bool {
	return workspace.Evaluator{Active: s.ActiveWorkspace, Legacy: s.Legacy}.HasPermission(action)
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Status.Expiry = cloneTime(s.Status.Expiry)
	if s.Plans != nil {
		out.Plans = append([]entitlements.Plan(nil), s.Plans...)
	}
	if s.Subscriptions != nil {
		out.Subscriptions = append([]entitlements.Subscription(nil), s.Subscriptions...)
	}
	if s.Transactions != nil {
		out.Transactions = make([]sources.Transaction, len(s.Transactions))
		for i, t := range s.Transactions {
			out.Transactions[i] = append(json.RawMessage(nil), t...)
		}
	}
	out.Workspaces = workspace.Clone(s.Workspaces)
	if s.ActiveWorkspace != nil {
		w := workspace.Clone([]workspace.Workspace{*s.ActiveWorkspace})[0]
		out.ActiveWorkspace = &w
	}
	out.Legacy = s.Legacy.Clone()
	if s.Degraded != nil {
		out.Degraded = append([]string(nil), s.Degraded...)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
