package membergin

import (
	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/gin-gonic/gin"
)

// ActorView is a unified view of the caller whether or not a session has
// been reconciled for it yet.
type ActorView struct {
	ActorID         string   `json:"actor_id"`
	Email           string   `json:"email"`
	ActiveProfile   string   `json:"active_profile,omitempty"`
	Workspace       string   `json:"workspace,omitempty"`
	Role            string   `json:"role,omitempty"`
	Tier            string   `json:"tier"`
	Entitlements    []string `json:"entitlements,omitempty"`
	NeedsOnboarding bool     `json:"needs_onboarding"`

	Source string `json:"source"` // "session" | "token" | "none"
}

// CurrentActor returns the caller as seen by its open session, falling back
// to the token claims when no session is open.
func CurrentActor(c *gin.Context, mgr *core.Manager) (ActorView, bool) {
	actor, ok := ginutil.Actor(c)
	if !ok {
		return ActorView{Tier: entitlements.TierFree, Source: "none"}, false
	}
	if mgr != nil {
		if store, ok := mgr.Session(actor.ID); ok {
			snap := store.Snapshot()
			if snap.Actor.ID == actor.ID {
				v := ActorView{
					ActorID:         actor.ID,
					Email:           actor.Email,
					ActiveProfile:   snap.ActiveProfile,
					Tier:            snap.Status.Tier,
					NeedsOnboarding: snap.NeedsOnboarding,
					Source:          "session",
				}
				if w := snap.ActiveWorkspace; w != nil {
					v.Workspace = w.Label
					v.Role = w.Role
				}
				for _, e := range snap.Status.Entitlements() {
					v.Entitlements = append(v.Entitlements, e.Name)
				}
				return v, true
			}
		}
	}
	return ActorView{
		ActorID:       actor.ID,
		Email:         actor.Email,
		ActiveProfile: actor.ProfileID,
		Tier:          entitlements.TierFree,
		Source:        "token",
	}, true
}
