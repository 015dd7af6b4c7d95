package entitlements

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier labels known to the marketplace. Unknown tiers reported by the backend
// pass through unchanged.
const (
	TierFree     = "FREE"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierVerified = "VERIFIED"
)

// Entitlement represents a user's grant (e.g., premium), with optional metadata.
type Entitlement struct {
	Name      string                 `json:"name"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	RevokedAt *time.Time             `json:"revoked_at,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Plan is one entry of the public membership plan catalog.
type Plan struct {
	DocumentID   string          `json:"documentId"`
	TierID       string          `json:"tier_id"`
	PlanName     string          `json:"plan_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	DurationCode string          `json:"duration_code"`
}

// Subscription is a backend-owned subscription record for one profile.
type Subscription struct {
	TierID   string    `json:"tier_id"`
	IsActive bool      `json:"is_active"`
	EndDate  time.Time `json:"end_date"`
}

// StatusSummary is the payload of the dedicated membership status endpoint.
type StatusSummary struct {
	Tier     string     `json:"tier"`
	IsActive bool       `json:"is_active"`
	Expiry   *time.Time `json:"expiry,omitempty"`
	Message  *string    `json:"message,omitempty"`
}

// MembershipStatus is the canonical status of an actor for one
// reconciliation pass. Values are always built whole and replaced, never
// patched field by field.
type MembershipStatus struct {
	Tier     string     `json:"tier"`
	IsActive bool       `json:"is_active"`
	Expiry   *time.Time `json:"expiry"`
	Message  string     `json:"message,omitempty"`
}

// Entitlements projects the status onto entitlement grants.
func (s MembershipStatus) Entitlements() []Entitlement {
	tier := strings.ToLower(strings.TrimSpace(s.Tier))
	if tier == "" {
		tier = strings.ToLower(TierFree)
	}
	out := []Entitlement{{Name: "tier:" + tier, ExpiresAt: cloneTime(s.Expiry), Source: "membership_status"}}
	if s.IsActive {
		out = append(out, Entitlement{Name: "member:active", ExpiresAt: cloneTime(s.Expiry), Source: "membership_status"})
	}
	return out
}

// Names returns only the entitlement names, in grant order.
func Names(ents []Entitlement) []string {
	if len(ents) == 0 {
		return nil
	}
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		out = append(out, e.Name)
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
