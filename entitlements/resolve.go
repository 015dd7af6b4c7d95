package entitlements

// Messages attached to resolved statuses.
const (
	MessageActiveCredentials = "Your membership credentials are active."
	MessageSummaryActive     = "Your membership is active."
	MessageSummaryInactive   = "Your membership is inactive."
	MessageUpgrade           = "Upgrade your membership to unlock verified seller benefits."
)

// Rule names, in evaluation order.
const (
	RuleActiveSubscription = "active_subscription"
	RuleStatusSummary      = "status_summary"
	RuleFreeDefault        = "free_default"
)

// Inputs are the source outputs the status resolver reads.
type Inputs struct {
	Subscriptions []Subscription
	Summary       *StatusSummary
}

// Rule maps matching inputs to a status.
type Rule struct {
	Name   string
	Match  func(Inputs) bool
	Derive func(Inputs) MembershipStatus
}

// Rules is the ordered status priority list. The subscription ledger is
// authoritative; the summary endpoint is only consulted when the ledger has
// no active entry.
var Rules = []Rule{
	{
		Name:   RuleActiveSubscription,
		Match:  func(in Inputs) bool { return latestActive(in.Subscriptions) >= 0 },
		Derive: deriveFromSubscription,
	},
	{
		Name:   RuleStatusSummary,
		Match:  func(in Inputs) bool { return in.Summary != nil },
		Derive: deriveFromSummary,
	},
	freeDefault,
}

var freeDefault = Rule{
	Name:   RuleFreeDefault,
	Match:  func(Inputs) bool { return true },
	Derive: func(Inputs) MembershipStatus { return FreeStatus() },
}

// Resolve merges subscriptions and the optional status summary into one
// canonical status.
func Resolve(subs []Subscription, summary *StatusSummary) MembershipStatus {
	st, _ := Explain(subs, summary)
	return st
}

// Explain is Resolve plus the rule that produced the status. When no rule
// matches, the free default applies.
func Explain(subs []Subscription, summary *StatusSummary) (MembershipStatus, Rule) {
	in := Inputs{Subscriptions: subs, Summary: summary}
	for _, r := range Rules {
		if r.Match(in) {
			return r.Derive(in), r
		}
	}
	return FreeStatus(), freeDefault
}

// FreeStatus is the status of an actor with no ledger and no summary,
// including actors without a profile.
func FreeStatus() MembershipStatus {
	return MembershipStatus{Tier: TierFree, IsActive: false, Expiry: nil, Message: MessageUpgrade}
}

// latestActive returns the index of the active subscription with the latest
// end date. Ties keep the earliest entry in input order. -1 when none is active.
func latestActive(subs []Subscription) int {
	best := -1
	for i, s := range subs {
		if !s.IsActive {
			continue
		}
		if best < 0 || s.EndDate.After(subs[best].EndDate) {
			best = i
		}
	}
	return best
}

func deriveFromSubscription(in Inputs) MembershipStatus {
	sel := in.Subscriptions[latestActive(in.Subscriptions)]
	end := sel.EndDate
	return MembershipStatus{
		Tier:     sel.TierID,
		IsActive: true,
		Expiry:   &end,
		Message:  MessageActiveCredentials,
	}
}

func deriveFromSummary(in Inputs) MembershipStatus {
	sum := in.Summary
	tier := sum.Tier
	if tier == "" {
		tier = TierFree
	}
	msg := MessageSummaryInactive
	if sum.IsActive {
		msg = MessageSummaryActive
	}
	if sum.Message != nil {
		msg = *sum.Message
	}
	return MembershipStatus{
		Tier:     tier,
		IsActive: sum.IsActive,
		Expiry:   cloneTime(sum.Expiry),
		Message:  msg,
	}
}
