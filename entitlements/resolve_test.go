package entitlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

func TestResolve_LatestActiveSubscriptionWins_OrderIndependent(t *testing.T) {
	subs := []Subscription{
		{TierID: "SILVER", IsActive: true, EndDate: day(10)},
		{TierID: "GOLD", IsActive: true, EndDate: day(40)},
		{TierID: "VERIFIED", IsActive: false, EndDate: day(90)},
		{TierID: "SILVER", IsActive: true, EndDate: day(20)},
	}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 0, 3, 2}, {2, 3, 0, 1}}
	for _, order := range orders {
		perm := make([]Subscription, 0, len(subs))
		for _, i := range order {
			perm = append(perm, subs[i])
		}
		st, rule := Explain(perm, nil)
		assert.Equal(t, RuleActiveSubscription, rule.Name)
		assert.Equal(t, "GOLD", st.Tier)
		assert.True(t, st.IsActive)
		require.NotNil(t, st.Expiry)
		assert.True(t, st.Expiry.Equal(day(40)))
		assert.Equal(t, MessageActiveCredentials, st.Message)
	}
}

func TestResolve_TieKeepsFirstInInputOrder(t *testing.T) {
	subs := []Subscription{
		{TierID: "SILVER", IsActive: true, EndDate: day(30)},
		{TierID: "GOLD", IsActive: true, EndDate: day(30)},
	}
	assert.Equal(t, "SILVER", Resolve(subs, nil).Tier)
}

func TestResolve_LedgerBeatsSummary(t *testing.T) {
	subs := []Subscription{{TierID: "SILVER", IsActive: true, EndDate: day(5)}}
	sum := &StatusSummary{Tier: TierVerified, IsActive: true}
	st, rule := Explain(subs, sum)
	assert.Equal(t, RuleActiveSubscription, rule.Name)
	assert.Equal(t, "SILVER", st.Tier)
}

func TestResolve_SummaryUsedVerbatimWhenNoActiveSubscription(t *testing.T) {
	exp := day(60)
	msg := "verified by ops"
	subs := []Subscription{{TierID: "GOLD", IsActive: false, EndDate: day(99)}}
	sum := &StatusSummary{Tier: TierVerified, IsActive: true, Expiry: &exp, Message: &msg}

	st, rule := Explain(subs, sum)
	assert.Equal(t, RuleStatusSummary, rule.Name)
	assert.Equal(t, TierVerified, st.Tier)
	assert.True(t, st.IsActive)
	require.NotNil(t, st.Expiry)
	assert.True(t, st.Expiry.Equal(exp))
	assert.Equal(t, msg, st.Message)

	// the resolved status must not alias the summary's expiry
	*sum.Expiry = day(1)
	assert.True(t, st.Expiry.Equal(exp))
}

func TestResolve_SummaryDefaults(t *testing.T) {
	st := Resolve(nil, &StatusSummary{IsActive: false})
	assert.Equal(t, TierFree, st.Tier)
	assert.Equal(t, MessageSummaryInactive, st.Message)

	st = Resolve(nil, &StatusSummary{Tier: TierVerified, IsActive: true})
	assert.Equal(t, TierVerified, st.Tier)
	assert.True(t, st.IsActive)
	assert.Nil(t, st.Expiry)
	assert.Equal(t, MessageSummaryActive, st.Message)
}

func TestResolve_FreeDefaultWhenNothingKnown(t *testing.T) {
	st, rule := Explain(nil, nil)
	assert.Equal(t, RuleFreeDefault, rule.Name)
	assert.Equal(t, TierFree, st.Tier)
	assert.False(t, st.IsActive)
	assert.Nil(t, st.Expiry)
	assert.Equal(t, MessageUpgrade, st.Message)
	assert.Equal(t, FreeStatus(), st)
}

func TestMembershipStatus_Entitlements(t *testing.T) {
	exp := day(3)
	ents := MembershipStatus{Tier: "GOLD", IsActive: true, Expiry: &exp}.Entitlements()
	assert.Equal(t, []string{"tier:gold", "member:active"}, Names(ents))
	require.NotNil(t, ents[0].ExpiresAt)
	assert.NotSame(t, &exp, ents[0].ExpiresAt)

	assert.Equal(t, []string{"tier:free"}, Names(FreeStatus().Entitlements()))
}
