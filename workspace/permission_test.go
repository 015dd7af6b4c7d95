package workspace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission_OwnerWorkspaceGrantsEverything(t *testing.T) {
	active := &Workspace{Kind: KindOwner, Role: OwnerRole, Profile: Profile{DocumentID: "own"}}

	assert.True(t, Evaluator{Active: active}.HasPermission("anything"))
	assert.True(t, Evaluator{Active: active, Legacy: NewLegacyPermissions("viewer", false)}.HasPermission("anything"))
}

func TestHasPermission_AdminMemberGrantsEverything(t *testing.T) {
	for _, role := range []string{"Admin", "admin", " ADMIN "} {
		active := &Workspace{Kind: KindMember, Role: role}
		assert.True(t, Evaluator{Active: active}.HasPermission("listing.delete"), role)
	}
}

func TestHasPermission_MemberFallsBackToLegacy(t *testing.T) {
	active := &Workspace{Kind: KindMember, Role: "Editor"}
	legacy := NewLegacyPermissions("seller", false, "listing.create")

	e := Evaluator{Active: active, Legacy: legacy}
	assert.True(t, e.HasPermission("listing.create"))
	assert.False(t, e.HasPermission("listing.delete"))

	assert.False(t, Evaluator{Active: active}.HasPermission("listing.create"), "no legacy set denies")
}

func TestHasPermission_LegacyOwnerWithoutWorkspace(t *testing.T) {
	assert.True(t, Evaluator{Legacy: NewLegacyPermissions("owner", true)}.HasPermission("x"))
}

func TestHasPermission_NothingDenies(t *testing.T) {
	assert.False(t, Evaluator{}.HasPermission("x"))
}

func TestLegacyPermissions_JSONRoundTripSorted(t *testing.T) {
	l := NewLegacyPermissions("seller", false, "b", "a", " ")
	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"seller","permissions":["a","b"],"isOwner":false}`, string(b))

	c := l.Clone()
	delete(c.Permissions, "a")
	assert.True(t, l.Has("a"))
}
