package workspace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prof(id, name string) *Profile { return &Profile{DocumentID: id, Name: name} }

func TestBuild_OwnerFirstThenMembershipsInOrder(t *testing.T) {
	g := Graph{
		Exists:     true,
		OwnProfile: prof("own", "Acme"),
		Memberships: []Membership{
			{Role: "Editor", CompanyProfile: prof("m2", "Beta")},
			{Role: "Admin", CompanyProfile: prof("m1", "")},
		},
	}
	ws, err := Build(g)
	require.NoError(t, err)
	require.Len(t, ws, 3)

	assert.Equal(t, KindOwner, ws[0].Kind)
	assert.Equal(t, OwnerRole, ws[0].Role)
	assert.Equal(t, "Acme", ws[0].Label)

	assert.Equal(t, "m2", ws[1].ID())
	assert.Equal(t, KindMember, ws[1].Kind)
	assert.Equal(t, "Editor", ws[1].Role)

	assert.Equal(t, "m1", ws[2].Label, "label falls back to document id")
}

func TestBuild_SkipsMembershipsWithoutProfile(t *testing.T) {
	ws, err := Build(Graph{Exists: true, Memberships: []Membership{
		{Role: "Editor"},
		{Role: "Editor", CompanyProfile: &Profile{}},
		{Role: "Viewer", CompanyProfile: prof("ok", "OK")},
	}})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "ok", ws[0].ID())
}

func TestBuild_NeedsOnboarding(t *testing.T) {
	_, err := Build(Graph{Exists: false})
	assert.True(t, errors.Is(err, ErrNeedsOnboarding))

	_, err = Resolve(Graph{}, "a")
	assert.ErrorIs(t, err, ErrNeedsOnboarding)
}

func TestResolve_SelectionStableAcrossReorder(t *testing.T) {
	first, err := Resolve(Graph{Exists: true, Memberships: []Membership{
		{Role: "Editor", CompanyProfile: prof("A", "Alpha")},
		{Role: "Editor", CompanyProfile: prof("B", "Beta")},
	}}, "")
	require.NoError(t, err)
	require.NotNil(t, first.Active)
	assert.Equal(t, "A", first.Active.ID())

	second, err := Resolve(Graph{Exists: true, Memberships: []Membership{
		{Role: "Editor", CompanyProfile: prof("B", "Beta")},
		{Role: "Viewer", CompanyProfile: prof("A", "Alpha Renamed")},
	}}, first.Active.ID())
	require.NoError(t, err)
	require.NotNil(t, second.Active)
	assert.Equal(t, "A", second.Active.ID())
	assert.Equal(t, "Alpha Renamed", second.Active.Label, "selection re-binds to the refreshed entry")
	assert.Equal(t, "Viewer", second.Active.Role)
}

func TestResolve_SelectionRecoversWhenActiveVanishes(t *testing.T) {
	res, err := Resolve(Graph{Exists: true, Memberships: []Membership{
		{Role: "Editor", CompanyProfile: prof("B", "Beta")},
	}}, "A")
	require.NoError(t, err)
	require.NotNil(t, res.Active)
	assert.Equal(t, "B", res.Active.ID())
}

func TestResolve_EmptySequenceSelectsNothing(t *testing.T) {
	res, err := Resolve(Graph{Exists: true}, "A")
	require.NoError(t, err)
	assert.Empty(t, res.Workspaces)
	assert.Nil(t, res.Active)
}

func TestSelect_ReturnsCopy(t *testing.T) {
	ws := []Workspace{{Label: "x", Profile: Profile{DocumentID: "x"}}}
	sel := Select(ws, "x")
	sel.Label = "changed"
	assert.Equal(t, "x", ws[0].Label)
}

func TestClone_DeepCopiesAttributes(t *testing.T) {
	ws := []Workspace{{Profile: Profile{DocumentID: "x", Attributes: map[string]any{"k": "v"}}}}
	c := Clone(ws)
	c[0].Profile.Attributes["k"] = "changed"
	assert.Equal(t, "v", ws[0].Profile.Attributes["k"])
	assert.Nil(t, Clone(nil))
}

func TestGraph_DecodesBackendShape(t *testing.T) {
	raw := `{
		"exists": true,
		"ownProfile": {"documentId": "own", "name": "Acme"},
		"memberships": [{"role": "Admin", "company_profile": {"documentId": "m1", "name": "Beta"}}],
		"legacy": {"role": "seller", "permissions": ["listing.create", "listing.edit"], "isOwner": false}
	}`
	var g Graph
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	assert.True(t, g.Exists)
	require.NotNil(t, g.OwnProfile)
	assert.Equal(t, "own", g.OwnProfile.DocumentID)
	require.Len(t, g.Memberships, 1)
	assert.Equal(t, "m1", g.Memberships[0].CompanyProfile.DocumentID)
	require.NotNil(t, g.Legacy)
	assert.True(t, g.Legacy.Has("listing.edit"))
	assert.False(t, g.Legacy.Has("listing.delete"))
}
