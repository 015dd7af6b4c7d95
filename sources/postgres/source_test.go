package postgres

import (
	"context"
	"testing"

	"github.com/PaulFidika/memberkit/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultSchema(t *testing.T) {
	s := New(nil, " ")
	assert.Equal(t, "memberkit.plans", s.t("plans"))
	assert.Equal(t, "tenant.plans", New(nil, "tenant").t("plans"))
}

func TestNilPoolFailsEverySource(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()

	_, err := s.ListActivePlans(ctx)
	assert.ErrorIs(t, err, errNoPool)
	_, err = s.ListSubscriptions(ctx, "p")
	assert.ErrorIs(t, err, errNoPool)
	_, err = s.ListTransactions(ctx, "p")
	assert.ErrorIs(t, err, errNoPool)
	_, err = s.GetStatusSummary(ctx, "p")
	assert.ErrorIs(t, err, errNoPool)
	_, err = s.GetContext(ctx, "a")
	assert.ErrorIs(t, err, errNoPool)
	_, err = s.ListCategories(ctx)
	assert.ErrorIs(t, err, errNoPool)
}

func TestDecodeAttrs(t *testing.T) {
	var p workspace.Profile
	require.NoError(t, decodeAttrs([]byte(`{"city":"Lyon"}`), &p))
	assert.Equal(t, "Lyon", p.Attributes["city"])

	var empty workspace.Profile
	require.NoError(t, decodeAttrs([]byte(`{}`), &empty))
	assert.Nil(t, empty.Attributes)

	assert.Error(t, decodeAttrs([]byte(`[`), &p))
}
