package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	auth []string
}

func (r *recorder) headers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.auth...)
}

func newServer(t *testing.T, routes map[string]string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.auth = append(rec.auth, r.Header.Get("Authorization"))
		rec.mu.Unlock()
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClient_Plans(t *testing.T) {
	srv, auth := newServer(t, map[string]string{
		"/plans?active=true": `{"data":[{"documentId":"p1","tier_id":"GOLD","plan_name":"Gold","current_price":"49.90","duration_code":"P1M"}]}`,
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	plans, err := c.ListActivePlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "GOLD", plans[0].TierID)
	assert.Equal(t, "49.9", plans[0].CurrentPrice.String())
	assert.Equal(t, "", auth.headers()[0], "plan catalog is public")
}

func TestClient_ProfileScopedCallsCarryBearer(t *testing.T) {
	srv, auth := newServer(t, map[string]string{
		"/profiles/p-1/subscriptions": `{"data":[{"tier_id":"SILVER","is_active":true,"end_date":"2026-05-01T00:00:00Z"}]}`,
		"/profiles/p-1/transactions":  `{"data":[{"id":7,"amount":"10.00"}]}`,
	})
	c, err := New(srv.URL)
	require.NoError(t, err)
	c = c.WithToken("tok-123")

	subs, err := c.ListSubscriptions(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsActive)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), subs[0].EndDate.UTC())

	txns, err := c.ListTransactions(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.JSONEq(t, `{"id":7,"amount":"10.00"}`, string(txns[0]))

	for _, h := range auth.headers() {
		assert.Equal(t, "Bearer tok-123", h)
	}
}

func TestClient_StatusSummaryAbsent(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/profiles/empty/membership-status": ``,
		"/profiles/null/membership-status":  `{"data":null}`,
		"/profiles/ok/membership-status":    `{"data":{"tier":"VERIFIED","is_active":true,"message":"Verified seller"}}`,
	})
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"missing", "empty", "null"} {
		s, err := c.GetStatusSummary(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, s, id)
	}
	s, err := c.GetStatusSummary(ctx, "ok")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "VERIFIED", s.Tier)
	require.NotNil(t, s.Message)
	assert.Equal(t, "Verified seller", *s.Message)
}

func TestClient_Context(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/actors/a-1/context": `{"data":{"exists":true,"ownProfile":{"documentId":"own","name":"Own Co"},
			"memberships":[{"role":"Editor","company_profile":{"documentId":"m1","name":"Member Co"}}],
			"legacy":{"role":"seller","permissions":["listing.create"],"isOwner":false}}}`,
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	g, err := c.WithToken("t").GetContext(context.Background(), "a-1")
	require.NoError(t, err)
	assert.True(t, g.Exists)
	require.NotNil(t, g.OwnProfile)
	assert.Equal(t, "own", g.OwnProfile.DocumentID)
	require.Len(t, g.Memberships, 1)
	assert.Equal(t, "Editor", g.Memberships[0].Role)
	require.NotNil(t, g.Legacy)
	assert.True(t, g.Legacy.Has("listing.create"))
}

func TestClient_ErrorsAndCategories(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/categories":                 `{"data":[{"documentId":"c1","name":"Food","slug":"food"}]}`,
		"/profiles/p-1/subscriptions": "500",
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "food", cats[0].Slug)

	_, err = c.ListSubscriptions(context.Background(), "p-1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.False(t, IsNotFound(err))

	_, err = c.ListTransactions(context.Background(), "p-1")
	assert.True(t, IsNotFound(err))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	assert.Error(t, err)
}
