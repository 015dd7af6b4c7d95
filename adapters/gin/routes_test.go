package membergin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/core"
	"github.com/PaulFidika/memberkit/identity"
	memorylimiter "github.com/PaulFidika/memberkit/ratelimit/memory"
	"github.com/PaulFidika/memberkit/session"
	"github.com/PaulFidika/memberkit/sessiontest"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type harness struct {
	router  *gin.Engine
	issuer  *sessiontest.TestIssuer
	backend *sessiontest.Backend
	mgr     *core.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	iss := sessiontest.NewTestIssuer()
	t.Cleanup(iss.Close)
	b := sessiontest.NewBackend()
	b.SetGraph("actor-1", sessiontest.Graph("own", "team", "editor"))
	b.SetCategories(catalog.Category{DocumentID: "c1", Name: "Tools", Slug: "tools"})

	lim := memorylimiter.New(map[string]memorylimiter.Limit{core.RefreshBucket: {Limit: 3, Window: time.Hour}})
	mgr := core.NewManager(core.Config{}, func(string, oauth2.TokenSource) sources.Set { return b.Set() },
		core.WithLogger(log), core.WithLimiter(lim))

	r := gin.New()
	Register(r, Options{
		Manager:  mgr,
		Verifier: identity.NewKeyVerifier(iss.Keys(), iss.URL(), iss.Audience()),
		Catalog:  catalog.NewService(b, catalog.Options{Logger: log}),
		Logger:   log,
	})
	return &harness{router: r, issuer: iss, backend: b, mgr: mgr}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestSession_RequiresToken(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))

	w = h.do(http.MethodGet, "/session", h.issuer.CreateExpiredToken("actor-1", ""), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_token", errorCode(t, w))
}

func TestSession_GetSwitchAndPermissions(t *testing.T) {
	h := newHarness(t)
	tok := h.issuer.CreateToken("actor-1", "a@example.com")

	w := h.do(http.MethodGet, "/session", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "own", snap.ActiveProfile)
	assert.Len(t, snap.Workspaces, 2)
	assert.Empty(t, snap.Actor.Token)

	w = h.do(http.MethodGet, "/session/permissions/billing.manage", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"billing.manage","allowed":true}`, w.Body.String())

	w = h.do(http.MethodPut, "/session/workspace", tok, map[string]string{"document_id": "team"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "team", decodeSnapshot(t, w).ActiveProfile)

	w = h.do(http.MethodGet, "/session/permissions/billing.manage", tok, nil)
	assert.JSONEq(t, `{"action":"billing.manage","allowed":false}`, w.Body.String())

	w = h.do(http.MethodPut, "/session/workspace", tok, map[string]string{"document_id": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_workspace", errorCode(t, w))

	w = h.do(http.MethodPut, "/session/workspace", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_RefreshIsRateLimited(t *testing.T) {
	h := newHarness(t)
	tok := h.issuer.CreateToken("actor-1", "")

	w := h.do(http.MethodPost, "/session/refresh", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, h.backend.Calls(sources.NamePlans), "opening refresh runs one pass")

	for i := 0; i < 3; i++ {
		w := h.do(http.MethodPost, "/session/refresh", tok, nil)
		require.Equal(t, http.StatusOK, w.Code, i)
	}
	assert.Equal(t, 4, h.backend.Calls(sources.NamePlans))
	w = h.do(http.MethodPost, "/session/refresh", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorCode(t, w))
}

func TestSession_DeleteAndMe(t *testing.T) {
	h := newHarness(t)
	tok := h.issuer.CreateTokenWithProfile("actor-1", "a@example.com", "team")

	w := h.do(http.MethodGet, "/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v ActorView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "token", v.Source)
	assert.Equal(t, "team", v.ActiveProfile)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/session", tok, nil).Code)
	w = h.do(http.MethodGet, "/me", tok, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "session", v.Source)
	assert.Equal(t, "team", v.ActiveProfile)
	assert.Equal(t, "editor", v.Role)
	assert.Contains(t, v.Entitlements, "tier:free")

	w = h.do(http.MethodDelete, "/session", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, h.mgr.Len())
}

func TestCatalogCategories(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/catalog/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []catalog.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "tools", body.Data[0].Slug)
}

func TestSessionStream(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()
	tok := h.issuer.CreateToken("actor-1", "")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/stream?access_token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first session.Snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "own", first.ActiveProfile)

	_, err = h.mgr.SwitchWorkspace(context.Background(), "actor-1", "team")
	require.NoError(t, err)

	for {
		var s session.Snapshot
		require.NoError(t, conn.ReadJSON(&s))
		if !s.Loading && s.ActiveProfile == "team" {
			break
		}
	}
}
