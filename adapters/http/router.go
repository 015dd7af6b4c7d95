// Package memberhttp exposes the session API as a plain net/http handler
// for hosts that do not run gin.
package memberhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/core"
	"github.com/PaulFidika/memberkit/identity"
	jwtkit "github.com/PaulFidika/memberkit/jwt"
	"github.com/PaulFidika/memberkit/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Options configures Router.
type Options struct {
	Manager  *core.Manager
	Verifier identity.Verifier
	Catalog  *catalog.Service
	// Keys, when set, are published at /.well-known/jwks.json.
	Keys   jwtkit.KeySource
	Logger logrus.FieldLogger
}

type ctxKey struct{}

// ActorFromContext returns the actor stored by the auth middleware.
func ActorFromContext(ctx context.Context) (identity.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(identity.Actor)
	return a, ok && a.Valid()
}

// Router returns a chi router serving the session endpoints.
func Router(opts Options) http.Handler {
	h := &handler{Options: opts}
	if h.Logger == nil {
		h.Logger = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if opts.Keys != nil {
		r.Method(http.MethodGet, "/.well-known/jwks.json", JWKSHandler(opts.Keys))
	}
	if opts.Catalog != nil {
		r.Get("/catalog/categories", h.categories)
	}
	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Get("/session", h.get)
		r.Delete("/session", h.del)
		r.Post("/session/refresh", h.refresh)
		r.Put("/session/workspace", h.switchWorkspace)
		r.Get("/session/permissions/{action}", h.permission)
	})
	return r
}

type handler struct {
	Options
}

func (h *handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := identity.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		actor, err := h.Verifier.Verify(r.Context(), raw)
		if err != nil {
			h.Logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Debug("memberhttp: token rejected")
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, actor)))
	})
}

// open binds the caller's session and rotates its token. It writes the
// error response and returns false on failure.
func (h *handler) open(w http.ResponseWriter, r *http.Request) (identity.Actor, session.Snapshot, bool) {
	actor, _ := ActorFromContext(r.Context())
	snap, err := h.Manager.Open(r.Context(), actor)
	if err != nil {
		writeSession(w, snap, err)
		return actor, snap, false
	}
	return actor, snap, true
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	if _, snap, ok := h.open(w, r); ok {
		writeSession(w, snap, nil)
	}
}

// refresh forces a pass unless this request opened the session, which has
// just run one.
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	snap, created, err := h.Manager.Acquire(r.Context(), actor)
	if err != nil || created {
		writeSession(w, snap, err)
		return
	}
	snap, err = h.Manager.Refresh(r.Context(), actor.ID)
	writeSession(w, snap, err)
}

func (h *handler) switchWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	actor, _, ok := h.open(w, r)
	if !ok {
		return
	}
	snap, err := h.Manager.SwitchWorkspace(r.Context(), actor.ID, strings.TrimSpace(req.DocumentID))
	writeSession(w, snap, err)
}

func (h *handler) permission(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimSpace(chi.URLParam(r, "action"))
	_, snap, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"action": action, "allowed": snap.HasPermission(action)})
}

func (h *handler) del(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	h.Manager.Close(r.Context(), actor.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.Catalog.Categories(r.Context())})
}

func writeSession(w http.ResponseWriter, snap session.Snapshot, err error) {
	code, msg := core.ErrorStatus(err)
	if err == nil {
		writeJSON(w, code, snap)
		return
	}
	writeJSON(w, code, map[string]any{"error": msg, "session": snap})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
