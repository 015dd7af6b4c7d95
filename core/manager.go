package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/session"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// RefreshBucket is the rate-limit bucket of explicit refreshes and
// workspace switches.
const RefreshBucket = "session.refresh"

var (
	ErrNoSession   = errors.New("core: no open session for actor")
	ErrRateLimited = errors.New("core: too many refreshes")
)

// Limiter matches ratelimit/memory and ratelimit/redis.
type Limiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

// SourceFactory builds the sources of one actor session. tokens yields the
// actor's current bearer token.
type SourceFactory func(actorID string, tokens oauth2.TokenSource) sources.Set

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithLogger(l logrus.FieldLogger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithProfileCache(c identity.ProfileCache) ManagerOption {
	return func(m *Manager) { m.profiles = c }
}

func WithLimiter(l Limiter) ManagerOption {
	return func(m *Manager) { m.limiter = l }
}

func WithPassRecorder(r session.PassRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithCatalog keeps the category list warm from the janitor.
func WithCatalog(c *catalog.Service) ManagerOption {
	return func(m *Manager) { m.catalog = c }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager keeps one session.Store per signed-in actor.
type Manager struct {
	cfg      Config
	factory  SourceFactory
	log      logrus.FieldLogger
	profiles identity.ProfileCache
	limiter  Limiter
	recorder session.PassRecorder
	catalog  *catalog.Service
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*managed
	cron     *cron.Cron
}

type managed struct {
	store    *session.Store
	tokens   *tokenBox
	lastSeen time.Time
}

func NewManager(cfg Config, factory SourceFactory, opts ...ManagerOption) *Manager {
	cfg.defaults()
	m := &Manager{
		cfg:      cfg,
		factory:  factory,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		sessions: make(map[string]*managed),
	}
	for _, o := range opts {
		o(m)
	}
	if m.recorder == nil {
		m.recorder = LogPassRecorder{Log: m.log}
	}
	return m
}

// Open binds a session for actor, creating it on first use, and returns the
// loaded snapshot. Reopening an existing session only rotates its token.
func (m *Manager) Open(ctx context.Context, actor identity.Actor) (session.Snapshot, error) {
	snap, _, err := m.Acquire(ctx, actor)
	return snap, err
}

// Acquire is Open that also reports whether the session was created by this
// call, in which case the returned snapshot comes from a pass that just ran.
func (m *Manager) Acquire(ctx context.Context, actor identity.Actor) (session.Snapshot, bool, error) {
	if !actor.Valid() {
		return session.Snapshot{}, false, session.ErrNoActor
	}
	m.mu.Lock()
	e, ok := m.sessions[actor.ID]
	if !ok {
		e = m.newSession(actor.ID)
		m.sessions[actor.ID] = e
	}
	e.lastSeen = m.now()
	m.mu.Unlock()

	e.tokens.set(actor.Token)
	snap, err := e.store.Start(ctx, actor)
	return snap, !ok, err
}

func (m *Manager) newSession(actorID string) *managed {
	tokens := &tokenBox{}
	var src sources.Set
	if m.factory != nil {
		src = m.factory(actorID, tokens)
	}
	store := session.New(session.Config{SourceTimeout: m.cfg.SourceTimeout}, src,
		session.WithLogger(m.log.WithField("actor_id", actorID)),
		session.WithProfileCache(m.profiles),
		session.WithPassRecorder(m.recorder),
	)
	return &managed{store: store, tokens: tokens}
}

// Session returns the open store of actorID.
func (m *Manager) Session(actorID string) (*session.Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[actorID]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.store, true
}

// Refresh forces a pass for actorID, subject to the refresh rate limit.
func (m *Manager) Refresh(ctx context.Context, actorID string) (session.Snapshot, error) {
	store, err := m.limited(ctx, actorID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return store.Refresh(ctx)
}

// SwitchWorkspace changes the active workspace of actorID.
func (m *Manager) SwitchWorkspace(ctx context.Context, actorID, documentID string) (session.Snapshot, error) {
	store, err := m.limited(ctx, actorID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return store.SwitchWorkspace(ctx, documentID)
}

func (m *Manager) limited(ctx context.Context, actorID string) (*session.Store, error) {
	store, ok := m.Session(actorID)
	if !ok {
		return nil, ErrNoSession
	}
	if m.limiter == nil {
		return store, nil
	}
	allowed, err := m.limiter.AllowNamed(ctx, RefreshBucket, actorID)
	if err != nil {
		m.log.WithError(err).WithField("actor_id", actorID).Warn("core: rate limiter unavailable, allowing refresh")
		return store, nil
	}
	if !allowed {
		return nil, ErrRateLimited
	}
	return store, nil
}

// Close ends the session of actorID (sign-out).
func (m *Manager) Close(ctx context.Context, actorID string) {
	m.mu.Lock()
	e, ok := m.sessions[actorID]
	delete(m.sessions, actorID)
	m.mu.Unlock()
	if ok {
		e.store.End(ctx)
	}
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle drops sessions unused for longer than SessionIdleTTL. A session
// with an open subscription (a live stream) counts as in use. The
// remembered profile survives, so the next Open starts from it.
func (m *Manager) EvictIdle() int {
	now := m.now()
	cutoff := now.Add(-m.cfg.SessionIdleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.store.Subscribers() > 0 {
			e.lastSeen = now
			continue
		}
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.log.WithField("evicted", n).Info("core: evicted idle sessions")
	}
	return n
}

// Start schedules the idle-session janitor and, when a catalog is set, the
// category warm-up.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(m.cfg.JanitorSchedule, func() { m.EvictIdle() }); err != nil {
		return fmt.Errorf("core: janitor schedule %q: %w", m.cfg.JanitorSchedule, err)
	}
	if m.catalog != nil {
		svc := m.catalog
		c.Schedule(cron.Every(m.cfg.ReferenceTTL), cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SourceTimeout)
			defer cancel()
			svc.Categories(ctx)
		}))
	}
	c.Start()
	m.cron = c
	return nil
}

// Stop halts scheduled jobs and waits for running ones.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// tokenBox is an oauth2.TokenSource over the latest token of one actor.
type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) set(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *tokenBox) Token() (*oauth2.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == "" {
		return nil, identity.ErrNoToken
	}
	return &oauth2.Token{AccessToken: b.token, TokenType: "Bearer"}, nil
}
