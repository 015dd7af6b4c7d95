// Package session owns the reconciled view of one actor session: membership
// status, plans, ledger data, workspaces and permissions, refreshed by
// guarded reconciliation passes over independent sources.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaulFidika/memberkit/guard"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
	"github.com/sirupsen/logrus"
)

var (
	ErrPassInFlight     = errors.New("session: reconciliation pass in flight")
	ErrNoActor          = errors.New("session: no actor bound")
	ErrUnknownWorkspace = errors.New("session: unknown workspace")
	ErrReconciliation   = errors.New("session: reconciliation failed")
)

// Config tunes a Store.
type Config struct {
	// SourceTimeout bounds each source call. Zero means sources.DefaultTimeout.
	SourceTimeout time.Duration
}

// PassResult describes one finished pass.
type PassResult struct {
	ActorID         string
	PassID          string
	Forced          bool
	Started         time.Time
	Duration        time.Duration
	Degraded        []string
	NeedsOnboarding bool
	Discarded       bool
	Err             error
}

// PassRecorder receives pass outcomes. Implementations should be
// non-blocking and best-effort.
type PassRecorder interface {
	RecordPass(ctx context.Context, r PassResult)
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithProfileCache remembers the active profile across sessions.
func WithProfileCache(c identity.ProfileCache) Option {
	return func(s *Store) { s.profiles = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPassRecorder(r PassRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

// Store is the session state store of one actor session. It is safe for
// concurrent use; at most one reconciliation pass runs at a time.
type Store struct {
	cfg      Config
	src      sources.Set
	log      logrus.FieldLogger
	profiles identity.ProfileCache
	now      func() time.Time
	recorder PassRecorder

	mu    sync.Mutex
	guard *guard.Guard
	epoch uint64
	actor *identity.Actor
	snap  Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New builds an unbound Store reading from src.
func New(cfg Config, src sources.Set, opts ...Option) *Store {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = sources.DefaultTimeout
	}
	s := &Store{
		cfg:   cfg,
		src:   src,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		guard: &guard.Guard{},
		snap:  emptySnapshot(),
		subs:  make(map[int]chan Snapshot),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start binds the session to actor and runs the initial load. Starting again
// for the same actor refreshes its credentials without refetching; starting
// for a different actor ends the previous session first.
func (s *Store) Start(ctx context.Context, actor identity.Actor) (Snapshot, error) {
	if !actor.Valid() {
		return s.Snapshot(), ErrNoActor
	}
	s.mu.Lock()
	var ended *identity.Actor
	if s.actor != nil && s.actor.ID != actor.ID {
		ended = s.actor
		s.resetLocked()
	}
	a := actor
	s.actor = &a
	s.snap.Actor = a
	s.mu.Unlock()

	if ended != nil {
		s.forgetProfile(ctx, ended.ID)
	}
	return s.Load(ctx)
}

// End tears the session down (sign-out). Any pass still in flight is
// discarded when it completes. Subscribers receive the reset snapshot and
// then see their channel closed.
func (s *Store) End(ctx context.Context) {
	s.mu.Lock()
	actor := s.actor
	s.actor = nil
	s.resetLocked()
	snap := s.snap.clone()
	s.mu.Unlock()

	if actor != nil {
		s.forgetProfile(ctx, actor.ID)
	}
	s.publish(snap)
	s.closeSubscribers()
}

func (s *Store) resetLocked() {
	s.epoch++
	s.guard = &guard.Guard{}
	s.snap = emptySnapshot()
}

func (s *Store) forgetProfile(ctx context.Context, actorID string) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.Del(ctx, actorID); err != nil {
		s.log.WithError(err).WithField("actor_id", actorID).Warn("session: clear profile cache failed")
	}
}

// Load runs the initial pass. Once a pass has completed, or while one is
// running, it returns the current snapshot without contacting any source.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, false, "")
}

// Refresh forces a new pass. It returns ErrPassInFlight, together with the
// current snapshot, when another pass is running.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, true, "")
}

// SwitchWorkspace makes the workspace with profile document id active and
// reloads profile-scoped data for it.
func (s *Store) SwitchWorkspace(ctx context.Context, documentID string) (Snapshot, error) {
	s.mu.Lock()
	bound := s.actor != nil
	_, known := workspace.Find(s.snap.Workspaces, documentID)
	snap := s.snap.clone()
	s.mu.Unlock()
	if !bound {
		return snap, ErrNoActor
	}
	if !known {
		return snap, ErrUnknownWorkspace
	}
	return s.run(ctx, true, documentID)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// HasPermission reports whether the actor may perform action in the current
// state.
func (s *Store) HasPermission(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.HasPermission(action)
}

// Actor returns the bound actor.
func (s *Store) Actor() (identity.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actor == nil {
		return identity.Actor{}, false
	}
	return *s.actor, true
}

// Subscribe returns a channel receiving every published snapshot. The
// channel holds only the latest snapshot; a slow reader skips intermediate
// ones. Call cancel to unsubscribe; it closes the channel unless End already
// has.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Subscribers reports the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Store) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap.clone()
	}
}
