package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// profileData is what the profile-scoped sources returned for one profile.
type profileData struct {
	profileID     string
	subscriptions []entitlements.Subscription
	transactions  []sources.Transaction
	summary       *entitlements.StatusSummary
	degraded      degradedSet
}

type degradedSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func (d *degradedSet) add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.names == nil {
		d.names = make(map[string]struct{})
	}
	d.names[name] = struct{}{}
}

func (d *degradedSet) list() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	return out
}

func newPassID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

// run is one guarded reconciliation pass. preferred, when set, is the
// workspace identity to select.
func (s *Store) run(ctx context.Context, force bool, preferred string) (Snapshot, error) {
	s.mu.Lock()
	if s.actor == nil {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap, ErrNoActor
	}
	g := s.guard
	if !g.Begin(force) {
		running := g.Running()
		snap := s.snap.clone()
		s.mu.Unlock()
		if force && running {
			return snap, ErrPassInFlight
		}
		return snap, nil
	}
	defer g.End()

	epoch := s.epoch
	actor := *s.actor
	previous := ""
	if s.snap.ActiveWorkspace != nil {
		previous = s.snap.ActiveWorkspace.ID()
	} else if s.snap.ActiveProfile != "" {
		previous = s.snap.ActiveProfile
	}
	s.snap.Loading = true
	loading := s.snap.clone()
	s.mu.Unlock()
	s.publish(loading)

	res := PassResult{ActorID: actor.ID, PassID: newPassID(), Forced: force, Started: s.now()}
	log := s.log.WithFields(logrus.Fields{"actor_id": actor.ID, "pass_id": res.PassID})

	next, err := s.reconcile(ctx, log, actor, preferred, previous)
	if err == nil {
		next.PassID = res.PassID
		next.UpdatedAt = s.now()
	}

	res.Duration = s.now().Sub(res.Started)
	s.mu.Lock()
	if s.epoch != epoch {
		snap := s.snap.clone()
		s.mu.Unlock()
		res.Discarded = true
		log.Info("session: discarding pass that finished after the session ended")
		s.record(ctx, res)
		return snap, nil
	}
	if err != nil {
		s.snap.Loading = false
		s.snap.Error = err.Error()
		s.snap.PassID = res.PassID
	} else {
		s.snap = next
	}
	out := s.snap.clone()
	s.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("session: reconciliation failed")
		res.Err = err
	} else {
		res.Degraded = out.Degraded
		res.NeedsOnboarding = out.NeedsOnboarding
		s.rememberProfile(ctx, log, actor.ID, out.ActiveProfile)
	}
	s.publish(out)
	s.record(ctx, res)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrReconciliation, err)
	}
	return out, nil
}

// reconcile fetches every source and merges the results into the next
// snapshot. Source failures degrade; only a merge panic or the caller's
// context ending fail the pass.
func (s *Store) reconcile(ctx context.Context, log logrus.FieldLogger, actor identity.Actor, preferred, previous string) (next Snapshot, err error) {
	hint := preferred
	if hint == "" {
		hint = previous
	}
	if hint == "" {
		hint = s.cachedProfile(ctx, log, actor)
	}

	var (
		plans    []entitlements.Plan
		graph    workspace.Graph
		graphErr error
		scoped   *profileData
		shared   degradedSet
	)
	var eg errgroup.Group
	eg.Go(func() error {
		plans = fetch(ctx, s, log, &shared, sources.NamePlans, s.plansCall())
		return nil
	})
	eg.Go(func() error {
		var gerr error
		graph, gerr = sources.Fetch(ctx, s.cfg.SourceTimeout, s.graphCall(actor.ID))
		if gerr != nil {
			graphErr = gerr
			log.WithError(gerr).WithField("source", sources.NameWorkspaces).Warn("session: source failed")
			shared.add(sources.NameWorkspaces)
		}
		return nil
	})
	if hint != "" {
		scoped = &profileData{profileID: hint}
		s.fetchProfile(ctx, log, &eg, scoped)
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			next, err = Snapshot{}, fmt.Errorf("merge: %v", r)
		}
	}()

	next = Snapshot{Actor: actor, Plans: plans}
	switch {
	case graphErr != nil:
		// Keep the hinted profile's data; there is no workspace set to check it against.
	default:
		res, rerr := workspace.Resolve(graph, hint)
		if errors.Is(rerr, workspace.ErrNeedsOnboarding) {
			next.NeedsOnboarding = true
			scoped = nil
			break
		}
		next.Workspaces = res.Workspaces
		next.ActiveWorkspace = res.Active
		next.Legacy = graph.Legacy
		selected := ""
		if res.Active != nil {
			selected = res.Active.ID()
		}
		if selected == "" {
			scoped = nil
		} else if scoped == nil || scoped.profileID != selected {
			scoped = &profileData{profileID: selected}
			var eg errgroup.Group
			s.fetchProfile(ctx, log, &eg, scoped)
			_ = eg.Wait()
			if err := ctx.Err(); err != nil {
				return Snapshot{}, err
			}
		}
	}

	degraded := shared.list()
	if scoped != nil {
		next.ActiveProfile = scoped.profileID
		next.Subscriptions = scoped.subscriptions
		next.Transactions = scoped.transactions
		next.Status = entitlements.Resolve(scoped.subscriptions, scoped.summary)
		degraded = append(degraded, scoped.degraded.list()...)
	} else {
		next.Status = entitlements.Resolve(nil, nil)
	}
	sort.Strings(degraded)
	if len(degraded) > 0 {
		next.Degraded = degraded
	}
	return next, nil
}

func (s *Store) fetchProfile(ctx context.Context, log logrus.FieldLogger, eg *errgroup.Group, p *profileData) {
	log = log.WithField("profile_id", p.profileID)
	eg.Go(func() error {
		p.subscriptions = fetch(ctx, s, log, &p.degraded, sources.NameSubscriptions, s.subscriptionsCall(p.profileID))
		return nil
	})
	eg.Go(func() error {
		p.transactions = fetch(ctx, s, log, &p.degraded, sources.NameTransactions, s.transactionsCall(p.profileID))
		return nil
	})
	eg.Go(func() error {
		p.summary = fetch(ctx, s, log, &p.degraded, sources.NameStatus, s.statusCall(p.profileID))
		return nil
	})
}

// fetch runs one source call; a failure is logged, recorded as degraded and
// read as absent data.
func fetch[T any](ctx context.Context, s *Store, log logrus.FieldLogger, deg *degradedSet, name string, call func(context.Context) (T, error)) T {
	v, err := sources.Fetch(ctx, s.cfg.SourceTimeout, call)
	if err != nil {
		log.WithError(err).WithField("source", name).Warn("session: source failed")
		deg.add(name)
		var zero T
		return zero
	}
	return v
}

func (s *Store) plansCall() func(context.Context) ([]entitlements.Plan, error) {
	if s.src.Plans == nil {
		return nil
	}
	return s.src.Plans.ListActivePlans
}

func (s *Store) graphCall(actorID string) func(context.Context) (workspace.Graph, error) {
	if s.src.Workspaces == nil {
		return nil
	}
	return func(ctx context.Context) (workspace.Graph, error) { return s.src.Workspaces.GetContext(ctx, actorID) }
}

func (s *Store) subscriptionsCall(profileID string) func(context.Context) ([]entitlements.Subscription, error) {
	if s.src.Subscriptions == nil {
		return nil
	}
	return func(ctx context.Context) ([]entitlements.Subscription, error) {
		return s.src.Subscriptions.ListSubscriptions(ctx, profileID)
	}
}

func (s *Store) transactionsCall(profileID string) func(context.Context) ([]sources.Transaction, error) {
	if s.src.Transactions == nil {
		return nil
	}
	return func(ctx context.Context) ([]sources.Transaction, error) {
		return s.src.Transactions.ListTransactions(ctx, profileID)
	}
}

func (s *Store) statusCall(profileID string) func(context.Context) (*entitlements.StatusSummary, error) {
	if s.src.Status == nil {
		return nil
	}
	return func(ctx context.Context) (*entitlements.StatusSummary, error) {
		return s.src.Status.GetStatusSummary(ctx, profileID)
	}
}

// cachedProfile reads the remembered profile, falling back to the token's
// profile claim.
func (s *Store) cachedProfile(ctx context.Context, log logrus.FieldLogger, actor identity.Actor) string {
	if s.profiles != nil {
		id, ok, err := s.profiles.Get(ctx, actor.ID)
		if err != nil {
			log.WithError(err).Warn("session: profile cache read failed")
		} else if ok && id != "" {
			return id
		}
	}
	return actor.ProfileID
}

func (s *Store) rememberProfile(ctx context.Context, log logrus.FieldLogger, actorID, profileID string) {
	if s.profiles == nil || profileID == "" {
		return
	}
	if err := s.profiles.Put(ctx, actorID, profileID); err != nil {
		log.WithError(err).Warn("session: profile cache write failed")
	}
}

func (s *Store) record(ctx context.Context, r PassResult) {
	if s.recorder != nil {
		s.recorder.RecordPass(ctx, r)
	}
}
