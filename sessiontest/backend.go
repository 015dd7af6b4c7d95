package sessiontest

import (
	"context"
	"sync"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
)

// NameCategories counts catalog calls next to the session source names.
const NameCategories = "categories"

// Backend is an in-memory marketplace backend. It serves every session source
// and the category list, counts calls per source, and can hold calls at a
// gate so tests can observe a pass in flight.
type Backend struct {
	mu            sync.Mutex
	plans         []entitlements.Plan
	subscriptions map[string][]entitlements.Subscription
	transactions  map[string][]sources.Transaction
	summaries     map[string]*entitlements.StatusSummary
	graphs        map[string]workspace.Graph
	categories    []catalog.Category
	failures      map[string]error
	panics        map[string]bool
	calls         map[string][]string
	gate          chan struct{}
	entered       chan string
}

var (
	_ sources.Backend = (*Backend)(nil)
	_ catalog.Source  = (*Backend)(nil)
)

func NewBackend() *Backend {
	return &Backend{
		subscriptions: map[string][]entitlements.Subscription{},
		transactions:  map[string][]sources.Transaction{},
		summaries:     map[string]*entitlements.StatusSummary{},
		graphs:        map[string]workspace.Graph{},
		failures:      map[string]error{},
		panics:        map[string]bool{},
		calls:         map[string][]string{},
		entered:       make(chan string, 64),
	}
}

// Set returns a sources.Set served entirely by b.
func (b *Backend) Set() sources.Set { return sources.FromBackend(b) }

func (b *Backend) SetPlans(plans ...entitlements.Plan) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plans = plans
}

func (b *Backend) SetGraph(actorID string, g workspace.Graph) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graphs[actorID] = g
}

func (b *Backend) SetSubscriptions(profileID string, subs ...entitlements.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[profileID] = subs
}

func (b *Backend) SetTransactions(profileID string, txns ...sources.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transactions[profileID] = txns
}

func (b *Backend) SetSummary(profileID string, s *entitlements.StatusSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries[profileID] = s
}

func (b *Backend) SetCategories(cats ...catalog.Category) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.categories = cats
}

// Fail makes every call to the named source return err; a nil err clears it.
func (b *Backend) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, name)
		return
	}
	b.failures[name] = err
}

// Panic makes the named source panic when called.
func (b *Backend) Panic(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panics[name] = true
}

// Hold makes every subsequent call block until the returned release func is
// called (or the call's context ends).
func (b *Backend) Hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Entered receives the source name of every call as it starts.
func (b *Backend) Entered() <-chan string { return b.entered }

// Calls returns how many times the named source was called.
func (b *Backend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls[name])
}

// CallArgs returns the profile or actor id of every call to the named source.
func (b *Backend) CallArgs(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls[name]...)
}

// TotalCalls counts calls across all sources.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += len(c)
	}
	return n
}

func (b *Backend) enter(ctx context.Context, name, arg string) error {
	b.mu.Lock()
	b.calls[name] = append(b.calls[name], arg)
	gate := b.gate
	err := b.failures[name]
	panics := b.panics[name]
	b.mu.Unlock()

	select {
	case b.entered <- name:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if panics {
		panic("sessiontest: " + name + " exploded")
	}
	return err
}

func (b *Backend) ListActivePlans(ctx context.Context) ([]entitlements.Plan, error) {
	if err := b.enter(ctx, sources.NamePlans, ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entitlements.Plan(nil), b.plans...), nil
}

func (b *Backend) ListSubscriptions(ctx context.Context, profileID string) ([]entitlements.Subscription, error) {
	if err := b.enter(ctx, sources.NameSubscriptions, profileID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entitlements.Subscription(nil), b.subscriptions[profileID]...), nil
}

func (b *Backend) ListTransactions(ctx context.Context, profileID string) ([]sources.Transaction, error) {
	if err := b.enter(ctx, sources.NameTransactions, profileID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sources.Transaction(nil), b.transactions[profileID]...), nil
}

func (b *Backend) GetStatusSummary(ctx context.Context, profileID string) (*entitlements.StatusSummary, error) {
	if err := b.enter(ctx, sources.NameStatus, profileID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.summaries[profileID]
	if !ok || s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (b *Backend) GetContext(ctx context.Context, actorID string) (workspace.Graph, error) {
	if err := b.enter(ctx, sources.NameWorkspaces, actorID); err != nil {
		return workspace.Graph{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graphs[actorID], nil
}

func (b *Backend) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	if err := b.enter(ctx, NameCategories, ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]catalog.Category(nil), b.categories...), nil
}

// Graph builds a workspace graph: an owned profile (when ownID is non-empty)
// plus memberships given as alternating profile id and role.
func Graph(ownID string, memberships ...string) workspace.Graph {
	g := workspace.Graph{Exists: true}
	if ownID != "" {
		g.OwnProfile = &workspace.Profile{DocumentID: ownID, Name: ownID}
	}
	for i := 0; i+1 < len(memberships); i += 2 {
		g.Memberships = append(g.Memberships, workspace.Membership{
			Role:           memberships[i+1],
			CompanyProfile: &workspace.Profile{DocumentID: memberships[i], Name: memberships[i]},
		})
	}
	return g
}
