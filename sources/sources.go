// Package sources declares the independent backend reads that feed a
// reconciliation pass. Each source fails on its own; callers treat a failure
// as absent data.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/workspace"
)

// Source names, used in logs and degraded-source reports.
const (
	NamePlans         = "plans"
	NameSubscriptions = "subscriptions"
	NameTransactions  = "transactions"
	NameStatus        = "status_summary"
	NameWorkspaces    = "workspaces"
)

// DefaultTimeout bounds a single source call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is returned for a source missing from a Set.
var ErrNotConfigured = errors.New("source not configured")

// Transaction is an opaque ledger record, passed through unmodified.
type Transaction = json.RawMessage

// PlanSource lists the public plan catalog.
type PlanSource interface {
	ListActivePlans(ctx context.Context) ([]entitlements.Plan, error)
}

// SubscriptionSource lists subscriptions of a profile.
type SubscriptionSource interface {
	ListSubscriptions(ctx context.Context, profileID string) ([]entitlements.Subscription, error)
}

// TransactionSource lists ledger records of a profile.
type TransactionSource interface {
	ListTransactions(ctx context.Context, profileID string) ([]Transaction, error)
}

// StatusSource reads the status summary of a profile. A nil summary with a
// nil error means the backend has none.
type StatusSource interface {
	GetStatusSummary(ctx context.Context, profileID string) (*entitlements.StatusSummary, error)
}

// WorkspaceSource reads the owned profile and memberships of an actor.
type WorkspaceSource interface {
	GetContext(ctx context.Context, actorID string) (workspace.Graph, error)
}

// Set bundles the sources of one session.
type Set struct {
	Plans         PlanSource
	Subscriptions SubscriptionSource
	Transactions  TransactionSource
	Status        StatusSource
	Workspaces    WorkspaceSource
}

// Backend is implemented by clients that serve every source.
type Backend interface {
	PlanSource
	SubscriptionSource
	TransactionSource
	StatusSource
	WorkspaceSource
}

// FromBackend builds a Set whose sources are all served by b.
func FromBackend(b Backend) Set {
	return Set{Plans: b, Subscriptions: b, Transactions: b, Status: b, Workspaces: b}
}

// Fetch runs one source call under its own timeout. Panics inside the call
// are converted into errors so one misbehaving source cannot take down the
// others. A call that ignores its context is abandoned at the deadline; its
// goroutine exits whenever the call finally returns.
func Fetch[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if call == nil {
		return zero, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		v, err := call(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
