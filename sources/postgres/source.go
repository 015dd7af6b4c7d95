// Package postgres reads session sources straight from the marketplace
// database, for services that share it instead of calling the REST backend.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	_ sources.Backend = (*Source)(nil)
	_ catalog.Source  = (*Source)(nil)
)

// Source serves every session source from the memberkit schema.
type Source struct {
	pg     *pgxpool.Pool
	schema string
}

func New(pg *pgxpool.Pool, schema string) *Source {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "memberkit"
	}
	return &Source{pg: pg, schema: s}
}

func (s *Source) t(name string) string { return s.schema + "." + name }

var errNoPool = errors.New("postgres: no pool")

func (s *Source) ListActivePlans(ctx context.Context) ([]entitlements.Plan, error) {
	if s.pg == nil {
		return nil, errNoPool
	}
	rows, err := s.pg.Query(ctx, `SELECT document_id, tier_id, plan_name, current_price::text, duration_code
FROM `+s.t("plans")+` WHERE active ORDER BY sort_order, document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entitlements.Plan
	for rows.Next() {
		var p entitlements.Plan
		var price string
		if err := rows.Scan(&p.DocumentID, &p.TierID, &p.PlanName, &price, &p.DurationCode); err != nil {
			return nil, err
		}
		if p.CurrentPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Source) ListSubscriptions(ctx context.Context, profileID string) ([]entitlements.Subscription, error) {
	if s.pg == nil {
		return nil, errNoPool
	}
	rows, err := s.pg.Query(ctx, `SELECT tier_id, is_active, end_date FROM `+s.t("subscriptions")+`
WHERE profile_id=$1 ORDER BY id`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entitlements.Subscription
	for rows.Next() {
		var sub entitlements.Subscription
		if err := rows.Scan(&sub.TierID, &sub.IsActive, &sub.EndDate); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Source) ListTransactions(ctx context.Context, profileID string) ([]sources.Transaction, error) {
	if s.pg == nil {
		return nil, errNoPool
	}
	rows, err := s.pg.Query(ctx, `SELECT payload FROM `+s.t("transactions")+`
WHERE profile_id=$1 ORDER BY created_at DESC, id DESC`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sources.Transaction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, rows.Err()
}

func (s *Source) GetStatusSummary(ctx context.Context, profileID string) (*entitlements.StatusSummary, error) {
	if s.pg == nil {
		return nil, errNoPool
	}
	var sum entitlements.StatusSummary
	var expiry *time.Time
	err := s.pg.QueryRow(ctx, `SELECT tier, is_active, expiry, message FROM `+s.t("membership_status")+`
WHERE profile_id=$1`, profileID).Scan(&sum.Tier, &sum.IsActive, &expiry, &sum.Message)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum.Expiry = expiry
	return &sum, nil
}

func (s *Source) GetContext(ctx context.Context, actorID string) (workspace.Graph, error) {
	if s.pg == nil {
		return workspace.Graph{}, errNoPool
	}
	var g workspace.Graph
	err := s.pg.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+s.t("actors")+` WHERE actor_id=$1)`, actorID).Scan(&g.Exists)
	if err != nil || !g.Exists {
		return workspace.Graph{}, err
	}

	own, err := s.profile(ctx, `SELECT document_id, name, attributes FROM `+s.t("company_profiles")+` WHERE owner_actor_id=$1`, actorID)
	if err != nil {
		return workspace.Graph{}, err
	}
	g.OwnProfile = own

	rows, err := s.pg.Query(ctx, `SELECT m.role, p.document_id, p.name, p.attributes
FROM `+s.t("team_members")+` m LEFT JOIN `+s.t("company_profiles")+` p ON p.document_id = m.company_profile_id
WHERE m.actor_id=$1 ORDER BY m.id`, actorID)
	if err != nil {
		return workspace.Graph{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m workspace.Membership
		var docID, name *string
		var attrs []byte
		if err := rows.Scan(&m.Role, &docID, &name, &attrs); err != nil {
			return workspace.Graph{}, err
		}
		if docID != nil {
			p := &workspace.Profile{DocumentID: *docID}
			if name != nil {
				p.Name = *name
			}
			if err := decodeAttrs(attrs, p); err != nil {
				return workspace.Graph{}, err
			}
			m.CompanyProfile = p
		}
		g.Memberships = append(g.Memberships, m)
	}
	if err := rows.Err(); err != nil {
		return workspace.Graph{}, err
	}

	var role string
	var perms []string
	var isOwner bool
	err = s.pg.QueryRow(ctx, `SELECT role, permissions, is_owner FROM `+s.t("legacy_permissions")+` WHERE actor_id=$1`, actorID).
		Scan(&role, &perms, &isOwner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return workspace.Graph{}, err
	default:
		g.Legacy = workspace.NewLegacyPermissions(role, isOwner, perms...)
	}
	return g, nil
}

func (s *Source) profile(ctx context.Context, query string, args ...any) (*workspace.Profile, error) {
	var p workspace.Profile
	var attrs []byte
	err := s.pg.QueryRow(ctx, query, args...).Scan(&p.DocumentID, &p.Name, &attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeAttrs(attrs, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeAttrs(raw []byte, p *workspace.Profile) error {
	if len(raw) == 0 {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return err
	}
	if len(attrs) > 0 {
		p.Attributes = attrs
	}
	return nil
}

func (s *Source) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	if s.pg == nil {
		return nil, errNoPool
	}
	rows, err := s.pg.Query(ctx, `SELECT document_id, name, slug FROM `+s.t("categories")+` ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.DocumentID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
