package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the remembered active profile in Postgres
// (<schema>.active_profiles, see migrations/postgres). It implements
// ProfileCache for deployments without Redis.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "memberkit"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) table() string { return s.schema + ".active_profiles" }

func (s *Store) Get(ctx context.Context, actorID string) (string, bool, error) {
	if s.pg == nil || strings.TrimSpace(actorID) == "" {
		return "", false, nil
	}
	var profileID string
	err := s.pg.QueryRow(ctx, `SELECT profile_id FROM `+s.table()+` WHERE actor_id=$1`, actorID).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return profileID, true, nil
}

func (s *Store) Put(ctx context.Context, actorID, profileID string) error {
	if s.pg == nil || strings.TrimSpace(actorID) == "" || strings.TrimSpace(profileID) == "" {
		return nil
	}
	_, err := s.pg.Exec(ctx, `INSERT INTO `+s.table()+` (actor_id, profile_id, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (actor_id) DO UPDATE SET profile_id=EXCLUDED.profile_id, updated_at=NOW()`, actorID, profileID)
	return err
}

func (s *Store) Del(ctx context.Context, actorID string) error {
	if s.pg == nil || strings.TrimSpace(actorID) == "" {
		return nil
	}
	_, err := s.pg.Exec(ctx, `DELETE FROM `+s.table()+` WHERE actor_id=$1`, actorID)
	return err
}
