// Package migrations holds the Postgres schema read by sources/postgres and
// identity.Store.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// FS exposes the embedded SQL for external runners.
var FS = migrationFS

// Schema is the Postgres schema every table lives in.
const Schema = "memberkit"

// Migrations is a bun/migrate registry for this module.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.Discover(migrationFS); err != nil {
		panic("migrations: discover embedded sql: " + err.Error())
	}
}

// Execer runs one SQL statement; *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Apply runs every up migration in order against db, placing the tables in
// schema. Statements are idempotent, so Apply is safe on every boot.
func Apply(ctx context.Context, db Execer, schema string) error {
	if schema == "" {
		schema = Schema
	}
	target := pgx.Identifier{schema}.Sanitize()
	for _, m := range Migrations.Sorted() {
		files, err := fs.Glob(migrationFS, m.Name+"_*.up.sql")
		if err != nil || len(files) != 1 {
			return fmt.Errorf("migrations: up file for %s not found", m.Name)
		}
		b, err := fs.ReadFile(migrationFS, files[0])
		if err != nil {
			return err
		}
		for _, stmt := range Statements(string(b), target) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrations: %s: %w", m.Name, err)
			}
		}
	}
	return nil
}

// Statements splits a migration file on --bun:split and qualifies it with
// the target schema identifier.
func Statements(sql, target string) []string {
	var out []string
	for _, part := range strings.Split(sql, "--bun:split") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, Schema+".", target+".")
		part = strings.ReplaceAll(part, "SCHEMA IF NOT EXISTS "+Schema, "SCHEMA IF NOT EXISTS "+target)
		part = strings.ReplaceAll(part, "SCHEMA IF EXISTS "+Schema, "SCHEMA IF EXISTS "+target)
		out = append(out, part)
	}
	return out
}
