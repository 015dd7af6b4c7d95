package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/identity"
	jwtkit "github.com/PaulFidika/memberkit/jwt"
	migrations "github.com/PaulFidika/memberkit/migrations/postgres"
	memorylimiter "github.com/PaulFidika/memberkit/ratelimit/memory"
	redislimiter "github.com/PaulFidika/memberkit/ratelimit/redis"
	"github.com/PaulFidika/memberkit/refcache"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/sources/httpapi"
	"github.com/PaulFidika/memberkit/sources/postgres"
	memorystore "github.com/PaulFidika/memberkit/storage/memory"
	redisstore "github.com/PaulFidika/memberkit/storage/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Runtime is a fully wired memberkit instance.
type Runtime struct {
	Config   Config
	Manager  *Manager
	Verifier identity.Verifier
	Catalog  *catalog.Service

	closers []func()
}

// Build connects the configured backends and wires every component. The REST
// backend takes precedence over the database as session source; Redis, when
// configured, holds the shared caches and the refresh limiter.
func Build(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Runtime, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	rt := &Runtime{Config: cfg}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	var pg *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("core: connect postgres: %w", err))
		}
		pg = p
		rt.closers = append(rt.closers, p.Close)
		if cfg.AutoMigrate {
			if err := migrations.Apply(ctx, pg, cfg.DatabaseSchema); err != nil {
				return fail(err)
			}
			log.WithField("schema", cfg.DatabaseSchema).Info("core: schema migrated")
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("core: parse redis url: %w", err))
		}
		rdb = redis.NewClient(opt)
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
	}

	var (
		factory    SourceFactory
		catalogSrc catalog.Source
	)
	switch {
	case cfg.BackendURL != "":
		client, err := httpapi.New(cfg.BackendURL, httpapi.WithHTTPClient(&http.Client{Timeout: cfg.SourceTimeout}))
		if err != nil {
			return fail(err)
		}
		factory = func(_ string, tokens oauth2.TokenSource) sources.Set {
			return sources.FromBackend(client.WithTokenSource(tokens))
		}
		catalogSrc = client
	case pg != nil:
		src := postgres.New(pg, cfg.DatabaseSchema)
		factory = func(string, oauth2.TokenSource) sources.Set { return sources.FromBackend(src) }
		catalogSrc = src
	default:
		return fail(errors.New("core: no session source configured"))
	}

	var (
		profiles identity.ProfileCache
		refStore refcache.Store
		limiter  Limiter
	)
	switch {
	case rdb != nil:
		profiles = redisstore.NewProfileCache(rdb, "", cfg.ProfileCacheTTL)
		refStore = redisstore.NewRefStore(rdb, "")
		limiter = redislimiter.New(rdb, map[string]redislimiter.Limit{
			RefreshBucket: {Limit: cfg.RefreshLimit, Window: cfg.RefreshWindow},
		})
	default:
		if pg != nil {
			profiles = identity.NewStore(pg, cfg.DatabaseSchema)
		} else {
			mem := memorystore.NewProfileCache(cfg.ProfileCacheTTL)
			rt.closers = append(rt.closers, func() { _ = mem.Close() })
			profiles = mem
		}
		refStore = memorystore.NewRefStore()
		limiter = memorylimiter.New(map[string]memorylimiter.Limit{
			RefreshBucket: {Limit: cfg.RefreshLimit, Window: cfg.RefreshWindow},
		})
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return fail(err)
	}
	rt.Verifier = verifier

	rt.Catalog = catalog.NewService(catalogSrc, catalog.Options{TTL: cfg.ReferenceTTL, Store: refStore, Logger: log})
	rt.Manager = NewManager(cfg, factory,
		WithLogger(log),
		WithProfileCache(profiles),
		WithLimiter(limiter),
		WithCatalog(rt.Catalog),
	)
	if err := rt.Manager.Start(); err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, rt.Manager.Stop)
	return rt, nil
}

func newVerifier(cfg Config) (identity.Verifier, error) {
	if cfg.JWKSURL != "" {
		return identity.NewJWKSVerifier(cfg.JWKSURL, cfg.TokenIssuer, cfg.TokenAudience, 0), nil
	}
	keys, err := jwtkit.ParsePublicKeys(map[string]string{cfg.TokenKeyID: cfg.TokenPublicKeyPEM})
	if err != nil {
		return nil, err
	}
	return identity.NewKeyVerifier(keys, cfg.TokenIssuer, cfg.TokenAudience), nil
}

// Close releases connections and stops scheduled jobs, newest first.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
