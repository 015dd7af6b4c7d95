// Package catalog serves the public category list used by marketplace views.
package catalog

import (
	"context"
	"time"

	"github.com/PaulFidika/memberkit/refcache"
	"github.com/sirupsen/logrus"
)

// CacheKey is the refcache key of the category list.
const CacheKey = "catalog:categories"

// Category is one marketplace category.
type Category struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

// DefaultCategories is served when the backend is unreachable or returns an
// empty list.
var DefaultCategories = []Category{
	{DocumentID: "static-services", Name: "Services", Slug: "services"},
	{DocumentID: "static-manufacturing", Name: "Manufacturing", Slug: "manufacturing"},
	{DocumentID: "static-retail", Name: "Retail", Slug: "retail"},
	{DocumentID: "static-technology", Name: "Technology", Slug: "technology"},
}

// Source lists categories from the backend.
type Source interface {
	ListCategories(ctx context.Context) ([]Category, error)
}

// Options configures a Service.
type Options struct {
	TTL    time.Duration
	Store  refcache.Store
	Clock  func() time.Time
	Logger logrus.FieldLogger
}

// Service caches the category list.
type Service struct {
	cache *refcache.Cache[Category]
}

// NewService builds a category service over src.
func NewService(src Source, opts Options) *Service {
	var fetch refcache.FetchFunc[Category]
	if src != nil {
		fetch = src.ListCategories
	}
	return &Service{cache: refcache.New(refcache.Config[Category]{
		Key:      CacheKey,
		TTL:      opts.TTL,
		Fetch:    fetch,
		Fallback: DefaultCategories,
		Store:    opts.Store,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})}
}

// Categories returns the cached, freshly fetched, or fallback list.
func (s *Service) Categories(ctx context.Context) []Category {
	return s.cache.Get(ctx)
}

// Invalidate forces the next call to refetch.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}
