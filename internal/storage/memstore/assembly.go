package memstore

import (
	"context"
	"sort"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

func (s *Store) CreateArticle(ctx context.Context, a *models.CompositeArticle) (*models.CompositeArticle, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for k, cur := range s.articles {
		if k.tenant == a.TenantID && cur.SKU == a.SKU {
			return nil, errs.Validation("article %s already exists", a.SKU)
		}
	}
	s.articles[key{a.TenantID, a.ID}] = cloneArticle(a)
	return s.withStockLocked(a), nil
}

func (s *Store) GetArticle(ctx context.Context, tenantID, id string) (*models.CompositeArticle, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	a, ok := s.articles[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("composite article", id)
	}
	return s.withStockLocked(a), nil
}

func (s *Store) ListArticles(ctx context.Context, tenantID string) ([]*models.CompositeArticle, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.CompositeArticle, 0)
	for k, a := range s.articles {
		if k.tenant == tenantID {
			out = append(out, s.withStockLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) CreateAssemblyOrder(ctx context.Context, o *models.AssemblyOrder) (*models.AssemblyOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, ok := s.articles[key{o.TenantID, o.ArticleID}]; !ok {
		return nil, errs.NotFound("composite article", o.ArticleID)
	}
	s.assemblies[key{o.TenantID, o.ID}] = cloneAssembly(o)
	return cloneAssembly(o), nil
}

func (s *Store) GetAssemblyOrder(ctx context.Context, tenantID, id string) (*models.AssemblyOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	o, ok := s.assemblies[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("assembly order", id)
	}
	return cloneAssembly(o), nil
}

func (s *Store) MutateAssemblyOrder(ctx context.Context, tenantID, id string, fn func(o *models.AssemblyOrder, a *models.CompositeArticle) ([]models.StockMovement, error)) (*models.AssemblyOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	k := key{tenantID, id}
	cur, ok := s.assemblies[k]
	if !ok {
		return nil, errs.NotFound("assembly order", id)
	}
	a, ok := s.articles[key{tenantID, cur.ArticleID}]
	if !ok {
		return nil, errs.NotFound("composite article", cur.ArticleID)
	}
	next := cloneAssembly(cur)
	moves, err := fn(next, s.withStockLocked(a))
	if err != nil {
		return nil, err
	}
	if err := s.applyMovesLocked(tenantID, moves); err != nil {
		return nil, err
	}
	s.assemblies[k] = next
	return cloneAssembly(next), nil
}

func (s *Store) withStockLocked(a *models.CompositeArticle) *models.CompositeArticle {
	c := cloneArticle(a)
	levels := make(map[string]int, len(c.BOM))
	for _, l := range c.BOM {
		if it, ok := s.stock[key{a.TenantID, l.SKU}]; ok {
			levels[l.SKU] = it.Current
		}
	}
	c.ApplyStock(levels)
	return c
}
