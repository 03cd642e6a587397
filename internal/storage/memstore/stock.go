package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

func (s *Store) ListStockItems(ctx context.Context, tenantID string, skus []string) ([]*models.StockItem, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.StockItem, 0)
	if len(skus) > 0 {
		for _, sku := range skus {
			if it, ok := s.stock[key{tenantID, sku}]; ok {
				out = append(out, cloneStock(it))
			}
		}
	} else {
		for k, it := range s.stock {
			if k.tenant == tenantID {
				out = append(out, cloneStock(it))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) GetStockItem(ctx context.Context, tenantID, sku string) (*models.StockItem, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	it, ok := s.stock[key{tenantID, sku}]
	if !ok {
		return nil, errs.NotFound("stock item", sku)
	}
	return cloneStock(it), nil
}

func (s *Store) UpsertStockItem(ctx context.Context, it *models.StockItem) (*models.StockItem, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.stock[key{it.TenantID, it.SKU}] = cloneStock(it)
	return cloneStock(it), nil
}

func (s *Store) StockLevels(ctx context.Context, tenantID string, skus []string) (map[string]int, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make(map[string]int, len(skus))
	for _, sku := range skus {
		if it, ok := s.stock[key{tenantID, sku}]; ok {
			out[sku] = it.Current
		}
	}
	return out, nil
}

func (s *Store) ApplyStockMovements(ctx context.Context, tenantID string, moves []models.StockMovement) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	return s.applyMovesLocked(tenantID, moves)
}

// applyMovesLocked checks every movement before touching any row.
func (s *Store) applyMovesLocked(tenantID string, moves []models.StockMovement) error {
	net := make(map[string]int, len(moves))
	order := make([]string, 0, len(moves))
	for _, m := range moves {
		if _, seen := net[m.SKU]; !seen {
			order = append(order, m.SKU)
		}
		net[m.SKU] += m.Delta
	}

	var short []string
	for _, sku := range order {
		have := 0
		if it, ok := s.stock[key{tenantID, sku}]; ok {
			have = it.Current
		}
		if have+net[sku] < 0 {
			short = append(short, sku)
		}
	}
	if len(short) > 0 {
		return errs.ComponentShortage(short...)
	}

	now := time.Now().UTC()
	for _, sku := range order {
		k := key{tenantID, sku}
		it, ok := s.stock[k]
		if !ok {
			it = &models.StockItem{TenantID: tenantID, SKU: sku}
			s.stock[k] = it
		}
		it.Current += net[sku]
		it.UpdatedAt = now
	}
	return nil
}

func (s *Store) UpsertOpenSuggestion(ctx context.Context, sg *models.PurchaseSuggestion) (*models.PurchaseSuggestion, bool, error) {
	if err := s.lock(ctx); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	for k, cur := range s.suggestions {
		if k.tenant == sg.TenantID && cur.SKU == sg.SKU && cur.Status == models.PurchaseSuggested {
			cur.Quantity = sg.Quantity
			cur.UnitPrice = sg.UnitPrice
			cur.Total = sg.Total
			cur.Supplier = sg.Supplier
			cur.Reason = sg.Reason
			cur.UpdatedAt = sg.UpdatedAt
			return cloneSuggestion(cur), false, nil
		}
	}
	s.suggestions[key{sg.TenantID, sg.ID}] = cloneSuggestion(sg)
	return cloneSuggestion(sg), true, nil
}

func (s *Store) GetSuggestion(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	sg, ok := s.suggestions[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("purchase suggestion", id)
	}
	return cloneSuggestion(sg), nil
}

func (s *Store) ListSuggestions(ctx context.Context, tenantID string, status models.PurchaseStatus) ([]*models.PurchaseSuggestion, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.PurchaseSuggestion, 0)
	for k, sg := range s.suggestions {
		if k.tenant == tenantID && (status == "" || sg.Status == status) {
			out = append(out, cloneSuggestion(sg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuggestedAt.Equal(out[j].SuggestedAt) {
			return out[i].SKU < out[j].SKU
		}
		return out[i].SuggestedAt.Before(out[j].SuggestedAt)
	})
	return out, nil
}

func (s *Store) MutateSuggestion(ctx context.Context, tenantID, id string, fn func(sg *models.PurchaseSuggestion) ([]models.StockMovement, error)) (*models.PurchaseSuggestion, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	k := key{tenantID, id}
	cur, ok := s.suggestions[k]
	if !ok {
		return nil, errs.NotFound("purchase suggestion", id)
	}
	next := cloneSuggestion(cur)
	moves, err := fn(next)
	if err != nil {
		return nil, err
	}
	if err := s.applyMovesLocked(tenantID, moves); err != nil {
		return nil, err
	}
	s.suggestions[k] = next
	return cloneSuggestion(next), nil
}
