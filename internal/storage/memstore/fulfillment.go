package memstore

import (
	"context"
	"sort"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

func (s *Store) CreateFulfillmentOrder(ctx context.Context, o *models.FulfillmentOrder) (*models.FulfillmentOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for k, cur := range s.orders {
		if k.tenant == o.TenantID && cur.OrderRef == o.OrderRef {
			return nil, errs.Validation("fulfillment order for %s already exists", o.OrderRef)
		}
	}
	s.orders[key{o.TenantID, o.ID}] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (s *Store) GetFulfillmentOrder(ctx context.Context, tenantID, id string) (*models.FulfillmentOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("fulfillment order", id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListFulfillmentOrders(ctx context.Context, tenantID string, f models.FulfillmentFilter) ([]*models.FulfillmentOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.FulfillmentOrder, 0)
	for k, o := range s.orders {
		if k.tenant != tenantID {
			continue
		}
		if f.WaveID != "" && (o.WaveID == nil || *o.WaveID != f.WaveID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MutateFulfillmentOrder(ctx context.Context, tenantID, id string, fn func(o *models.FulfillmentOrder) error) (*models.FulfillmentOrder, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	k := key{tenantID, id}
	cur, ok := s.orders[k]
	if !ok {
		return nil, errs.NotFound("fulfillment order", id)
	}
	next := cloneOrder(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	s.orders[k] = next
	return cloneOrder(next), nil
}

func (s *Store) CreateWave(ctx context.Context, w *models.Wave) (*models.Wave, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.waves[key{w.TenantID, w.ID}] = cloneWave(w)
	return cloneWave(w), nil
}

func (s *Store) GetWave(ctx context.Context, tenantID, id string) (*models.Wave, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	w, ok := s.waves[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("wave", id)
	}
	return cloneWave(w), nil
}

func (s *Store) MutateWave(ctx context.Context, tenantID, id string, fn func(w *models.Wave) error) (*models.Wave, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	k := key{tenantID, id}
	cur, ok := s.waves[k]
	if !ok {
		return nil, errs.NotFound("wave", id)
	}
	next := cloneWave(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	s.waves[k] = next
	return cloneWave(next), nil
}
