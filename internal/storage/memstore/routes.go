package memstore

import (
	"context"
	"sort"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

func (s *Store) CreateRoute(ctx context.Context, r *models.Route) (*models.Route, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.routes[key{r.TenantID, r.ID}] = cloneRoute(r)
	return cloneRoute(r), nil
}

func (s *Store) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	r, ok := s.routes[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("route", id)
	}
	return cloneRoute(r), nil
}

func (s *Store) ListRoutes(ctx context.Context, tenantID string, status models.RouteStatus) ([]*models.Route, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.Route, 0)
	for k, r := range s.routes {
		if k.tenant == tenantID && (status == "" || r.Status == status) {
			out = append(out, cloneRoute(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) MutateRoute(ctx context.Context, tenantID, id string, fn func(r *models.Route) error) (*models.Route, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	return s.mutateRouteLocked(tenantID, id, fn)
}

func (s *Store) ReassignStop(ctx context.Context, tenantID, routeID, shipmentID string, fn func(r *models.Route) error) (*models.Route, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, ok := s.routes[key{tenantID, routeID}]; !ok {
		return nil, errs.NotFound("route", routeID)
	}
	// Detach on copies first so a failing fn leaves every route untouched.
	detached := make(map[key]*models.Route)
	for k, r := range s.routes {
		if k.tenant != tenantID || k.id == routeID || !r.Status.Active() {
			continue
		}
		c := cloneRoute(r)
		if c.RemoveShipment(shipmentID) {
			detached[k] = c
		}
	}
	out, err := s.mutateRouteLocked(tenantID, routeID, fn)
	if err != nil {
		return nil, err
	}
	for k, r := range detached {
		s.routes[k] = r
	}
	return out, nil
}

func (s *Store) mutateRouteLocked(tenantID, id string, fn func(r *models.Route) error) (*models.Route, error) {
	k := key{tenantID, id}
	cur, ok := s.routes[k]
	if !ok {
		return nil, errs.NotFound("route", id)
	}
	next := cloneRoute(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Reindex()
	s.routes[k] = next
	return cloneRoute(next), nil
}
