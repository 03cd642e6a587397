package memstore

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

func (s *Store) CreateOrGetShipment(ctx context.Context, sh *models.Shipment) (*models.Shipment, bool, error) {
	if err := s.lock(ctx); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	if sh.SourceRef != "" {
		for k, cur := range s.shipments {
			if k.tenant == sh.TenantID && cur.SourceRef == sh.SourceRef {
				return cloneShipment(cur), false, nil
			}
		}
	}
	s.shipments[key{sh.TenantID, sh.ID}] = cloneShipment(sh)
	return cloneShipment(sh), true, nil
}

func (s *Store) GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	sh, ok := s.shipments[key{tenantID, id}]
	if !ok {
		return nil, errs.NotFound("shipment", id)
	}
	return cloneShipment(sh), nil
}

func (s *Store) ListShipmentsByOrder(ctx context.Context, tenantID, orderID string) ([]*models.Shipment, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := make([]*models.Shipment, 0)
	for k, sh := range s.shipments {
		if k.tenant == tenantID && sh.OrderID == orderID {
			out = append(out, cloneShipment(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListShipmentEvents(ctx context.Context, tenantID, shipmentID string) ([]*models.TrackingEvent, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	evs := s.events[key{tenantID, shipmentID}]
	out := make([]*models.TrackingEvent, 0, len(evs))
	for _, e := range evs {
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (s *Store) MutateShipment(ctx context.Context, tenantID, id string, fn func(sh *models.Shipment) (*models.TrackingEvent, error)) (*models.Shipment, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	k := key{tenantID, id}
	cur, ok := s.shipments[k]
	if !ok {
		return nil, errs.NotFound("shipment", id)
	}
	next := cloneShipment(cur)
	ev, err := fn(next)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	if ev != nil {
		s.eventSeq++
		ev.ID = strconv.FormatInt(s.eventSeq, 10)
		ev.ShipmentID = id
		ev.Seq = len(s.events[k]) + 1
		s.events[k] = append(s.events[k], cloneEvent(ev))
	}
	s.shipments[k] = next
	return cloneShipment(next), nil
}

func (s *Store) ScheduleNextCheck(ctx context.Context, tenantID, id string, checkedAt, next time.Time, checkErr *string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	sh, ok := s.shipments[key{tenantID, id}]
	if !ok {
		return errs.NotFound("shipment", id)
	}
	sh.NextCheckAt = next
	sh.LastError = checkErr
	if checkErr != nil {
		sh.CheckFailCount++
	} else {
		sh.CheckFailCount = 0
	}
	sh.UpdatedAt = checkedAt
	return nil
}

// ClaimDueShipments leases up to limit in-flight shipments whose next carrier
// check is due, oldest due first.
func (s *Store) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var due []*models.Shipment
	for _, sh := range s.shipments {
		if pollable(sh) && !sh.NextCheckAt.After(now) {
			due = append(due, sh)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]*models.Shipment, 0, len(due))
	for _, sh := range due {
		sh.NextCheckAt = now.Add(lease)
		out = append(out, cloneShipment(sh))
	}
	return out, nil
}

func pollable(sh *models.Shipment) bool {
	return sh.CarrierCode != "" && sh.TrackingNumber != "" && !sh.Status.Terminal()
}
