package pglogistics

import (
	"context"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const routeColumns = `
  id, tenant_id, name, driver, vehicle, route_date, status,
  optimize, distance_km, duration_minutes, created_at, updated_at`

func scanRoute(row rowScanner) (*models.Route, error) {
	var r models.Route
	if err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.Driver, &r.Vehicle, &r.Date, &r.Status,
		&r.Optimize, &r.DistanceKm, &r.DurationMinutes, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func loadStops(ctx context.Context, q querier, r *models.Route) error {
	rows, err := q.Query(ctx, `
SELECT id, route_id, shipment_id, idx, status, lat, lng, notes, completed_at, proof_ref
FROM route_stops
WHERE route_id = $1
ORDER BY idx ASC
`, r.ID)
	if err != nil {
		return mapErr(err, "select stops")
	}
	defer rows.Close()

	r.Stops = make([]*models.Stop, 0)
	for rows.Next() {
		var st models.Stop
		var lat, lng *float64
		if err := rows.Scan(
			&st.ID, &st.RouteID, &st.ShipmentID, &st.Index, &st.Status,
			&lat, &lng, &st.Notes, &st.CompletedAt, &st.ProofRef,
		); err != nil {
			return errors.Wrap(err, "scan stop")
		}
		st.Coords = coordsFrom(lat, lng)
		r.Stops = append(r.Stops, &st)
	}
	if rows.Err() != nil {
		return mapErr(rows.Err(), "rows")
	}
	return nil
}

// saveRoute rewrites the route row and its stop list.
func saveRoute(ctx context.Context, tx pgx.Tx, r *models.Route) error {
	_, err := tx.Exec(ctx, `
UPDATE routes
SET
  name = $3,
  driver = $4,
  vehicle = $5,
  route_date = $6,
  status = $7,
  optimize = $8,
  distance_km = $9,
  duration_minutes = $10,
  updated_at = $11
WHERE tenant_id = $1 AND id = $2
`, r.TenantID, r.ID, r.Name, r.Driver, r.Vehicle, r.Date, r.Status,
		r.Optimize, r.DistanceKm, r.DurationMinutes, r.UpdatedAt.UTC())
	if err != nil {
		return mapErr(err, "update route")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM route_stops WHERE route_id = $1`, r.ID); err != nil {
		return mapErr(err, "clear stops")
	}
	return insertStops(ctx, tx, r)
}

func insertStops(ctx context.Context, tx pgx.Tx, r *models.Route) error {
	for _, st := range r.Stops {
		lat, lng := coordsArgs(st.Coords)
		_, err := tx.Exec(ctx, `
INSERT INTO route_stops (id, route_id, shipment_id, idx, status, lat, lng, notes, completed_at, proof_ref)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, st.ID, r.ID, st.ShipmentID, st.Index, st.Status, lat, lng, st.Notes, utc(st.CompletedAt), st.ProofRef)
		if err != nil {
			return mapErr(err, "insert stop")
		}
		st.RouteID = r.ID
	}
	return nil
}

func (s *Storage) CreateRoute(ctx context.Context, r *models.Route) (*models.Route, error) {
	var out *models.Route
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		created, err := scanRoute(tx.QueryRow(ctx, `
INSERT INTO routes (
  id, tenant_id, name, driver, vehicle, route_date, status,
  optimize, distance_km, duration_minutes, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING`+routeColumns,
			r.ID, r.TenantID, r.Name, r.Driver, r.Vehicle, r.Date, r.Status,
			r.Optimize, r.DistanceKm, r.DurationMinutes, r.CreatedAt.UTC(), r.UpdatedAt.UTC()))
		if err != nil {
			return mapErr(err, "insert route")
		}
		created.Stops = r.Stops
		created.Reindex()
		if err := insertStops(ctx, tx, created); err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	r, err := scanRoute(s.db.QueryRow(ctx, `SELECT`+routeColumns+`
FROM routes
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("route", id)
	}
	if err != nil {
		return nil, mapErr(err, "select route")
	}
	if err := loadStops(ctx, s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Storage) ListRoutes(ctx context.Context, tenantID string, status models.RouteStatus) ([]*models.Route, error) {
	rows, err := s.db.Query(ctx, `SELECT`+routeColumns+`
FROM routes
WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
ORDER BY route_date ASC, name ASC
`, tenantID, string(status))
	if err != nil {
		return nil, mapErr(err, "select routes")
	}
	out := make([]*models.Route, 0)
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan route")
		}
		out = append(out, r)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}

	for _, r := range out {
		if err := loadStops(ctx, s.db, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Storage) MutateRoute(ctx context.Context, tenantID, id string, fn func(r *models.Route) error) (*models.Route, error) {
	var out *models.Route
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := lockRoute(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		r.Reindex()
		if err := saveRoute(ctx, tx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReassignStop runs fn on the target route after detaching the shipment's
// pending stop from every other active route of the tenant. All touched
// routes are locked in id order in one transaction.
func (s *Storage) ReassignStop(ctx context.Context, tenantID, routeID, shipmentID string, fn func(r *models.Route) error) (*models.Route, error) {
	var out *models.Route
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT id
FROM routes
WHERE tenant_id = $1
  AND (
    id = $2
    OR (
      status IN ('pending', 'in_progress')
      AND id IN (SELECT route_id FROM route_stops WHERE shipment_id = $3 AND status = 'pending')
    )
  )
ORDER BY id
FOR UPDATE
`, tenantID, routeID, shipmentID)
		if err != nil {
			return mapErr(err, "lock routes")
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan route id")
			}
			ids = append(ids, id)
		}
		rows.Close()
		if rows.Err() != nil {
			return mapErr(rows.Err(), "rows")
		}

		found := false
		for _, id := range ids {
			if id == routeID {
				found = true
				continue
			}
			other, err := loadRoute(ctx, tx, tenantID, id)
			if err != nil {
				return err
			}
			if other.RemoveShipment(shipmentID) {
				if err := saveRoute(ctx, tx, other); err != nil {
					return err
				}
			}
		}
		if !found {
			return errs.NotFound("route", routeID)
		}

		r, err := loadRoute(ctx, tx, tenantID, routeID)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		r.Reindex()
		if err := saveRoute(ctx, tx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockRoute(ctx context.Context, tx pgx.Tx, tenantID, id string) (*models.Route, error) {
	r, err := scanRoute(tx.QueryRow(ctx, `SELECT`+routeColumns+`
FROM routes
WHERE tenant_id = $1 AND id = $2
FOR UPDATE
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("route", id)
	}
	if err != nil {
		return nil, mapErr(err, "lock route")
	}
	if err := loadStops(ctx, tx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// loadRoute reads a route whose row lock the transaction already holds.
func loadRoute(ctx context.Context, tx pgx.Tx, tenantID, id string) (*models.Route, error) {
	r, err := scanRoute(tx.QueryRow(ctx, `SELECT`+routeColumns+`
FROM routes
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("route", id)
	}
	if err != nil {
		return nil, mapErr(err, "select route")
	}
	if err := loadStops(ctx, tx, r); err != nil {
		return nil, err
	}
	return r, nil
}
