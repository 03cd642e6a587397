package pglogistics

import (
	"context"
	"encoding/json"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const orderColumns = `
  id, tenant_id, order_ref, customer, recipient, destination,
  dest_lat, dest_lng, carrier_code, status, priority, zone,
  wave_id, worker, lines, packages, shipment_id, created_at, updated_at`

func scanOrder(row rowScanner) (*models.FulfillmentOrder, error) {
	var o models.FulfillmentOrder
	var lat, lng *float64
	var lines []byte
	if err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderRef, &o.Customer, &o.Recipient, &o.Destination,
		&lat, &lng, &o.CarrierCode, &o.Status, &o.Priority, &o.Zone,
		&o.WaveID, &o.Worker, &lines, &o.Packages, &o.ShipmentID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.DestinationCoords = coordsFrom(lat, lng)
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, errors.Wrap(err, "decode pick lines")
	}
	return &o, nil
}

func (s *Storage) CreateFulfillmentOrder(ctx context.Context, o *models.FulfillmentOrder) (*models.FulfillmentOrder, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, errors.Wrap(err, "encode pick lines")
	}
	lat, lng := coordsArgs(o.DestinationCoords)
	out, err := scanOrder(s.db.QueryRow(ctx, `
INSERT INTO fulfillment_orders (
  id, tenant_id, order_ref, customer, recipient, destination,
  dest_lat, dest_lng, carrier_code, status, priority, zone,
  wave_id, worker, lines, packages, shipment_id, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (tenant_id, order_ref) DO NOTHING
RETURNING`+orderColumns,
		o.ID, o.TenantID, o.OrderRef, o.Customer, o.Recipient, o.Destination,
		lat, lng, o.CarrierCode, o.Status, o.Priority, o.Zone,
		o.WaveID, o.Worker, lines, o.Packages, o.ShipmentID, o.CreatedAt.UTC(), o.UpdatedAt.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Validation("fulfillment order for %s already exists", o.OrderRef)
	}
	if err != nil {
		return nil, mapErr(err, "insert fulfillment order")
	}
	return out, nil
}

func (s *Storage) GetFulfillmentOrder(ctx context.Context, tenantID, id string) (*models.FulfillmentOrder, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT`+orderColumns+`
FROM fulfillment_orders
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("fulfillment order", id)
	}
	if err != nil {
		return nil, mapErr(err, "select fulfillment order")
	}
	return o, nil
}

func (s *Storage) ListFulfillmentOrders(ctx context.Context, tenantID string, f models.FulfillmentFilter) ([]*models.FulfillmentOrder, error) {
	rows, err := s.db.Query(ctx, `SELECT`+orderColumns+`
FROM fulfillment_orders
WHERE tenant_id = $1
  AND ($2 = '' OR wave_id = $2)
  AND ($3 = '' OR status = $3)
ORDER BY created_at ASC, id ASC
`, tenantID, f.WaveID, string(f.Status))
	if err != nil {
		return nil, mapErr(err, "select fulfillment orders")
	}
	defer rows.Close()

	out := make([]*models.FulfillmentOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan fulfillment order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) MutateFulfillmentOrder(ctx context.Context, tenantID, id string, fn func(o *models.FulfillmentOrder) error) (*models.FulfillmentOrder, error) {
	var out *models.FulfillmentOrder
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT`+orderColumns+`
FROM fulfillment_orders
WHERE tenant_id = $1 AND id = $2
FOR UPDATE
`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("fulfillment order", id)
		}
		if err != nil {
			return mapErr(err, "lock fulfillment order")
		}

		if err := fn(o); err != nil {
			return err
		}
		lines, err := json.Marshal(o.Lines)
		if err != nil {
			return errors.Wrap(err, "encode pick lines")
		}
		_, err = tx.Exec(ctx, `
UPDATE fulfillment_orders
SET
  status = $3,
  priority = $4,
  zone = $5,
  wave_id = $6,
  worker = $7,
  lines = $8,
  packages = $9,
  shipment_id = $10,
  updated_at = $11
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, o.Status, o.Priority, o.Zone, o.WaveID, o.Worker, lines, o.Packages, o.ShipmentID, o.UpdatedAt.UTC())
		if err != nil {
			return mapErr(err, "update fulfillment order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const waveColumns = `id, tenant_id, name, worker_count, started_at, created_at`

func scanWave(row rowScanner) (*models.Wave, error) {
	var w models.Wave
	if err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.WorkerCount, &w.StartedAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Storage) CreateWave(ctx context.Context, w *models.Wave) (*models.Wave, error) {
	out, err := scanWave(s.db.QueryRow(ctx, `
INSERT INTO waves (id, tenant_id, name, worker_count, started_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+waveColumns,
		w.ID, w.TenantID, w.Name, w.WorkerCount, utc(w.StartedAt), w.CreatedAt.UTC()))
	if err != nil {
		return nil, mapErr(err, "insert wave")
	}
	return out, nil
}

func (s *Storage) GetWave(ctx context.Context, tenantID, id string) (*models.Wave, error) {
	w, err := scanWave(s.db.QueryRow(ctx, `SELECT `+waveColumns+` FROM waves WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("wave", id)
	}
	if err != nil {
		return nil, mapErr(err, "select wave")
	}
	return w, nil
}

func (s *Storage) MutateWave(ctx context.Context, tenantID, id string, fn func(w *models.Wave) error) (*models.Wave, error) {
	var out *models.Wave
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		w, err := scanWave(tx.QueryRow(ctx, `SELECT `+waveColumns+` FROM waves WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("wave", id)
		}
		if err != nil {
			return mapErr(err, "lock wave")
		}
		if err := fn(w); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
UPDATE waves SET name = $3, worker_count = $4, started_at = $5
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, w.Name, w.WorkerCount, utc(w.StartedAt))
		if err != nil {
			return mapErr(err, "update wave")
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
