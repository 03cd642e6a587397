package pglogistics

import (
	"context"
	"strconv"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, tenant_id, number, order_id, source_ref, status,
  carrier_code, tracking_number, leg, origin, destination,
  dest_lat, dest_lng, recipient, weight_kg, packages,
  estimated_delivery, delivered_at, proof_signer, proof_signature_ref,
  next_check_at, check_fail_count, last_error,
  created_at, updated_at`

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var sh models.Shipment
	var sourceRef, signer, signatureRef *string
	var lat, lng *float64
	if err := row.Scan(
		&sh.ID, &sh.TenantID, &sh.Number, &sh.OrderID, &sourceRef, &sh.Status,
		&sh.CarrierCode, &sh.TrackingNumber, &sh.Leg, &sh.Origin, &sh.Destination,
		&lat, &lng, &sh.Recipient, &sh.WeightKg, &sh.Packages,
		&sh.EstimatedDelivery, &sh.DeliveredAt, &signer, &signatureRef,
		&sh.NextCheckAt, &sh.CheckFailCount, &sh.LastError,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sh.SourceRef = deref(sourceRef)
	sh.DestinationCoords = coordsFrom(lat, lng)
	if signer != nil {
		sh.Proof = &models.ProofOfDelivery{Signer: *signer, SignatureRef: deref(signatureRef)}
	}
	return &sh, nil
}

func (s *Storage) CreateOrGetShipment(ctx context.Context, sh *models.Shipment) (*models.Shipment, bool, error) {
	lat, lng := coordsArgs(sh.DestinationCoords)
	tag, err := s.db.Exec(ctx, `
INSERT INTO shipments (
  id, tenant_id, number, order_id, source_ref, status,
  carrier_code, tracking_number, leg, origin, destination,
  dest_lat, dest_lng, recipient, weight_kg, packages,
  estimated_delivery, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19)
ON CONFLICT (tenant_id, source_ref) WHERE source_ref IS NOT NULL DO NOTHING
`, sh.ID, sh.TenantID, sh.Number, sh.OrderID, nullable(sh.SourceRef), sh.Status,
		sh.CarrierCode, sh.TrackingNumber, sh.Leg, sh.Origin, sh.Destination,
		lat, lng, sh.Recipient, sh.WeightKg, sh.Packages,
		utc(sh.EstimatedDelivery), sh.NextCheckAt.UTC(), sh.CreatedAt.UTC())
	if err != nil {
		return nil, false, mapErr(err, "insert shipment")
	}
	if tag.RowsAffected() == 1 {
		out, err := s.GetShipment(ctx, sh.TenantID, sh.ID)
		return out, true, err
	}

	existing, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE tenant_id = $1 AND source_ref = $2
`, sh.TenantID, sh.SourceRef))
	if err != nil {
		return nil, false, mapErr(err, "select shipment by source ref")
	}
	return existing, false, nil
}

func (s *Storage) GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("shipment", id)
	}
	if err != nil {
		return nil, mapErr(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) ListShipmentsByOrder(ctx context.Context, tenantID, orderID string) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE tenant_id = $1 AND order_id = $2
ORDER BY created_at ASC, id ASC
`, tenantID, orderID)
	if err != nil {
		return nil, mapErr(err, "select shipments by order")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListShipmentEvents(ctx context.Context, tenantID, shipmentID string) ([]*models.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id::text, shipment_id, seq, status, description,
  location, lat, lng, origin, occurred_at, recorded_at
FROM tracking_events
WHERE tenant_id = $1 AND shipment_id = $2
ORDER BY seq ASC
`, tenantID, shipmentID)
	if err != nil {
		return nil, mapErr(err, "select events")
	}
	defer rows.Close()

	out := make([]*models.TrackingEvent, 0)
	for rows.Next() {
		var e models.TrackingEvent
		var lat, lng *float64
		if err := rows.Scan(
			&e.ID, &e.ShipmentID, &e.Seq, &e.Status, &e.Description,
			&e.Location, &lat, &lng, &e.Origin, &e.OccurredAt, &e.RecordedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Coords = coordsFrom(lat, lng)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

// MutateShipment locks the shipment row, lets fn change it and appends the
// event fn returns with the next sequence number.
func (s *Storage) MutateShipment(ctx context.Context, tenantID, id string, fn func(sh *models.Shipment) (*models.TrackingEvent, error)) (*models.Shipment, error) {
	var out *models.Shipment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sh, err := scanShipment(tx.QueryRow(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE tenant_id = $1 AND id = $2
FOR UPDATE
`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("shipment", id)
		}
		if err != nil {
			return mapErr(err, "lock shipment")
		}

		ev, err := fn(sh)
		if err != nil {
			return err
		}
		sh.UpdatedAt = time.Now().UTC()

		var signer, signatureRef *string
		if sh.Proof != nil {
			signer = &sh.Proof.Signer
			signatureRef = nullable(sh.Proof.SignatureRef)
		}
		lat, lng := coordsArgs(sh.DestinationCoords)
		_, err = tx.Exec(ctx, `
UPDATE shipments
SET
  status = $3,
  carrier_code = $4,
  tracking_number = $5,
  destination = $6,
  dest_lat = $7,
  dest_lng = $8,
  recipient = $9,
  estimated_delivery = $10,
  delivered_at = $11,
  proof_signer = $12,
  proof_signature_ref = $13,
  next_check_at = $14,
  updated_at = $15
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, sh.Status, sh.CarrierCode, sh.TrackingNumber, sh.Destination, lat, lng,
			sh.Recipient, utc(sh.EstimatedDelivery), utc(sh.DeliveredAt), signer, signatureRef,
			sh.NextCheckAt.UTC(), sh.UpdatedAt)
		if err != nil {
			return mapErr(err, "update shipment")
		}

		if ev != nil {
			if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM tracking_events WHERE shipment_id = $1`, id).Scan(&ev.Seq); err != nil {
				return mapErr(err, "next event seq")
			}
			evLat, evLng := coordsArgs(ev.Coords)
			var evID int64
			err := tx.QueryRow(ctx, `
INSERT INTO tracking_events (
  tenant_id, shipment_id, seq, status, description,
  location, lat, lng, origin, occurred_at, recorded_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id
`, tenantID, id, ev.Seq, ev.Status, ev.Description, ev.Location, evLat, evLng,
				ev.Origin, utc(ev.OccurredAt), ev.RecordedAt.UTC()).Scan(&evID)
			if err != nil {
				return mapErr(err, "insert tracking event")
			}
			ev.ID = strconv.FormatInt(evID, 10)
			ev.ShipmentID = id
		}

		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) ScheduleNextCheck(ctx context.Context, tenantID, id string, checkedAt, next time.Time, checkErr *string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  next_check_at = $3,
  last_error = $4,
  check_fail_count = CASE WHEN $4::text IS NULL THEN 0 ELSE check_fail_count + 1 END,
  updated_at = $5
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, next.UTC(), checkErr, checkedAt.UTC())
	if err != nil {
		return mapErr(err, "schedule next check")
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("shipment", id)
	}
	return nil
}

// ClaimDueShipments picks a batch of in-flight shipments whose carrier check
// is due and pushes their next check out by lease, so concurrent workers
// skip them while this one polls. Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	var picked []*models.Shipment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
  AND status NOT IN ($2, $3)
  AND carrier_code <> ''
  AND tracking_number <> ''
ORDER BY next_check_at ASC
LIMIT $4
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.ShipmentDelivered, models.ShipmentReturned, limit)
		if err != nil {
			return mapErr(err, "select due shipments")
		}
		defer rows.Close()

		for rows.Next() {
			sh, err := scanShipment(rows)
			if err != nil {
				return errors.Wrap(err, "scan due shipment")
			}
			picked = append(picked, sh)
		}
		if rows.Err() != nil {
			return mapErr(rows.Err(), "rows")
		}
		rows.Close()

		leaseUntil := now.UTC().Add(lease)
		for _, sh := range picked {
			_, err := tx.Exec(ctx, `UPDATE shipments SET next_check_at = $2 WHERE id = $1`, sh.ID, leaseUntil)
			if err != nil {
				return mapErr(err, "lease shipment")
			}
			sh.NextCheckAt = leaseUntil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

func coordsFrom(lat, lng *float64) *models.Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.Coordinates{Lat: *lat, Lng: *lng}
}

func coordsArgs(c *models.Coordinates) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}
