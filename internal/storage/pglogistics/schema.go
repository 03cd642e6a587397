package pglogistics

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  number TEXT NOT NULL,
  order_id TEXT NOT NULL,
  source_ref TEXT NULL,
  status TEXT NOT NULL,
  carrier_code TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL DEFAULT '',
  leg TEXT NOT NULL,
  origin TEXT NOT NULL DEFAULT '',
  destination TEXT NOT NULL DEFAULT '',
  dest_lat DOUBLE PRECISION NULL,
  dest_lng DOUBLE PRECISION NULL,
  recipient TEXT NOT NULL DEFAULT '',
  weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
  packages INT NOT NULL DEFAULT 1,
  estimated_delivery TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  proof_signer TEXT NULL,
  proof_signature_ref TEXT NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipments_source_ref ON shipments(tenant_id, source_ref) WHERE source_ref IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order ON shipments(tenant_id, order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_next_check_at ON shipments(next_check_at) WHERE status NOT IN ('entregado', 'devuelto')`,
		`
CREATE TABLE IF NOT EXISTS tracking_events (
  id BIGSERIAL PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
  seq INT NOT NULL,
  status TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  location TEXT NULL,
  lat DOUBLE PRECISION NULL,
  lng DOUBLE PRECISION NULL,
  origin TEXT NOT NULL,
  occurred_at TIMESTAMPTZ NULL,
  recorded_at TIMESTAMPTZ NOT NULL,
  UNIQUE (shipment_id, seq)
)`,
		`
CREATE TABLE IF NOT EXISTS waves (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  worker_count INT NOT NULL DEFAULT 0,
  started_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS fulfillment_orders (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  order_ref TEXT NOT NULL,
  customer TEXT NOT NULL DEFAULT '',
  recipient TEXT NOT NULL DEFAULT '',
  destination TEXT NOT NULL DEFAULT '',
  dest_lat DOUBLE PRECISION NULL,
  dest_lng DOUBLE PRECISION NULL,
  carrier_code TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  priority TEXT NOT NULL,
  zone TEXT NOT NULL DEFAULT '',
  wave_id TEXT NULL REFERENCES waves(id),
  worker TEXT NULL,
  lines JSONB NOT NULL,
  packages INT NOT NULL DEFAULT 0,
  shipment_id TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tenant_id, order_ref)
)`,
		`CREATE INDEX IF NOT EXISTS idx_fulfillment_orders_wave ON fulfillment_orders(tenant_id, wave_id)`,
		`
CREATE TABLE IF NOT EXISTS stock_items (
  tenant_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  on_hand INT NOT NULL DEFAULT 0 CHECK (on_hand >= 0),
  minimum INT NOT NULL DEFAULT 0,
  optimal INT NOT NULL DEFAULT 0,
  daily_consumption DOUBLE PRECISION NOT NULL DEFAULT 0,
  lead_time_days DOUBLE PRECISION NOT NULL DEFAULT 0,
  supplier TEXT NOT NULL DEFAULT '',
  unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  min_order_qty INT NOT NULL DEFAULT 0,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (tenant_id, sku)
)`,
		`
CREATE TABLE IF NOT EXISTS purchase_suggestions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  supplier TEXT NOT NULL DEFAULT '',
  quantity INT NOT NULL,
  unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  total DOUBLE PRECISION NOT NULL DEFAULT 0,
  reason TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  suggested_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// At most one open suggestion per SKU.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_purchase_suggestions_open ON purchase_suggestions(tenant_id, sku) WHERE status = 'suggested'`,
		`
CREATE TABLE IF NOT EXISTS composite_articles (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL,
  assembly_minutes INT NOT NULL DEFAULT 0,
  labor_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  bom JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tenant_id, sku)
)`,
		`
CREATE TABLE IF NOT EXISTS assembly_orders (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  article_id TEXT NOT NULL REFERENCES composite_articles(id),
  quantity INT NOT NULL,
  status TEXT NOT NULL,
  assignee TEXT NOT NULL DEFAULT '',
  priority TEXT NOT NULL,
  blocking_note TEXT NOT NULL DEFAULT '',
  requested_at TIMESTAMPTZ NOT NULL,
  due_at TIMESTAMPTZ NULL,
  started_at TIMESTAMPTZ NULL,
  completed_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS routes (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  driver TEXT NOT NULL DEFAULT '',
  vehicle TEXT NOT NULL DEFAULT '',
  route_date DATE NOT NULL,
  status TEXT NOT NULL,
  optimize BOOLEAN NOT NULL DEFAULT FALSE,
  distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
  duration_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS route_stops (
  id TEXT PRIMARY KEY,
  route_id TEXT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
  shipment_id TEXT NOT NULL,
  idx INT NOT NULL,
  status TEXT NOT NULL,
  lat DOUBLE PRECISION NULL,
  lng DOUBLE PRECISION NULL,
  notes TEXT NOT NULL DEFAULT '',
  completed_at TIMESTAMPTZ NULL,
  proof_ref TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_route ON route_stops(route_id, idx)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_shipment ON route_stops(shipment_id) WHERE status = 'pending'`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
