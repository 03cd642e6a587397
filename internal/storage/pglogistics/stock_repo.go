package pglogistics

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const stockColumns = `
  tenant_id, sku, description, on_hand, minimum, optimal,
  daily_consumption, lead_time_days, supplier, unit_price, min_order_qty, updated_at`

func scanStockItem(row rowScanner) (*models.StockItem, error) {
	var it models.StockItem
	if err := row.Scan(
		&it.TenantID, &it.SKU, &it.Description, &it.Current, &it.Minimum, &it.Optimal,
		&it.DailyConsumption, &it.LeadTimeDays, &it.Supplier, &it.UnitPrice, &it.MinOrderQty, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Storage) ListStockItems(ctx context.Context, tenantID string, skus []string) ([]*models.StockItem, error) {
	rows, err := s.db.Query(ctx, `SELECT`+stockColumns+`
FROM stock_items
WHERE tenant_id = $1
  AND (COALESCE(cardinality($2::text[]), 0) = 0 OR sku = ANY($2))
ORDER BY sku ASC
`, tenantID, skus)
	if err != nil {
		return nil, mapErr(err, "select stock items")
	}
	defer rows.Close()

	out := make([]*models.StockItem, 0)
	for rows.Next() {
		it, err := scanStockItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan stock item")
		}
		out = append(out, it)
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetStockItem(ctx context.Context, tenantID, sku string) (*models.StockItem, error) {
	it, err := scanStockItem(s.db.QueryRow(ctx, `SELECT`+stockColumns+`
FROM stock_items
WHERE tenant_id = $1 AND sku = $2
`, tenantID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("stock item", sku)
	}
	if err != nil {
		return nil, mapErr(err, "select stock item")
	}
	return it, nil
}

func (s *Storage) UpsertStockItem(ctx context.Context, it *models.StockItem) (*models.StockItem, error) {
	out, err := scanStockItem(s.db.QueryRow(ctx, `
INSERT INTO stock_items (
  tenant_id, sku, description, on_hand, minimum, optimal,
  daily_consumption, lead_time_days, supplier, unit_price, min_order_qty, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (tenant_id, sku) DO UPDATE SET
  description = EXCLUDED.description,
  on_hand = EXCLUDED.on_hand,
  minimum = EXCLUDED.minimum,
  optimal = EXCLUDED.optimal,
  daily_consumption = EXCLUDED.daily_consumption,
  lead_time_days = EXCLUDED.lead_time_days,
  supplier = EXCLUDED.supplier,
  unit_price = EXCLUDED.unit_price,
  min_order_qty = EXCLUDED.min_order_qty,
  updated_at = EXCLUDED.updated_at
RETURNING`+stockColumns,
		it.TenantID, it.SKU, it.Description, it.Current, it.Minimum, it.Optimal,
		it.DailyConsumption, it.LeadTimeDays, it.Supplier, it.UnitPrice, it.MinOrderQty, it.UpdatedAt.UTC()))
	if err != nil {
		return nil, mapErr(err, "upsert stock item")
	}
	return out, nil
}

func (s *Storage) StockLevels(ctx context.Context, tenantID string, skus []string) (map[string]int, error) {
	return stockLevels(ctx, s.db, tenantID, skus)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func stockLevels(ctx context.Context, q querier, tenantID string, skus []string) (map[string]int, error) {
	out := make(map[string]int, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
SELECT sku, on_hand
FROM stock_items
WHERE tenant_id = $1 AND sku = ANY($2)
`, tenantID, skus)
	if err != nil {
		return nil, mapErr(err, "select stock levels")
	}
	defer rows.Close()

	for rows.Next() {
		var sku string
		var n int
		if err := rows.Scan(&sku, &n); err != nil {
			return nil, errors.Wrap(err, "scan stock level")
		}
		out[sku] = n
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ApplyStockMovements(ctx context.Context, tenantID string, moves []models.StockMovement) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return applyMoves(ctx, tx, tenantID, moves)
	})
}

// applyMoves locks every touched stock row in SKU order, checks the net
// movement per SKU and only then writes, so a shortage leaves all rows as
// they were.
func applyMoves(ctx context.Context, tx pgx.Tx, tenantID string, moves []models.StockMovement) error {
	if len(moves) == 0 {
		return nil
	}
	net := make(map[string]int, len(moves))
	order := make([]string, 0, len(moves))
	for _, m := range moves {
		if _, seen := net[m.SKU]; !seen {
			order = append(order, m.SKU)
		}
		net[m.SKU] += m.Delta
	}
	locked := append([]string(nil), order...)
	sort.Strings(locked)

	rows, err := tx.Query(ctx, `
SELECT sku, on_hand
FROM stock_items
WHERE tenant_id = $1 AND sku = ANY($2)
ORDER BY sku
FOR UPDATE
`, tenantID, locked)
	if err != nil {
		return mapErr(err, "lock stock items")
	}
	have := make(map[string]int, len(order))
	for rows.Next() {
		var sku string
		var n int
		if err := rows.Scan(&sku, &n); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan stock item")
		}
		have[sku] = n
	}
	rows.Close()
	if rows.Err() != nil {
		return mapErr(rows.Err(), "rows")
	}

	var short []string
	for _, sku := range order {
		if have[sku]+net[sku] < 0 {
			short = append(short, sku)
		}
	}
	if len(short) > 0 {
		return errs.ComponentShortage(short...)
	}

	now := time.Now().UTC()
	for _, sku := range order {
		if net[sku] == 0 {
			continue
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO stock_items (tenant_id, sku, on_hand, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, sku) DO UPDATE SET
  on_hand = stock_items.on_hand + EXCLUDED.on_hand,
  updated_at = EXCLUDED.updated_at
WHERE stock_items.on_hand + EXCLUDED.on_hand >= 0
`, tenantID, sku, net[sku], now)
		if err != nil {
			return mapErr(err, "apply stock movement")
		}
		if tag.RowsAffected() == 0 {
			return errs.ComponentShortage(sku)
		}
	}
	return nil
}

const suggestionColumns = `
  id, tenant_id, sku, supplier, quantity, unit_price, total,
  reason, status, suggested_at, updated_at`

func scanSuggestion(row rowScanner) (*models.PurchaseSuggestion, error) {
	var sg models.PurchaseSuggestion
	if err := row.Scan(
		&sg.ID, &sg.TenantID, &sg.SKU, &sg.Supplier, &sg.Quantity, &sg.UnitPrice, &sg.Total,
		&sg.Reason, &sg.Status, &sg.SuggestedAt, &sg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sg, nil
}

// UpsertOpenSuggestion refreshes the open suggestion for the SKU, or inserts
// sg when there is none. A concurrent insert loses on the partial unique
// index and surfaces as a conflict.
func (s *Storage) UpsertOpenSuggestion(ctx context.Context, sg *models.PurchaseSuggestion) (*models.PurchaseSuggestion, bool, error) {
	var out *models.PurchaseSuggestion
	var created bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanSuggestion(tx.QueryRow(ctx, `
UPDATE purchase_suggestions
SET
  quantity = $3,
  unit_price = $4,
  total = $5,
  supplier = $6,
  reason = $7,
  updated_at = $8
WHERE tenant_id = $1 AND sku = $2 AND status = 'suggested'
RETURNING`+suggestionColumns,
			sg.TenantID, sg.SKU, sg.Quantity, sg.UnitPrice, sg.Total, sg.Supplier, sg.Reason, sg.UpdatedAt.UTC()))
		if err == nil {
			out = cur
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return mapErr(err, "refresh open suggestion")
		}

		ins, err := scanSuggestion(tx.QueryRow(ctx, `
INSERT INTO purchase_suggestions (
  id, tenant_id, sku, supplier, quantity, unit_price, total,
  reason, status, suggested_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING`+suggestionColumns,
			sg.ID, sg.TenantID, sg.SKU, sg.Supplier, sg.Quantity, sg.UnitPrice, sg.Total,
			sg.Reason, sg.Status, sg.SuggestedAt.UTC(), sg.UpdatedAt.UTC()))
		if err != nil {
			return mapErr(err, "insert suggestion")
		}
		out, created = ins, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Storage) GetSuggestion(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	sg, err := scanSuggestion(s.db.QueryRow(ctx, `SELECT`+suggestionColumns+`
FROM purchase_suggestions
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("purchase suggestion", id)
	}
	if err != nil {
		return nil, mapErr(err, "select suggestion")
	}
	return sg, nil
}

func (s *Storage) ListSuggestions(ctx context.Context, tenantID string, status models.PurchaseStatus) ([]*models.PurchaseSuggestion, error) {
	rows, err := s.db.Query(ctx, `SELECT`+suggestionColumns+`
FROM purchase_suggestions
WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
ORDER BY suggested_at ASC, sku ASC
`, tenantID, string(status))
	if err != nil {
		return nil, mapErr(err, "select suggestions")
	}
	defer rows.Close()

	out := make([]*models.PurchaseSuggestion, 0)
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan suggestion")
		}
		out = append(out, sg)
	}
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) MutateSuggestion(ctx context.Context, tenantID, id string, fn func(sg *models.PurchaseSuggestion) ([]models.StockMovement, error)) (*models.PurchaseSuggestion, error) {
	var out *models.PurchaseSuggestion
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sg, err := scanSuggestion(tx.QueryRow(ctx, `SELECT`+suggestionColumns+`
FROM purchase_suggestions
WHERE tenant_id = $1 AND id = $2
FOR UPDATE
`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("purchase suggestion", id)
		}
		if err != nil {
			return mapErr(err, "lock suggestion")
		}

		moves, err := fn(sg)
		if err != nil {
			return err
		}
		if err := applyMoves(ctx, tx, tenantID, moves); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
UPDATE purchase_suggestions
SET
  supplier = $3,
  quantity = $4,
  unit_price = $5,
  total = $6,
  reason = $7,
  status = $8,
  updated_at = $9
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, sg.Supplier, sg.Quantity, sg.UnitPrice, sg.Total, sg.Reason, sg.Status, sg.UpdatedAt.UTC())
		if err != nil {
			return mapErr(err, "update suggestion")
		}
		out = sg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
