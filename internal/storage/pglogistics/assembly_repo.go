package pglogistics

import (
	"context"
	"encoding/json"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const articleColumns = `
  id, tenant_id, sku, name, category, assembly_minutes,
  labor_cost, active, bom, created_at`

func scanArticle(row rowScanner) (*models.CompositeArticle, error) {
	var a models.CompositeArticle
	var bom []byte
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.SKU, &a.Name, &a.Category, &a.AssemblyMinutes,
		&a.LaborCost, &a.Active, &bom, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bom, &a.BOM); err != nil {
		return nil, errors.Wrap(err, "decode bom")
	}
	return &a, nil
}

// withStock fills the live stock and availability of every BOM line.
func withStock(ctx context.Context, q querier, a *models.CompositeArticle) (*models.CompositeArticle, error) {
	skus := make([]string, 0, len(a.BOM))
	for _, l := range a.BOM {
		skus = append(skus, l.SKU)
	}
	levels, err := stockLevels(ctx, q, a.TenantID, skus)
	if err != nil {
		return nil, err
	}
	a.ApplyStock(levels)
	return a, nil
}

func (s *Storage) CreateArticle(ctx context.Context, a *models.CompositeArticle) (*models.CompositeArticle, error) {
	bom, err := json.Marshal(a.BOM)
	if err != nil {
		return nil, errors.Wrap(err, "encode bom")
	}
	out, err := scanArticle(s.db.QueryRow(ctx, `
INSERT INTO composite_articles (
  id, tenant_id, sku, name, category, assembly_minutes,
  labor_cost, active, bom, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (tenant_id, sku) DO NOTHING
RETURNING`+articleColumns,
		a.ID, a.TenantID, a.SKU, a.Name, a.Category, a.AssemblyMinutes,
		a.LaborCost, a.Active, bom, a.CreatedAt.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Validation("article %s already exists", a.SKU)
	}
	if err != nil {
		return nil, mapErr(err, "insert article")
	}
	return withStock(ctx, s.db, out)
}

func (s *Storage) GetArticle(ctx context.Context, tenantID, id string) (*models.CompositeArticle, error) {
	a, err := scanArticle(s.db.QueryRow(ctx, `SELECT`+articleColumns+`
FROM composite_articles
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("composite article", id)
	}
	if err != nil {
		return nil, mapErr(err, "select article")
	}
	return withStock(ctx, s.db, a)
}

func (s *Storage) ListArticles(ctx context.Context, tenantID string) ([]*models.CompositeArticle, error) {
	rows, err := s.db.Query(ctx, `SELECT`+articleColumns+`
FROM composite_articles
WHERE tenant_id = $1
ORDER BY sku ASC
`, tenantID)
	if err != nil {
		return nil, mapErr(err, "select articles")
	}
	out := make([]*models.CompositeArticle, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan article")
		}
		out = append(out, a)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, mapErr(rows.Err(), "rows")
	}

	for _, a := range out {
		if _, err := withStock(ctx, s.db, a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const assemblyColumns = `
  id, tenant_id, article_id, quantity, status, assignee, priority,
  blocking_note, requested_at, due_at, started_at, completed_at, updated_at`

func scanAssembly(row rowScanner) (*models.AssemblyOrder, error) {
	var o models.AssemblyOrder
	if err := row.Scan(
		&o.ID, &o.TenantID, &o.ArticleID, &o.Quantity, &o.Status, &o.Assignee, &o.Priority,
		&o.BlockingNote, &o.RequestedAt, &o.DueAt, &o.StartedAt, &o.CompletedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Storage) CreateAssemblyOrder(ctx context.Context, o *models.AssemblyOrder) (*models.AssemblyOrder, error) {
	var out *models.AssemblyOrder
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM composite_articles WHERE tenant_id = $1 AND id = $2)
`, o.TenantID, o.ArticleID).Scan(&exists)
		if err != nil {
			return mapErr(err, "check article")
		}
		if !exists {
			return errs.NotFound("composite article", o.ArticleID)
		}

		out, err = scanAssembly(tx.QueryRow(ctx, `
INSERT INTO assembly_orders (
  id, tenant_id, article_id, quantity, status, assignee, priority,
  blocking_note, requested_at, due_at, started_at, completed_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING`+assemblyColumns,
			o.ID, o.TenantID, o.ArticleID, o.Quantity, o.Status, o.Assignee, o.Priority,
			o.BlockingNote, o.RequestedAt.UTC(), utc(o.DueAt), utc(o.StartedAt), utc(o.CompletedAt), o.UpdatedAt.UTC()))
		if err != nil {
			return mapErr(err, "insert assembly order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) GetAssemblyOrder(ctx context.Context, tenantID, id string) (*models.AssemblyOrder, error) {
	o, err := scanAssembly(s.db.QueryRow(ctx, `SELECT`+assemblyColumns+`
FROM assembly_orders
WHERE tenant_id = $1 AND id = $2
`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("assembly order", id)
	}
	if err != nil {
		return nil, mapErr(err, "select assembly order")
	}
	return o, nil
}

// MutateAssemblyOrder locks the order, hands fn the article with live stock
// and applies the stock movements fn returns in the same transaction.
func (s *Storage) MutateAssemblyOrder(ctx context.Context, tenantID, id string, fn func(o *models.AssemblyOrder, a *models.CompositeArticle) ([]models.StockMovement, error)) (*models.AssemblyOrder, error) {
	var out *models.AssemblyOrder
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		o, err := scanAssembly(tx.QueryRow(ctx, `SELECT`+assemblyColumns+`
FROM assembly_orders
WHERE tenant_id = $1 AND id = $2
FOR UPDATE
`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("assembly order", id)
		}
		if err != nil {
			return mapErr(err, "lock assembly order")
		}
		a, err := scanArticle(tx.QueryRow(ctx, `SELECT`+articleColumns+`
FROM composite_articles
WHERE tenant_id = $1 AND id = $2
`, tenantID, o.ArticleID))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("composite article", o.ArticleID)
		}
		if err != nil {
			return mapErr(err, "select article")
		}
		if a, err = withStock(ctx, tx, a); err != nil {
			return err
		}

		moves, err := fn(o, a)
		if err != nil {
			return err
		}
		if err := applyMoves(ctx, tx, tenantID, moves); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
UPDATE assembly_orders
SET
  status = $3,
  assignee = $4,
  priority = $5,
  blocking_note = $6,
  due_at = $7,
  started_at = $8,
  completed_at = $9,
  updated_at = $10
WHERE tenant_id = $1 AND id = $2
`, tenantID, id, o.Status, o.Assignee, o.Priority, o.BlockingNote,
			utc(o.DueAt), utc(o.StartedAt), utc(o.CompletedAt), o.UpdatedAt.UTC())
		if err != nil {
			return mapErr(err, "update assembly order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
