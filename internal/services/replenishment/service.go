package replenishment

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	// ListStockItems returns one snapshot of the tenant's stock, ordered by
	// SKU. An empty skus slice means every item.
	ListStockItems(ctx context.Context, tenantID string, skus []string) ([]*models.StockItem, error)
	GetStockItem(ctx context.Context, tenantID, sku string) (*models.StockItem, error)
	UpsertStockItem(ctx context.Context, it *models.StockItem) (*models.StockItem, error)
	// ApplyStockMovements applies all movements or none. Decrements below
	// zero fail with errs.ErrComponentShortage naming every short SKU.
	ApplyStockMovements(ctx context.Context, tenantID string, moves []models.StockMovement) error

	// UpsertOpenSuggestion inserts s, or refreshes the quantity and price of
	// the tenant's suggestion for the same SKU still in status suggested.
	UpsertOpenSuggestion(ctx context.Context, s *models.PurchaseSuggestion) (*models.PurchaseSuggestion, bool, error)
	GetSuggestion(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error)
	ListSuggestions(ctx context.Context, tenantID string, status models.PurchaseStatus) ([]*models.PurchaseSuggestion, error)
	// MutateSuggestion runs fn on the locked suggestion; returned movements
	// are booked in the same transaction.
	MutateSuggestion(ctx context.Context, tenantID, id string, fn func(s *models.PurchaseSuggestion) ([]models.StockMovement, error)) (*models.PurchaseSuggestion, error)
}

type Service struct {
	repo  Repository
	retry errs.Budget
	now   func() time.Time
}

func New(repo Repository) *Service {
	return &Service{
		repo:  repo,
		retry: errs.DefaultBudget(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithRetryBudget(b errs.Budget) *Service {
	s.retry = b
	return s
}

func (s *Service) ComputeStockAlerts(ctx context.Context, tenantID string, policy models.ThresholdPolicy) ([]models.StockAlert, error) {
	if tenantID == "" {
		return nil, errs.Validation("tenantId is required")
	}
	items, err := s.repo.ListStockItems(ctx, tenantID, policy.SKUs)
	if err != nil {
		return nil, err
	}
	return models.ComputeStockAlerts(items, policy), nil
}

func (s *Service) ListStockItems(ctx context.Context, tenantID string) ([]*models.StockItem, error) {
	return s.repo.ListStockItems(ctx, tenantID, nil)
}

func (s *Service) UpsertStockItem(ctx context.Context, it *models.StockItem) (*models.StockItem, error) {
	if it == nil || it.TenantID == "" || strings.TrimSpace(it.SKU) == "" {
		return nil, errs.Validation("tenantId and sku are required")
	}
	if it.Current < 0 || it.Minimum < 0 || it.Optimal < 0 || it.MinOrderQty < 0 {
		return nil, errs.Validation("stock levels must not be negative")
	}
	if it.DailyConsumption < 0 || it.LeadTimeDays < 0 || it.UnitPrice < 0 {
		return nil, errs.Validation("consumption, lead time and price must not be negative")
	}
	it.UpdatedAt = s.now()
	return s.repo.UpsertStockItem(ctx, it)
}

// AdjustStock books a manual correction. The result must not go negative.
func (s *Service) AdjustStock(ctx context.Context, tenantID, sku string, delta int) (*models.StockItem, error) {
	if delta == 0 {
		return nil, errs.Validation("delta must not be zero")
	}
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.ApplyStockMovements(ctx, tenantID, []models.StockMovement{{SKU: sku, Delta: delta}})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetStockItem(ctx, tenantID, sku)
}

// SuggestPurchase raises (or refreshes) the open purchase suggestion for the
// alert's SKU. The quantity tops stock up to optimal, at least the supplier
// minimum order quantity, priced at the last known supplier price.
func (s *Service) SuggestPurchase(ctx context.Context, tenantID string, alert models.StockAlert, reason string) (*models.PurchaseSuggestion, bool, error) {
	if alert.SKU == "" {
		return nil, false, errs.Validation("sku is required")
	}
	it, err := s.repo.GetStockItem(ctx, tenantID, alert.SKU)
	if err != nil {
		return nil, false, err
	}
	qty := models.SuggestedQuantity(it)
	if qty == 0 {
		return nil, false, errs.Validation("stock of %s is at or above optimal", it.SKU)
	}
	return s.upsert(ctx, it, qty, reason)
}

// SuggestForShortages raises one suggestion per short requirement, covering
// at least the shortfall.
func (s *Service) SuggestForShortages(ctx context.Context, tenantID string, reqs []models.ComponentRequirement, reason string) ([]*models.PurchaseSuggestion, error) {
	var out []*models.PurchaseSuggestion
	for _, r := range reqs {
		if !r.Short() {
			continue
		}
		it, err := s.repo.GetStockItem(ctx, tenantID, r.SKU)
		if errs.KindOf(err) == errs.KindNotFound {
			it = &models.StockItem{TenantID: tenantID, SKU: r.SKU, Current: r.Available}
		} else if err != nil {
			return out, err
		}
		qty := r.Shortfall
		if q := models.SuggestedQuantity(it); q > qty {
			qty = q
		}
		if it.MinOrderQty > qty {
			qty = it.MinOrderQty
		}
		sg, _, err := s.upsert(ctx, it, qty, reason)
		if err != nil {
			return out, err
		}
		out = append(out, sg)
	}
	return out, nil
}

// PlanRequirements explodes a bill of materials for units against the
// current stock snapshot.
func (s *Service) PlanRequirements(ctx context.Context, tenantID string, article *models.CompositeArticle, units int) ([]models.ComponentRequirement, error) {
	if article == nil || units <= 0 {
		return nil, errs.Validation("article and a positive quantity are required")
	}
	skus := make([]string, 0, len(article.BOM))
	for _, l := range article.BOM {
		skus = append(skus, l.SKU)
	}
	items, err := s.repo.ListStockItems(ctx, tenantID, skus)
	if err != nil {
		return nil, err
	}
	stock := make(map[string]int, len(items))
	for _, it := range items {
		stock[it.SKU] = it.Current
	}
	return models.ExplodeBOM(article, units, stock), nil
}

func (s *Service) GetSuggestion(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.repo.GetSuggestion(ctx, tenantID, id)
}

func (s *Service) ListSuggestions(ctx context.Context, tenantID string, status models.PurchaseStatus) ([]*models.PurchaseSuggestion, error) {
	return s.repo.ListSuggestions(ctx, tenantID, status)
}

func (s *Service) Approve(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.transition(ctx, tenantID, id, models.PurchaseApproved, nil)
}

func (s *Service) MarkSent(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.transition(ctx, tenantID, id, models.PurchaseSent, nil)
}

// MarkReceived closes the suggestion and books its quantity into stock.
func (s *Service) MarkReceived(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.transition(ctx, tenantID, id, models.PurchaseReceived, func(sg *models.PurchaseSuggestion) []models.StockMovement {
		return []models.StockMovement{{SKU: sg.SKU, Delta: sg.Quantity}}
	})
}

// Reject discards a suggestion nobody acted on yet.
func (s *Service) Reject(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.mutate(ctx, tenantID, id, func(sg *models.PurchaseSuggestion) ([]models.StockMovement, error) {
		if sg.Status != models.PurchaseSuggested {
			return nil, errs.InvalidTransition("purchase suggestion", string(sg.Status), string(models.PurchaseCancelled))
		}
		sg.Status = models.PurchaseCancelled
		sg.UpdatedAt = s.now()
		return nil, nil
	})
}

func (s *Service) Cancel(ctx context.Context, tenantID, id string) (*models.PurchaseSuggestion, error) {
	return s.transition(ctx, tenantID, id, models.PurchaseCancelled, nil)
}

func (s *Service) transition(ctx context.Context, tenantID, id string, to models.PurchaseStatus, moves func(*models.PurchaseSuggestion) []models.StockMovement) (*models.PurchaseSuggestion, error) {
	return s.mutate(ctx, tenantID, id, func(sg *models.PurchaseSuggestion) ([]models.StockMovement, error) {
		if !sg.Status.CanTransitionTo(to) {
			return nil, errs.InvalidTransition("purchase suggestion", string(sg.Status), string(to))
		}
		sg.Status = to
		sg.UpdatedAt = s.now()
		if moves == nil {
			return nil, nil
		}
		return moves(sg), nil
	})
}

func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(*models.PurchaseSuggestion) ([]models.StockMovement, error)) (*models.PurchaseSuggestion, error) {
	if tenantID == "" || id == "" {
		return nil, errs.Validation("tenantId and suggestionId are required")
	}
	var out *models.PurchaseSuggestion
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateSuggestion(ctx, tenantID, id, fn)
		return err
	})
	return out, err
}

func (s *Service) upsert(ctx context.Context, it *models.StockItem, qty int, reason string) (*models.PurchaseSuggestion, bool, error) {
	now := s.now()
	sg := &models.PurchaseSuggestion{
		ID:          uuid.NewString(),
		TenantID:    it.TenantID,
		SKU:         it.SKU,
		Supplier:    it.Supplier,
		Quantity:    qty,
		UnitPrice:   it.UnitPrice,
		Total:       roundCents(float64(qty) * it.UnitPrice),
		Reason:      reason,
		Status:      models.PurchaseSuggested,
		SuggestedAt: now,
		UpdatedAt:   now,
	}
	var (
		out     *models.PurchaseSuggestion
		created bool
	)
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, created, err = s.repo.UpsertOpenSuggestion(ctx, sg)
		return err
	})
	return out, created, err
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortAlerts orders alerts critical first, then by fewest days remaining.
func SortAlerts(alerts []models.StockAlert) {
	rank := map[models.Severity]int{models.SeverityCritical: 0, models.SeverityLow: 1, models.SeverityOK: 2}
	sort.SliceStable(alerts, func(i, j int) bool {
		if rank[alerts[i].Severity] != rank[alerts[j].Severity] {
			return rank[alerts[i].Severity] < rank[alerts[j].Severity]
		}
		return alerts[i].DaysRemaining < alerts[j].DaysRemaining
	})
}
