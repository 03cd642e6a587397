package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	CreateArticle(ctx context.Context, a *models.CompositeArticle) (*models.CompositeArticle, error)
	// GetArticle fills BOM stock and availability from live stock.
	GetArticle(ctx context.Context, tenantID, id string) (*models.CompositeArticle, error)
	ListArticles(ctx context.Context, tenantID string) ([]*models.CompositeArticle, error)
	StockLevels(ctx context.Context, tenantID string, skus []string) (map[string]int, error)

	CreateAssemblyOrder(ctx context.Context, o *models.AssemblyOrder) (*models.AssemblyOrder, error)
	GetAssemblyOrder(ctx context.Context, tenantID, id string) (*models.AssemblyOrder, error)
	// MutateAssemblyOrder runs fn on the locked order and its article. The
	// returned stock movements are applied with the order update, all or
	// nothing; a decrement below zero fails with errs.ErrComponentShortage.
	MutateAssemblyOrder(ctx context.Context, tenantID, id string, fn func(o *models.AssemblyOrder, a *models.CompositeArticle) ([]models.StockMovement, error)) (*models.AssemblyOrder, error)
}

// ShortageReporter turns component shortfalls into purchase suggestions.
type ShortageReporter interface {
	SuggestForShortages(ctx context.Context, tenantID string, reqs []models.ComponentRequirement, reason string) ([]*models.PurchaseSuggestion, error)
}

type Service struct {
	repo      Repository
	shortages ShortageReporter
	retry     errs.Budget
	now       func() time.Time
}

func New(repo Repository, shortages ShortageReporter) *Service {
	return &Service{
		repo:      repo,
		shortages: shortages,
		retry:     errs.DefaultBudget(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithRetryBudget(b errs.Budget) *Service {
	s.retry = b
	return s
}

type ArticleInput struct {
	SKU             string
	Name            string
	Category        models.ArticleCategory
	AssemblyMinutes int
	LaborCost       float64
	BOM             []models.BOMLine
}

func (s *Service) CreateArticle(ctx context.Context, tenantID string, in ArticleInput) (*models.CompositeArticle, error) {
	if tenantID == "" || strings.TrimSpace(in.SKU) == "" {
		return nil, errs.Validation("tenantId and sku are required")
	}
	if len(in.BOM) == 0 {
		return nil, errs.Validation("bill of materials is empty")
	}
	seen := make(map[string]struct{}, len(in.BOM))
	for _, l := range in.BOM {
		if l.SKU == "" || l.Quantity <= 0 {
			return nil, errs.Validation("every component needs a sku and a positive quantity")
		}
		if l.SKU == in.SKU {
			return nil, errs.Validation("article %s cannot contain itself", in.SKU)
		}
		if _, dup := seen[l.SKU]; dup {
			return nil, errs.Validation("component %s listed twice", l.SKU)
		}
		seen[l.SKU] = struct{}{}
	}
	switch in.Category {
	case models.CategoryKit, models.CategoryBasket, models.CategoryCombo, models.CategoryPack:
	case "":
		in.Category = models.CategoryKit
	default:
		return nil, errs.Validation("unknown category %q", in.Category)
	}

	a := &models.CompositeArticle{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		SKU:             in.SKU,
		Name:            in.Name,
		Category:        in.Category,
		AssemblyMinutes: in.AssemblyMinutes,
		LaborCost:       in.LaborCost,
		Active:          true,
		BOM:             in.BOM,
		CreatedAt:       s.now(),
	}
	return s.repo.CreateArticle(ctx, a)
}

func (s *Service) GetArticle(ctx context.Context, tenantID, id string) (*models.CompositeArticle, error) {
	return s.repo.GetArticle(ctx, tenantID, id)
}

func (s *Service) ListArticles(ctx context.Context, tenantID string) ([]*models.CompositeArticle, error) {
	return s.repo.ListArticles(ctx, tenantID)
}

type OrderInput struct {
	ArticleID string
	Quantity  int
	Assignee  string
	Priority  models.Priority
	DueAt     *time.Time
}

func (s *Service) CreateOrder(ctx context.Context, tenantID string, in OrderInput) (*models.AssemblyOrder, error) {
	if in.Quantity <= 0 {
		return nil, errs.Validation("quantity must be positive")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, errs.Validation("unknown priority %q", in.Priority)
	}
	a, err := s.repo.GetArticle(ctx, tenantID, in.ArticleID)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, errs.Validation("article %s is inactive", a.SKU)
	}
	now := s.now()
	return s.repo.CreateAssemblyOrder(ctx, &models.AssemblyOrder{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ArticleID:   a.ID,
		Quantity:    in.Quantity,
		Status:      models.AssemblyPending,
		Assignee:    in.Assignee,
		Priority:    in.Priority,
		RequestedAt: now,
		DueAt:       in.DueAt,
		UpdatedAt:   now,
	})
}

func (s *Service) GetOrder(ctx context.Context, tenantID, id string) (*models.AssemblyOrder, error) {
	return s.repo.GetAssemblyOrder(ctx, tenantID, id)
}

// Requirements explodes the order's article against live stock.
func (s *Service) Requirements(ctx context.Context, tenantID, orderID string) ([]models.ComponentRequirement, error) {
	o, err := s.repo.GetAssemblyOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetArticle(ctx, tenantID, o.ArticleID)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.StockLevels(ctx, tenantID, componentSKUs(a))
	if err != nil {
		return nil, err
	}
	return models.ExplodeBOM(a, o.Quantity, stock), nil
}

// CanStart reports whether every component is in stock for the whole order
// right now. It changes nothing.
func (s *Service) CanStart(ctx context.Context, tenantID, orderID string) (bool, error) {
	reqs, err := s.Requirements(ctx, tenantID, orderID)
	if err != nil {
		return false, err
	}
	return len(models.ShortSKUs(reqs)) == 0, nil
}

// Start moves the order to in_progress and consumes its components. On a
// shortage nothing is consumed, purchase suggestions are raised for the short
// components and the shortage error is returned.
func (s *Service) Start(ctx context.Context, tenantID, orderID string) (*models.AssemblyOrder, error) {
	o, err := s.mutate(ctx, tenantID, orderID, func(o *models.AssemblyOrder, a *models.CompositeArticle) ([]models.StockMovement, error) {
		if !o.Status.CanTransitionTo(models.AssemblyInProgress) {
			return nil, errs.InvalidTransition("assembly order", string(o.Status), string(models.AssemblyInProgress))
		}
		now := s.now()
		o.Status = models.AssemblyInProgress
		o.StartedAt = &now
		o.BlockingNote = ""
		o.UpdatedAt = now

		moves := make([]models.StockMovement, 0, len(a.BOM))
		for _, l := range a.BOM {
			moves = append(moves, models.StockMovement{SKU: l.SKU, Delta: -l.Quantity * o.Quantity})
		}
		return moves, nil
	})
	if errors.Is(err, errs.ErrComponentShortage) {
		s.block(ctx, tenantID, orderID, err)
		s.reportShortage(ctx, tenantID, orderID, err)
		return nil, err
	}
	return o, err
}

// block leaves a shortage note on a pending order. The note is cleared by a
// successful Start.
func (s *Service) block(ctx context.Context, tenantID, orderID string, cause error) {
	note := "component shortage: " + strings.Join(errs.ShortageSKUs(cause), ", ")
	_, err := s.mutate(ctx, tenantID, orderID, func(o *models.AssemblyOrder, _ *models.CompositeArticle) ([]models.StockMovement, error) {
		if o.Status != models.AssemblyPending {
			return nil, nil
		}
		o.BlockingNote = note
		o.UpdatedAt = s.now()
		return nil, nil
	})
	if err != nil {
		slog.Warn("assembly shortage: blocking note", "order_id", orderID, "error", err.Error())
	}
}

// Complete closes the order and books the assembled units as stock of the
// composite SKU.
func (s *Service) Complete(ctx context.Context, tenantID, orderID string) (*models.AssemblyOrder, error) {
	return s.mutate(ctx, tenantID, orderID, func(o *models.AssemblyOrder, a *models.CompositeArticle) ([]models.StockMovement, error) {
		if !o.Status.CanTransitionTo(models.AssemblyCompleted) {
			return nil, errs.InvalidTransition("assembly order", string(o.Status), string(models.AssemblyCompleted))
		}
		now := s.now()
		o.Status = models.AssemblyCompleted
		o.CompletedAt = &now
		o.UpdatedAt = now
		return []models.StockMovement{{SKU: a.SKU, Delta: o.Quantity}}, nil
	})
}

// Cancel stops the order. Components consumed by Start are not given back;
// partially assembled material is handled as a manual stock adjustment. A
// non-empty note replaces any shortage note as the reason for cancelling.
func (s *Service) Cancel(ctx context.Context, tenantID, orderID, note string) (*models.AssemblyOrder, error) {
	return s.mutate(ctx, tenantID, orderID, func(o *models.AssemblyOrder, _ *models.CompositeArticle) ([]models.StockMovement, error) {
		if !o.Status.CanTransitionTo(models.AssemblyCancelled) {
			return nil, errs.InvalidTransition("assembly order", string(o.Status), string(models.AssemblyCancelled))
		}
		o.Status = models.AssemblyCancelled
		if note != "" {
			o.BlockingNote = note
		}
		o.UpdatedAt = s.now()
		return nil, nil
	})
}

func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(*models.AssemblyOrder, *models.CompositeArticle) ([]models.StockMovement, error)) (*models.AssemblyOrder, error) {
	if tenantID == "" || id == "" {
		return nil, errs.Validation("tenantId and orderId are required")
	}
	var out *models.AssemblyOrder
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateAssemblyOrder(ctx, tenantID, id, fn)
		return err
	})
	return out, err
}

func (s *Service) reportShortage(ctx context.Context, tenantID, orderID string, cause error) {
	reqs, err := s.Requirements(ctx, tenantID, orderID)
	if err != nil {
		slog.Warn("assembly shortage: requirements", "order_id", orderID, "error", err.Error())
		return
	}
	if s.shortages == nil {
		return
	}
	reason := fmt.Sprintf("component shortage for assembly order %s", orderID)
	if _, err := s.shortages.SuggestForShortages(ctx, tenantID, reqs, reason); err != nil {
		slog.Warn("assembly shortage: suggest purchases",
			"order_id", orderID, "skus", strings.Join(errs.ShortageSKUs(cause), ","), "error", err.Error())
	}
}

func componentSKUs(a *models.CompositeArticle) []string {
	out := make([]string, 0, len(a.BOM))
	for _, l := range a.BOM {
		out = append(out, l.SKU)
	}
	return out
}
