package assembly

import (
	"context"
	"testing"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	st      *memstore.Store
	svc     *Service
	replen  *replenishment.Service
	article *models.CompositeArticle
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	replen := replenishment.New(st)
	for sku, n := range stock {
		_, err := replen.UpsertStockItem(ctx, &models.StockItem{TenantID: "t1", SKU: sku, Current: n, Optimal: 20})
		require.NoError(t, err)
	}
	svc := New(st, replen)
	a, err := svc.CreateArticle(ctx, "t1", ArticleInput{
		SKU:      "GIFT-BASKET",
		Name:     "Gift basket",
		Category: models.CategoryBasket,
		BOM: []models.BOMLine{
			{SKU: "WINE", Quantity: 1, Unit: "u"},
			{SKU: "CHEESE", Quantity: 2, Unit: "u"},
		},
	})
	require.NoError(t, err)
	return &fixture{st: st, svc: svc, replen: replen, article: a}
}

func (f *fixture) level(t *testing.T, sku string) int {
	t.Helper()
	lv, err := f.st.StockLevels(context.Background(), "t1", []string{sku})
	require.NoError(t, err)
	return lv[sku]
}

func TestService_Start_ShortageLeavesStockAndRaisesSuggestions(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 20, "CHEESE": 5})
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 5})
	require.NoError(t, err)

	ok, err := f.svc.CanStart(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.svc.Start(ctx, "t1", o.ID)
	require.ErrorIs(t, err, errs.ErrComponentShortage)
	require.Equal(t, []string{"CHEESE"}, errs.ShortageSKUs(err))

	require.Equal(t, 20, f.level(t, "WINE"))
	require.Equal(t, 5, f.level(t, "CHEESE"))

	got, err := f.svc.GetOrder(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssemblyPending, got.Status)
	require.Equal(t, "component shortage: CHEESE", got.BlockingNote)

	sugs, err := f.replen.ListSuggestions(ctx, "t1", models.PurchaseSuggested)
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Equal(t, "CHEESE", sugs[0].SKU)
	require.GreaterOrEqual(t, sugs[0].Quantity, 5)
	require.Equal(t, "component shortage for assembly order "+o.ID, sugs[0].Reason)
}

func TestService_StartComplete_MovesStock(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 3, "CHEESE": 6})
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 3})
	require.NoError(t, err)

	ok, err := f.svc.CanStart(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.True(t, ok)

	started, err := f.svc.Start(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssemblyInProgress, started.Status)
	require.NotNil(t, started.StartedAt)
	require.Equal(t, 0, f.level(t, "WINE"))
	require.Equal(t, 0, f.level(t, "CHEESE"))

	_, err = f.svc.Start(ctx, "t1", o.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	done, err := f.svc.Complete(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssemblyCompleted, done.Status)
	require.Equal(t, 3, f.level(t, "GIFT-BASKET"))

	_, err = f.svc.Cancel(ctx, "t1", o.ID, "")
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestService_Start_ClearsShortageNoteOnceStocked(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 5, "CHEESE": 1})
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, "t1", o.ID)
	require.ErrorIs(t, err, errs.ErrComponentShortage)
	got, err := f.svc.GetOrder(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssemblyPending, got.Status)
	require.Equal(t, "component shortage: CHEESE", got.BlockingNote)

	_, err = f.replen.AdjustStock(ctx, "t1", "CHEESE", 1)
	require.NoError(t, err)
	started, err := f.svc.Start(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssemblyInProgress, started.Status)
	require.Empty(t, started.BlockingNote)
}

func TestService_GetArticle_AvailabilityIsPerUnit(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 2, "CHEESE": 2})
	ctx := context.Background()

	a, err := f.svc.GetArticle(ctx, "t1", f.article.ID)
	require.NoError(t, err)
	require.True(t, a.BOM[0].Available)
	require.True(t, a.BOM[1].Available)

	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 2})
	require.NoError(t, err)
	ok, err := f.svc.CanStart(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestService_GetArticle_LiveAvailability(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 1, "CHEESE": 1})
	ctx := context.Background()

	a, err := f.svc.GetArticle(ctx, "t1", f.article.ID)
	require.NoError(t, err)
	require.True(t, a.BOM[0].Available)
	require.False(t, a.BOM[1].Available)
	require.Equal(t, 1, a.BOM[1].Stock)

	_, err = f.replen.AdjustStock(ctx, "t1", "CHEESE", 1)
	require.NoError(t, err)
	a, err = f.svc.GetArticle(ctx, "t1", f.article.ID)
	require.NoError(t, err)
	require.True(t, a.BOM[1].Available)
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 1})
	require.NoError(t, err)

	got, err := f.svc.Cancel(ctx, "t1", o.ID, "customer withdrew")
	require.NoError(t, err)
	require.Equal(t, models.AssemblyCancelled, got.Status)
	require.Equal(t, "customer withdrew", got.BlockingNote)

	_, err = f.svc.Start(ctx, "t1", o.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestService_CreateArticle_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateArticle(ctx, "t1", ArticleInput{SKU: "X"})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.CreateArticle(ctx, "t1", ArticleInput{SKU: "X", BOM: []models.BOMLine{{SKU: "X", Quantity: 1}}})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.CreateArticle(ctx, "t1", ArticleInput{SKU: "X", BOM: []models.BOMLine{{SKU: "A", Quantity: 1}, {SKU: "A", Quantity: 2}}})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.CreateArticle(ctx, "t1", ArticleInput{SKU: "GIFT-BASKET", BOM: []models.BOMLine{{SKU: "A", Quantity: 1}}})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: "missing", Quantity: 1})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_Requirements(t *testing.T) {
	f := newFixture(t, map[string]int{"WINE": 10, "CHEESE": 10})
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "t1", OrderInput{ArticleID: f.article.ID, Quantity: 4})
	require.NoError(t, err)

	reqs, err := f.svc.Requirements(ctx, "t1", o.ID)
	require.NoError(t, err)
	require.Equal(t, []models.ComponentRequirement{
		{SKU: "WINE", Required: 4, Available: 10},
		{SKU: "CHEESE", Required: 8, Available: 10},
	}, reqs)
}
