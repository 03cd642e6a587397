package httpapi

import (
	"net/http"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/go-chi/chi/v5"
)

func (a *API) listStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.replenishment.ListStockItems(r.Context(), tenant(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]stockItemView, 0, len(items))
	for _, it := range items {
		out = append(out, toStockItemView(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

type upsertStockItemRequest struct {
	Description      string  `json:"description"`
	Current          int     `json:"current" validate:"gte=0"`
	Minimum          int     `json:"minimum" validate:"gte=0"`
	Optimal          int     `json:"optimal" validate:"gte=0"`
	DailyConsumption float64 `json:"dailyConsumption" validate:"gte=0"`
	LeadTimeDays     float64 `json:"leadTimeDays" validate:"gte=0"`
	Supplier         string  `json:"supplier"`
	UnitPrice        float64 `json:"unitPrice" validate:"gte=0"`
	MinOrderQty      int     `json:"minOrderQty" validate:"gte=0"`
}

func (a *API) upsertStockItem(w http.ResponseWriter, r *http.Request) {
	var req upsertStockItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := a.replenishment.UpsertStockItem(r.Context(), &models.StockItem{
		TenantID:         tenant(r),
		SKU:              chi.URLParam(r, "sku"),
		Description:      req.Description,
		Current:          req.Current,
		Minimum:          req.Minimum,
		Optimal:          req.Optimal,
		DailyConsumption: req.DailyConsumption,
		LeadTimeDays:     req.LeadTimeDays,
		Supplier:         req.Supplier,
		UnitPrice:        req.UnitPrice,
		MinOrderQty:      req.MinOrderQty,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockItemView(it))
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := a.replenishment.AdjustStock(r.Context(), tenant(r), chi.URLParam(r, "sku"), req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockItemView(it))
}

func (a *API) stockAlerts(w http.ResponseWriter, r *http.Request) {
	includeOK, err := queryBool(r, "includeOk")
	if err != nil {
		writeError(w, r, err)
		return
	}
	alerts, err := a.replenishment.ComputeStockAlerts(r.Context(), tenant(r), models.ThresholdPolicy{
		IncludeOK: includeOK,
		SKUs:      querySKUs(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	replenishment.SortAlerts(alerts)
	out := make([]alertView, 0, len(alerts))
	for _, al := range alerts {
		out = append(out, toAlertView(al))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

type suggestPurchaseRequest struct {
	SKU    string `json:"sku" validate:"required"`
	Reason string `json:"reason"`
}

func (a *API) suggestPurchase(w http.ResponseWriter, r *http.Request) {
	var req suggestPurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sg, created, err := a.replenishment.SuggestPurchase(r.Context(), tenant(r), models.StockAlert{SKU: req.SKU}, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toSuggestionView(sg))
}

func (a *API) listSuggestions(w http.ResponseWriter, r *http.Request) {
	status := models.PurchaseStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.PurchaseSuggested, models.PurchaseApproved, models.PurchaseSent,
		models.PurchaseReceived, models.PurchaseCancelled:
	default:
		writeError(w, r, errs.Validation("unknown purchase status %q", status))
		return
	}
	list, err := a.replenishment.ListSuggestions(r.Context(), tenant(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": toSuggestionViews(list)})
}

func (a *API) getSuggestion(w http.ResponseWriter, r *http.Request) {
	sg, err := a.replenishment.GetSuggestion(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestionView(sg))
}

func (a *API) suggestionAction(w http.ResponseWriter, r *http.Request) {
	svc := a.replenishment
	actions := map[string]func(*http.Request, string, string) (*models.PurchaseSuggestion, error){
		"approve": func(r *http.Request, t, id string) (*models.PurchaseSuggestion, error) { return svc.Approve(r.Context(), t, id) },
		"send":    func(r *http.Request, t, id string) (*models.PurchaseSuggestion, error) { return svc.MarkSent(r.Context(), t, id) },
		"receive": func(r *http.Request, t, id string) (*models.PurchaseSuggestion, error) { return svc.MarkReceived(r.Context(), t, id) },
		"reject":  func(r *http.Request, t, id string) (*models.PurchaseSuggestion, error) { return svc.Reject(r.Context(), t, id) },
		"cancel":  func(r *http.Request, t, id string) (*models.PurchaseSuggestion, error) { return svc.Cancel(r.Context(), t, id) },
	}
	action := chi.URLParam(r, "action")
	fn, ok := actions[action]
	if !ok {
		writeError(w, r, errs.NotFound("action", action))
		return
	}
	sg, err := fn(r, tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestionView(sg))
}
